package cpu

import (
	"fmt"

	"github.com/born-ml/coursework/internal/parallel"
	"github.com/born-ml/coursework/internal/tensor"
)

// MatMul performs 2-D matrix multiplication: [M, K] @ [K, N] -> [M, N].
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v and %v", as, bs))
	}
	if as[1] != bs[0] {
		panic(fmt.Sprintf("matmul: inner dimensions differ: %v @ %v", as, bs))
	}
	m, k, n := as[0], as[1], bs[1]
	result := tensor.MustRaw(tensor.Shape{m, n}, cpu.device)
	out, ad, bd := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
	parallel.Range(m, cpu.par, func(lo, hi int) {
		matmulRows(out, ad, bd, lo, hi, k, n)
	})
	return result
}

// BatchMatMul performs batched matrix multiplication:
// [B, M, K] @ [B, K, N] -> [B, M, N].
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	as, bs := a.Shape(), b.Shape()
	if len(as) != 3 || len(bs) != 3 {
		panic(fmt.Sprintf("batchmatmul: expected 3D tensors, got %v and %v", as, bs))
	}
	if as[0] != bs[0] || as[2] != bs[1] {
		panic(fmt.Sprintf("batchmatmul: incompatible shapes %v @ %v", as, bs))
	}
	batch, m, k, n := as[0], as[1], as[2], bs[2]
	result := tensor.MustRaw(tensor.Shape{batch, m, n}, cpu.device)
	out, ad, bd := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
	parallel.Range(batch, cpu.par, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			matmulRows(out[i*m*n:(i+1)*m*n], ad[i*m*k:(i+1)*m*k], bd[i*k*n:(i+1)*k*n], 0, m, k, n)
		}
	})
	return result
}

// matmulRows computes rows [lo, hi) of out = a @ b with the i-k-j loop
// order so the innermost loop streams over contiguous rows of b and out.
func matmulRows(out, a, b []float32, lo, hi, k, n int) {
	for i := lo; i < hi; i++ {
		row := out[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			av := a[i*k+p]
			if av == 0 {
				continue
			}
			brow := b[p*n : (p+1)*n]
			for j, bv := range brow {
				row[j] += av * bv
			}
		}
	}
}
