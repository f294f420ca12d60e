package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements.
// A scalar (empty shape) holds one element.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that every dimension is positive.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("dimension %d is %d, must be > 0", i, dim)
		}
	}
	return nil
}

// Equal reports whether two shapes have the same dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// ComputeStrides returns row-major strides: stride[i] is the product of
// all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// NormalizeDim maps a possibly negative dimension index onto [0, len(s)).
// Panics if the index is out of range.
func (s Shape) NormalizeDim(dim int) int {
	if dim < 0 {
		dim += len(s)
	}
	if dim < 0 || dim >= len(s) {
		panic(fmt.Sprintf("dimension %d out of range for shape %v", dim, s))
	}
	return dim
}

// BroadcastShapes applies NumPy broadcasting rules to two shapes.
//
// Shapes are aligned from the right; two dimensions are compatible when
// they are equal or one of them is 1. Missing leading dimensions count
// as 1.
//
// Returns the broadcast shape, whether any broadcasting is needed, and an
// error when the shapes are incompatible.
//
// Examples:
//
//	(3, 1) + (3, 5) -> (3, 5), true
//	(5,)   + (3, 5) -> (3, 5), true
//	(3, 5) + (3, 5) -> (3, 5), false
//	(3, 4) + (3, 5) -> error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	n := max(len(a), len(b))
	out := make(Shape, n)
	broadcast := len(a) != len(b)

	for i := 0; i < n; i++ {
		da, db := 1, 1
		if j := len(a) - 1 - i; j >= 0 {
			da = a[j]
		}
		if j := len(b) - 1 - i; j >= 0 {
			db = b[j]
		}
		switch {
		case da == db:
			out[n-1-i] = da
		case da == 1:
			out[n-1-i] = db
			broadcast = true
		case db == 1:
			out[n-1-i] = da
			broadcast = true
		default:
			return nil, false, fmt.Errorf("shapes %v and %v are not broadcastable (dim %d: %d vs %d)",
				a, b, n-1-i, da, db)
		}
	}
	return out, broadcast, nil
}

// BroadcastStrides returns strides that read a tensor of shape s as if it
// had shape target: broadcast dimensions get stride 0.
func (s Shape) BroadcastStrides(target Shape) []int {
	own := s.ComputeStrides()
	out := make([]int, len(target))
	offset := len(target) - len(s)
	for i := range target {
		j := i - offset
		if j < 0 || s[j] == 1 {
			continue
		}
		out[i] = own[j]
	}
	return out
}
