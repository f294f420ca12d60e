package tensor

import "math/rand/v2"

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	t := tensor.Zeros(Shape{3, 4}, backend)
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	return New(MustRaw(shape, b.Device()), b)
}

// Ones creates a tensor filled with ones.
func Ones[B Backend](shape Shape, b B) *Tensor[B] {
	return Full(shape, 1, b)
}

// Full creates a tensor filled with value.
func Full[B Backend](shape Shape, value float32, b B) *Tensor[B] {
	t := Zeros(shape, b)
	t.raw.Fill(value)
	return t
}

// Randn creates a tensor with values drawn from N(mean, std²).
func Randn[B Backend](shape Shape, mean, std float32, rng *rand.Rand, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := range data {
		data[i] = mean + std*float32(rng.NormFloat64())
	}
	return t
}

// RandUniform creates a tensor with values drawn from U(low, high).
func RandUniform[B Backend](shape Shape, low, high float32, rng *rand.Rand, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := range data {
		data[i] = low + (high-low)*rng.Float32()
	}
	return t
}
