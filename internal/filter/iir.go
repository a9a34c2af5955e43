// Package filter implements a single-stage binary IIR low-pass filter that
// uses only shifts, additions and subtractions on unsigned integers.
//
// The filter keeps an accumulator holding the filtered value scaled up by
// 2^attenuation. Each sample moves the accumulator by (sample - output),
// which is the fixed-point form of y += (x - y) / 2^attenuation.
//
// All arithmetic wraps modulo the accumulator width. The filter never
// checks its inputs: the accumulator type must be at least
// bits(sample) + attenuation wide (see Fits), and samples must stay within
// the sample type, otherwise results wrap silently.
package filter

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

// IIR is a binary single-stage IIR filter with sample type S and
// accumulator type A. The zero value is a pass-through filter with a zero
// seed.
type IIR[S, A constraints.Unsigned] struct {
	attenuation uint8
	acc         A
}

// Binary16 uses 16-bit samples and a 32-bit accumulator.
type Binary16 = IIR[uint16, uint32]

// Binary32 uses 32-bit samples and a 64-bit accumulator.
type Binary32 = IIR[uint32, uint64]

// New returns a filter that shifts samples by attenuation bits and starts
// at initial.
func New[S, A constraints.Unsigned](attenuation uint8, initial S) *IIR[S, A] {
	return &IIR[S, A]{
		attenuation: attenuation,
		acc:         A(initial) << attenuation,
	}
}

// AddSample feeds value into the filter and returns the filtered value as
// it was before value was applied.
func (f *IIR[S, A]) AddSample(value S) S {
	out := f.acc >> f.attenuation
	f.acc = f.acc - out + A(value)

	return S(out)
}

// Value returns the current filtered value.
func (f *IIR[S, A]) Value() S {
	return S(f.acc >> f.attenuation)
}

// Attenuation returns the shift applied to samples.
func (f *IIR[S, A]) Attenuation() uint8 {
	return f.attenuation
}

// Fits reports whether an accumulator of type A can hold any sample of
// type S scaled by 2^attenuation without wrapping.
func Fits[S, A constraints.Unsigned](attenuation uint8) bool {
	return width[A]() >= width[S]()+int(attenuation)
}

func width[T constraints.Unsigned]() int {
	return bits.Len64(uint64(^T(0)))
}
