// Package animation implements per-attribute transforms and looping step
// sequences that turn a light snapshot into frames of partial states.
package animation

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Value is the set of attribute types an operation can act on.
type Value interface {
	bool | uint8 | uint16
}

// Number is the subset of Value that supports arithmetic.
type Number interface {
	uint8 | uint16
}

// Producer yields a value each time it is sampled.
type Producer[T Value] interface {
	Produce() T
}

// NewSource returns a deterministic random source for the given seed.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewTimeSource returns a random source seeded from the wall clock.
func NewTimeSource() *rand.Rand {
	return NewSource(uint64(time.Now().UnixNano()))
}

type constant[T Value] struct {
	v T
}

// Constant always produces v.
func Constant[T Value](v T) Producer[T] {
	return constant[T]{v: v}
}

func (c constant[T]) Produce() T { return c.v }

func (c constant[T]) String() string { return fmt.Sprintf("constant(%v)", c.v) }

type random[T Value] struct {
	src *rand.Rand
}

// Random produces values uniformly over the whole range of T.
// For bool that is a fair coin.
func Random[T Value](src *rand.Rand) Producer[T] {
	return random[T]{src: src}
}

func (r random[T]) Produce() T {
	var zero T
	switch any(zero).(type) {
	case bool:
		return any(r.src.IntN(2) == 1).(T)
	case uint8:
		return any(uint8(r.src.UintN(1 << 8))).(T)
	case uint16:
		return any(uint16(r.src.UintN(1 << 16))).(T)
	}
	return zero
}

func (r random[T]) String() string { return "random" }

type randomRange[T Number] struct {
	src    *rand.Rand
	lo, hi T
}

// RandomRange produces values uniformly in [lo, hi).
// A degenerate range with lo == hi always yields lo.
func RandomRange[T Number](src *rand.Rand, lo, hi T) (Producer[T], error) {
	if lo > hi {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, lo, hi)
	}
	return randomRange[T]{src: src, lo: lo, hi: hi}, nil
}

// MustRandomRange is like RandomRange but panics on an invalid range.
// Only for ranges fixed at compile time.
func MustRandomRange[T Number](src *rand.Rand, lo, hi T) Producer[T] {
	p, err := RandomRange(src, lo, hi)
	if err != nil {
		panic(err)
	}
	return p
}

func (r randomRange[T]) Produce() T {
	if r.lo == r.hi {
		return r.lo
	}
	return r.lo + T(r.src.Uint64N(uint64(r.hi-r.lo)))
}

func (r randomRange[T]) String() string { return fmt.Sprintf("random_range(%d, %d)", r.lo, r.hi) }
