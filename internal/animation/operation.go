package animation

import (
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/light"
)

// OpKind identifies the variant of an Operation.
type OpKind int

const (
	OpNone OpKind = iota
	OpSet
	OpAdd
	OpMultiply
	OpApply
	OpToggle
	OpAverage
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpAdd:
		return "add"
	case OpMultiply:
		return "multiply"
	case OpApply:
		return "apply"
	case OpToggle:
		return "toggle"
	case OpAverage:
		return "average"
	default:
		return "none"
	}
}

// Applier computes a producer from the snapshot and the attribute's previous value.
// Returning nil means "no value" for this evaluation.
type Applier[T Value] interface {
	Apply(snapshot light.Collection, prev *T) Producer[T]
}

// ApplierFunc adapts a plain function to Applier.
type ApplierFunc[T Value] func(snapshot light.Collection, prev *T) Producer[T]

func (f ApplierFunc[T]) Apply(snapshot light.Collection, prev *T) Producer[T] {
	return f(snapshot, prev)
}

// Operation computes one attribute of a device's next state.
// A nil *Operation always yields no value.
type Operation[T Value] struct {
	kind     OpKind
	producer Producer[T]
	applier  Applier[T]
	arith    func(prev, v T) T
	field    func(light.State) *T
}

// Set always takes the producer's value, ignoring the previous one.
func Set[T Value](p Producer[T]) *Operation[T] {
	return &Operation[T]{kind: OpSet, producer: p}
}

// Add adds the producer's value to the previous one. Overflow wraps around.
func Add[T Number](p Producer[T]) *Operation[T] {
	return &Operation[T]{kind: OpAdd, producer: p, arith: func(prev, v T) T { return prev + v }}
}

// Multiply multiplies the previous value by the producer's value. Overflow wraps around.
func Multiply[T Number](p Producer[T]) *Operation[T] {
	return &Operation[T]{kind: OpMultiply, producer: p, arith: func(prev, v T) T { return prev * v }}
}

// Apply delegates to a user-supplied Applier.
func Apply[T Value](a Applier[T]) *Operation[T] {
	return &Operation[T]{kind: OpApply, applier: a}
}

// Toggle inverts the previous power state.
func Toggle() *Operation[bool] {
	return &Operation[bool]{kind: OpToggle}
}

// Average takes the mean of an attribute across the snapshot.
func Average[T Number](field func(light.State) *T) *Operation[T] {
	return &Operation[T]{kind: OpAverage, field: field}
}

// AverageBri averages brightness across the snapshot.
func AverageBri() *Operation[uint8] {
	return Average(func(s light.State) *uint8 { return s.Bri })
}

// AverageSat averages saturation across the snapshot.
func AverageSat() *Operation[uint8] {
	return Average(func(s light.State) *uint8 { return s.Sat })
}

// Kind returns the operation variant.
func (o *Operation[T]) Kind() OpKind {
	if o == nil {
		return OpNone
	}
	return o.kind
}

// Process computes the next value. The result never aliases prev.
func (o *Operation[T]) Process(snapshot light.Collection, prev *T) *T {
	if o == nil {
		return nil
	}

	switch o.kind {
	case OpSet:
		return ptr(o.producer.Produce())

	case OpAdd, OpMultiply:
		if prev == nil {
			return nil
		}
		return ptr(o.arith(*prev, o.producer.Produce()))

	case OpApply:
		p := o.safeApply(snapshot, prev)
		if p == nil {
			return nil
		}
		return ptr(p.Produce())

	case OpToggle:
		if prev == nil {
			return nil
		}
		v := any(!any(*prev).(bool)).(T)
		return &v

	case OpAverage:
		return average(snapshot, o.field)
	}

	return nil
}

func (o *Operation[T]) safeApply(snapshot light.Collection, prev *T) (p Producer[T]) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Applier panicked, skipping attribute")
			p = nil
		}
	}()
	return o.applier.Apply(snapshot, prev)
}

func average[T Value](snapshot light.Collection, field func(light.State) *T) *T {
	if field == nil {
		return nil
	}
	var sum uint64
	var n uint64
	for _, l := range snapshot {
		v := field(l.State)
		if v == nil {
			continue
		}
		switch x := any(*v).(type) {
		case uint8:
			sum += uint64(x)
		case uint16:
			sum += uint64(x)
		default:
			return nil
		}
		n++
	}
	if n == 0 {
		return nil
	}
	var out T
	switch any(out).(type) {
	case uint8:
		out = any(uint8(sum / n)).(T)
	case uint16:
		out = any(uint16(sum / n)).(T)
	}
	return &out
}

func ptr[T any](v T) *T {
	return &v
}
