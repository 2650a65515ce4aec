package runner

import (
	"errors"
	"fmt"

	"github.com/stepline-ci/stepline/types"
)

// ErrInvalidStepShape is returned when a recipe produces something that is
// neither a step, a sequence of steps, nor a generator. It is a contract
// violation in recipe code, not a recoverable condition.
var ErrInvalidStepShape = errors.New("invalid step shape")

// Producer is a pull-based generator of step items. The orchestration loop
// drives it to exhaustion, passing the run's current failure state on each
// pull so the producer can react to earlier results.
//
// A producer is lazy, finite, and not restartable.
type Producer interface {
	// Next returns the next item and true, or a zero Item and false when
	// the producer is exhausted.
	Next(failed bool) (Item, bool)
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(failed bool) (Item, bool)

func (f ProducerFunc) Next(failed bool) (Item, bool) { return f(failed) }

// Item is one entry in a recipe's step stream: a single step, an ordered
// sequence of items, or a live generator. Exactly one field is set; an
// Item with any other shape fails flattening with ErrInvalidStepShape.
type Item struct {
	Step *types.Step
	Seq  []Item
	Gen  Producer
}

// Single wraps one step as an item.
func Single(step *types.Step) Item { return Item{Step: step} }

// Sequence wraps an ordered batch of items.
func Sequence(items ...Item) Item { return Item{Seq: items} }

// Steps wraps an ordered batch of steps, the common case of a co-generated
// group.
func Steps(steps ...*types.Step) Item {
	items := make([]Item, len(steps))
	for i, s := range steps {
		items[i] = Single(s)
	}
	return Sequence(items...)
}

// Generate wraps a producer.
func Generate(p Producer) Item { return Item{Gen: p} }

// FromItems returns a producer that yields the given items one at a time,
// regardless of the failure state. Useful in tests and for recipes with a
// precomputed stream.
func FromItems(items ...Item) Producer {
	i := 0
	return ProducerFunc(func(bool) (Item, bool) {
		if i >= len(items) {
			return Item{}, false
		}
		item := items[i]
		i++
		return item, true
	})
}

// Flatten resolves a non-generator item into a flat, ordered list of
// steps: a single step yields itself, and a sequence is flattened
// depth-first, preserving emission order. After flattening a sequence, if
// its first step lacks a seed-steps grouping tag, one is synthesized
// listing every step name in the sequence, so the batch is visible to the
// coordination backend as seeded together.
//
// Generators cannot be nested inside sequences; the orchestration loop is
// the only component allowed to drive them.
func Flatten(item Item) ([]*types.Step, error) {
	switch {
	case item.Step != nil && item.Seq == nil && item.Gen == nil:
		return []*types.Step{item.Step}, nil
	case item.Seq != nil && item.Step == nil && item.Gen == nil:
		steps, err := flattenSeq(item.Seq)
		if err != nil {
			return nil, err
		}
		fixupSeedSteps(steps)
		return steps, nil
	default:
		return nil, fmt.Errorf("%w: item is not a step or a sequence", ErrInvalidStepShape)
	}
}

func flattenSeq(seq []Item) ([]*types.Step, error) {
	var steps []*types.Step
	for _, item := range seq {
		switch {
		case item.Step != nil && item.Seq == nil && item.Gen == nil:
			steps = append(steps, item.Step)
		case item.Seq != nil && item.Step == nil && item.Gen == nil:
			sub, err := flattenSeq(item.Seq)
			if err != nil {
				return nil, err
			}
			steps = append(steps, sub...)
		default:
			return nil, fmt.Errorf("%w: sequence element is not a step or a sub-sequence", ErrInvalidStepShape)
		}
	}
	return steps, nil
}

// fixupSeedSteps adds the grouping tag to the first step of a flattened
// sequence, unless it already carries one.
func fixupSeedSteps(steps []*types.Step) {
	if len(steps) == 0 || len(steps[0].SeedSteps) > 0 {
		return
	}
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	steps[0].SeedSteps = names
}
