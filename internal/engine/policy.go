package engine

import (
	"math/rand"

	"storyweave/internal/storyworld"
)

// Policy picks one of the open options of an encounter. open is never empty.
type Policy interface {
	Choose(rng *rand.Rand, e *storyworld.Encounter, open []*storyworld.Option) *storyworld.Option
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(rng *rand.Rand, e *storyworld.Encounter, open []*storyworld.Option) *storyworld.Option

func (f PolicyFunc) Choose(rng *rand.Rand, e *storyworld.Encounter, open []*storyworld.Option) *storyworld.Option {
	return f(rng, e, open)
}

// Uniform chooses uniformly at random among the open options.
var Uniform Policy = PolicyFunc(func(rng *rand.Rand, _ *storyworld.Encounter, open []*storyworld.Option) *storyworld.Option {
	return open[rng.Intn(len(open))]
})

// First always takes the first open option.
var First Policy = PolicyFunc(func(_ *rand.Rand, _ *storyworld.Encounter, open []*storyworld.Option) *storyworld.Option {
	return open[0]
})
