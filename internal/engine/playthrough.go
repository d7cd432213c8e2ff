package engine

import (
	"errors"
	"fmt"
	"math/rand"

	"storyweave/internal/state"
	"storyweave/internal/storyworld"
)

// DefaultMaxSteps bounds a playthrough when the caller gives no budget.
const DefaultMaxSteps = 200

var (
	ErrNotAwaitingOption = errors.New("playthrough is not awaiting an option")
	ErrOptionNotOpen     = errors.New("option is not open")
)

type Phase int

const (
	AwaitingEncounter Phase = iota
	AwaitingOption
	AwaitingReaction
	EffectsApplied
	Ended
	DeadEnd
	Aborted
)

func (p Phase) String() string {
	switch p {
	case AwaitingEncounter:
		return "awaiting_encounter"
	case AwaitingOption:
		return "awaiting_option"
	case AwaitingReaction:
		return "awaiting_reaction"
	case EffectsApplied:
		return "effects_applied"
	case Ended:
		return "ended"
	case DeadEnd:
		return "dead_end"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type OutcomeKind int

const (
	OutcomeRunning OutcomeKind = iota
	OutcomeEnded
	OutcomeDeadEnd
	OutcomeBudgetExceeded
	OutcomeAborted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRunning:
		return "running"
	case OutcomeEnded:
		return "ended"
	case OutcomeDeadEnd:
		return "dead_end"
	case OutcomeBudgetExceeded:
		return "budget_exceeded"
	case OutcomeAborted:
		return "aborted"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is how a playthrough terminated. Ending is set for OutcomeEnded
// and Err for OutcomeAborted.
type Outcome struct {
	Kind   OutcomeKind
	Ending string
	Err    error
}

// Step describes one choice made in a playthrough.
type Step struct {
	Encounter string          `json:"encounter"`
	Option    string          `json:"option"`
	Reaction  string          `json:"reaction"`
	Applied   []AppliedEffect `json:"applied"`
	Next      string          `json:"next,omitempty"`
	Phase     Phase           `json:"-"`
}

// Playthrough is one run through a storyworld. It owns its runtime state and
// is not safe for concurrent use.
type Playthrough struct {
	world    *storyworld.World
	rng      *rand.Rand
	maxSteps int

	values  *state.Store
	fired   map[string]bool
	path    []string
	phase   Phase
	current *storyworld.Encounter
	open    []*storyworld.Option
	outcome Outcome
}

// Start begins a playthrough and enters its opening encounter. rng drives
// tie-breaking; maxSteps bounds the number of encounters entered.
func Start(w *storyworld.World, rng *rand.Rand, maxSteps int) *Playthrough {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	p := &Playthrough{
		world:    w,
		rng:      rng,
		maxSteps: maxSteps,
		values:   w.InitialState(),
		fired:    make(map[string]bool),
		phase:    AwaitingEncounter,
	}
	p.advance(nil)
	return p
}

func (p *Playthrough) Phase() Phase                     { return p.phase }
func (p *Playthrough) Encounter() *storyworld.Encounter { return p.current }
func (p *Playthrough) Outcome() Outcome                 { return p.outcome }
func (p *Playthrough) World() *storyworld.World         { return p.world }

// Done reports whether the playthrough has terminated.
func (p *Playthrough) Done() bool {
	return p.outcome.Kind != OutcomeRunning
}

// Turn is the number of encounters entered so far.
func (p *Playthrough) Turn() int {
	return len(p.path)
}

// OpenOptions returns the options available in the current encounter.
func (p *Playthrough) OpenOptions() []*storyworld.Option {
	return append([]*storyworld.Option(nil), p.open...)
}

// Path returns the ids of the encounters entered so far.
func (p *Playthrough) Path() []string {
	return append([]string(nil), p.path...)
}

// Values returns a copy of the current runtime state.
func (p *Playthrough) Values() *state.Store {
	return p.values.Clone()
}

// Choose takes an open option of the current encounter, fires its most
// desirable reaction and moves on to the next encounter.
func (p *Playthrough) Choose(optionID string) (Step, error) {
	if p.phase != AwaitingOption {
		return Step{}, fmt.Errorf("choosing %q in phase %s: %w", optionID, p.phase, ErrNotAwaitingOption)
	}
	var chosen *storyworld.Option
	for _, o := range p.open {
		if o.ID == optionID {
			chosen = o
			break
		}
	}
	if chosen == nil {
		return Step{}, fmt.Errorf("choosing %q in %s: %w", optionID, p.current.ID, ErrOptionNotOpen)
	}

	step := Step{Encounter: p.current.ID, Option: chosen.ID}
	p.phase = AwaitingReaction
	reaction := SelectReaction(chosen, p.values)
	step.Reaction = reaction.ID

	next, applied, err := Apply(reaction.Effects, p.values)
	step.Applied = applied
	if err != nil {
		p.finish(Outcome{Kind: OutcomeAborted, Err: err}, Aborted)
		step.Phase = p.phase
		return step, nil
	}
	p.values = next
	p.phase = EffectsApplied

	p.advance(reaction)
	if p.phase == AwaitingOption || p.outcome.Kind == OutcomeEnded {
		step.Next = p.current.ID
	}
	step.Phase = p.phase
	return step, nil
}

// Run drives the playthrough to termination with policy choosing options.
func (p *Playthrough) Run(policy Policy) Outcome {
	for !p.Done() {
		o := policy.Choose(p.rng, p.current, p.open)
		if _, err := p.Choose(o.ID); err != nil {
			p.finish(Outcome{Kind: OutcomeAborted, Err: err}, Aborted)
		}
	}
	return p.outcome
}

func (p *Playthrough) advance(prev *storyworld.Reaction) {
	p.phase = AwaitingEncounter
	p.open = nil
	turn := len(p.path)

	var next *storyworld.Encounter
	if prev == nil {
		if start := p.world.Start(); start != nil && Eligible(start, p.values, p.fired, turn) {
			next = start
		} else {
			next = ScanSpools(p.world.Active(), p.values, p.fired, turn, p.rng)
		}
	} else {
		next = SelectEncounter(p.world, prev, p.values, p.fired, turn, p.rng)
	}

	if next == nil {
		p.finish(Outcome{Kind: OutcomeDeadEnd}, DeadEnd)
		return
	}
	if turn >= p.maxSteps {
		p.finish(Outcome{Kind: OutcomeBudgetExceeded}, DeadEnd)
		return
	}
	p.enter(next)
}

func (p *Playthrough) enter(e *storyworld.Encounter) {
	p.fired[e.ID] = true
	p.path = append(p.path, e.ID)
	p.current = e
	if e.IsEnding() {
		p.finish(Outcome{Kind: OutcomeEnded, Ending: e.ID}, Ended)
		return
	}
	p.open = OpenOptions(e, p.values)
	if len(p.open) == 0 {
		p.finish(Outcome{Kind: OutcomeEnded, Ending: e.ID}, Ended)
		return
	}
	p.phase = AwaitingOption
}

func (p *Playthrough) finish(o Outcome, phase Phase) {
	p.outcome = o
	p.phase = phase
	p.open = nil
}
