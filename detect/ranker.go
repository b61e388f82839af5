package detect

import (
	"slices"

	"github.com/fwojciec/pagewalk"
)

var _ pagewalk.Ranker = (*Ranker)(nil)

// DefaultOrder is the automatic-mode precedence: visible affordances first,
// inferred URL patterns next, network payloads and scrolling last.
var DefaultOrder = []pagewalk.StrategyName{
	pagewalk.StrategyNextButton,
	pagewalk.StrategyLoadMore,
	pagewalk.StrategyArrow,
	pagewalk.StrategyQueryString,
	pagewalk.StrategyPathBased,
	pagewalk.StrategyAPICursor,
	pagewalk.StrategyInfiniteScroll,
}

// MethodStrategies maps a user-selected method to the strategies it allows.
// MethodAuto allows all of them.
var MethodStrategies = map[pagewalk.Method][]pagewalk.StrategyName{
	pagewalk.MethodNextButton:     {pagewalk.StrategyNextButton, pagewalk.StrategyArrow},
	pagewalk.MethodLoadMore:       {pagewalk.StrategyLoadMore},
	pagewalk.MethodInfiniteScroll: {pagewalk.StrategyInfiniteScroll},
	pagewalk.MethodURLPattern:     {pagewalk.StrategyQueryString, pagewalk.StrategyPathBased},
	pagewalk.MethodAPI:            {pagewalk.StrategyAPICursor},
}

// DefaultStrategies returns one instance of every strategy with default tables.
func DefaultStrategies() []pagewalk.Strategy {
	return []pagewalk.Strategy{
		NewNextButton(),
		NewLoadMore(),
		NewArrow(),
		NewQueryString(),
		NewPathBased(),
		NewAPICursor(),
		NewInfiniteScroll(),
	}
}

// Ranker tries strategies in a fixed precedence order and takes the first
// candidate. Raw confidence never reorders strategies; it only gates them
// through MinConfidence.
type Ranker struct {
	// Order overrides DefaultOrder. Strategies missing from it are never run.
	Order []pagewalk.StrategyName

	// MinConfidence drops candidates below a per-strategy floor.
	MinConfidence map[pagewalk.StrategyName]float64

	strategies map[pagewalk.StrategyName]pagewalk.Strategy
}

// NewRanker creates a Ranker over strategies, or DefaultStrategies when none
// are given. A later strategy replaces an earlier one with the same name.
func NewRanker(strategies ...pagewalk.Strategy) *Ranker {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	r := &Ranker{strategies: make(map[pagewalk.StrategyName]pagewalk.Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Name()] = s
	}
	return r
}

// Rank returns the first acceptable candidate for method, or nil.
func (r *Ranker) Rank(pc pagewalk.PageContext, method pagewalk.Method) *pagewalk.Candidate {
	for _, name := range r.Eligible(method) {
		if c := r.detect(name, pc); c != nil {
			return c
		}
	}
	return nil
}

// Candidates returns every acceptable candidate for method in precedence
// order. It is meant for diagnostics; the controller only uses Rank.
func (r *Ranker) Candidates(pc pagewalk.PageContext, method pagewalk.Method) []*pagewalk.Candidate {
	var out []*pagewalk.Candidate
	for _, name := range r.Eligible(method) {
		if c := r.detect(name, pc); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Eligible returns the names of the strategies that run for method, in
// precedence order.
func (r *Ranker) Eligible(method pagewalk.Method) []pagewalk.StrategyName {
	order := r.Order
	if len(order) == 0 {
		order = DefaultOrder
	}
	allowed, manual := MethodStrategies[method]

	var names []pagewalk.StrategyName
	for _, name := range order {
		if _, ok := r.strategies[name]; !ok {
			continue
		}
		if manual && !slices.Contains(allowed, name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

func (r *Ranker) detect(name pagewalk.StrategyName, pc pagewalk.PageContext) *pagewalk.Candidate {
	c := r.strategies[name].Detect(pc)
	if c == nil {
		return nil
	}
	if c.Confidence < r.MinConfidence[name] {
		return nil
	}
	return c
}
