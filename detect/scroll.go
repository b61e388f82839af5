package detect

import "github.com/fwojciec/pagewalk"

var _ pagewalk.Strategy = (*InfiniteScroll)(nil)

// ScrollConfidence is low: scrolling is the fallback when nothing explicit
// was found.
const ScrollConfidence = 0.4

// DefaultScrollRatio is the minimum ScrollHeight to viewport Height ratio.
const DefaultScrollRatio = 2.0

// InfiniteScroll proposes scrolling to the bottom when the document extends
// far beyond the viewport.
type InfiniteScroll struct {
	// Ratio overrides DefaultScrollRatio.
	Ratio float64
}

// NewInfiniteScroll creates an InfiniteScroll with the default ratio.
func NewInfiniteScroll() *InfiniteScroll {
	return &InfiniteScroll{}
}

// Name returns the strategy identifier.
func (s *InfiniteScroll) Name() pagewalk.StrategyName {
	return pagewalk.StrategyInfiniteScroll
}

// Detect returns a Scroll candidate. Pages without geometry, such as static
// snapshots, never match.
func (s *InfiniteScroll) Detect(pc pagewalk.PageContext) *pagewalk.Candidate {
	vp := pc.Viewport()
	if vp.Height <= 0 {
		return nil
	}
	ratio := s.Ratio
	if ratio <= 0 {
		ratio = DefaultScrollRatio
	}
	if float64(vp.ScrollHeight) <= ratio*float64(vp.Height) {
		return nil
	}
	return &pagewalk.Candidate{
		Strategy:   s.Name(),
		Confidence: ScrollConfidence,
		Action:     pagewalk.ScrollToBottom(),
	}
}
