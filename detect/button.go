package detect

import (
	"regexp"

	"github.com/fwojciec/pagewalk"
)

// Compile-time interface verification.
var (
	_ pagewalk.Strategy = (*NextButton)(nil)
	_ pagewalk.Strategy = (*LoadMore)(nil)
	_ pagewalk.Strategy = (*Arrow)(nil)
)

// NextButtonSelectors are tried in order before falling back to text.
var NextButtonSelectors = []SelectorRule{
	{Selector: `a[rel~="next"]`},
	{Selector: `button[rel~="next"]`},
	{Selector: `.pagination a.next, .pagination .next a, .pagination li.next a`},
	{Selector: `.pager .next a, .pager a.next, .pager__item--next a`},
	{Selector: `a.pagination-next, a.pagination__next, .pagination__next a`},
	{Selector: `a.next-page, button.next-page, .next-page a`},
	{Selector: `a[aria-label="Next"], button[aria-label="Next"], a[aria-label="Next page"], button[aria-label="Next page"]`},
	{Selector: `a[aria-label="Go to next page"], button[aria-label="Go to next page"]`},
	{Selector: `[data-testid="pagination-next"], [data-test="pagination-next"], [data-testid="next-page"]`},
	{Selector: `a.next, button.next`},
	{Selector: `link[rel="next"]`, AllowHidden: true},
}

// NextButtonText matches a whole label meaning "next" in common languages,
// optionally followed by an arrow.
var NextButtonText = regexp.MustCompile(`(?i)^\s*(next|next page|next results|siguiente|página siguiente|suivant|suivante|page suivante|weiter|nächste|nächste seite|avanti|successiva|pagina successiva|próxima|proxima|seguinte|volgende|nästa|neste|næste|następna|dalej|sonraki|下一页|下一頁|次へ|次のページ|다음|다음 페이지|далее|следующая|вперёд|вперед)\s*[›»→>❯⟩]*\s*$`)

// NextButton finds a "next page" button or link.
type NextButton struct {
	Selectors []SelectorRule
	Text      *regexp.Regexp
}

// NewNextButton creates a NextButton with the default tables.
func NewNextButton() *NextButton {
	return &NextButton{Selectors: NextButtonSelectors, Text: NextButtonText}
}

// Name returns the strategy identifier.
func (s *NextButton) Name() pagewalk.StrategyName {
	return pagewalk.StrategyNextButton
}

// Detect returns a GoTo candidate when the button links elsewhere and a
// Click candidate otherwise.
func (s *NextButton) Detect(pc pagewalk.PageContext) *pagewalk.Candidate {
	el, confidence, ok := affordance(pc, s.Selectors, s.Text)
	if !ok {
		return nil
	}
	return elementCandidate(pc, s.Name(), el, confidence)
}

// LoadMoreSelectors are tried in order before falling back to text.
var LoadMoreSelectors = []SelectorRule{
	{Selector: `button.load-more, a.load-more, .load-more button, .load-more a`},
	{Selector: `button.loadMore, a.loadMore, button.load_more, a.load_more`},
	{Selector: `button.show-more, a.show-more, button.view-more, a.view-more`},
	{Selector: `[data-testid="load-more"], [data-test="load-more"], [data-action="load-more"]`},
	{Selector: `button[aria-label="Load more"], button[aria-label="Show more"]`},
	{Selector: `.load-more, .loadMore, .load_more`},
}

// LoadMoreText matches load-more labels in common languages. Trailing counts
// such as "Show more (24)" are allowed.
var LoadMoreText = regexp.MustCompile(`(?i)^\s*(load more|show more|view more|see more|more results|load more results|show more results|mehr laden|mehr anzeigen|weitere laden|cargar más|ver más|mostrar más|voir plus|afficher plus|charger plus|carica altri|mostra altri|carregar mais|ver mais|meer laden|toon meer|加载更多|查看更多|もっと見る|さらに表示|더 보기|더보기|показать ещё|показать еще|загрузить ещё|загрузить еще)(\s.*)?$`)

// LoadMore finds a button that appends the next batch to the current page.
type LoadMore struct {
	Selectors []SelectorRule
	Text      *regexp.Regexp
}

// NewLoadMore creates a LoadMore with the default tables.
func NewLoadMore() *LoadMore {
	return &LoadMore{Selectors: LoadMoreSelectors, Text: LoadMoreText}
}

// Name returns the strategy identifier.
func (s *LoadMore) Name() pagewalk.StrategyName {
	return pagewalk.StrategyLoadMore
}

// Detect returns a Click candidate. Load-more links are clicked rather than
// followed since their href is usually a non-JavaScript fallback.
func (s *LoadMore) Detect(pc pagewalk.PageContext) *pagewalk.Candidate {
	el, confidence, ok := affordance(pc, s.Selectors, s.Text)
	if !ok || el.Locator == "" {
		return nil
	}
	return &pagewalk.Candidate{
		Strategy:   s.Name(),
		Confidence: confidence,
		Action:     pagewalk.Click(el.Locator),
	}
}

// ArrowSelectors match icon-only forward controls.
var ArrowSelectors = []SelectorRule{
	{Selector: `a:has([class*="chevron-right"]), button:has([class*="chevron-right"])`},
	{Selector: `a:has([class*="arrow-right"]), button:has([class*="arrow-right"])`},
	{Selector: `a:has([class*="angle-right"]), button:has([class*="angle-right"])`},
	{Selector: `a:has([class*="icon-next"]), button:has([class*="icon-next"])`},
	{Selector: `a[class*="arrow-right"], button[class*="arrow-right"], a[class*="arrow-next"], button[class*="arrow-next"]`},
}

// ArrowText matches a label made of a single forward arrow glyph. Doubled
// glyphs usually jump to the last page and are not matched.
var ArrowText = regexp.MustCompile(`^\s*[›»→>❯⟩▶▸⇒⟶]\s*$`)

// Arrow finds a forward arrow control.
type Arrow struct {
	Selectors []SelectorRule
	Text      *regexp.Regexp
}

// NewArrow creates an Arrow with the default tables.
func NewArrow() *Arrow {
	return &Arrow{Selectors: ArrowSelectors, Text: ArrowText}
}

// Name returns the strategy identifier.
func (s *Arrow) Name() pagewalk.StrategyName {
	return pagewalk.StrategyArrow
}

// Detect returns a GoTo candidate when the arrow links elsewhere and a Click
// candidate otherwise.
func (s *Arrow) Detect(pc pagewalk.PageContext) *pagewalk.Candidate {
	el, confidence, ok := affordance(pc, s.Selectors, s.Text)
	if !ok {
		return nil
	}
	return elementCandidate(pc, s.Name(), el, confidence)
}
