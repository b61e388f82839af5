package detect_test

import (
	"testing"

	"github.com/fwojciec/pagewalk"
	"github.com/fwojciec/pagewalk/detect"
	"github.com/fwojciec/pagewalk/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPage(t *testing.T, rawURL, html string, opts ...goquery.PageOption) *goquery.Page {
	t.Helper()
	page, err := goquery.NewPage(rawURL, html, opts...)
	require.NoError(t, err)
	return page
}

func TestNextButton_Detect(t *testing.T) {
	t.Parallel()

	t.Run("text match with href follows the link", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/search?page=1", `<html><body>
<div class="results">...</div>
<a href="/search?page=2">Next</a>
</body></html>`)

		c := detect.NewNextButton().Detect(page)

		require.NotNil(t, c)
		assert.Equal(t, pagewalk.StrategyNextButton, c.Strategy)
		assert.Equal(t, pagewalk.ActionGoTo, c.Action.Kind)
		assert.Equal(t, "https://example.com/search?page=2", c.Action.URL)
		assert.Equal(t, "https://example.com/search?page=2", c.NextURL)
		assert.InDelta(t, 0.7, c.Confidence, 0.0001)
	})

	t.Run("selector match has higher confidence", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/list", `<html><body>
<ul class="pagination"><li class="next"><a href="?page=2">»</a></li></ul>
</body></html>`)

		c := detect.NewNextButton().Detect(page)

		require.NotNil(t, c)
		assert.Equal(t, "https://example.com/list?page=2", c.NextURL)
		assert.InDelta(t, detect.SelectorConfidence, c.Confidence, 0.0001)
	})

	t.Run("button without href is clicked by locator", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/app", `<html><body>
<div class="toolbar"><button type="button">Next page</button></div>
</body></html>`)

		c := detect.NewNextButton().Detect(page)

		require.NotNil(t, c)
		assert.Equal(t, pagewalk.ActionClick, c.Action.Kind)
		assert.Empty(t, c.NextURL)
		found := page.Find(c.Action.Locator)
		require.Len(t, found, 1)
		assert.Equal(t, "Next page", found[0].Text)
	})

	t.Run("fragment href is clicked", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/app", `<html><body><a href="#" class="next">Next</a></body></html>`)

		c := detect.NewNextButton().Detect(page)

		require.NotNil(t, c)
		assert.Equal(t, pagewalk.ActionClick, c.Action.Kind)
	})

	t.Run("skips disabled and hidden buttons", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/list?page=9", `<html><body>
<a class="next disabled" href="/list?page=10">Next</a>
<button aria-disabled="true">Next</button>
<button style="display:none">Next</button>
<span hidden><a href="/list?page=10">Next</a></span>
</body></html>`)

		assert.Nil(t, detect.NewNextButton().Detect(page))
	})

	t.Run("does not match labels that merely start with next", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/", `<html><body><a href="/shipping">Next-day delivery</a></body></html>`)

		assert.Nil(t, detect.NewNextButton().Detect(page))
	})

	t.Run("matches other languages and trailing arrows", func(t *testing.T) {
		t.Parallel()

		for _, label := range []string{"Siguiente ›", "Suivant", "Weiter →", "次へ", "Далее"} {
			page := newPage(t, "https://example.com/", `<html><body><button>`+label+`</button></body></html>`)

			c := detect.NewNextButton().Detect(page)

			require.NotNil(t, c, label)
			assert.InDelta(t, detect.TextConfidence, c.Confidence, 0.0001, label)
		}
	})

	t.Run("head link rel next is followed", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/blog", `<html><head><link rel="next" href="/blog/page/2"></head><body></body></html>`)

		c := detect.NewNextButton().Detect(page)

		require.NotNil(t, c)
		assert.Equal(t, "https://example.com/blog/page/2", c.NextURL)
		assert.InDelta(t, detect.SelectorConfidence, c.Confidence, 0.0001)
	})

	t.Run("no match", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/", `<html><body><a href="/about">About</a></body></html>`)

		assert.Nil(t, detect.NewNextButton().Detect(page))
	})
}

func TestLoadMore_Detect(t *testing.T) {
	t.Parallel()

	t.Run("selector match", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/feed", `<html><body><button class="load-more">Load more</button></body></html>`)

		c := detect.NewLoadMore().Detect(page)

		require.NotNil(t, c)
		assert.Equal(t, pagewalk.StrategyLoadMore, c.Strategy)
		assert.Equal(t, pagewalk.ActionClick, c.Action.Kind)
		assert.InDelta(t, detect.SelectorConfidence, c.Confidence, 0.0001)
	})

	t.Run("text match with trailing count", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/feed", `<html><body><button>Show more (24)</button></body></html>`)

		c := detect.NewLoadMore().Detect(page)

		require.NotNil(t, c)
		assert.InDelta(t, detect.TextConfidence, c.Confidence, 0.0001)
	})

	t.Run("links are clicked rather than followed", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/feed", `<html><body><a href="/feed?page=2">Load more results</a></body></html>`)

		c := detect.NewLoadMore().Detect(page)

		require.NotNil(t, c)
		assert.Equal(t, pagewalk.ActionClick, c.Action.Kind)
		assert.Empty(t, c.NextURL)
	})

	t.Run("disabled button", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/feed", `<html><body><button class="load-more" disabled>Load more</button></body></html>`)

		assert.Nil(t, detect.NewLoadMore().Detect(page))
	})
}

func TestArrow_Detect(t *testing.T) {
	t.Parallel()

	t.Run("glyph label", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/gallery/1", `<html><body><a href="/gallery/2">›</a></body></html>`)

		c := detect.NewArrow().Detect(page)

		require.NotNil(t, c)
		assert.Equal(t, pagewalk.StrategyArrow, c.Strategy)
		assert.Equal(t, "https://example.com/gallery/2", c.NextURL)
		assert.InDelta(t, detect.TextConfidence, c.Confidence, 0.0001)
	})

	t.Run("icon class", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/gallery/1", `<html><body><button><i class="fa fa-chevron-right"></i></button></body></html>`)

		c := detect.NewArrow().Detect(page)

		require.NotNil(t, c)
		assert.Equal(t, pagewalk.ActionClick, c.Action.Kind)
		assert.InDelta(t, detect.SelectorConfidence, c.Confidence, 0.0001)
	})

	t.Run("double glyph jumps to last page", func(t *testing.T) {
		t.Parallel()

		page := newPage(t, "https://example.com/gallery/1", `<html><body><a href="/gallery/40">»»</a></body></html>`)

		assert.Nil(t, detect.NewArrow().Detect(page))
	})
}
