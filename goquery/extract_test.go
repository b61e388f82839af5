package goquery_test

import (
	"context"
	"testing"

	"github.com/fwojciec/pagewalk"
	"github.com/fwojciec/pagewalk/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	t.Run("extracts items with default selectors", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
<main>
	<article data-price="10"><a href="/p/1">First</a></article>
	<article data-price="20"><a href="/p/2#reviews">Second</a></article>
</main>
</body></html>`

		page, err := goquery.NewPage("https://shop.example.com/list?page=1", html)
		require.NoError(t, err)

		content, err := goquery.NewExtractor().Extract(context.Background(), page)

		require.NoError(t, err)
		require.Len(t, content.Items, 2)
		assert.Equal(t, "https://shop.example.com/p/1", content.Items[0].ID)
		assert.Equal(t, "First", content.Items[0].Text)
		assert.Equal(t, "10", content.Items[0].Attrs["price"])
		assert.Equal(t, "https://shop.example.com/p/2", content.Items[1].ID)
		assert.Equal(t, "https://shop.example.com/list?page=1", content.URL)
	})

	t.Run("first matching selector wins", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
<div class="result"><a href="/r/1">R1</a></div>
<article><a href="/a/1">A1</a></article>
</body></html>`

		page, err := goquery.NewPage("https://example.com/", html)
		require.NoError(t, err)

		content, err := goquery.NewExtractor().Extract(context.Background(), page)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/r/1"}, content.IDs())
	})

	t.Run("custom selector on anchors deduplicates", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
<a class="hit" href="/x">x</a>
<a class="hit" href="/x">x again</a>
<a class="hit" href="javascript:void(0)">js</a>
<a class="hit" href="/y" hidden>hidden</a>
</body></html>`

		page, err := goquery.NewPage("https://example.com/", html)
		require.NoError(t, err)

		content, err := goquery.NewExtractor("a.hit").Extract(context.Background(), page)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/x"}, content.IDs())
	})

	t.Run("falls back to data-item-id without a link", func(t *testing.T) {
		t.Parallel()

		html := `<html><body><div data-item-id="sku-1">Widget</div></body></html>`

		page, err := goquery.NewPage("https://example.com/", html)
		require.NoError(t, err)

		content, err := goquery.NewExtractor().Extract(context.Background(), page)

		require.NoError(t, err)
		require.Len(t, content.Items, 1)
		assert.Equal(t, "sku-1", content.Items[0].ID)
		assert.Equal(t, "Widget", content.Items[0].Text)
	})

	t.Run("no items on empty listing", func(t *testing.T) {
		t.Parallel()

		page, err := goquery.NewPage("https://example.com/", `<html><body><p>Nothing here</p></body></html>`)
		require.NoError(t, err)

		content, err := goquery.NewExtractor().Extract(context.Background(), page)

		require.NoError(t, err)
		assert.Empty(t, content.Items)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		page, err := goquery.NewPage("https://example.com/", `<html></html>`)
		require.NoError(t, err)

		_, err = goquery.NewExtractor().Extract(ctx, page)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

var _ pagewalk.Extractor = goquery.NewExtractor()
