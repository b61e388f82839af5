package crawl_test

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/fwojciec/pagewalk"
	"github.com/fwojciec/pagewalk/crawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func content(ids ...string) *pagewalk.ExtractedContent {
	c := &pagewalk.ExtractedContent{}
	for _, id := range ids {
		c.Items = append(c.Items, pagewalk.Item{ID: id})
	}
	return c
}

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a\nb\nc", crawl.Canonicalize(content("a", "b", "c")))
	assert.Equal(t, "", crawl.Canonicalize(content()))
	assert.Equal(t, "", crawl.Canonicalize(nil))
}

func TestFingerprinter_Fingerprint(t *testing.T) {
	t.Parallel()

	t.Run("hashes ordered item ids with SHA-256", func(t *testing.T) {
		t.Parallel()

		f := crawl.NewFingerprinter(0, 0)
		fp := f.Fingerprint(content("/p/1", "/p/2"), "https://example.com/?page=2")

		sum := sha256.Sum256([]byte("/p/1\n/p/2"))
		assert.Equal(t, hex.EncodeToString(sum[:]), fp.Hash)
		assert.Equal(t, "https://example.com/?page=2", fp.SourceURL)
		assert.False(t, fp.CreatedAt.IsZero())
	})

	t.Run("order matters", func(t *testing.T) {
		t.Parallel()

		f := crawl.NewFingerprinter(0, 0)
		a := f.Fingerprint(content("x", "y"), "")
		b := f.Fingerprint(content("y", "x"), "")

		assert.NotEqual(t, a.Hash, b.Hash)
	})

	t.Run("same content from different URLs hashes equally", func(t *testing.T) {
		t.Parallel()

		f := crawl.NewFingerprinter(0, 0)
		a := f.Fingerprint(content("x"), "https://example.com/a")
		b := f.Fingerprint(content("x"), "https://example.com/b")

		assert.Equal(t, a.Hash, b.Hash)
	})
}

func TestFingerprinter_Duplicates(t *testing.T) {
	t.Parallel()

	t.Run("empty history has no duplicates", func(t *testing.T) {
		t.Parallel()

		f := crawl.NewFingerprinter(0, 0)
		fp := f.Fingerprint(content("a"), "")

		assert.False(t, f.IsExactDuplicate(fp))
		assert.False(t, f.IsRecentDuplicate(fp))
	})

	t.Run("recent duplicate found within lookback", func(t *testing.T) {
		t.Parallel()

		f := crawl.NewFingerprinter(50, 3)
		same := f.Fingerprint(content("a"), "")

		f.Append(same)
		assert.True(t, f.IsRecentDuplicate(same))
		assert.True(t, f.IsExactDuplicate(same))
	})

	t.Run("older duplicate is exact but not recent", func(t *testing.T) {
		t.Parallel()

		f := crawl.NewFingerprinter(50, 3)
		old := f.Fingerprint(content("old"), "")
		f.Append(old)
		for i := range 3 {
			f.Append(f.Fingerprint(content(fmt.Sprint(i)), ""))
		}

		assert.True(t, f.IsExactDuplicate(old))
		assert.False(t, f.IsRecentDuplicate(old))
	})

	t.Run("history evicts oldest entry when full", func(t *testing.T) {
		t.Parallel()

		f := crawl.NewFingerprinter(3, 1)
		first := f.Fingerprint(content("first"), "")
		f.Append(first)
		for i := range 3 {
			f.Append(f.Fingerprint(content(fmt.Sprint(i)), ""))
		}

		assert.Equal(t, 3, f.Len())
		assert.False(t, f.IsExactDuplicate(first))
	})
}

func TestFingerprinter_Restore(t *testing.T) {
	t.Parallel()

	f := crawl.NewFingerprinter(2, 1)
	f.Restore([]string{"h1", "h2", "h3"})

	require.Equal(t, 2, f.Len())
	assert.Equal(t, []string{"h2", "h3"}, f.Hashes())
	assert.True(t, f.IsRecentDuplicate(crawl.Fingerprint{Hash: "h3"}))
	assert.False(t, f.IsRecentDuplicate(crawl.Fingerprint{Hash: "h2"}))
	assert.True(t, f.IsExactDuplicate(crawl.Fingerprint{Hash: "h2"}))
}
