package jsonparser_test

import (
	"context"
	"testing"

	"github.com/fwojciec/pagewalk"
	"github.com/fwojciec/pagewalk/jsonparser"
	"github.com/fwojciec/pagewalk/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageWithPayloads(payloads ...pagewalk.Payload) *mock.PageContext {
	return &mock.PageContext{
		URLFn:      func() string { return "https://example.com/search" },
		PayloadsFn: func() []pagewalk.Payload { return payloads },
	}
}

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	t.Run("extracts items from data.items", func(t *testing.T) {
		t.Parallel()

		pc := pageWithPayloads(pagewalk.Payload{
			URL:  "https://example.com/api/search?page=1",
			Body: []byte(`{"data":{"items":[{"url":"/p/1","title":"One"},{"url":"/p/2","title":"Two"}]}}`),
		})

		content, err := jsonparser.NewExtractor().Extract(context.Background(), pc)

		require.NoError(t, err)
		require.Len(t, content.Items, 2)
		assert.Equal(t, "https://example.com/p/1", content.Items[0].ID)
		assert.Equal(t, "One", content.Items[0].Text)
		assert.Equal(t, "https://example.com/search", content.URL)
	})

	t.Run("uses numeric ids and graphql edges", func(t *testing.T) {
		t.Parallel()

		pc := pageWithPayloads(pagewalk.Payload{
			URL:  "https://example.com/graphql",
			Body: []byte(`{"data":{"edges":[{"node":{"id":7,"name":"seven"}},{"node":{"id":8,"name":"eight"}}]}}`),
		})

		content, err := jsonparser.NewExtractor().Extract(context.Background(), pc)

		require.NoError(t, err)
		assert.Equal(t, []string{"7", "8"}, content.IDs())
		assert.Equal(t, "seven", content.Items[0].Text)
	})

	t.Run("prefers newest payload with a list", func(t *testing.T) {
		t.Parallel()

		pc := pageWithPayloads(
			pagewalk.Payload{URL: "https://example.com/api/a", Body: []byte(`{"results":[{"id":"old"}]}`)},
			pagewalk.Payload{URL: "https://example.com/api/b", Body: []byte(`{"results":[{"id":"new"}]}`)},
			pagewalk.Payload{URL: "https://example.com/api/me", Body: []byte(`{"user":"x"}`)},
		)

		content, err := jsonparser.NewExtractor().Extract(context.Background(), pc)

		require.NoError(t, err)
		assert.Equal(t, []string{"new"}, content.IDs())
	})

	t.Run("root array", func(t *testing.T) {
		t.Parallel()

		pc := pageWithPayloads(pagewalk.Payload{
			URL:  "https://example.com/api",
			Body: []byte(`[{"id":"a"},{"id":"a"},{"id":"b"},"junk"]`),
		})

		content, err := jsonparser.NewExtractor().Extract(context.Background(), pc)

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, content.IDs())
	})

	t.Run("malformed payload yields no items", func(t *testing.T) {
		t.Parallel()

		pc := pageWithPayloads(pagewalk.Payload{URL: "https://example.com/api", Body: []byte(`{"items":[{`)})

		content, err := jsonparser.NewExtractor().Extract(context.Background(), pc)

		require.NoError(t, err)
		assert.Empty(t, content.Items)
	})
}
