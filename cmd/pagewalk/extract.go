package main

import (
	"context"

	"github.com/fwojciec/pagewalk"
	"github.com/fwojciec/pagewalk/goquery"
	"github.com/fwojciec/pagewalk/jsonparser"
)

// itemExtractor reads items from its first source and falls back to the
// second when the first has none.
type itemExtractor struct {
	first  pagewalk.Extractor
	second pagewalk.Extractor
}

// newItemExtractor prefers the page markup over captured API payloads.
func newItemExtractor() *itemExtractor {
	return &itemExtractor{
		first:  goquery.NewExtractor(),
		second: jsonparser.NewExtractor(),
	}
}

// newPayloadItemExtractor prefers the newest API payload, for pages reached
// by fetching the next API page while the markup stays unchanged.
func newPayloadItemExtractor() *itemExtractor {
	return &itemExtractor{
		first:  jsonparser.NewExtractor(),
		second: goquery.NewExtractor(),
	}
}

func (e *itemExtractor) Extract(ctx context.Context, pc pagewalk.PageContext) (*pagewalk.ExtractedContent, error) {
	content, err := e.first.Extract(ctx, pc)
	if err != nil {
		return nil, err
	}
	if len(content.Items) > 0 {
		return content, nil
	}
	return e.second.Extract(ctx, pc)
}
