package pagewalk

import "context"

// Item is a single piece of collected content.
type Item struct {
	// ID is the source identifier of the item, usually its URL.
	ID    string            `json:"id"`
	Text  string            `json:"text,omitempty"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// ExtractedContent is everything collected from one page.
type ExtractedContent struct {
	URL   string
	Items []Item
}

// IDs returns the item identifiers in page order.
func (c *ExtractedContent) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// Extractor pulls items out of a page. It is called once per extraction step
// and never concurrently for the same session.
type Extractor interface {
	Extract(ctx context.Context, pc PageContext) (*ExtractedContent, error)
}

// ItemSink receives collected items. Write is called after each extraction;
// Commit makes the written items permanent and Abort discards them.
type ItemSink interface {
	Write(ctx context.Context, content *ExtractedContent) error
	Commit() error
	Abort() error
}

// ItemSet remembers item IDs across the pages of one session.
type ItemSet interface {
	// Add records id and reports whether it was not seen before.
	Add(id string) bool
}
