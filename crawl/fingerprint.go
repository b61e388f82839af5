package crawl

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/fwojciec/pagewalk"
)

// Defaults for a Fingerprinter.
const (
	DefaultHistorySize = 50
	DefaultLookback    = 3
)

// Fingerprint is a digest of a page's extracted content.
type Fingerprint struct {
	Hash      string
	SourceURL string
	CreatedAt time.Time
}

// Canonicalize renders content as the ordered list of item IDs, one per line.
func Canonicalize(content *pagewalk.ExtractedContent) string {
	return strings.Join(content.IDs(), "\n")
}

// Fingerprinter digests extracted content and keeps a bounded history of
// digests for loop detection. The oldest entry is evicted once the history
// is full. It is not safe for concurrent use; a Session guards it.
type Fingerprinter struct {
	size     int
	lookback int
	history  []Fingerprint
	now      func() time.Time
}

// NewFingerprinter creates a Fingerprinter holding up to size digests that
// treats a repeat within the last lookback digests as recent. Non-positive
// arguments select the defaults.
func NewFingerprinter(size, lookback int) *Fingerprinter {
	if size <= 0 {
		size = DefaultHistorySize
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Fingerprinter{size: size, lookback: lookback, now: time.Now}
}

// Fingerprint digests content with SHA-256 over its canonical form.
func (f *Fingerprinter) Fingerprint(content *pagewalk.ExtractedContent, sourceURL string) Fingerprint {
	sum := sha256.Sum256([]byte(Canonicalize(content)))
	return Fingerprint{
		Hash:      hex.EncodeToString(sum[:]),
		SourceURL: sourceURL,
		CreatedAt: f.now(),
	}
}

// IsExactDuplicate reports whether fp equals any digest in the history.
func (f *Fingerprinter) IsExactDuplicate(fp Fingerprint) bool {
	for _, h := range f.history {
		if h.Hash == fp.Hash {
			return true
		}
	}
	return false
}

// IsRecentDuplicate reports whether fp equals one of the last lookback
// digests.
func (f *Fingerprinter) IsRecentDuplicate(fp Fingerprint) bool {
	start := max(len(f.history)-f.lookback, 0)
	for _, h := range f.history[start:] {
		if h.Hash == fp.Hash {
			return true
		}
	}
	return false
}

// Append adds fp to the history, evicting the oldest entry when full.
func (f *Fingerprinter) Append(fp Fingerprint) {
	if len(f.history) == f.size {
		copy(f.history, f.history[1:])
		f.history = f.history[:f.size-1]
	}
	f.history = append(f.history, fp)
}

// Len returns the number of digests held.
func (f *Fingerprinter) Len() int {
	return len(f.history)
}

// Hashes returns the held digests, oldest first.
func (f *Fingerprinter) Hashes() []string {
	hashes := make([]string, len(f.history))
	for i, h := range f.history {
		hashes[i] = h.Hash
	}
	return hashes
}

// Restore replaces the history with hashes, oldest first, keeping at most
// the newest size entries.
func (f *Fingerprinter) Restore(hashes []string) {
	if len(hashes) > f.size {
		hashes = hashes[len(hashes)-f.size:]
	}
	f.history = f.history[:0]
	for _, h := range hashes {
		f.history = append(f.history, Fingerprint{Hash: h})
	}
}
