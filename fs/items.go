// Package fs writes collected items to the local filesystem.
package fs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/fwojciec/pagewalk"
)

// Ensure ItemWriter implements pagewalk.ItemSink at compile time.
var _ pagewalk.ItemSink = (*ItemWriter)(nil)

// Record is one line of an items file.
type Record struct {
	Page  string            `json:"page"`
	ID    string            `json:"id"`
	Text  string            `json:"text,omitempty"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// ItemWriter writes items as JSON Lines with atomic update semantics.
// Lines go to dir/<session>.jsonl.tmp and replace dir/<session>.jsonl on
// Commit. Items committed by an earlier run of the same session are carried
// over, so a resumed session appends.
type ItemWriter struct {
	dir  string
	name string
	f    *os.File
	w    *bufio.Writer
	enc  *json.Encoder
}

// NewItemWriter opens the temporary items file for sessionID in dir.
func NewItemWriter(dir, sessionID string) (*ItemWriter, error) {
	if sessionID == "" {
		return nil, pagewalk.Errorf(pagewalk.EINVALID, "session ID required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	iw := &ItemWriter{dir: dir, name: sessionID + ".jsonl"}
	f, err := os.Create(iw.tempPath())
	if err != nil {
		return nil, err
	}
	if err := copyExisting(f, iw.finalPath()); err != nil {
		f.Close()
		os.Remove(iw.tempPath())
		return nil, err
	}

	iw.f = f
	iw.w = bufio.NewWriter(f)
	iw.enc = json.NewEncoder(iw.w)
	return iw, nil
}

// Sink returns a factory creating ItemWriters under dir, one per session.
func Sink(dir string) func(sessionID string) (pagewalk.ItemSink, error) {
	return func(sessionID string) (pagewalk.ItemSink, error) {
		return NewItemWriter(dir, sessionID)
	}
}

// Path returns the committed items file of sessionID.
func Path(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".jsonl")
}

func (iw *ItemWriter) tempPath() string {
	return filepath.Join(iw.dir, iw.name+".tmp")
}

func (iw *ItemWriter) finalPath() string {
	return filepath.Join(iw.dir, iw.name)
}

func copyExisting(dst io.Writer, path string) error {
	src, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(dst, src)
	return err
}

// Write appends one line per item of content.
func (iw *ItemWriter) Write(ctx context.Context, content *pagewalk.ExtractedContent) error {
	if iw.f == nil {
		return pagewalk.Errorf(pagewalk.EINVALID, "item writer is closed")
	}
	for _, item := range content.Items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := iw.enc.Encode(Record{
			Page:  content.URL,
			ID:    item.ID,
			Text:  item.Text,
			Attrs: item.Attrs,
		}); err != nil {
			return err
		}
	}
	return iw.w.Flush()
}

// Commit atomically replaces the final items file with the written lines.
func (iw *ItemWriter) Commit() error {
	if err := iw.close(); err != nil {
		return err
	}
	return os.Rename(iw.tempPath(), iw.finalPath())
}

// Abort discards the written lines, leaving any committed file untouched.
func (iw *ItemWriter) Abort() error {
	closeErr := iw.close()
	if err := os.Remove(iw.tempPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return closeErr
}

func (iw *ItemWriter) close() error {
	if iw.f == nil {
		return nil
	}
	f := iw.f
	iw.f = nil
	if err := iw.w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
