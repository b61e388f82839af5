package main_test

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/pagewalk"
	main "github.com/fwojciec/pagewalk/cmd/pagewalk"
	"github.com/fwojciec/pagewalk/goquery"
	"github.com/fwojciec/pagewalk/jsonparser"
	"github.com/fwojciec/pagewalk/mock"
	"github.com/fwojciec/pagewalk/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const startURL = "https://shop.example.com/list"

// pageURL returns the address of page n of the fake listing.
func pageURL(n int) string {
	if n == 1 {
		return startURL
	}
	return fmt.Sprintf("%s/n%d", startURL, n)
}

func pageNumber(rawURL string) int {
	if rawURL == startURL {
		return 1
	}
	var n int
	_, _ = fmt.Sscanf(strings.TrimPrefix(rawURL, startURL), "/n%d", &n)
	return n
}

// listingHTML renders page n with two items and a next link unless n is last.
// A last of zero means the listing never ends.
func listingHTML(n, last int) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, suffix := range []string{"a", "b"} {
		fmt.Fprintf(&b, `<li class="result"><a href="/p/%d-%s">item %d%s</a></li>`, n, suffix, n, suffix)
	}
	b.WriteString("</ul>")
	if last == 0 || n < last {
		fmt.Fprintf(&b, `<a rel="next" href="%s">Next</a>`, pageURL(n+1))
	}
	b.WriteString("</body></html>")
	return b.String()
}

// siteTabs opens tabs on the fake listing. onReady runs before every
// readiness check.
func siteTabs(last int, onReady func()) *mock.TabOpener {
	return &mock.TabOpener{
		NewTabFn: func(ctx context.Context) (pagewalk.Tab, error) {
			var mu sync.Mutex
			var current string
			return &mock.Tab{
				OpenFn: func(ctx context.Context, url string) error {
					mu.Lock()
					defer mu.Unlock()
					current = url
					return nil
				},
				SnapshotFn: func(ctx context.Context) (pagewalk.PageContext, error) {
					mu.Lock()
					u := current
					mu.Unlock()
					page, err := goquery.NewPage(u, listingHTML(pageNumber(u), last))
					if err != nil {
						return nil, err
					}
					return page, nil
				},
				ExecuteFn: func(ctx context.Context, action pagewalk.NavigationAction) (bool, error) {
					if action.Kind != pagewalk.ActionGoTo {
						return false, nil
					}
					mu.Lock()
					defer mu.Unlock()
					current = action.URL
					return true, nil
				},
				WaitReadyFn: func(ctx context.Context, timeout time.Duration) (bool, error) {
					if onReady != nil {
						onReady()
					}
					return true, nil
				},
				CloseFn: func() error { return nil },
			}, nil
		},
	}
}

// apiPayload is page n of the listing's JSON endpoint.
func apiPayload(n int) []byte {
	return fmt.Appendf(nil, `{"items":[{"url":"/i/%d","title":"api item %d"}],"pagination":{"next":"/api/list?page=%d"}}`, n, n, n+1)
}

// apiTabs open the first listing page, whose markup never changes while
// the next items are fetched from a JSON endpoint that never ends.
func apiTabs() *mock.TabOpener {
	return &mock.TabOpener{
		NewTabFn: func(ctx context.Context) (pagewalk.Tab, error) {
			store := jsonparser.NewPayloadStore()
			return &mock.Tab{
				OpenFn: func(ctx context.Context, url string) error {
					store.Reset()
					store.Observe("https://shop.example.com/api/list?page=1", apiPayload(1))
					return nil
				},
				SnapshotFn: func(ctx context.Context) (pagewalk.PageContext, error) {
					page, err := goquery.NewPage(startURL, listingHTML(1, 0), goquery.WithPayloads(store))
					if err != nil {
						return nil, err
					}
					return page, nil
				},
				ExecuteFn: func(ctx context.Context, action pagewalk.NavigationAction) (bool, error) {
					var n int
					if _, err := fmt.Sscanf(action.URL, "https://shop.example.com/api/list?page=%d", &n); err != nil {
						return false, nil
					}
					return store.Observe(action.URL, apiPayload(n)), nil
				},
				WaitReadyFn: func(ctx context.Context, timeout time.Duration) (bool, error) {
					return true, nil
				},
				CloseFn: func() error { return nil },
			}, nil
		},
	}
}

func newMain(tabs pagewalk.TabOpener, id string) *main.Main {
	m := main.NewMain()
	m.Tabs = tabs
	m.NewID = func() string { return id }
	return m
}

func saveState(path string, state *pagewalk.SessionState) error {
	db := sqlite.NewDB(path)
	if err := db.Open(); err != nil {
		return err
	}
	defer db.Close()
	return sqlite.NewSessionService(db).SaveSession(context.Background(), state)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestMain_Run(t *testing.T) {
	t.Parallel()

	t.Run("no arguments prints help and fails", func(t *testing.T) {
		t.Parallel()

		stdout := &bytes.Buffer{}
		err := main.NewMain().Run(context.Background(), nil, stdout, &bytes.Buffer{})

		require.Error(t, err)
		assert.Contains(t, stdout.String(), "Usage: pagewalk")
	})

	t.Run("help succeeds", func(t *testing.T) {
		t.Parallel()

		stdout := &bytes.Buffer{}
		err := main.NewMain().Run(context.Background(), []string{"--help"}, stdout, &bytes.Buffer{})

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "run")
		assert.Contains(t, stdout.String(), "resume")
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		err := newMain(siteTabs(3, nil), "x").Run(context.Background(),
			[]string{"--db", filepath.Join(dir, "pw.db"), "run", startURL, "--method", "sideways"},
			&bytes.Buffer{}, &bytes.Buffer{})

		require.Error(t, err)
	})
}

func TestRunCmd_EndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := filepath.Join(dir, "pw.db")
	ctx := context.Background()

	// Run the listing to its end.
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	err := newMain(siteTabs(3, nil), "sess-1").Run(ctx,
		[]string{"--db", db, "run", startURL, "--seed", "--interval=1ms", "-o", dir},
		stdout, stderr)
	require.NoError(t, err, stderr.String())

	output := stdout.String()
	assert.Contains(t, output, "Started session sess-1")
	assert.Contains(t, output, "[sess-1] COMPLETE")
	assert.Contains(t, output, `reason="no further pages"`)
	assert.Contains(t, output, "Session sess-1 complete: 2 pages, 6 items")

	lines := readLines(t, filepath.Join(dir, "sess-1.jsonl"))
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], `"id":"https://shop.example.com/p/1-a"`)
	assert.Contains(t, lines[5], `"id":"https://shop.example.com/p/3-b"`)

	// The session was persisted.
	stdout.Reset()
	err = main.NewMain().Run(ctx, []string{"--db", db, "show", "sess-1"}, stdout, stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "State:       COMPLETE")
	assert.Contains(t, stdout.String(), "Current URL: "+pageURL(3))
	assert.Contains(t, stdout.String(), "Items:       6")

	stdout.Reset()
	err = main.NewMain().Run(ctx, []string{"--db", db, "show"}, stdout, stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "sess-1")
	assert.Contains(t, stdout.String(), startURL)

	// Resuming a completed session does nothing.
	stdout.Reset()
	err = newMain(siteTabs(3, nil), "unused").Run(ctx, []string{"--db", db, "resume", "sess-1"}, stdout, stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Session sess-1 is COMPLETE; nothing to resume")

	// Delete requires --force.
	err = main.NewMain().Run(ctx, []string{"--db", db, "delete", "sess-1"}, stdout, stderr)
	assert.Equal(t, pagewalk.EINVALID, pagewalk.ErrorCode(err))

	stdout.Reset()
	err = main.NewMain().Run(ctx, []string{"--db", db, "delete", "sess-1", "--force"}, stdout, stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Deleted session sess-1")

	err = main.NewMain().Run(ctx, []string{"--db", db, "show", "sess-1"}, stdout, stderr)
	assert.Equal(t, pagewalk.ENOTFOUND, pagewalk.ErrorCode(err))
}

func TestRunCmd_MaxPages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stdout := &bytes.Buffer{}
	err := newMain(siteTabs(0, nil), "sess-max").Run(context.Background(),
		[]string{"--db", filepath.Join(dir, "pw.db"), "run", startURL, "-n", "3", "--interval=1ms", "-o", dir},
		stdout, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), `reason="max pages reached"`)
	assert.Contains(t, stdout.String(), "Session sess-max complete: 3 pages, 6 items")
}

func TestRunCmd_InvalidURL(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stderr := &bytes.Buffer{}
	err := newMain(siteTabs(3, nil), "x").Run(context.Background(),
		[]string{"--db", filepath.Join(dir, "pw.db"), "run", "ftp://shop.example.com/list", "-o", dir},
		&bytes.Buffer{}, stderr)

	require.Error(t, err)
	assert.Equal(t, pagewalk.EINVALID, pagewalk.ErrorCode(err))
	assert.Contains(t, stderr.String(), "error: start URL must be an absolute http(s) URL")
}

func TestRunCmd_StopFromStdin(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := filepath.Join(dir, "pw.db")
	slow := func() { time.Sleep(2 * time.Millisecond) }

	m := newMain(siteTabs(0, slow), "sess-stop")
	m.Stdin = strings.NewReader("x\ns\n")
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	err := m.Run(context.Background(),
		[]string{"--db", db, "run", startURL, "-n", "100000", "--interval=1ms", "-o", dir},
		stdout, stderr)

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Session sess-stop stopped")
	assert.Contains(t, stderr.String(), `unknown command "x"`)

	// A stopped session cannot be resumed.
	stdout.Reset()
	err = newMain(siteTabs(0, nil), "unused").Run(context.Background(),
		[]string{"--db", db, "resume", "sess-stop"}, stdout, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "is STOPPED; nothing to resume")
}

func TestRunCmd_InterruptStops(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	err := newMain(siteTabs(0, cancel), "sess-int").Run(ctx,
		[]string{"--db", filepath.Join(dir, "pw.db"), "run", startURL, "-n", "100000", "--interval=1ms", "-o", dir},
		stdout, stderr)

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Session sess-int stopped")
	assert.Contains(t, stderr.String(), "interrupted, stopping")

	// Items collected before the interrupt are committed.
	_, err = os.Stat(filepath.Join(dir, "sess-int.jsonl"))
	assert.NoError(t, err)
}

func TestResumeCmd_Interrupted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := filepath.Join(dir, "pw.db")

	// Seed the store with a session that was paused on page 2 when the
	// process exited.
	require.NoError(t, saveState(db, &pagewalk.SessionState{
		ID:               "sess-res",
		StartURL:         startURL,
		CurrentURL:       pageURL(2),
		Method:           pagewalk.MethodAuto,
		MaxAttempts:      10,
		CurrentPageIndex: 1,
		VisitedURLs:      []string{pageURL(2)},
		AttemptCount:     1,
		ItemsCollected:   2,
		State:            pagewalk.StatePaused,
	}))

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	err := newMain(siteTabs(4, nil), "unused").Run(context.Background(),
		[]string{"--db", db, "resume", "sess-res", "--interval=1ms", "-o", dir}, stdout, stderr)

	require.NoError(t, err, stderr.String())
	assert.Contains(t, stdout.String(), "Resumed session sess-res")
	assert.Contains(t, stdout.String(), "Session sess-res complete: 3 pages, 6 items")
}

func TestFormatStatus(t *testing.T) {
	t.Parallel()

	t.Run("running", func(t *testing.T) {
		t.Parallel()

		line := main.FormatStatus(pagewalk.Status{
			SessionID:        "0123456789abcdef",
			State:            pagewalk.StateNavigating,
			CurrentPageIndex: 3,
			ItemsCollected:   60,
			AttemptCount:     3,
		})
		assert.Equal(t, "[01234567] NAVIGATING    page=3 items=60 attempts=3", line)
	})

	t.Run("failed", func(t *testing.T) {
		t.Parallel()

		line := main.FormatStatus(pagewalk.Status{
			SessionID: "s1",
			State:     pagewalk.StateError,
			LastError: "navigation failed",
		})
		assert.Equal(t, `[s1] ERROR         page=0 items=0 attempts=0 error="navigation failed"`, line)
	})
}

func TestRunCmd_APIPagination(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := filepath.Join(dir, "pw.db")
	ctx := context.Background()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	err := newMain(apiTabs(), "api-1").Run(ctx,
		[]string{"--db", db, "run", startURL, "--method", "api", "-n", "4", "--interval=1ms", "-o", dir},
		stdout, stderr)
	require.NoError(t, err, stderr.String())

	output := stdout.String()
	assert.Contains(t, output, `reason="max pages reached"`)
	assert.Contains(t, output, "Session api-1 complete: 4 pages, 4 items")

	lines := readLines(t, filepath.Join(dir, "api-1.jsonl"))
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"id":"https://shop.example.com/i/2"`)
	assert.Contains(t, lines[3], `"id":"https://shop.example.com/i/5"`)

	// The listing page, not the JSON endpoint, is the page to resume from.
	stdout.Reset()
	err = main.NewMain().Run(ctx, []string{"--db", db, "show", "api-1"}, stdout, stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Current URL: "+startURL+"\n")
	assert.Contains(t, stdout.String(), "Visited:     5 URLs")
}
