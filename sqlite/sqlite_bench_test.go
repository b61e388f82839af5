package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/fwojciec/pagewalk"
	"github.com/fwojciec/pagewalk/sqlite"
	"github.com/stretchr/testify/require"
)

// BenchmarkCheckpoints simulates a crawl saving its session after every
// extracted page, with the visited list and fingerprint history growing.
func BenchmarkCheckpoints(b *testing.B) {
	b.Run("rollback_journal", func(b *testing.B) {
		benchmarkCheckpoints(b, "DELETE")
	})

	b.Run("wal_mode", func(b *testing.B) {
		benchmarkCheckpoints(b, "WAL")
	})
}

func benchmarkCheckpoints(b *testing.B, journalMode string) {
	b.Helper()

	dbPath := filepath.Join(b.TempDir(), "bench.db")
	db := sqlite.NewDB(dbPath)
	require.NoError(b, db.Open())
	defer db.Close()

	ctx := context.Background()
	_, err := db.ExecContext(ctx, "PRAGMA journal_mode = "+journalMode)
	require.NoError(b, err)

	svc := sqlite.NewSessionService(db)
	state := &pagewalk.SessionState{
		ID:          "bench",
		StartURL:    "https://example.com/list",
		Method:      pagewalk.MethodAuto,
		MaxAttempts: b.N + 1,
		State:       pagewalk.StateExtracting,
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		pageURL := fmt.Sprintf("https://example.com/list?page=%d", i+2)
		state.CurrentURL = pageURL
		state.CurrentPageIndex = i + 1
		state.AttemptCount = i + 1
		state.VisitedURLs = append(state.VisitedURLs, pageURL)
		state.FingerprintHistory = append(state.FingerprintHistory, fmt.Sprintf("%064x", i))
		if len(state.FingerprintHistory) > 50 {
			state.FingerprintHistory = state.FingerprintHistory[1:]
		}
		state.ItemsCollected += 20
		if err := svc.SaveSession(ctx, state); err != nil {
			b.Fatal(err)
		}
	}
}
