package ledger

import (
	"context"
	"errors"
	"testing"
)

// openTestLedger opens an in-memory ledger for use in tests.
func openTestLedger(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory ledger: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Ledger_RecordAndSummary(t *testing.T) {
	t.Parallel()
	s := openTestLedger(t)
	ctx := context.Background()

	if err := s.Record(ctx, "policy.md", 4, nil); err != nil {
		t.Fatalf("record ok: %v", err)
	}
	if err := s.Record(ctx, "handbook.md", 7, nil); err != nil {
		t.Fatalf("record ok: %v", err)
	}
	if err := s.Record(ctx, "broken.pdf", 0, errors.New("unsupported file type")); err != nil {
		t.Fatalf("record failed doc: %v", err)
	}

	st, err := s.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if st.Documents != 3 {
		t.Errorf("documents = %d, want 3", st.Documents)
	}
	if st.TotalChunks != 11 {
		t.Errorf("total chunks = %d, want 11", st.TotalChunks)
	}
	if st.Failed != 1 {
		t.Errorf("failed = %d, want 1", st.Failed)
	}
}

func Test_Ledger_RecordUpserts(t *testing.T) {
	t.Parallel()
	s := openTestLedger(t)
	ctx := context.Background()

	if err := s.Record(ctx, "doc.md", 10, nil); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := s.Record(ctx, "doc.md", 3, nil); err != nil {
		t.Fatalf("second record: %v", err)
	}

	entries, err := s.Entries(ctx)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1 entry after re-record, got %d", len(entries))
	}
	if entries[0].ChunkCount != 3 || entries[0].Status != StatusOK {
		t.Errorf("entry not replaced: %+v", entries[0])
	}
}

func Test_Ledger_FailureThenSuccessClearsError(t *testing.T) {
	t.Parallel()
	s := openTestLedger(t)
	ctx := context.Background()

	if err := s.Record(ctx, "doc.md", 0, errors.New("embedder offline")); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := s.Record(ctx, "doc.md", 5, nil); err != nil {
		t.Fatalf("record success: %v", err)
	}

	entries, _ := s.Entries(ctx)
	if entries[0].Status != StatusOK || entries[0].Error != "" {
		t.Errorf("retry did not clear failure state: %+v", entries[0])
	}

	st, _ := s.Summary(ctx)
	if st.Failed != 0 {
		t.Errorf("failed = %d after successful retry", st.Failed)
	}
}

func Test_Ledger_Forget(t *testing.T) {
	t.Parallel()
	s := openTestLedger(t)
	ctx := context.Background()

	if err := s.Record(ctx, "doc.md", 2, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Forget(ctx, "doc.md"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if err := s.Forget(ctx, "never-seen.md"); err != nil {
		t.Fatalf("forget unknown source must be a no-op: %v", err)
	}

	st, _ := s.Summary(ctx)
	if st.Documents != 0 {
		t.Errorf("documents = %d after forget", st.Documents)
	}
}

func Test_Ledger_EntriesEmpty(t *testing.T) {
	t.Parallel()
	s := openTestLedger(t)

	entries, err := s.Entries(context.Background())
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("want no entries, got %d", len(entries))
	}
}

func Test_Ledger_Ping(t *testing.T) {
	t.Parallel()
	s := openTestLedger(t)

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
