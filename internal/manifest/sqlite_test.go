package manifest

import "testing"

func openTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreAppendIfMissing(t *testing.T) {
	s := openTestSQLiteStore(t)

	label, err := s.AppendIfMissing("a.pdf")
	if err != nil {
		t.Fatalf("AppendIfMissing: %v", err)
	}
	if label != StatusPending {
		t.Errorf("label = %q, want %q", label, StatusPending)
	}

	if err := s.Upsert("a.pdf", StatusRejected); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	label, err = s.AppendIfMissing("a.pdf")
	if err != nil {
		t.Fatalf("AppendIfMissing (second): %v", err)
	}
	if label != StatusRejected {
		t.Errorf("label after re-append = %q, want %q", label, StatusRejected)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List returned %d entries, want 1", len(entries))
	}
}

func TestSQLiteStoreUpsertRemoveList(t *testing.T) {
	s := openTestSQLiteStore(t)

	if err := s.Upsert("b.pdf", StatusInProgress); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert("a.pdf", StatusElite); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
	if entries[0].Filename != "a.pdf" || entries[1].Filename != "b.pdf" {
		t.Errorf("List order = [%s, %s], want filename-sorted", entries[0].Filename, entries[1].Filename)
	}

	existed, err := s.Remove("a.pdf")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !existed {
		t.Error("Remove returned false, want true")
	}

	all, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(all) != 1 || all["b.pdf"] != StatusInProgress {
		t.Errorf("ReadAll = %v, want only b.pdf in_progress", all)
	}
}
