package history

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return store
}

// setLastWatched pins a record's timestamp so ordering tests do not depend
// on the clock's one second resolution.
func setLastWatched(t *testing.T, s *Store, clientID, filePath string, ts int64) {
	t.Helper()
	if _, err := s.db.Exec(
		`UPDATE watch_history SET last_watched = ? WHERE client_id = ? AND file_path = ?`,
		ts, clientID, filePath,
	); err != nil {
		t.Fatalf("failed to pin timestamp: %v", err)
	}
}

func TestRecordViewUpsert(t *testing.T) {
	store := newTestStore(t)

	for i := 1; i <= 3; i++ {
		if err := store.RecordView("client-a", "movies/movie.mkv", "movie.mkv", "video", 1000); err != nil {
			t.Fatalf("RecordView() call %d failed: %v", i, err)
		}

		records, err := store.ListHistory("client-a", 10)
		if err != nil {
			t.Fatalf("ListHistory() failed: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("after %d views: %d records, want 1", i, len(records))
		}
		if records[0].ViewCount != i {
			t.Errorf("after %d views: ViewCount = %d, want %d", i, records[0].ViewCount, i)
		}
	}
}

func TestRecordViewSeparateClients(t *testing.T) {
	store := newTestStore(t)

	if err := store.RecordView("client-a", "movies/movie.mkv", "movie.mkv", "video", 1000); err != nil {
		t.Fatalf("RecordView() failed: %v", err)
	}
	if err := store.RecordView("client-b", "movies/movie.mkv", "movie.mkv", "video", 1000); err != nil {
		t.Fatalf("RecordView() failed: %v", err)
	}

	for _, client := range []string{"client-a", "client-b"} {
		records, err := store.ListHistory(client, 10)
		if err != nil {
			t.Fatalf("ListHistory(%q) failed: %v", client, err)
		}
		if len(records) != 1 || records[0].ViewCount != 1 {
			t.Errorf("%s: records = %+v, want one record with one view", client, records)
		}
	}
}

func TestSavePositionRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if err := store.RecordView("client-a", "movies/movie.mkv", "movie.mkv", "video", 1000); err != nil {
		t.Fatalf("RecordView() failed: %v", err)
	}
	if err := store.SavePosition("client-a", "movies/movie.mkv", 93.5); err != nil {
		t.Fatalf("SavePosition() failed: %v", err)
	}

	pos, err := store.GetPosition("client-a", "movies/movie.mkv")
	if err != nil {
		t.Fatalf("GetPosition() failed: %v", err)
	}
	if pos != 93.5 {
		t.Errorf("GetPosition() = %v, want 93.5", pos)
	}

	// Saving does not inflate the view count.
	records, err := store.ListHistory("client-a", 10)
	if err != nil {
		t.Fatalf("ListHistory() failed: %v", err)
	}
	if records[0].ViewCount != 1 {
		t.Errorf("ViewCount = %d after SavePosition, want 1", records[0].ViewCount)
	}
}

func TestSavePositionWithoutRecordIsNoOp(t *testing.T) {
	store := newTestStore(t)

	if err := store.SavePosition("client-a", "movies/never-viewed.mkv", 50); err != nil {
		t.Fatalf("SavePosition() on unknown file failed: %v", err)
	}

	records, err := store.ListHistory("client-a", 10)
	if err != nil {
		t.Fatalf("ListHistory() failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("SavePosition created %d records, want 0", len(records))
	}
}

func TestGetPositionMissing(t *testing.T) {
	store := newTestStore(t)

	pos, err := store.GetPosition("client-a", "movies/unknown.mkv")
	if err != nil {
		t.Fatalf("GetPosition() on unknown file failed: %v", err)
	}
	if pos != 0 {
		t.Errorf("GetPosition() = %v for unknown file, want 0", pos)
	}
}

func TestListHistoryOrderAndLimit(t *testing.T) {
	store := newTestStore(t)

	files := []string{"a.mkv", "b.mkv", "c.mkv"}
	for i, f := range files {
		if err := store.RecordView("client-a", f, f, "video", 100); err != nil {
			t.Fatalf("RecordView(%q) failed: %v", f, err)
		}
		setLastWatched(t, store, "client-a", f, int64(1000+i))
	}

	records, err := store.ListHistory("client-a", 10)
	if err != nil {
		t.Fatalf("ListHistory() failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	wantOrder := []string{"c.mkv", "b.mkv", "a.mkv"}
	for i, want := range wantOrder {
		if records[i].FilePath != want {
			t.Errorf("records[%d] = %q, want %q", i, records[i].FilePath, want)
		}
	}

	limited, err := store.ListHistory("client-a", 2)
	if err != nil {
		t.Fatalf("ListHistory() with limit failed: %v", err)
	}
	if len(limited) != 2 || limited[0].FilePath != "c.mkv" {
		t.Errorf("limited records = %+v, want the 2 most recent", limited)
	}
}

func TestContinueWatching(t *testing.T) {
	store := newTestStore(t)

	// No records at all.
	rec, err := store.ContinueWatching("client-a")
	if err != nil {
		t.Fatalf("ContinueWatching() failed: %v", err)
	}
	if rec != nil {
		t.Errorf("ContinueWatching() = %+v with no history, want nil", rec)
	}

	// A viewed file without a saved position does not qualify.
	if err := store.RecordView("client-a", "a.mkv", "a.mkv", "video", 100); err != nil {
		t.Fatalf("RecordView() failed: %v", err)
	}
	rec, err = store.ContinueWatching("client-a")
	if err != nil {
		t.Fatalf("ContinueWatching() failed: %v", err)
	}
	if rec != nil {
		t.Errorf("ContinueWatching() = %+v without a position, want nil", rec)
	}

	// Non-video records never qualify.
	if err := store.RecordView("client-a", "song.mp3", "song.mp3", "audio", 100); err != nil {
		t.Fatalf("RecordView() failed: %v", err)
	}
	if err := store.SavePosition("client-a", "song.mp3", 30); err != nil {
		t.Fatalf("SavePosition() failed: %v", err)
	}
	rec, err = store.ContinueWatching("client-a")
	if err != nil {
		t.Fatalf("ContinueWatching() failed: %v", err)
	}
	if rec != nil {
		t.Errorf("ContinueWatching() = %+v, audio must not qualify", rec)
	}

	// Two partially watched videos: the most recent wins.
	for _, f := range []string{"b.mkv", "c.mkv"} {
		if err := store.RecordView("client-a", f, f, "video", 100); err != nil {
			t.Fatalf("RecordView(%q) failed: %v", f, err)
		}
		if err := store.SavePosition("client-a", f, 120); err != nil {
			t.Fatalf("SavePosition(%q) failed: %v", f, err)
		}
	}
	setLastWatched(t, store, "client-a", "b.mkv", 2000)
	setLastWatched(t, store, "client-a", "c.mkv", 3000)

	rec, err = store.ContinueWatching("client-a")
	if err != nil {
		t.Fatalf("ContinueWatching() failed: %v", err)
	}
	if rec == nil {
		t.Fatal("ContinueWatching() = nil, want the most recent video")
	}
	if rec.FilePath != "c.mkv" {
		t.Errorf("ContinueWatching() = %q, want %q", rec.FilePath, "c.mkv")
	}
	if rec.PlaybackPosition != 120 {
		t.Errorf("PlaybackPosition = %v, want 120", rec.PlaybackPosition)
	}
}
