package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pairgen/internal/dto"
	"pairgen/internal/model"
)

// ========================================
// Helpers
// ========================================

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "manifest", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertRun(t *testing.T, repo *RunRepository, id string, started time.Time) *model.Run {
	t.Helper()

	run := &model.Run{
		ID:        id,
		StartedAt: started,
		Input:     "clip.mp4",
		Output:    "out",
		SaveMode:  "split",
		Actions:   "quantize,trace",
	}
	if err := repo.Insert(run); err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}
	return run
}

// ========================================
// Database Tests
// ========================================

func TestDatabase_CreatesFileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "manifest.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_MigrationIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "manifest.db")

	first, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	first.Close()

	second, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	second.Close()
}

// ========================================
// Run Repository Tests
// ========================================

func TestRunRepository_InsertAndFinish(t *testing.T) {
	db := newTestDB(t)
	repo := NewRunRepository(db)

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	run := insertRun(t, repo, "run-1", started)

	got, err := repo.GetByID("run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected run, got nil")
	}
	if !got.FinishedAt.IsZero() {
		t.Errorf("Expected unfinished run, got finished at %v", got.FinishedAt)
	}

	run.FinishedAt = started.Add(time.Minute)
	run.Written, run.Skipped, run.Failed = 40, 2, 1
	if err := repo.Finish(run); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, err = repo.GetByID("run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Written != 40 || got.Skipped != 2 || got.Failed != 1 {
		t.Errorf("Unexpected counters: %+v", got)
	}
	if !got.FinishedAt.Equal(run.FinishedAt) {
		t.Errorf("FinishedAt = %v, expected %v", got.FinishedAt, run.FinishedAt)
	}
}

func TestRunRepository_FinishUnknownRun(t *testing.T) {
	repo := NewRunRepository(newTestDB(t))

	if err := repo.Finish(&model.Run{ID: "missing"}); err == nil {
		t.Error("Expected error finishing an unknown run")
	}
}

func TestRunRepository_GetByIDMissing(t *testing.T) {
	repo := NewRunRepository(newTestDB(t))

	got, err := repo.GetByID("nope")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil run, got %+v", got)
	}
}

func TestRunRepository_GetLatest(t *testing.T) {
	repo := NewRunRepository(newTestDB(t))

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	insertRun(t, repo, "old", base)
	insertRun(t, repo, "new", base.Add(time.Hour))

	latest, err := repo.GetLatest()
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest == nil || latest.ID != "new" {
		t.Errorf("Expected latest run 'new', got %+v", latest)
	}

	all, err := repo.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "new" {
		t.Errorf("Expected 2 runs newest first, got %+v", all)
	}
}

// ========================================
// Sample Repository Tests
// ========================================

func TestSampleRepository_InsertBatchAndFilter(t *testing.T) {
	db := newTestDB(t)
	insertRun(t, NewRunRepository(db), "run-1", time.Now())
	repo := NewSampleRepository(db)

	samples := []model.Sample{
		{RunID: "run-1", Name: "f00000_frame000000.png", Split: "train", FrameIndex: 0, FrameName: "frame000000", TargetPath: "out/train/f00000_frame000000.png"},
		{RunID: "run-1", Name: "f00001_frame000010.png", Split: "train", FrameIndex: 10, FrameName: "frame000010", TargetPath: "out/train/f00001_frame000010.png"},
		{RunID: "run-1", Name: "f00002_frame000020.png", Split: "test", FrameIndex: 20, FrameName: "frame000020", TargetPath: "out/test/f00002_frame000020.png", CropW: 64, CropH: 64},
	}
	if err := repo.InsertBatch(samples); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	all, err := repo.GetAll(&dto.SampleFilters{RunID: "run-1"})
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(all))
	}
	if all[2].CropW != 64 || all[2].FrameName != "frame000020" {
		t.Errorf("Unexpected sample: %+v", all[2])
	}

	test, err := repo.GetAll(&dto.SampleFilters{RunID: "run-1", Split: "test"})
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(test) != 1 || test[0].FrameIndex != 20 {
		t.Errorf("Expected one test sample for frame 20, got %+v", test)
	}

	limited, err := repo.GetAll(&dto.SampleFilters{Limit: 2})
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 samples with limit, got %d", len(limited))
	}

	counts, err := repo.CountBySplit("run-1")
	if err != nil {
		t.Fatalf("CountBySplit failed: %v", err)
	}
	expected := []model.SplitCount{{Split: "train", Count: 2}, {Split: "test", Count: 1}}
	if len(counts) != len(expected) {
		t.Fatalf("Expected %d split counts, got %+v", len(expected), counts)
	}
	for i := range expected {
		if counts[i] != expected[i] {
			t.Errorf("counts[%d] = %+v, expected %+v", i, counts[i], expected[i])
		}
	}
}

func TestSampleRepository_InsertBatchIsAtomic(t *testing.T) {
	db := newTestDB(t)
	insertRun(t, NewRunRepository(db), "run-1", time.Now())
	repo := NewSampleRepository(db)

	// The second row violates the foreign key, so the whole batch must roll back.
	samples := []model.Sample{
		{RunID: "run-1", Name: "a.png", Split: "train", FrameName: "a", TargetPath: "a.png"},
		{RunID: "no-such-run", Name: "b.png", Split: "train", FrameName: "b", TargetPath: "b.png"},
	}
	if err := repo.InsertBatch(samples); err == nil {
		t.Fatal("Expected foreign key failure")
	}

	all, err := repo.GetAll(nil)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("Expected no samples after rollback, got %d", len(all))
	}
}

func TestSampleRepository_DeleteByRun(t *testing.T) {
	db := newTestDB(t)
	insertRun(t, NewRunRepository(db), "run-1", time.Now())
	repo := NewSampleRepository(db)

	if err := repo.InsertBatch([]model.Sample{{RunID: "run-1", Name: "a.png", Split: "train", FrameName: "a", TargetPath: "a.png"}}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if err := repo.DeleteByRun("run-1"); err != nil {
		t.Fatalf("DeleteByRun failed: %v", err)
	}

	all, err := repo.GetAll(&dto.SampleFilters{RunID: "run-1"})
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("Expected no samples, got %d", len(all))
	}
}
