package job

import (
	"context"
	"testing"
)

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := NewWithID("aln-repo-1")
	if err := repo.Save(ctx, j); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	found, err := repo.FindByID(ctx, "aln-repo-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if found.ID != "aln-repo-1" {
		t.Errorf("expected ID aln-repo-1, got %s", found.ID)
	}
	if found.Status != StatusInQueue {
		t.Errorf("expected status %s, got %s", StatusInQueue, found.Status)
	}
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.FindByID(context.Background(), "nope")
	if err != ErrJobNotFound {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryRepository_SaveStoresClone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := NewWithID("aln-repo-2")
	if err := repo.Save(ctx, j); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutating the original after save must not affect the stored copy.
	if err := j.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	found, err := repo.FindByID(ctx, "aln-repo-2")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if found.Status != StatusInQueue {
		t.Errorf("stored job was mutated: got status %s", found.Status)
	}
}

func TestMemoryRepository_FindReturnsClone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Save(ctx, NewWithID("aln-repo-3")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	first, err := repo.FindByID(ctx, "aln-repo-3")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	first.Error = "mutated"

	second, err := repo.FindByID(ctx, "aln-repo-3")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if second.Error != "" {
		t.Error("mutating a returned job affected the stored copy")
	}
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := repo.Save(ctx, NewWithID(id)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	jobs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Errorf("expected 3 jobs, got %d", len(jobs))
	}
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Save(ctx, NewWithID("aln-del")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.Delete(ctx, "aln-del"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.FindByID(ctx, "aln-del"); err != ErrJobNotFound {
		t.Fatalf("expected ErrJobNotFound after delete, got %v", err)
	}

	if err := repo.Delete(ctx, "aln-del"); err != ErrJobNotFound {
		t.Fatalf("expected ErrJobNotFound for double delete, got %v", err)
	}
}
