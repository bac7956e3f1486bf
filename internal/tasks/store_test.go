package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateGeneratesID(t *testing.T) {
	s := newTestStore(t)

	created, err := s.Create(context.Background(), Task{Text: "water plants", Emoji: "🌱"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if created.ID == "" {
		t.Error("Create() left ID empty")
	}

	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 1 || list[0].Text != "water plants" {
		t.Fatalf("List() = %+v; want the created task", list)
	}
}

func TestCreateClampsScores(t *testing.T) {
	s := newTestStore(t)

	created, err := s.Create(context.Background(), Task{Text: "x", Priority: 99, Percent: -5})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if created.Priority != 10 {
		t.Errorf("Priority = %v; want clamped to 10", created.Priority)
	}
	if created.Percent != 0 {
		t.Errorf("Percent = %v; want clamped to 0", created.Percent)
	}
}

func TestListSortsByScoreWithColors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, Task{ID: "low", Text: "low", Priority: 1, Desire: 1, Difficulty: 9}); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if _, err := s.Create(ctx, Task{ID: "high", Text: "high", Priority: 10, Desire: 10, Difficulty: 1}); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() returned %d tasks; want 2", len(list))
	}
	if list[0].ID != "high" || list[1].ID != "low" {
		t.Errorf("List() order = [%s %s]; want [high low]", list[0].ID, list[1].ID)
	}
	if list[0].Score <= list[1].Score {
		t.Errorf("scores not descending: %v then %v", list[0].Score, list[1].Score)
	}
	if list[0].Color != "rgb(45, 212, 191)" {
		t.Errorf("top color = %q; want green end of the ramp", list[0].Color)
	}
	if list[1].Color != "rgb(255, 77, 148)" {
		t.Errorf("bottom color = %q; want red end of the ramp", list[1].Color)
	}
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update(context.Background(), Task{ID: "nope", Text: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update() error = %v; want ErrNotFound", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, Task{Text: "before"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	created.Text = "after"
	created.Percent = 40
	if _, err := s.Update(ctx, created); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if list[0].Text != "after" || list[0].Percent != 40 {
		t.Errorf("List() after update = %+v; want updated fields", list[0])
	}

	if err := s.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := s.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v; want ErrNotFound", err)
	}
}

func TestReplaceAllRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, Task{Text: "old"}); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	imported := []Task{
		{ID: "a", Text: "imported a", Priority: 3},
		{Text: "imported b", Desire: 7},
	}
	n, err := s.ReplaceAll(ctx, imported)
	if err != nil {
		t.Fatalf("ReplaceAll() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("ReplaceAll() = %d; want 2", n)
	}

	out, err := s.Export(ctx)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Export() returned %d tasks; want 2 (old list replaced)", len(out))
	}
	for _, task := range out {
		if task.Text == "old" {
			t.Error("Export() still contains pre-import task")
		}
		if task.ID == "" {
			t.Error("Export() contains task with missing id")
		}
	}
}
