package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/models"
)

func testCache(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "ansuz-cache-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGet_Absent(t *testing.T) {
	db := testCache(t)
	_, ok, err := db.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected absent entry")
	}
}

func TestSetAndGet(t *testing.T) {
	db := testCache(t)
	ctx := context.Background()
	n := models.Note{
		ID:        "abc",
		Title:     "Hello",
		Content:   "body\n",
		ParentID:  "root",
		Shared:    models.SharedPublic,
		UpdatedAt: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	}
	if err := db.Set(ctx, n); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := db.Get(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Title != "Hello" || got.ParentID != "root" || !got.IsPublic() {
		t.Errorf("got %+v", got)
	}
	if !got.UpdatedAt.Equal(n.UpdatedAt) {
		t.Errorf("updated_at = %v, want %v", got.UpdatedAt, n.UpdatedAt)
	}
}

func TestSetOverwrites(t *testing.T) {
	db := testCache(t)
	ctx := context.Background()
	_ = db.Set(ctx, models.Note{ID: "x", Title: "Old"})
	_ = db.Set(ctx, models.Note{ID: "x", Title: "New"})
	got, _, _ := db.Get(ctx, "x")
	if got.Title != "New" {
		t.Errorf("title = %q, want New", got.Title)
	}
	all, err := db.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len(all) = %d, want 1", len(all))
	}
}

func TestSet_EmptyID(t *testing.T) {
	db := testCache(t)
	if err := db.Set(context.Background(), models.Note{}); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestDelete(t *testing.T) {
	db := testCache(t)
	ctx := context.Background()
	_ = db.Set(ctx, models.Note{ID: "gone"})
	if err := db.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := db.Get(ctx, "gone"); ok {
		t.Error("entry still cached")
	}
	if err := db.Delete(ctx, "never"); err != nil {
		t.Errorf("deleting a missing entry: %v", err)
	}
}
