package noteservice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/testutil"
)

type hookLog struct {
	mu     sync.Mutex
	events []string
}

func (h *hookLog) hook(kind, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, kind+":"+id)
}

func testService(t *testing.T) (*Service, *hookLog) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	log := &hookLog{}
	fixed := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	return NewService(store, db, WithChangeHook(log.hook), WithClock(func() time.Time { return fixed })), log
}

func TestCreateAndGet(t *testing.T) {
	svc, log := testService(t)
	ctx := context.Background()

	created, err := svc.CreateNote(ctx, models.Note{ID: "n1", Title: "One", Content: "body", ParentID: "root"})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if created.Checksum == "" || created.UpdatedAt.IsZero() {
		t.Errorf("created = %+v", created)
	}

	got, err := svc.GetNote(ctx, "n1")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != "One" || got.Content != "body" || got.ParentID != "root" {
		t.Errorf("got = %+v", got)
	}
	if got.Checksum != created.Checksum {
		t.Error("checksum should be stable across reads")
	}
	if len(log.events) != 1 || log.events[0] != "created:n1" {
		t.Errorf("events = %v", log.events)
	}
}

func TestCreate_DuplicateAndInvalid(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, models.Note{ID: "dup"})

	if _, err := svc.CreateNote(ctx, models.Note{ID: "dup"}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
	if _, err := svc.CreateNote(ctx, models.Note{ID: "../escape"}); !errors.Is(err, apperr.ErrInvalidID) {
		t.Errorf("err = %v, want ErrInvalidID", err)
	}
}

func TestCreate_BlankContentNormalised(t *testing.T) {
	svc, _ := testService(t)
	d, err := svc.CreateNote(context.Background(), models.Note{ID: "blank"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Content != "\n" {
		t.Errorf("content = %q, want newline", d.Content)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.GetNote(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFindOrCreate(t *testing.T) {
	svc, log := testService(t)
	ctx := context.Background()
	seed := models.Note{Title: "2024-3-5", Content: "\n", ParentID: "daily"}

	d, created, err := svc.FindOrCreate(ctx, "2024-3-5", seed)
	if err != nil || !created {
		t.Fatalf("first call: created=%v err=%v", created, err)
	}
	if d.ID != "2024-3-5" || d.ParentID != "daily" {
		t.Errorf("note = %+v", d)
	}

	_, _ = svc.UpdateNote(ctx, models.Note{ID: "2024-3-5", Title: "Edited", Content: "x", ParentID: "daily"}, "")
	d, created, err = svc.FindOrCreate(ctx, "2024-3-5", seed)
	if err != nil || created {
		t.Fatalf("second call: created=%v err=%v", created, err)
	}
	if d.Title != "Edited" {
		t.Errorf("existing note must not be overwritten by the seed: %+v", d)
	}
	if len(log.events) != 2 {
		t.Errorf("events = %v", log.events)
	}
}

func TestFindOrCreate_Concurrent(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := svc.FindOrCreate(ctx, "2024-1-1", models.Note{Title: "2024-1-1"})
			if err != nil {
				t.Errorf("FindOrCreate: %v", err)
				return
			}
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if createdCount != 1 {
		t.Errorf("created %d times, want exactly once", createdCount)
	}
}

func TestUpdate_OptimisticLocking(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	v1, _ := svc.CreateNote(ctx, models.Note{ID: "lock", Title: "v1"})

	v2, err := svc.UpdateNote(ctx, models.Note{ID: "lock", Title: "v2"}, v1.Checksum)
	if err != nil {
		t.Fatalf("UpdateNote with matching checksum: %v", err)
	}
	if _, err := svc.UpdateNote(ctx, models.Note{ID: "lock", Title: "v3"}, v1.Checksum); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale checksum err = %v, want ErrConflict", err)
	}
	if v2.Checksum == v1.Checksum {
		t.Error("checksum should change with content")
	}
	if _, err := svc.UpdateNote(ctx, models.Note{ID: "ghost"}, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing note err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	svc, log := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, models.Note{ID: "gone"})

	if err := svc.DeleteNote(ctx, "gone"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if _, err := svc.GetNote(ctx, "gone"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
	if err := svc.DeleteNote(ctx, "gone"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if log.events[len(log.events)-1] != "deleted:gone" {
		t.Errorf("events = %v", log.events)
	}
}

func TestListAndTree(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, models.Note{ID: "root", Title: "Root"})
	_, _ = svc.CreateNote(ctx, models.Note{ID: "mid", Title: "Mid", ParentID: "root"})
	_, _ = svc.CreateNote(ctx, models.Note{ID: "leaf", Title: "Leaf", ParentID: "mid"})

	items, total, err := svc.ListNotes(ctx, index.ListOptions{ParentID: "root"})
	if err != nil || total != 1 || items[0].ID != "mid" {
		t.Fatalf("children of root = %+v total=%d err=%v", items, total, err)
	}

	tr, err := svc.Tree(ctx)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	paths, err := tr.GetPaths(models.Note{ID: "leaf", ParentID: "mid"})
	if err != nil {
		t.Fatalf("GetPaths: %v", err)
	}
	if len(paths) != 2 || paths[0].Title != "Mid" || paths[1].Title != "Root" {
		t.Errorf("paths = %+v", paths)
	}
}

func TestSearch(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, models.Note{ID: "s1", Title: "Groceries", Content: "buy quinoa"})

	res, err := svc.Search(ctx, "quinoa", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].ID != "s1" {
		t.Errorf("results = %+v", res)
	}
}

func TestMutateSettings(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	root := "daily"
	visit := "/abc"

	if _, err := svc.MutateSettings(ctx, models.SettingsPatch{DailyRootID: &root}); err != nil {
		t.Fatal(err)
	}
	got, err := svc.MutateSettings(ctx, models.SettingsPatch{LastVisit: &visit})
	if err != nil {
		t.Fatal(err)
	}
	want := models.Settings{DailyRootID: "daily", LastVisit: "/abc"}
	if got != want {
		t.Errorf("settings = %+v, want %+v", got, want)
	}
	stored, _ := svc.Settings(ctx)
	if stored != want {
		t.Errorf("stored = %+v", stored)
	}
}

func TestChecksumMatchesFile(t *testing.T) {
	_, store := testutil.TestVault(t)
	svc := NewService(store, testutil.TestDB(t))
	d, _ := svc.CreateNote(context.Background(), models.Note{ID: "cs", Title: "T"})
	data, _ := store.Read("cs")
	if d.Checksum != checksum.Sum(data) {
		t.Error("detail checksum should match the stored bytes")
	}
}

func TestUpdateAfterExternalEdit(t *testing.T) {
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	svc := NewService(store, db)
	ctx := context.Background()

	first, err := svc.CreateNote(ctx, models.Note{ID: "ext", Title: "Ext", Content: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	testutil.ExternalEdit(t, store, db, models.Note{ID: "ext", Title: "Ext", Content: "edited elsewhere"})

	got, err := svc.GetNote(ctx, "ext")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "edited elsewhere" {
		t.Errorf("content = %q", got.Content)
	}
	if _, err := svc.UpdateNote(ctx, models.Note{ID: "ext", Content: "mine"}, first.Checksum); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale update err = %v, want ErrConflict", err)
	}
}
