package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"spendlog/internal/core"
	"spendlog/internal/persist"
)

func TestStoreLoadSave(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, ok, err := s.Load(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
	if err := s.Save(ctx, "k", []byte(`[1]`)); err != nil {
		t.Fatal(err)
	}
	data, ok, err := s.Load(ctx, "k")
	if err != nil || !ok || string(data) != "[1]" {
		t.Fatalf("unexpected load: %q ok=%v err=%v", data, ok, err)
	}
	// Returned slices are copies.
	data[0] = 'x'
	again, _, _ := s.Load(ctx, "k")
	if string(again) != "[1]" {
		t.Fatalf("store mutated through returned slice: %q", again)
	}
	if s.Writes("k") != 1 {
		t.Fatalf("expected 1 write, got %d", s.Writes("k"))
	}
}

func TestNewFromDirSeedsDocuments(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("category.json", `[{"id":1,"name":"Food","icon":"🍔"}]`)
	mustWrite("notes.txt", "ignored")

	s := NewFromDir(dir)
	dirCats, ok, err := persist.LoadJSON[core.Directory](context.Background(), s, persist.KeyCategory)
	if err != nil || !ok {
		t.Fatalf("expected seeded categories, ok=%v err=%v", ok, err)
	}
	if len(dirCats) != 1 || dirCats[0].ID != "1" || dirCats[0].Name != "Food" {
		t.Fatalf("unexpected categories: %+v", dirCats)
	}
	if _, ok, _ := s.Load(context.Background(), "notes"); ok {
		t.Fatalf("non-json files must be ignored")
	}

	empty := NewFromDir(filepath.Join(dir, "nope"))
	if _, ok, _ := empty.Load(context.Background(), persist.KeyCategory); ok {
		t.Fatalf("missing dir should give an empty store")
	}
}

func TestLoadJSONTreatsNullAsAbsent(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Save(ctx, persist.KeyExpenseHistory, []byte("null"))
	recs, ok, err := persist.LoadJSON[[]core.ExpenseRecord](ctx, s, persist.KeyExpenseHistory)
	if ok || err != nil || recs != nil {
		t.Fatalf("expected absent, got %v ok=%v err=%v", recs, ok, err)
	}

	_ = s.Save(ctx, persist.KeyExpenseHistory, []byte("{broken"))
	if _, _, err := persist.LoadJSON[[]core.ExpenseRecord](ctx, s, persist.KeyExpenseHistory); err == nil {
		t.Fatalf("expected decode error")
	}
}

var _ persist.Versioner = (*Store)(nil)

func TestRevisionCountsSaves(t *testing.T) {
	ctx := context.Background()
	s := New()
	r0, _ := s.Revision(ctx, persist.KeyExpenseHistory, persist.KeyCategory)
	if err := s.Save(ctx, persist.KeyCategory, []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	r1, _ := s.Revision(ctx, persist.KeyExpenseHistory, persist.KeyCategory)
	if r0 != "0" || r1 != "1" {
		t.Fatalf("unexpected revisions %q -> %q", r0, r1)
	}
	if r, _ := s.Revision(ctx, "other"); r != "0" {
		t.Fatalf("unrelated key reported %q", r)
	}
}
