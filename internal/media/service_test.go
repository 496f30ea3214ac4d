package media_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"podforge/internal/config"
	"podforge/internal/domain"
	"podforge/internal/media"
	"podforge/internal/repository"
	"podforge/internal/storage"
	"podforge/internal/templates"
)

func newTestService(t *testing.T) (*media.Service, *repository.Store, string) {
	t.Helper()

	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	cfg := config.Defaults()
	cfg.MediaRoot = filepath.Join(dir, "media")
	cfg.TmpDir = filepath.Join(dir, "tmp")

	store := repository.New(db)
	return media.NewService(cfg, store), store, cfg.MediaRoot
}

func writeSourceFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	return path
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	svc, _, mediaRoot := newTestService(t)

	src := writeSourceFile(t, "intro jingle!.mp3", []byte("fake audio"))
	asset, err := svc.Ingest(ctx, src, domain.AssetCategorySegment, "Intro Jingle")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if asset.Filename != "intro_jingle_.mp3" {
		t.Errorf("filename = %q", asset.Filename)
	}
	if asset.Category != domain.AssetCategorySegment || asset.FriendlyName != "Intro Jingle" {
		t.Errorf("asset = %+v", asset)
	}
	if asset.SizeBytes != int64(len("fake audio")) {
		t.Errorf("size = %d", asset.SizeBytes)
	}
	if asset.Hash == "" {
		t.Error("hash not computed")
	}

	copied := filepath.Join(mediaRoot, domain.AssetCategorySegment, asset.Filename)
	data, err := os.ReadFile(copied)
	if err != nil {
		t.Fatalf("library copy missing: %v", err)
	}
	if string(data) != "fake audio" {
		t.Errorf("library copy content = %q", data)
	}

	loaded, err := svc.GetByFilename(ctx, asset.Filename)
	if err != nil {
		t.Fatalf("GetByFilename: %v", err)
	}
	if loaded.ID != asset.ID {
		t.Errorf("loaded id = %q, want %q", loaded.ID, asset.ID)
	}
}

func TestIngestSameFilenameKeepsID(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	src := writeSourceFile(t, "bed.mp3", []byte("v1"))
	first, err := svc.Ingest(ctx, src, domain.AssetCategoryMusic, "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	src = writeSourceFile(t, "bed.mp3", []byte("v2 longer"))
	second, err := svc.Ingest(ctx, src, domain.AssetCategoryMusic, "")
	if err != nil {
		t.Fatalf("Ingest (again): %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("re-ingest changed id: %q -> %q", first.ID, second.ID)
	}
	if second.Hash == first.Hash {
		t.Error("hash not updated for new content")
	}
}

func TestIngestRejectsUnknownCategory(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	src := writeSourceFile(t, "x.mp3", []byte("x"))
	_, err := svc.Ingest(ctx, src, "video", "")
	if !errors.Is(err, media.ErrUnknownCategory) {
		t.Fatalf("Ingest error = %v, want ErrUnknownCategory", err)
	}
}

func TestListFiltersByCategoryAndQuery(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	for name, category := range map[string]string{
		"intro.mp3":  domain.AssetCategorySegment,
		"outro.mp3":  domain.AssetCategorySegment,
		"ambien.mp3": domain.AssetCategoryMusic,
	} {
		src := writeSourceFile(t, name, []byte(name))
		if _, err := svc.Ingest(ctx, src, category, ""); err != nil {
			t.Fatalf("Ingest %s: %v", name, err)
		}
	}

	segments, err := svc.List(ctx, domain.AssetCategorySegment, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("segment count = %d, want 2", len(segments))
	}

	matches, err := svc.List(ctx, "", "intro")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(matches) != 1 || matches[0].Filename != "intro.mp3" {
		t.Fatalf("query matches = %+v", matches)
	}
}

func TestMissingReferences(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	src := writeSourceFile(t, "intro.mp3", []byte("intro"))
	if _, err := svc.Ingest(ctx, src, domain.AssetCategorySegment, ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	ed := templates.NewEditor("Check Layout")
	segs := ed.Segments()
	if err := ed.SetStaticSource(segs[0].ID, "intro.mp3"); err != nil {
		t.Fatalf("SetStaticSource: %v", err)
	}
	if err := ed.SetStaticSource(segs[2].ID, "ghost.mp3"); err != nil {
		t.Fatalf("SetStaticSource: %v", err)
	}
	ed.AddMusicRule()
	if err := ed.SetMusicFile(0, "nothere.mp3"); err != nil {
		t.Fatalf("SetMusicFile: %v", err)
	}

	missing, err := svc.MissingReferences(ctx, ed.Template())
	if err != nil {
		t.Fatalf("MissingReferences: %v", err)
	}
	if len(missing) != 2 {
		t.Fatalf("missing = %v, want 2 entries", missing)
	}
	want := map[string]bool{"ghost.mp3": true, "nothere.mp3": true}
	for _, name := range missing {
		if !want[name] {
			t.Errorf("unexpected missing entry %q", name)
		}
	}
}
