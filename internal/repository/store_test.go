package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"podforge/internal/domain"
	"podforge/internal/repository"
	"podforge/internal/storage"
)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.Open(dbPath)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return repository.New(db)
}

func seedShow(t *testing.T, ctx context.Context, store *repository.Store, id, title string) {
	t.Helper()
	if err := store.SaveShow(ctx, domain.Show{ID: id, Title: title, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("SaveShow: %v", err)
	}
}

func sampleTemplate(showID string) domain.Template {
	voice := "el-voice-1"
	return domain.Template{
		ID:       "tpl-1",
		Name:     "Weekly Layout",
		ShowID:   showID,
		IsActive: true,
		Segments: []domain.Segment{
			{ID: "seg-1", Type: domain.SegmentIntro, Source: domain.TTSSource("welcome", "v1")},
			{ID: "seg-2", Type: domain.SegmentContent, Source: domain.StaticSource("")},
			{ID: "seg-3", Type: domain.SegmentCommercial, Source: domain.StaticSource("ad.mp3")},
			{ID: "seg-4", Type: domain.SegmentOutro, Source: domain.StaticSource("outro.mp3")},
		},
		MusicRules: []domain.MusicRule{
			{
				ID:           "rule-1",
				ApplyTo:      []string{domain.SegmentIntro, domain.SegmentContent},
				MusicAssetID: "asset-7",
				StartOffsetS: -1.5,
				EndOffsetS:   2,
				FadeInS:      0.5,
				FadeOutS:     1,
				VolumeDB:     -7.96,
			},
		},
		Timing: domain.Timing{ContentStartOffsetS: -3, OutroStartOffsetS: -1},
		AI: domain.AISettings{
			TitleInstructions: "keep it short",
			AutoFillTitle:     true,
		},
		DefaultElevenLabsVoiceID: &voice,
	}
}

func TestSaveAndGetTemplate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedShow(t, ctx, store, "show-1", "Morning Show")

	tmpl := sampleTemplate("show-1")
	if err := store.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	loaded, err := store.GetTemplate(ctx, "tpl-1")
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}

	if loaded.Name != tmpl.Name || loaded.ShowID != tmpl.ShowID || !loaded.IsActive {
		t.Errorf("template header mismatch: %+v", loaded)
	}
	if len(loaded.Segments) != 4 {
		t.Fatalf("segment count = %d, want 4", len(loaded.Segments))
	}
	for i, seg := range loaded.Segments {
		if seg.ID != tmpl.Segments[i].ID || seg.Type != tmpl.Segments[i].Type {
			t.Errorf("segment[%d] = %+v, want %+v", i, seg, tmpl.Segments[i])
		}
	}
	if loaded.Segments[0].Source.Type != domain.SourceTTS || loaded.Segments[0].Source.TextPrompt != "welcome" {
		t.Errorf("tts source lost: %+v", loaded.Segments[0].Source)
	}

	if len(loaded.MusicRules) != 1 {
		t.Fatalf("rule count = %d, want 1", len(loaded.MusicRules))
	}
	rule := loaded.MusicRules[0]
	if len(rule.ApplyTo) != 2 || rule.ApplyTo[0] != domain.SegmentIntro || rule.ApplyTo[1] != domain.SegmentContent {
		t.Errorf("apply_to = %v", rule.ApplyTo)
	}
	if rule.MusicAssetID != "asset-7" || rule.MusicFilename != "" {
		t.Errorf("music source = %q/%q", rule.MusicFilename, rule.MusicAssetID)
	}
	if rule.StartOffsetS != -1.5 || rule.VolumeDB != -7.96 {
		t.Errorf("rule numerics = %+v", rule)
	}

	if loaded.Timing.ContentStartOffsetS != -3 || loaded.Timing.OutroStartOffsetS != -1 {
		t.Errorf("timing = %+v", loaded.Timing)
	}
	if loaded.DefaultElevenLabsVoiceID == nil || *loaded.DefaultElevenLabsVoiceID != "el-voice-1" {
		t.Errorf("elevenlabs voice = %v", loaded.DefaultElevenLabsVoiceID)
	}
	if loaded.DefaultInternVoiceID != nil {
		t.Errorf("intern voice = %v, want nil", loaded.DefaultInternVoiceID)
	}
	if !loaded.AI.AutoFillTitle || loaded.AI.TitleInstructions != "keep it short" {
		t.Errorf("ai settings = %+v", loaded.AI)
	}
}

func TestSaveTemplateRewritesChildren(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedShow(t, ctx, store, "show-1", "Morning Show")

	tmpl := sampleTemplate("show-1")
	if err := store.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	// Drop the commercial and the music rule, then save again.
	tmpl.Segments = append(tmpl.Segments[:2], tmpl.Segments[3])
	tmpl.MusicRules = nil
	if err := store.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("SaveTemplate (update): %v", err)
	}

	loaded, err := store.GetTemplate(ctx, "tpl-1")
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if len(loaded.Segments) != 3 {
		t.Fatalf("segment count after update = %d, want 3", len(loaded.Segments))
	}
	if len(loaded.MusicRules) != 0 {
		t.Fatalf("rule count after update = %d, want 0", len(loaded.MusicRules))
	}
}

func TestListTemplateSummaries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedShow(t, ctx, store, "show-1", "Morning Show")

	if err := store.SaveTemplate(ctx, sampleTemplate("show-1")); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	summaries, err := store.ListTemplateSummaries(ctx)
	if err != nil {
		t.Fatalf("ListTemplateSummaries: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summary count = %d, want 1", len(summaries))
	}
	summary := summaries[0]
	if summary.Name != "Weekly Layout" || summary.ShowTitle != "Morning Show" {
		t.Errorf("summary = %+v", summary)
	}
	if summary.SegmentCount != 4 {
		t.Errorf("segment count = %d, want 4", summary.SegmentCount)
	}
	if summary.EpisodeCount != 0 {
		t.Errorf("episode count = %d, want 0", summary.EpisodeCount)
	}
}

func TestDeleteTemplateRefusedWhileInUse(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedShow(t, ctx, store, "show-1", "Morning Show")

	if err := store.SaveTemplate(ctx, sampleTemplate("show-1")); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	episode := domain.Episode{
		ID:         "ep-1",
		ShowID:     "show-1",
		TemplateID: "tpl-1",
		Title:      "Pilot",
		State:      domain.EpisodeStateDraft,
	}
	if err := store.SaveEpisode(ctx, episode); err != nil {
		t.Fatalf("SaveEpisode: %v", err)
	}

	err := store.DeleteTemplate(ctx, "tpl-1")
	if !errors.Is(err, repository.ErrTemplateInUse) {
		t.Fatalf("DeleteTemplate error = %v, want ErrTemplateInUse", err)
	}

	if _, err := store.GetTemplate(ctx, "tpl-1"); err != nil {
		t.Fatalf("template disappeared after refused delete: %v", err)
	}
}

func TestDeleteTemplate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedShow(t, ctx, store, "show-1", "Morning Show")

	if err := store.SaveTemplate(ctx, sampleTemplate("show-1")); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	if err := store.DeleteTemplate(ctx, "tpl-1"); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if _, err := store.GetTemplate(ctx, "tpl-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("GetTemplate after delete error = %v, want ErrNoRows", err)
	}
	if err := store.DeleteTemplate(ctx, "tpl-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("second DeleteTemplate error = %v, want ErrNoRows", err)
	}
}

func TestShowSummaries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedShow(t, ctx, store, "show-1", "Morning Show")
	seedShow(t, ctx, store, "show-2", "Evening Show")

	if err := store.SaveTemplate(ctx, sampleTemplate("show-1")); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	summaries, err := store.ListShowSummaries(ctx)
	if err != nil {
		t.Fatalf("ListShowSummaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summary count = %d, want 2", len(summaries))
	}
	// Sorted by title: Evening before Morning.
	if summaries[0].Title != "Evening Show" || summaries[0].TemplateCount != 0 {
		t.Errorf("summaries[0] = %+v", summaries[0])
	}
	if summaries[1].Title != "Morning Show" || summaries[1].TemplateCount != 1 {
		t.Errorf("summaries[1] = %+v", summaries[1])
	}
}

func TestMediaAssets(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	asset := domain.MediaAsset{
		ID:          "asset-1",
		Filename:    "bed.mp3",
		Category:    domain.AssetCategoryMusic,
		ContentType: "audio/mpeg",
		FilePath:    "/media/music/bed.mp3",
		DurationS:   93.4,
		SizeBytes:   1024,
		Hash:        "abc",
	}
	if err := store.SaveMediaAsset(ctx, asset); err != nil {
		t.Fatalf("SaveMediaAsset: %v", err)
	}

	loaded, err := store.GetMediaAssetByFilename(ctx, "bed.mp3")
	if err != nil {
		t.Fatalf("GetMediaAssetByFilename: %v", err)
	}
	if loaded.ID != "asset-1" || loaded.Category != domain.AssetCategoryMusic || loaded.DurationS != 93.4 {
		t.Errorf("asset = %+v", loaded)
	}

	if _, err := store.GetMediaAssetByFilename(ctx, "missing.mp3"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing asset error = %v, want ErrNoRows", err)
	}

	assets, err := store.ListMediaAssets(ctx, domain.AssetCategoryMusic)
	if err != nil {
		t.Fatalf("ListMediaAssets: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("asset count = %d, want 1", len(assets))
	}

	assets, err = store.ListMediaAssets(ctx, domain.AssetCategorySegment)
	if err != nil {
		t.Fatalf("ListMediaAssets(segment): %v", err)
	}
	if len(assets) != 0 {
		t.Fatalf("segment asset count = %d, want 0", len(assets))
	}
}

func TestEpisodeLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedShow(t, ctx, store, "show-1", "Morning Show")
	if err := store.SaveTemplate(ctx, sampleTemplate("show-1")); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	episode := domain.Episode{
		ID:         "ep-1",
		ShowID:     "show-1",
		TemplateID: "tpl-1",
		Title:      "Pilot",
		State:      domain.EpisodeStateDraft,
	}
	if err := store.SaveEpisode(ctx, episode); err != nil {
		t.Fatalf("SaveEpisode: %v", err)
	}

	loaded, err := store.GetEpisode(ctx, "ep-1")
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if loaded.ShowTitle != "Morning Show" || loaded.TemplateName != "Weekly Layout" {
		t.Errorf("episode joins = %+v", loaded)
	}
	if loaded.State != domain.EpisodeStateDraft {
		t.Errorf("state = %s, want DRAFT", loaded.State)
	}

	episode.ContentFilename = "ep1-content.mp3"
	episode.State = domain.EpisodeStateReady
	if err := store.SaveEpisode(ctx, episode); err != nil {
		t.Fatalf("SaveEpisode (update): %v", err)
	}

	loaded, err = store.GetEpisode(ctx, "ep-1")
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if loaded.ContentFilename != "ep1-content.mp3" || loaded.State != domain.EpisodeStateReady {
		t.Errorf("episode after update = %+v", loaded)
	}

	if err := store.UpdateEpisodeState(ctx, "ep-1", domain.EpisodeStateExported); err != nil {
		t.Fatalf("UpdateEpisodeState: %v", err)
	}
	loaded, _ = store.GetEpisode(ctx, "ep-1")
	if loaded.State != domain.EpisodeStateExported {
		t.Errorf("state = %s, want EXPORTED", loaded.State)
	}

	count, err := store.CountEpisodesUsingTemplate(ctx, "tpl-1")
	if err != nil {
		t.Fatalf("CountEpisodesUsingTemplate: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
