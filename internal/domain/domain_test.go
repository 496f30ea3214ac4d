package domain_test

import (
	"encoding/json"
	"strings"
	"testing"

	"podforge/internal/domain"
)

func TestStaticSourceJSONShape(t *testing.T) {
	data, err := json.Marshal(domain.StaticSource("intro.mp3"))
	if err != nil {
		t.Fatalf("marshal static source: %v", err)
	}

	got := string(data)
	if got != `{"source_type":"static","filename":"intro.mp3"}` {
		t.Fatalf("unexpected static source JSON: %s", got)
	}
}

func TestTTSSourceOmitsEmptyOptionals(t *testing.T) {
	data, err := json.Marshal(domain.TTSSource("welcome the listeners", ""))
	if err != nil {
		t.Fatalf("marshal tts source: %v", err)
	}

	got := string(data)
	if strings.Contains(got, "voice_id") {
		t.Errorf("empty voice_id should be omitted: %s", got)
	}
	if strings.Contains(got, "filename") {
		t.Errorf("static fields must not leak into tts shape: %s", got)
	}
	if !strings.Contains(got, `"text_prompt":"welcome the listeners"`) {
		t.Errorf("missing text_prompt: %s", got)
	}
}

func TestSourceRoundTrip(t *testing.T) {
	sources := []domain.Source{
		domain.StaticSource("jingle.mp3"),
		domain.StaticSource(""),
		domain.TTSSource("hello", "voice-1"),
		{Type: domain.SourceTTS, TextPrompt: "slow one", VoiceID: "v2", SpeakingRate: 0.9},
	}

	for _, src := range sources {
		data, err := json.Marshal(src)
		if err != nil {
			t.Fatalf("marshal %+v: %v", src, err)
		}
		var back domain.Source
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != src {
			t.Errorf("round trip mismatch: got %+v want %+v", back, src)
		}
	}
}

func TestSourceRejectsUnknownType(t *testing.T) {
	var src domain.Source
	if err := json.Unmarshal([]byte(`{"source_type":"stream"}`), &src); err == nil {
		t.Fatal("expected error for unknown source type")
	}
}

func TestTemplateVoiceDefaultsSerializeAsNull(t *testing.T) {
	tmpl := domain.Template{
		ID:       "t1",
		Name:     "Weekly",
		ShowID:   "show-1",
		IsActive: true,
		Segments: []domain.Segment{
			{ID: "s1", Type: domain.SegmentContent, Source: domain.StaticSource("")},
		},
	}

	data, err := json.Marshal(tmpl)
	if err != nil {
		t.Fatalf("marshal template: %v", err)
	}

	got := string(data)
	if !strings.Contains(got, `"default_elevenlabs_voice_id":null`) {
		t.Errorf("expected explicit null elevenlabs voice: %s", got)
	}
	if !strings.Contains(got, `"default_intern_voice_id":null`) {
		t.Errorf("expected explicit null intern voice: %s", got)
	}
	if !strings.Contains(got, `"podcast_id":"show-1"`) {
		t.Errorf("expected podcast_id key: %s", got)
	}
}

func TestContentIndex(t *testing.T) {
	segments := []domain.Segment{
		{ID: "a", Type: domain.SegmentIntro},
		{ID: "b", Type: domain.SegmentContent},
		{ID: "c", Type: domain.SegmentOutro},
	}
	if idx := domain.ContentIndex(segments); idx != 1 {
		t.Fatalf("ContentIndex = %d, want 1", idx)
	}
	if idx := domain.ContentIndex(segments[:1]); idx != -1 {
		t.Fatalf("ContentIndex without content = %d, want -1", idx)
	}
}

func TestMusicRuleHasSource(t *testing.T) {
	if (domain.MusicRule{}).HasSource() {
		t.Error("empty rule should have no source")
	}
	if !(domain.MusicRule{MusicFilename: "bed.mp3"}).HasSource() {
		t.Error("filename rule should have a source")
	}
	if !(domain.MusicRule{MusicAssetID: "asset-1"}).HasSource() {
		t.Error("asset rule should have a source")
	}
}
