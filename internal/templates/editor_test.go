package templates

import (
	"errors"
	"math"
	"testing"

	"podforge/internal/domain"
)

func segmentTypes(segments []domain.Segment) []string {
	types := make([]string, len(segments))
	for i, seg := range segments {
		types[i] = seg.Type
	}
	return types
}

func assertTypes(t *testing.T, got []domain.Segment, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("segment count = %d, want %d (%v)", len(got), len(want), segmentTypes(got))
	}
	for i, w := range want {
		if got[i].Type != w {
			t.Fatalf("segment[%d] = %s, want %s (%v)", i, got[i].Type, w, segmentTypes(got))
		}
	}
}

func TestNewEditorSeedsMandatorySlots(t *testing.T) {
	ed := NewEditor("Weekly Show")
	assertTypes(t, ed.Segments(), domain.SegmentIntro, domain.SegmentContent, domain.SegmentOutro)

	if !ed.Dirty() {
		t.Error("fresh editor should start dirty")
	}

	for _, seg := range ed.Segments() {
		if seg.ID == "" {
			t.Error("seeded segment missing id")
		}
		if seg.Source.Type != domain.SourceStatic {
			t.Errorf("seeded segment source = %s, want static", seg.Source.Type)
		}
	}
}

func TestAddCommercialGoesAfterContent(t *testing.T) {
	ed := NewEditor("t")

	if _, err := ed.AddSegment(domain.SegmentCommercial); err != nil {
		t.Fatalf("AddSegment(commercial) error = %v", err)
	}
	assertTypes(t, ed.Segments(),
		domain.SegmentIntro, domain.SegmentContent, domain.SegmentCommercial, domain.SegmentOutro)
}

func TestAddIntroGoesBeforeContent(t *testing.T) {
	ed := NewEditor("t")

	if _, err := ed.AddSegment(domain.SegmentIntro); err != nil {
		t.Fatalf("AddSegment(intro) error = %v", err)
	}
	assertTypes(t, ed.Segments(),
		domain.SegmentIntro, domain.SegmentIntro, domain.SegmentContent, domain.SegmentOutro)
}

func TestAddOutroAppends(t *testing.T) {
	ed := NewEditor("t")

	if _, err := ed.AddSegment(domain.SegmentOutro); err != nil {
		t.Fatalf("AddSegment(outro) error = %v", err)
	}
	assertTypes(t, ed.Segments(),
		domain.SegmentIntro, domain.SegmentContent, domain.SegmentOutro, domain.SegmentOutro)
}

func TestSecondContentSegmentRefused(t *testing.T) {
	ed := NewEditor("t")
	before := len(ed.Segments())

	_, err := ed.AddSegment(domain.SegmentContent)
	if !errors.Is(err, ErrContentSegmentExists) {
		t.Fatalf("AddSegment(content) error = %v, want ErrContentSegmentExists", err)
	}
	if len(ed.Segments()) != before {
		t.Fatal("segment list changed on refused content add")
	}

	// Repeated attempts stay no-ops.
	for i := 0; i < 3; i++ {
		ed.AddSegment(domain.SegmentContent)
	}
	count := 0
	for _, seg := range ed.Segments() {
		if seg.Type == domain.SegmentContent {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("content segment count = %d, want 1", count)
	}
}

func TestAddSegmentUnknownType(t *testing.T) {
	ed := NewEditor("t")
	if _, err := ed.AddSegment("teaser"); !errors.Is(err, ErrUnknownSegmentType) {
		t.Fatalf("AddSegment(teaser) error = %v, want ErrUnknownSegmentType", err)
	}
}

func TestDeleteContentSegmentLocked(t *testing.T) {
	ed := NewEditor("t")
	contentID := ed.Segments()[1].ID

	if err := ed.DeleteSegment(contentID); !errors.Is(err, ErrContentSegmentLocked) {
		t.Fatalf("DeleteSegment(content) error = %v, want ErrContentSegmentLocked", err)
	}
	assertTypes(t, ed.Segments(), domain.SegmentIntro, domain.SegmentContent, domain.SegmentOutro)
}

func TestDeletableSegmentsExcludeContent(t *testing.T) {
	ed := NewEditor("t")
	for _, seg := range ed.DeletableSegments() {
		if seg.Type == domain.SegmentContent {
			t.Fatal("content segment offered for deletion")
		}
	}
	if len(ed.DeletableSegments()) != 2 {
		t.Fatalf("deletable count = %d, want 2", len(ed.DeletableSegments()))
	}
}

func TestDeleteSegment(t *testing.T) {
	ed := NewEditor("t")
	introID := ed.Segments()[0].ID

	if err := ed.DeleteSegment(introID); err != nil {
		t.Fatalf("DeleteSegment error = %v", err)
	}
	assertTypes(t, ed.Segments(), domain.SegmentContent, domain.SegmentOutro)

	if err := ed.DeleteSegment("nope"); !errors.Is(err, ErrSegmentNotFound) {
		t.Fatalf("DeleteSegment(unknown) error = %v, want ErrSegmentNotFound", err)
	}
}

func TestMoveContentPastOutroRejected(t *testing.T) {
	ed := NewEditor("t")
	before := segmentTypes(ed.Segments())

	if ed.MoveSegment(1, 2) {
		t.Fatal("moving content past outro should be rejected")
	}

	after := segmentTypes(ed.Segments())
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("order changed on rejected move: %v -> %v", before, after)
		}
	}
}

func TestMoveCommercialWithinEnvelope(t *testing.T) {
	ed := NewEditor("t")
	ed.AddSegment(domain.SegmentCommercial)
	// [intro content commercial outro]: commercial may slide before content.
	if !ed.MoveSegment(2, 1) {
		t.Fatal("commercial move within envelope rejected")
	}
	assertTypes(t, ed.Segments(),
		domain.SegmentIntro, domain.SegmentCommercial, domain.SegmentContent, domain.SegmentOutro)

	// But never in front of the intros.
	if ed.MoveSegment(1, 0) {
		t.Fatal("commercial before intro should be rejected")
	}
}

func TestMoveSegmentOutOfBounds(t *testing.T) {
	ed := NewEditor("t")
	if ed.MoveSegment(0, 7) {
		t.Fatal("out of bounds move accepted")
	}
	if ed.MoveSegment(-1, 0) {
		t.Fatal("negative index move accepted")
	}
}

func TestSetSourceResetsCrossTypeFields(t *testing.T) {
	ed := NewEditor("t")
	introID := ed.Segments()[0].ID

	if err := ed.SetStaticSource(introID, "intro.mp3"); err != nil {
		t.Fatalf("SetStaticSource error = %v", err)
	}
	if err := ed.SetTTSSource(introID, "welcome everyone", "voice-1"); err != nil {
		t.Fatalf("SetTTSSource error = %v", err)
	}

	src := ed.Segments()[0].Source
	if src.Filename != "" {
		t.Errorf("filename not cleared on switch to tts: %q", src.Filename)
	}
	if src.TextPrompt != "welcome everyone" || src.VoiceID != "voice-1" {
		t.Errorf("tts fields not set: %+v", src)
	}

	if err := ed.SetStaticSource(introID, "other.mp3"); err != nil {
		t.Fatalf("SetStaticSource error = %v", err)
	}
	src = ed.Segments()[0].Source
	if src.TextPrompt != "" || src.VoiceID != "" {
		t.Errorf("tts fields not cleared on switch to static: %+v", src)
	}
}

func TestTTSOnCommercialRefused(t *testing.T) {
	ed := NewEditor("t")
	seg, err := ed.AddSegment(domain.SegmentCommercial)
	if err != nil {
		t.Fatalf("AddSegment error = %v", err)
	}

	if err := ed.SetTTSSource(seg.ID, "buy now", ""); !errors.Is(err, ErrTTSNotSupported) {
		t.Fatalf("SetTTSSource(commercial) error = %v, want ErrTTSNotSupported", err)
	}
	if ed.Segments()[2].Source.Type != domain.SourceStatic {
		t.Error("commercial source changed by refused tts switch")
	}
}

func TestSpeakingRateOnlyForTTS(t *testing.T) {
	ed := NewEditor("t")
	introID := ed.Segments()[0].ID

	if err := ed.SetSpeakingRate(introID, 1.1); !errors.Is(err, ErrNotTTSSegment) {
		t.Fatalf("SetSpeakingRate(static) error = %v, want ErrNotTTSSegment", err)
	}

	ed.SetTTSSource(introID, "hi", "")
	if err := ed.SetSpeakingRate(introID, 1.1); err != nil {
		t.Fatalf("SetSpeakingRate error = %v", err)
	}
	if rate := ed.Segments()[0].Source.SpeakingRate; rate != 1.1 {
		t.Errorf("speaking rate = %v, want 1.1", rate)
	}
}

func TestMusicRuleDefaults(t *testing.T) {
	ed := NewEditor("t")
	rule := ed.AddMusicRule()

	if len(rule.ApplyTo) != 1 || rule.ApplyTo[0] != domain.SegmentContent {
		t.Errorf("default apply_to = %v, want [content]", rule.ApplyTo)
	}
	if rule.StartOffsetS != 0 || rule.EndOffsetS != 0 {
		t.Errorf("default offsets = %v/%v, want 0/0", rule.StartOffsetS, rule.EndOffsetS)
	}
	if rule.FadeInS != 0.5 || rule.FadeOutS != 0.5 {
		t.Errorf("default fades = %v/%v, want 0.5/0.5", rule.FadeInS, rule.FadeOutS)
	}
	if math.Abs(rule.Level()-4) > 0.01 {
		t.Errorf("default level = %v, want 4", rule.Level())
	}
}

func TestMusicSourceMutualExclusion(t *testing.T) {
	ed := NewEditor("t")
	ed.AddMusicRule()

	if err := ed.SetMusicFile(0, "bed.mp3"); err != nil {
		t.Fatalf("SetMusicFile error = %v", err)
	}
	if err := ed.SetMusicAsset(0, "asset-9"); err != nil {
		t.Fatalf("SetMusicAsset error = %v", err)
	}
	rule := ed.MusicRules()[0]
	if rule.MusicFilename != "" {
		t.Errorf("filename not cleared by asset binding: %q", rule.MusicFilename)
	}
	if rule.MusicAssetID != "asset-9" {
		t.Errorf("asset id = %q, want asset-9", rule.MusicAssetID)
	}

	if err := ed.SetMusicFile(0, "other.mp3"); err != nil {
		t.Fatalf("SetMusicFile error = %v", err)
	}
	rule = ed.MusicRules()[0]
	if rule.MusicAssetID != "" {
		t.Errorf("asset id not cleared by file binding: %q", rule.MusicAssetID)
	}
	if rule.MusicFilename != "other.mp3" {
		t.Errorf("filename = %q, want other.mp3", rule.MusicFilename)
	}
}

func TestSetMusicVolumeLevelStoresDB(t *testing.T) {
	ed := NewEditor("t")
	ed.AddMusicRule()

	if err := ed.SetMusicVolumeLevel(0, 10); err != nil {
		t.Fatalf("SetMusicVolumeLevel error = %v", err)
	}
	if db := ed.MusicRules()[0].VolumeDB; math.Abs(db) > 1e-9 {
		t.Errorf("level 10 stored as %v dB, want 0", db)
	}

	// Out-of-range input clamps instead of failing.
	if err := ed.SetMusicVolumeLevel(0, 42); err != nil {
		t.Fatalf("SetMusicVolumeLevel error = %v", err)
	}
	if level := ed.MusicRules()[0].Level(); math.Abs(level-11) > 0.01 {
		t.Errorf("clamped level = %v, want 11", level)
	}
}

func TestMusicRuleIndexErrors(t *testing.T) {
	ed := NewEditor("t")
	if err := ed.RemoveMusicRule(0); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("RemoveMusicRule error = %v, want ErrRuleNotFound", err)
	}
	if err := ed.SetMusicVolumeLevel(3, 5); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("SetMusicVolumeLevel error = %v, want ErrRuleNotFound", err)
	}
}

func TestMusicFadesRejectNegative(t *testing.T) {
	ed := NewEditor("t")
	ed.AddMusicRule()
	if err := ed.SetMusicFades(0, -1, 0); !errors.Is(err, ErrNegativeSeconds) {
		t.Fatalf("SetMusicFades error = %v, want ErrNegativeSeconds", err)
	}
}

func TestOverlapStoredNegated(t *testing.T) {
	ed := NewEditor("t")

	if err := ed.SetIntroContentOverlap(3); err != nil {
		t.Fatalf("SetIntroContentOverlap error = %v", err)
	}
	if got := ed.Template().Timing.ContentStartOffsetS; got != -3 {
		t.Errorf("content_start_offset_s = %v, want -3", got)
	}
	if got := ed.IntroContentOverlap(); got != 3 {
		t.Errorf("IntroContentOverlap = %v, want 3", got)
	}

	if err := ed.SetIntroContentOverlap(0); err != nil {
		t.Fatalf("SetIntroContentOverlap(0) error = %v", err)
	}
	if got := ed.Template().Timing.ContentStartOffsetS; got != 0 {
		t.Errorf("content_start_offset_s = %v, want 0", got)
	}

	if err := ed.SetContentOutroOverlap(1.5); err != nil {
		t.Fatalf("SetContentOutroOverlap error = %v", err)
	}
	if got := ed.Template().Timing.OutroStartOffsetS; got != -1.5 {
		t.Errorf("outro_start_offset_s = %v, want -1.5", got)
	}

	if err := ed.SetIntroContentOverlap(-2); !errors.Is(err, ErrNegativeSeconds) {
		t.Fatalf("negative overlap error = %v, want ErrNegativeSeconds", err)
	}
}

func TestValidateRequiresShow(t *testing.T) {
	ed := NewEditor("Weekly")
	if err := ed.Validate(); !errors.Is(err, ErrNoShowSelected) {
		t.Fatalf("Validate error = %v, want ErrNoShowSelected", err)
	}

	ed.SetShow("show-1")
	if err := ed.Validate(); err != nil {
		t.Fatalf("Validate error = %v", err)
	}
}

func TestValidateRequiresName(t *testing.T) {
	ed := NewEditor("")
	ed.SetShow("show-1")
	if err := ed.Validate(); !errors.Is(err, ErrMissingName) {
		t.Fatalf("Validate error = %v, want ErrMissingName", err)
	}
}

func TestValidateReportsSourcelessRules(t *testing.T) {
	ed := NewEditor("Weekly")
	ed.SetShow("show-1")
	ed.AddMusicRule()
	ed.AddMusicRule()
	ed.SetMusicFile(0, "bed.mp3")

	err := ed.Validate()
	if !errors.Is(err, ErrRuleMissingSource) {
		t.Fatalf("Validate error = %v, want ErrRuleMissingSource", err)
	}

	// The incomplete rule is still present, not dropped.
	if len(ed.MusicRules()) != 2 {
		t.Fatalf("rule count = %d, want 2", len(ed.MusicRules()))
	}
}

func TestNormalizedTemplateForcesContentPlaceholder(t *testing.T) {
	ed := NewEditor("Weekly")
	contentID := ed.Segments()[1].ID

	// Sneak a filename onto the content segment.
	ed.SetStaticSource(contentID, "not-allowed.mp3")

	norm := ed.NormalizedTemplate()
	content := norm.Segments[norm.ContentIndex()]
	if content.Source.Type != domain.SourceStatic || content.Source.Filename != "" {
		t.Fatalf("content source = %+v, want empty static", content.Source)
	}
}

func TestMarkSavedClearsDirty(t *testing.T) {
	ed := NewEditor("Weekly")
	ed.SetShow("show-1")

	tmpl := ed.NormalizedTemplate()
	tmpl.ID = "assigned"
	ed.MarkSaved(tmpl)

	if ed.Dirty() {
		t.Error("editor still dirty after MarkSaved")
	}
	if ed.ID() != "assigned" {
		t.Errorf("editor id = %q, want assigned", ed.ID())
	}

	ed.SetName("renamed")
	if !ed.Dirty() {
		t.Error("mutation after save should mark dirty")
	}
}

func TestSetDefaultVoices(t *testing.T) {
	ed := NewEditor("t")
	ed.SetDefaultVoices("el-1", "")

	tmpl := ed.Template()
	if tmpl.DefaultElevenLabsVoiceID == nil || *tmpl.DefaultElevenLabsVoiceID != "el-1" {
		t.Errorf("elevenlabs voice = %v, want el-1", tmpl.DefaultElevenLabsVoiceID)
	}
	if tmpl.DefaultInternVoiceID != nil {
		t.Errorf("intern voice = %v, want nil", tmpl.DefaultInternVoiceID)
	}
}
