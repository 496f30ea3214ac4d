package templates

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"podforge/internal/domain"
	"podforge/internal/volume"
)

var (
	ErrContentSegmentExists = errors.New("template already has a content segment")
	ErrContentSegmentLocked = errors.New("the content segment cannot be removed")
	ErrSegmentNotFound      = errors.New("segment not found")
	ErrUnknownSegmentType   = errors.New("unknown segment type")
	ErrTTSNotSupported      = errors.New("commercial segments cannot use generated speech")
	ErrNotTTSSegment        = errors.New("segment does not use generated speech")
	ErrRuleNotFound         = errors.New("music rule not found")
	ErrRuleMissingSource    = errors.New("music rule has no audio source")
	ErrNegativeSeconds      = errors.New("seconds value cannot be negative")
	ErrMissingName          = errors.New("template name cannot be empty")
	ErrNoShowSelected       = errors.New("no show selected for template")
	ErrOrderingViolated     = errors.New("segment order violates intro/content/outro placement")
)

const (
	defaultFadeSeconds = 0.5
)

// Editor holds the in-memory template aggregate for a single editing session.
// Every mutator flips a structural dirty flag; nothing touches storage until
// the session is explicitly saved.
type Editor struct {
	tmpl  domain.Template
	dirty bool
}

// NewEditor starts a fresh template seeded with the three mandatory slots:
// intro, content, outro. The content segment is a placeholder whose audio is
// supplied per episode.
func NewEditor(name string) *Editor {
	return &Editor{
		tmpl: domain.Template{
			Name:     strings.TrimSpace(name),
			IsActive: true,
			Segments: []domain.Segment{
				{ID: uuid.NewString(), Type: domain.SegmentIntro, Source: domain.StaticSource("")},
				{ID: uuid.NewString(), Type: domain.SegmentContent, Source: domain.StaticSource("")},
				{ID: uuid.NewString(), Type: domain.SegmentOutro, Source: domain.StaticSource("")},
			},
		},
		dirty: true,
	}
}

// EditorFor resumes editing a previously persisted template.
func EditorFor(tmpl domain.Template) *Editor {
	return &Editor{tmpl: cloneTemplate(tmpl)}
}

// Template returns a copy of the aggregate in its current in-memory state.
func (e *Editor) Template() domain.Template {
	return cloneTemplate(e.tmpl)
}

func (e *Editor) ID() string     { return e.tmpl.ID }
func (e *Editor) Name() string   { return e.tmpl.Name }
func (e *Editor) ShowID() string { return e.tmpl.ShowID }
func (e *Editor) Dirty() bool    { return e.dirty }

func (e *Editor) Segments() []domain.Segment {
	out := make([]domain.Segment, len(e.tmpl.Segments))
	copy(out, e.tmpl.Segments)
	return out
}

func (e *Editor) MusicRules() []domain.MusicRule {
	out := make([]domain.MusicRule, len(e.tmpl.MusicRules))
	for i, rule := range e.tmpl.MusicRules {
		out[i] = cloneRule(rule)
	}
	return out
}

// DeletableSegments lists the segments an editing surface may offer for
// removal. The content segment is never among them.
func (e *Editor) DeletableSegments() []domain.Segment {
	out := make([]domain.Segment, 0, len(e.tmpl.Segments))
	for _, seg := range e.tmpl.Segments {
		if seg.Type != domain.SegmentContent {
			out = append(out, seg)
		}
	}
	return out
}

func (e *Editor) SetName(name string) {
	e.tmpl.Name = strings.TrimSpace(name)
	e.dirty = true
}

func (e *Editor) SetShow(showID string) {
	e.tmpl.ShowID = strings.TrimSpace(showID)
	e.dirty = true
}

func (e *Editor) SetActive(active bool) {
	e.tmpl.IsActive = active
	e.dirty = true
}

// SetDefaultVoices updates the fallback voice references used when a segment
// omits its own. Empty strings clear a default back to null.
func (e *Editor) SetDefaultVoices(elevenLabsID, internID string) {
	e.tmpl.DefaultElevenLabsVoiceID = optionalString(elevenLabsID)
	e.tmpl.DefaultInternVoiceID = optionalString(internID)
	e.dirty = true
}

func (e *Editor) SetAISettings(ai domain.AISettings) {
	e.tmpl.AI = ai
	e.dirty = true
}

// AddSegment inserts a new segment of the given type at its type-appropriate
// position: intros in front of the content slot, outros at the end,
// commercials right after the content slot. At most one content segment may
// exist; a second request leaves the list untouched.
func (e *Editor) AddSegment(segmentType string) (domain.Segment, error) {
	seg := domain.Segment{
		ID:     uuid.NewString(),
		Type:   segmentType,
		Source: domain.StaticSource(""),
	}

	contentIdx := domain.ContentIndex(e.tmpl.Segments)

	var insertAt int
	switch segmentType {
	case domain.SegmentContent:
		if contentIdx >= 0 {
			return domain.Segment{}, ErrContentSegmentExists
		}
		insertAt = lastIntroIndex(e.tmpl.Segments) + 1
	case domain.SegmentIntro:
		if contentIdx >= 0 {
			insertAt = contentIdx
		} else {
			insertAt = 0
		}
	case domain.SegmentOutro:
		insertAt = len(e.tmpl.Segments)
	case domain.SegmentCommercial:
		if contentIdx >= 0 {
			insertAt = contentIdx + 1
		} else {
			insertAt = len(e.tmpl.Segments)
		}
	default:
		return domain.Segment{}, fmt.Errorf("%w: %q", ErrUnknownSegmentType, segmentType)
	}

	e.tmpl.Segments = append(e.tmpl.Segments, domain.Segment{})
	copy(e.tmpl.Segments[insertAt+1:], e.tmpl.Segments[insertAt:])
	e.tmpl.Segments[insertAt] = seg
	e.dirty = true
	return seg, nil
}

// DeleteSegment removes the segment with the given id. Removing the content
// segment is refused; the UI never offers it, this guard backs that up.
func (e *Editor) DeleteSegment(id string) error {
	idx := e.segmentIndex(id)
	if idx < 0 {
		return ErrSegmentNotFound
	}
	if e.tmpl.Segments[idx].Type == domain.SegmentContent {
		return ErrContentSegmentLocked
	}

	e.tmpl.Segments = append(e.tmpl.Segments[:idx], e.tmpl.Segments[idx+1:]...)
	e.dirty = true
	return nil
}

// MoveSegment relocates the segment at from to to. A move that would place an
// intro after the content slot, an outro before it, or a commercial outside
// the intro/outro envelope is rejected and the original order kept; the
// return value reports whether the move was applied.
func (e *Editor) MoveSegment(from, to int) bool {
	if from < 0 || from >= len(e.tmpl.Segments) || to < 0 || to >= len(e.tmpl.Segments) {
		return false
	}
	if from == to {
		return true
	}

	moved := make([]domain.Segment, len(e.tmpl.Segments))
	copy(moved, e.tmpl.Segments)
	seg := moved[from]
	moved = append(moved[:from], moved[from+1:]...)
	moved = append(moved, domain.Segment{})
	copy(moved[to+1:], moved[to:])
	moved[to] = seg

	if !orderValid(moved) {
		return false
	}

	e.tmpl.Segments = moved
	e.dirty = true
	return true
}

// SetStaticSource points a segment at an uploaded media file, clearing any
// speech fields left over from a previous tts source.
func (e *Editor) SetStaticSource(id, filename string) error {
	idx := e.segmentIndex(id)
	if idx < 0 {
		return ErrSegmentNotFound
	}

	e.tmpl.Segments[idx].Source = domain.StaticSource(strings.TrimSpace(filename))
	e.dirty = true
	return nil
}

// SetTTSSource switches a segment to per-episode generated speech, clearing
// any filename left over from a previous static source. Commercials never
// carry generated speech.
func (e *Editor) SetTTSSource(id, prompt, voiceID string) error {
	idx := e.segmentIndex(id)
	if idx < 0 {
		return ErrSegmentNotFound
	}
	if e.tmpl.Segments[idx].Type == domain.SegmentCommercial {
		return ErrTTSNotSupported
	}

	e.tmpl.Segments[idx].Source = domain.TTSSource(strings.TrimSpace(prompt), strings.TrimSpace(voiceID))
	e.dirty = true
	return nil
}

// SetSpeakingRate adjusts the speech speed of a tts segment.
func (e *Editor) SetSpeakingRate(id string, rate float64) error {
	idx := e.segmentIndex(id)
	if idx < 0 {
		return ErrSegmentNotFound
	}
	if e.tmpl.Segments[idx].Source.Type != domain.SourceTTS {
		return ErrNotTTSSegment
	}

	e.tmpl.Segments[idx].Source.SpeakingRate = rate
	e.dirty = true
	return nil
}

// AddMusicRule appends an overlay rule with working defaults: covering the
// content segment, no offsets, short fades, loudness level 4.
func (e *Editor) AddMusicRule() domain.MusicRule {
	rule := domain.MusicRule{
		ID:       uuid.NewString(),
		ApplyTo:  []string{domain.SegmentContent},
		FadeInS:  defaultFadeSeconds,
		FadeOutS: defaultFadeSeconds,
		VolumeDB: volume.LevelToDB(volume.DefaultLevel),
	}
	e.tmpl.MusicRules = append(e.tmpl.MusicRules, rule)
	e.dirty = true
	return cloneRule(rule)
}

func (e *Editor) RemoveMusicRule(index int) error {
	if index < 0 || index >= len(e.tmpl.MusicRules) {
		return ErrRuleNotFound
	}
	e.tmpl.MusicRules = append(e.tmpl.MusicRules[:index], e.tmpl.MusicRules[index+1:]...)
	e.dirty = true
	return nil
}

// SetMusicFile binds a rule to an uploaded music file. Any catalog asset
// reference is cleared; the two sources are mutually exclusive.
func (e *Editor) SetMusicFile(index int, filename string) error {
	if index < 0 || index >= len(e.tmpl.MusicRules) {
		return ErrRuleNotFound
	}
	e.tmpl.MusicRules[index].MusicFilename = strings.TrimSpace(filename)
	e.tmpl.MusicRules[index].MusicAssetID = ""
	e.dirty = true
	return nil
}

// SetMusicAsset binds a rule to a shared catalog asset, clearing any uploaded
// file reference.
func (e *Editor) SetMusicAsset(index int, assetID string) error {
	if index < 0 || index >= len(e.tmpl.MusicRules) {
		return ErrRuleNotFound
	}
	e.tmpl.MusicRules[index].MusicAssetID = strings.TrimSpace(assetID)
	e.tmpl.MusicRules[index].MusicFilename = ""
	e.dirty = true
	return nil
}

// SetMusicVolumeLevel stores the loudness for a rule. The level is clamped to
// 1-11 and persisted as dB gain; the level is recomputed from dB on read.
func (e *Editor) SetMusicVolumeLevel(index int, level float64) error {
	if index < 0 || index >= len(e.tmpl.MusicRules) {
		return ErrRuleNotFound
	}
	e.tmpl.MusicRules[index].VolumeDB = volume.LevelToDB(level)
	e.dirty = true
	return nil
}

// SetMusicOffsets sets the start/end offsets in seconds relative to the
// covered segment's boundaries. Negative values start earlier or end later.
func (e *Editor) SetMusicOffsets(index int, startS, endS float64) error {
	if index < 0 || index >= len(e.tmpl.MusicRules) {
		return ErrRuleNotFound
	}
	e.tmpl.MusicRules[index].StartOffsetS = startS
	e.tmpl.MusicRules[index].EndOffsetS = endS
	e.dirty = true
	return nil
}

// SetMusicFades sets the fade durations for a rule. Fades cannot be negative.
func (e *Editor) SetMusicFades(index int, fadeInS, fadeOutS float64) error {
	if index < 0 || index >= len(e.tmpl.MusicRules) {
		return ErrRuleNotFound
	}
	if fadeInS < 0 || fadeOutS < 0 {
		return ErrNegativeSeconds
	}
	e.tmpl.MusicRules[index].FadeInS = fadeInS
	e.tmpl.MusicRules[index].FadeOutS = fadeOutS
	e.dirty = true
	return nil
}

// SetMusicApplyTo replaces the set of segment types a rule overlays.
func (e *Editor) SetMusicApplyTo(index int, segmentTypes []string) error {
	if index < 0 || index >= len(e.tmpl.MusicRules) {
		return ErrRuleNotFound
	}
	cleaned := make([]string, 0, len(segmentTypes))
	for _, st := range segmentTypes {
		switch st {
		case domain.SegmentIntro, domain.SegmentContent, domain.SegmentOutro, domain.SegmentCommercial:
			cleaned = append(cleaned, st)
		default:
			return fmt.Errorf("%w: %q", ErrUnknownSegmentType, st)
		}
	}
	e.tmpl.MusicRules[index].ApplyTo = cleaned
	e.dirty = true
	return nil
}

// SetIntroContentOverlap stores how many seconds the content segment starts
// before the intros finish. The overlap is kept internally as a negative
// start offset; callers always deal in non-negative seconds.
func (e *Editor) SetIntroContentOverlap(seconds float64) error {
	if seconds < 0 {
		return ErrNegativeSeconds
	}
	e.tmpl.Timing.ContentStartOffsetS = -seconds
	e.dirty = true
	return nil
}

// SetContentOutroOverlap is the symmetric operation for the content to outro
// boundary.
func (e *Editor) SetContentOutroOverlap(seconds float64) error {
	if seconds < 0 {
		return ErrNegativeSeconds
	}
	e.tmpl.Timing.OutroStartOffsetS = -seconds
	e.dirty = true
	return nil
}

// IntroContentOverlap returns the overlap as non-negative seconds.
func (e *Editor) IntroContentOverlap() float64 {
	return -e.tmpl.Timing.ContentStartOffsetS
}

// ContentOutroOverlap returns the overlap as non-negative seconds.
func (e *Editor) ContentOutroOverlap() float64 {
	return -e.tmpl.Timing.OutroStartOffsetS
}

// Validate runs the save-time checks: a name, an owning show, segment order,
// and every music rule bound to an audio source. Sourceless rules are
// reported by position rather than silently dropped so the caller can prompt
// for a source.
func (e *Editor) Validate() error {
	if e.tmpl.Name == "" {
		return ErrMissingName
	}
	if e.tmpl.ShowID == "" {
		return ErrNoShowSelected
	}
	if !orderValid(e.tmpl.Segments) {
		return ErrOrderingViolated
	}

	var incomplete []int
	for i, rule := range e.tmpl.MusicRules {
		if !rule.HasSource() {
			incomplete = append(incomplete, i+1)
		}
	}
	if len(incomplete) > 0 {
		return fmt.Errorf("%w: rule(s) %v", ErrRuleMissingSource, incomplete)
	}
	return nil
}

// NormalizedTemplate returns the aggregate in its persistence shape: the
// content segment always serializes as an empty static source (its audio is
// supplied per episode) and stale cross-type source fields are cleared.
func (e *Editor) NormalizedTemplate() domain.Template {
	tmpl := cloneTemplate(e.tmpl)
	for i, seg := range tmpl.Segments {
		switch {
		case seg.Type == domain.SegmentContent:
			tmpl.Segments[i].Source = domain.StaticSource("")
		case seg.Source.Type == domain.SourceStatic:
			tmpl.Segments[i].Source = domain.StaticSource(seg.Source.Filename)
		case seg.Source.Type == domain.SourceTTS:
			src := seg.Source
			src.Filename = ""
			tmpl.Segments[i].Source = src
		}
	}
	return tmpl
}

// MarkSaved records a successful persist: the assigned id sticks and the
// session is clean again.
func (e *Editor) MarkSaved(tmpl domain.Template) {
	e.tmpl = cloneTemplate(tmpl)
	e.dirty = false
}

func (e *Editor) segmentIndex(id string) int {
	for i, seg := range e.tmpl.Segments {
		if seg.ID == id {
			return i
		}
	}
	return -1
}

func lastIntroIndex(segments []domain.Segment) int {
	last := -1
	for i, seg := range segments {
		if seg.Type == domain.SegmentIntro {
			last = i
		}
	}
	return last
}

// orderValid checks the placement invariant: intros strictly before the
// content slot, outros strictly after it, commercials anywhere in between.
func orderValid(segments []domain.Segment) bool {
	contentSeen := false
	rankSeen := 0
	for _, seg := range segments {
		var rank int
		switch seg.Type {
		case domain.SegmentIntro:
			rank = 0
		case domain.SegmentContent:
			if contentSeen {
				return false
			}
			contentSeen = true
			rank = 1
		case domain.SegmentCommercial:
			rank = 1
		case domain.SegmentOutro:
			rank = 2
		default:
			return false
		}
		if rank < rankSeen {
			return false
		}
		rankSeen = rank
	}
	return true
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cloneTemplate(tmpl domain.Template) domain.Template {
	out := tmpl
	out.Segments = make([]domain.Segment, len(tmpl.Segments))
	copy(out.Segments, tmpl.Segments)
	out.MusicRules = make([]domain.MusicRule, len(tmpl.MusicRules))
	for i, rule := range tmpl.MusicRules {
		out.MusicRules[i] = cloneRule(rule)
	}
	if tmpl.DefaultElevenLabsVoiceID != nil {
		v := *tmpl.DefaultElevenLabsVoiceID
		out.DefaultElevenLabsVoiceID = &v
	}
	if tmpl.DefaultInternVoiceID != nil {
		v := *tmpl.DefaultInternVoiceID
		out.DefaultInternVoiceID = &v
	}
	return out
}

func cloneRule(rule domain.MusicRule) domain.MusicRule {
	out := rule
	out.ApplyTo = make([]string, len(rule.ApplyTo))
	copy(out.ApplyTo, rule.ApplyTo)
	return out
}
