package domain

import (
	"time"

	"podforge/internal/volume"
)

const (
	SegmentIntro      = "intro"
	SegmentContent    = "content"
	SegmentOutro      = "outro"
	SegmentCommercial = "commercial"
)

const (
	SourceStatic = "static"
	SourceTTS    = "tts"
)

const (
	EpisodeStateDraft    = "DRAFT"
	EpisodeStateReady    = "READY"
	EpisodeStateExported = "EXPORTED"
)

const (
	AssetCategorySegment = "segment"
	AssetCategoryMusic   = "music"
	AssetCategoryContent = "content"
)

// Segment is one ordered slot in a template's playback timeline. List
// position is playback order.
type Segment struct {
	ID     string `json:"id"`
	Type   string `json:"segment_type"`
	Source Source `json:"source"`
}

// MusicRule overlays a music asset on one or more segment types. VolumeDB is
// the source of truth for loudness; the 1-11 level is always derived from it.
type MusicRule struct {
	ID            string   `json:"id"`
	ApplyTo       []string `json:"apply_to_segments"`
	MusicFilename string   `json:"music_filename,omitempty"`
	MusicAssetID  string   `json:"music_asset_id,omitempty"`
	StartOffsetS  float64  `json:"start_offset_s"`
	EndOffsetS    float64  `json:"end_offset_s"`
	FadeInS       float64  `json:"fade_in_s"`
	FadeOutS      float64  `json:"fade_out_s"`
	VolumeDB      float64  `json:"volume_db"`
}

// HasSource reports whether the rule references either an uploaded file or a
// catalog asset. A rule without a source is incomplete and must not reach the
// rendering engine.
func (r MusicRule) HasSource() bool {
	return r.MusicFilename != "" || r.MusicAssetID != ""
}

// Level returns the user-facing loudness level derived from the stored gain.
func (r MusicRule) Level() float64 {
	return volume.DBToLevel(r.VolumeDB)
}

// Timing holds crossfade overlaps as negative start offsets. Zero means the
// segments play back to back.
type Timing struct {
	ContentStartOffsetS float64 `json:"content_start_offset_s"`
	OutroStartOffsetS   float64 `json:"outro_start_offset_s"`
}

// AISettings carries generation preferences for episode metadata. The values
// are opaque to podforge and handed to the assembly engine unchanged.
type AISettings struct {
	TitleInstructions       string `json:"title_instructions,omitempty"`
	DescriptionInstructions string `json:"description_instructions,omitempty"`
	TagInstructions         string `json:"tag_instructions,omitempty"`
	AutoFillTitle           bool   `json:"auto_fill_title"`
	AutoFillDescription     bool   `json:"auto_fill_description"`
	AutoFillTags            bool   `json:"auto_fill_tags"`
}

// Template is the persisted episode-assembly blueprint owned by a show.
// The default voice ids intentionally serialize as explicit null when unset,
// so consumers can distinguish a cleared value from a missing key.
type Template struct {
	ID                       string      `json:"id"`
	Name                     string      `json:"name"`
	ShowID                   string      `json:"podcast_id"`
	IsActive                 bool        `json:"is_active"`
	Segments                 []Segment   `json:"segments"`
	MusicRules               []MusicRule `json:"background_music_rules"`
	Timing                   Timing      `json:"timing"`
	AI                       AISettings  `json:"ai_settings"`
	DefaultElevenLabsVoiceID *string     `json:"default_elevenlabs_voice_id"`
	DefaultInternVoiceID     *string     `json:"default_intern_voice_id"`
	CreatedAt                time.Time   `json:"-"`
	UpdatedAt                time.Time   `json:"-"`
}

// ContentIndex returns the position of the content segment, or -1.
func (t Template) ContentIndex() int {
	return ContentIndex(t.Segments)
}

// ContentIndex returns the position of the content segment in a slice, or -1.
func ContentIndex(segments []Segment) int {
	for i, seg := range segments {
		if seg.Type == SegmentContent {
			return i
		}
	}
	return -1
}

type TemplateSummary struct {
	ID           string
	Name         string
	ShowID       string
	ShowTitle    string
	IsActive     bool
	SegmentCount int
	EpisodeCount int
}

type Show struct {
	ID          string
	Title       string
	Description string
	CreatedAt   time.Time
}

type ShowSummary struct {
	ID            string
	Title         string
	TemplateCount int
	EpisodeCount  int
}

// MediaAsset references an ingested audio file. Podforge never owns file
// bytes beyond the media root copy; templates refer to assets by filename.
type MediaAsset struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	FriendlyName string    `json:"friendly_name,omitempty"`
	Category     string    `json:"category"`
	ContentType  string    `json:"content_type"`
	FilePath     string    `json:"-"`
	DurationS    float64   `json:"duration_s,omitempty"`
	SizeBytes    int64     `json:"-"`
	Hash         string    `json:"-"`
	AddedAt      time.Time `json:"-"`
}

// Episode is a draft produced from a template plus per-episode content audio.
type Episode struct {
	ID              string
	ShowID          string
	ShowTitle       string
	TemplateID      string
	TemplateName    string
	Title           string
	State           string
	ContentFilename string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Voice is a display entry resolved from the voice catalog service.
type Voice struct {
	ID       string
	Name     string
	Category string
}
