// Package plan builds the JSON render plan handed to the external assembly
// engine. The plan is a self-contained snapshot: template structure, music
// overlays, timing and the episode's content audio, so the engine needs no
// database access.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"podforge/internal/domain"
)

var (
	ErrEpisodeNotReady   = errors.New("episode is not ready for rendering")
	ErrNoContentAudio    = errors.New("episode has no content audio")
	ErrRuleWithoutSource = errors.New("music rule has no audio source")
	ErrTemplateMismatch  = errors.New("episode does not belong to this template")
)

// RenderPlan is the wire format consumed by the assembly engine.
type RenderPlan struct {
	Version  int          `json:"version"`
	Episode  EpisodeInfo  `json:"episode"`
	Template TemplateInfo `json:"template"`
}

type EpisodeInfo struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	ShowID          string `json:"podcast_id"`
	ContentFilename string `json:"content_filename"`
}

type TemplateInfo struct {
	ID                       string             `json:"id"`
	Name                     string             `json:"name"`
	Segments                 []domain.Segment   `json:"segments"`
	MusicRules               []domain.MusicRule `json:"background_music_rules"`
	Timing                   domain.Timing      `json:"timing"`
	AI                       domain.AISettings  `json:"ai_settings"`
	DefaultElevenLabsVoiceID *string            `json:"default_elevenlabs_voice_id"`
	DefaultInternVoiceID     *string            `json:"default_intern_voice_id"`
}

// currentVersion is bumped whenever the assembly engine needs a migration.
const currentVersion = 1

// Build assembles a render plan from a stored template and a ready episode.
// Incomplete music rules and missing content audio are rejected here, as the
// last gate before the plan leaves the application.
func Build(tmpl domain.Template, episode domain.Episode) (RenderPlan, error) {
	if episode.TemplateID != tmpl.ID {
		return RenderPlan{}, ErrTemplateMismatch
	}
	if episode.State != domain.EpisodeStateReady && episode.State != domain.EpisodeStateExported {
		return RenderPlan{}, fmt.Errorf("%w: state is %s", ErrEpisodeNotReady, episode.State)
	}
	if episode.ContentFilename == "" {
		return RenderPlan{}, ErrNoContentAudio
	}
	for i, rule := range tmpl.MusicRules {
		if !rule.HasSource() {
			return RenderPlan{}, fmt.Errorf("%w: rule %d", ErrRuleWithoutSource, i+1)
		}
	}

	return RenderPlan{
		Version: currentVersion,
		Episode: EpisodeInfo{
			ID:              episode.ID,
			Title:           episode.Title,
			ShowID:          episode.ShowID,
			ContentFilename: episode.ContentFilename,
		},
		Template: TemplateInfo{
			ID:                       tmpl.ID,
			Name:                     tmpl.Name,
			Segments:                 tmpl.Segments,
			MusicRules:               tmpl.MusicRules,
			Timing:                   tmpl.Timing,
			AI:                       tmpl.AI,
			DefaultElevenLabsVoiceID: tmpl.DefaultElevenLabsVoiceID,
			DefaultInternVoiceID:     tmpl.DefaultInternVoiceID,
		},
	}, nil
}

// Export writes the plan as indented JSON.
func Export(w io.Writer, p RenderPlan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode render plan: %w", err)
	}
	return nil
}

// Load parses a previously exported plan.
func Load(r io.Reader) (RenderPlan, error) {
	var p RenderPlan
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return RenderPlan{}, fmt.Errorf("decode render plan: %w", err)
	}
	if p.Version != currentVersion {
		return RenderPlan{}, fmt.Errorf("unsupported render plan version %d", p.Version)
	}
	return p, nil
}
