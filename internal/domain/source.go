package domain

import (
	"encoding/json"
	"fmt"
)

// Source describes where a segment's audio comes from: a pre-uploaded media
// file or a text-to-speech prompt rendered at episode-creation time. The
// Type discriminator decides which fields are meaningful; the custom JSON
// codec keeps the other branch's fields out of the wire shape entirely.
type Source struct {
	Type         string
	Filename     string
	TextPrompt   string
	VoiceID      string
	SpeakingRate float64
}

// StaticSource builds a source backed by an uploaded media file.
func StaticSource(filename string) Source {
	return Source{Type: SourceStatic, Filename: filename}
}

// TTSSource builds a per-episode generated speech source.
func TTSSource(prompt, voiceID string) Source {
	return Source{Type: SourceTTS, TextPrompt: prompt, VoiceID: voiceID}
}

type staticSourceJSON struct {
	SourceType string `json:"source_type"`
	Filename   string `json:"filename"`
}

type ttsSourceJSON struct {
	SourceType   string  `json:"source_type"`
	TextPrompt   string  `json:"text_prompt,omitempty"`
	VoiceID      string  `json:"voice_id,omitempty"`
	SpeakingRate float64 `json:"speaking_rate,omitempty"`
}

func (s Source) MarshalJSON() ([]byte, error) {
	switch s.Type {
	case SourceStatic:
		return json.Marshal(staticSourceJSON{SourceType: SourceStatic, Filename: s.Filename})
	case SourceTTS:
		return json.Marshal(ttsSourceJSON{
			SourceType:   SourceTTS,
			TextPrompt:   s.TextPrompt,
			VoiceID:      s.VoiceID,
			SpeakingRate: s.SpeakingRate,
		})
	default:
		return nil, fmt.Errorf("unknown source type %q", s.Type)
	}
}

func (s *Source) UnmarshalJSON(data []byte) error {
	var probe struct {
		SourceType string `json:"source_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch probe.SourceType {
	case SourceStatic:
		var payload staticSourceJSON
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		*s = StaticSource(payload.Filename)
		return nil
	case SourceTTS:
		var payload ttsSourceJSON
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		*s = Source{
			Type:         SourceTTS,
			TextPrompt:   payload.TextPrompt,
			VoiceID:      payload.VoiceID,
			SpeakingRate: payload.SpeakingRate,
		}
		return nil
	default:
		return fmt.Errorf("unknown source type %q", probe.SourceType)
	}
}
