// Package voices looks up text-to-speech voices from the ElevenLabs-style
// catalog API.
package voices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"podforge/internal/domain"
)

// Client interacts with the voice catalog API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a client using the provided HTTP client. The baseURL can
// be overridden for testing; if empty the public API endpoint is used.
func NewClient(httpClient *http.Client, baseURL, apiKey string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.elevenlabs.io/v1"
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
	}
}

// List returns all voices available to the configured account.
func (c *Client) List(ctx context.Context) ([]domain.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list voices failed: %s", resp.Status)
	}

	var payload voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode voices response: %w", err)
	}

	voices := make([]domain.Voice, 0, len(payload.Voices))
	for _, item := range payload.Voices {
		voices = append(voices, domain.Voice{
			ID:       item.VoiceID,
			Name:     item.Name,
			Category: item.Category,
		})
	}
	return voices, nil
}

// Resolve retrieves a single voice by its id, verifying it still exists in
// the catalog.
func (c *Client) Resolve(ctx context.Context, voiceID string) (domain.Voice, error) {
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		return domain.Voice{}, fmt.Errorf("voice id cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices/"+voiceID, nil)
	if err != nil {
		return domain.Voice{}, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Voice{}, fmt.Errorf("resolve voice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.Voice{}, fmt.Errorf("voice %s not found", voiceID)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Voice{}, fmt.Errorf("resolve voice failed: %s", resp.Status)
	}

	var item voiceResult
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return domain.Voice{}, fmt.Errorf("decode voice response: %w", err)
	}

	return domain.Voice{
		ID:       item.VoiceID,
		Name:     item.Name,
		Category: item.Category,
	}, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("xi-api-key", c.apiKey)
	}
}

type voicesResponse struct {
	Voices []voiceResult `json:"voices"`
}

type voiceResult struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}
