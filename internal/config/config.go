package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"gopkg.in/yaml.v3"

	"podforge/internal/theme"
)

// Config represents the persisted application configuration.
type Config struct {
	MediaRoot             string `yaml:"media_root"`
	TmpDir                string `yaml:"tmp_dir"`
	VoiceAPIBaseURL       string `yaml:"voice_api_base_url"`
	VoiceAPIKey           string `yaml:"voice_api_key,omitempty"`
	ColorTheme            string `yaml:"color_theme"`
	MaxListRows           int    `yaml:"max_list_rows"`
	TemplateNameMaxLength int    `yaml:"template_name_max_length"`
	ShowNameMaxLength     int    `yaml:"show_name_max_length"`
}

// Defaults returns the baseline configuration used on first run.
func Defaults() Config {
	home, _ := os.UserHomeDir()
	mediaRoot := filepath.Join(home, "Podforge", "media")
	return Config{
		MediaRoot:             mediaRoot,
		TmpDir:                os.TempDir(),
		VoiceAPIBaseURL:       "https://api.elevenlabs.io/v1",
		ColorTheme:            theme.Default,
		MaxListRows:           20,
		TemplateNameMaxLength: 40,
		ShowNameMaxLength:     24,
	}
}

// Ensure loads configuration from the provided path, prompting the user to
// create one if it does not yet exist.
func Ensure(ctx context.Context, path string) (Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg = Defaults()
	if err := bootstrap(ctx, &cfg); err != nil {
		return Config{}, err
	}

	if err := Save(path, cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load reads configuration from disk.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if strings.TrimSpace(cfg.ColorTheme) == "" {
		cfg.ColorTheme = theme.Default
	}
	if cfg.MaxListRows <= 0 {
		cfg.MaxListRows = Defaults().MaxListRows
	}
	if strings.TrimSpace(cfg.VoiceAPIBaseURL) == "" {
		cfg.VoiceAPIBaseURL = Defaults().VoiceAPIBaseURL
	}
	return cfg, nil
}

// Save writes configuration back to disk, ensuring directory permissions are restrictive.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	temp := path + ".tmp"
	if err := os.WriteFile(temp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(temp, path)
}

func bootstrap(ctx context.Context, cfg *Config) error {
	if fromEnv := strings.TrimSpace(os.Getenv("PODFORGE_MEDIA_ROOT")); fromEnv != "" {
		resolved, err := expandPath(fromEnv)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(resolved, 0o755); err != nil {
			return fmt.Errorf("create media directory: %w", err)
		}
		cfg.MediaRoot = resolved
		return nil
	}

	prompt := &survey.Input{
		Message: "Choose a media library directory",
		Default: cfg.MediaRoot,
	}

	var answer string
	if err := survey.AskOne(prompt, &answer, survey.WithValidator(survey.Required)); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return fmt.Errorf("initialisation interrupted")
		}
		return err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return fmt.Errorf("media directory cannot be empty")
	}

	resolved, err := expandPath(answer)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return fmt.Errorf("create media directory: %w", err)
	}

	cfg.MediaRoot = resolved
	return nil
}

// EditableKeys returns the ordered list of configuration keys exposed via the
// interactive editor.
func EditableKeys() []string {
	return []string{
		"media_root",
		"tmp_dir",
		"voice_api_base_url",
		"voice_api_key",
		"color_theme",
		"max_list_rows",
	}
}

// EditInteractive opens an interactive survey session allowing the user to
// update configuration values.
func EditInteractive(ctx context.Context, cfg Config) (Config, error) {
	questions := []*survey.Question{
		{
			Name: "media_root",
			Prompt: &survey.Input{
				Message: "Media library directory",
				Default: cfg.MediaRoot,
			},
			Validate: survey.Required,
		},
		{
			Name: "tmp_dir",
			Prompt: &survey.Input{
				Message: "Temporary directory",
				Default: cfg.TmpDir,
			},
			Validate: survey.Required,
		},
		{
			Name: "voice_api_base_url",
			Prompt: &survey.Input{
				Message: "Voice catalog API base URL",
				Default: cfg.VoiceAPIBaseURL,
			},
			Validate: survey.Required,
		},
		{
			Name: "voice_api_key",
			Prompt: &survey.Password{
				Message: "Voice catalog API key (optional)",
			},
		},
		{
			Name: "color_theme",
			Prompt: &survey.Select{
				Message: "Color theme",
				Options: theme.Names(),
				Default: cfg.ColorTheme,
			},
		},
		{
			Name: "max_list_rows",
			Prompt: &survey.Input{
				Message: "Maximum rows in list views",
				Default: fmt.Sprintf("%d", cfg.MaxListRows),
			},
			Validate: validatePositiveInt,
		},
	}

	answers := map[string]interface{}{}
	select {
	case <-ctx.Done():
		return Config{}, ctx.Err()
	default:
	}

	if err := survey.Ask(questions, &answers); err != nil {
		return Config{}, err
	}

	cfg.MediaRoot = strings.TrimSpace(answers["media_root"].(string))
	cfg.TmpDir = strings.TrimSpace(answers["tmp_dir"].(string))
	cfg.VoiceAPIBaseURL = strings.TrimSpace(answers["voice_api_base_url"].(string))
	if key, ok := answers["voice_api_key"].(string); ok && strings.TrimSpace(key) != "" {
		cfg.VoiceAPIKey = strings.TrimSpace(key)
	}
	if themeName, ok := answers["color_theme"].(string); ok {
		cfg.ColorTheme = themeName
	}
	cfg.MaxListRows = toInt(answers["max_list_rows"])

	return cfg, nil
}

func validatePositiveInt(ans interface{}) error {
	v := strings.TrimSpace(ans.(string))
	if v == "" {
		return errors.New("value required")
	}
	i, err := parseInt(v)
	if err != nil {
		return err
	}
	if i <= 0 {
		return errors.New("must be greater than zero")
	}
	return nil
}

func parseInt(value string) (int, error) {
	var i int
	_, err := fmt.Sscanf(value, "%d", &i)
	if err != nil {
		return 0, errors.New("must be a number")
	}
	return i, nil
}

func toInt(value interface{}) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case string:
		i, _ := parseInt(v)
		return i
	default:
		return 0
	}
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
