package repl

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"podforge/internal/app"
	"podforge/internal/theme"
)

type model struct {
	ctx      context.Context
	app      *app.App
	styles   theme.Theme
	input    textinput.Model
	history  []string
	messages []string
	quitting bool
}

func newModel(ctx context.Context, application *app.App, styles theme.Theme) model {
	ti := textinput.New()
	ti.Placeholder = "help"
	ti.Focus()
	ti.Prompt = "podforge> "
	ti.CharLimit = 512
	ti.Width = 80

	return model{
		ctx:     ctx,
		app:     application,
		styles:  styles,
		input:   ti,
		history: make([]string, 0, 32),
		messages: []string{
			styles.Message.Render("Podforge studio ready. Type 'help' for assistance."),
		},
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.handleSubmit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder
	for _, message := range m.messages {
		b.WriteString(message)
		b.WriteString("\n")
	}
	if label := m.app.SessionLabel(); label != "" {
		b.WriteString(m.styles.Dirty.Render("editing: " + label))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	if !m.quitting {
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) handleSubmit() (tea.Model, tea.Cmd) {
	command := strings.TrimSpace(m.input.Value())
	if command != "" {
		m.history = append(m.history, command)
	}
	m.input.SetValue("")

	if command == "" {
		return m, nil
	}

	result, err := m.app.Execute(m.ctx, command)
	if err != nil {
		m.messages = append(m.messages, m.styles.Error.Render(err.Error()))
		return m, nil
	}

	if rendered := m.renderResult(result); rendered != "" {
		m.messages = append(m.messages, rendered)
	}

	if result.Quit {
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m model) renderResult(result app.CommandResult) string {
	var sections []string
	if result.Message != "" {
		sections = append(sections, result.Message)
	}
	if len(result.ShowResults) > 0 {
		sections = append(sections, m.renderShows(result))
	}
	if len(result.TemplateResults) > 0 {
		sections = append(sections, m.renderTemplates(result))
	}
	if len(result.SegmentRows) > 0 {
		sections = append(sections, m.renderSegments(result))
	}
	if len(result.MusicRuleRows) > 0 {
		sections = append(sections, m.renderMusicRules(result))
	}
	if len(result.MediaResults) > 0 {
		sections = append(sections, m.renderMedia(result))
	}
	if len(result.EpisodeResults) > 0 {
		sections = append(sections, m.renderEpisodes(result))
	}
	if len(result.VoiceResults) > 0 {
		sections = append(sections, m.renderVoices(result))
	}
	return strings.Join(sections, "\n")
}

func (m model) renderShows(result app.CommandResult) string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("Shows"))
	for _, show := range result.ShowResults {
		b.WriteString("\n")
		b.WriteString(m.styles.Normal.Render(show.Title))
		b.WriteString(m.styles.Dim.Render(fmt.Sprintf("  %s  %d templates, %d episodes",
			show.ID, show.TemplateCount, show.EpisodeCount)))
	}
	return b.String()
}

func (m model) renderTemplates(result app.CommandResult) string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("Templates"))
	for _, tmpl := range result.TemplateResults {
		b.WriteString("\n")
		state := m.styles.Active.Render("active")
		if !tmpl.IsActive {
			state = m.styles.Inactive.Render("inactive")
		}
		b.WriteString(m.styles.Normal.Render(tmpl.Name))
		b.WriteString("  ")
		b.WriteString(state)
		b.WriteString(m.styles.Dim.Render(fmt.Sprintf("  %s  show %s, %d segments, %d episodes",
			tmpl.ID, tmpl.ShowTitle, tmpl.SegmentCount, tmpl.EpisodeCount)))
	}
	return b.String()
}

func (m model) renderSegments(result app.CommandResult) string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("Segments"))
	for _, row := range result.SegmentRows {
		b.WriteString("\n")
		b.WriteString(m.styles.Cursor.Render(fmt.Sprintf("%2d ", row.Index)))
		b.WriteString(m.styles.Segment.Render(fmt.Sprintf("%-10s", row.Type)))
		b.WriteString(m.styles.Normal.Render(row.Source))
		b.WriteString(m.styles.Dim.Render("  " + row.ID))
	}
	return b.String()
}

func (m model) renderMusicRules(result app.CommandResult) string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("Music rules"))
	for _, row := range result.MusicRuleRows {
		b.WriteString("\n")
		b.WriteString(m.styles.Cursor.Render(fmt.Sprintf("%2d ", row.Index)))
		b.WriteString(m.styles.Music.Render(row.Source))
		b.WriteString(m.styles.Dim.Render(fmt.Sprintf("  on %s  level %.1f (%.2f dB)  fades %.1fs/%.1fs",
			strings.Join(row.ApplyTo, ","), row.Level, row.VolumeDB, row.FadeInS, row.FadeOutS)))
	}
	return b.String()
}

func (m model) renderMedia(result app.CommandResult) string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("Media library"))
	limit := m.app.Config().MaxListRows
	for i, asset := range result.MediaResults {
		if limit > 0 && i >= limit {
			b.WriteString("\n")
			b.WriteString(m.styles.Dim.Render(fmt.Sprintf("… and %d more", len(result.MediaResults)-limit)))
			break
		}
		b.WriteString("\n")
		name := asset.Filename
		if asset.FriendlyName != "" {
			name += " (" + asset.FriendlyName + ")"
		}
		b.WriteString(m.styles.Normal.Render(name))
		b.WriteString(m.styles.Dim.Render(fmt.Sprintf("  %s  %s", asset.Category, asset.ID)))
	}
	return b.String()
}

func (m model) renderEpisodes(result app.CommandResult) string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("Episodes"))
	for _, episode := range result.EpisodeResults {
		b.WriteString("\n")
		b.WriteString(m.styles.Normal.Render(episode.Title))
		b.WriteString("  ")
		b.WriteString(m.styles.State.Render(episode.State))
		b.WriteString(m.styles.Dim.Render(fmt.Sprintf("  %s  %s / %s",
			episode.ID, episode.ShowTitle, episode.TemplateName)))
	}
	return b.String()
}

func (m model) renderVoices(result app.CommandResult) string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("Voices"))
	for _, voice := range result.VoiceResults {
		b.WriteString("\n")
		b.WriteString(m.styles.Normal.Render(voice.Name))
		b.WriteString(m.styles.Dim.Render(fmt.Sprintf("  %s  %s", voice.ID, voice.Category)))
	}
	return b.String()
}
