package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"podforge/internal/config"
	"podforge/internal/domain"
	"podforge/internal/episodes"
	"podforge/internal/media"
	"podforge/internal/plan"
	"podforge/internal/repository"
	"podforge/internal/shows"
	"podforge/internal/templates"
	"podforge/internal/voices"
	"podforge/internal/volume"
)

type commandHandler func(context.Context, []string) (CommandResult, error)

type command struct {
	usage   string
	summary string
	handler commandHandler
}

// CommandResult carries a command's output to the TUI. At most one of the
// list fields is populated; Message covers everything else.
type CommandResult struct {
	Message         string
	Quit            bool
	ShowResults     []domain.ShowSummary
	TemplateResults []domain.TemplateSummary
	SegmentRows     []SegmentRow
	MusicRuleRows   []MusicRuleRow
	MediaResults    []domain.MediaAsset
	EpisodeResults  []domain.Episode
	VoiceResults    []domain.Voice
}

// SegmentRow is a display row for the current session's segment list.
type SegmentRow struct {
	Index  int
	ID     string
	Type   string
	Source string
}

// MusicRuleRow is a display row for the current session's music rules.
type MusicRuleRow struct {
	Index    int
	Source   string
	ApplyTo  []string
	Level    float64
	VolumeDB float64
	FadeInS  float64
	FadeOutS float64
}

type App struct {
	config     config.Config
	configPath string
	db         *sql.DB
	httpClient *http.Client
	voices     *voices.Client
	commands   map[string]*command

	shows     *shows.Service
	templates *templates.Service
	media     *media.Service
	episodes  *episodes.Service

	// session is the template currently being edited, if any.
	session *templates.Editor
}

type Dependencies struct {
	HTTPClient *http.Client
	Voices     *voices.Client
}

func New(cfg config.Config, configPath string, db *sql.DB) *App {
	return NewWithDependencies(cfg, configPath, db, Dependencies{})
}

func NewWithDependencies(cfg config.Config, configPath string, db *sql.DB, deps Dependencies) *App {
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	voicesClient := deps.Voices
	if voicesClient == nil {
		voicesClient = voices.NewClient(httpClient, cfg.VoiceAPIBaseURL, cfg.VoiceAPIKey)
	}

	store := repository.New(db)
	mediaSvc := media.NewService(cfg, store)

	application := &App{
		config:     cfg,
		configPath: configPath,
		db:         db,
		httpClient: httpClient,
		voices:     voicesClient,
		commands:   make(map[string]*command),
		shows:      shows.NewService(store),
		templates:  templates.NewService(store),
		media:      mediaSvc,
		episodes:   episodes.NewService(store, mediaSvc),
	}
	application.registerCommands()
	return application
}

func (a *App) Config() config.Config {
	return a.config
}

func (a *App) CommandNames() []string {
	names := make([]string, 0, len(a.commands))
	for name := range a.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// SessionLabel describes the current editing session for the status line.
// Empty when no template is open.
func (a *App) SessionLabel() string {
	if a.session == nil {
		return ""
	}
	label := a.session.Name()
	if label == "" {
		label = "(unnamed)"
	}
	if a.session.Dirty() {
		label += " *"
	}
	return label
}

func (a *App) Execute(ctx context.Context, input string) (CommandResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return CommandResult{}, nil
	}

	args, err := shellquote.Split(input)
	if err != nil {
		return CommandResult{}, err
	}
	if len(args) == 0 {
		return CommandResult{}, nil
	}

	cmdName := strings.ToLower(args[0])
	cmd, ok := a.commands[cmdName]
	if !ok {
		return CommandResult{Message: fmt.Sprintf("unknown command: %s", args[0])}, nil
	}

	return cmd.handler(ctx, args[1:])
}

func (a *App) registerCommands() {
	a.registerCommand("config", "config [show]", "View or edit application configuration", a.configCommand)
	a.registerCommand("exit", "exit", "Exit the application", a.exitCommand, "quit")
	a.registerCommand("shows", "shows [filter]", "List shows", a.showsCommand)
	a.registerCommand("show", "show add <title> [description] | show remove <id>", "Manage shows", a.showCommand)
	a.registerCommand("templates", "templates [filter]", "List templates", a.templatesCommand, "ls")
	a.registerCommand("template", "template new|open|delete|show|active|voices ...", "Manage templates and the editing session", a.templateCommand, "t")
	a.registerCommand("segment", "segment add|remove|move|file|tts|rate ...", "Edit segments in the open template", a.segmentCommand)
	a.registerCommand("music", "music add|remove|file|asset|volume|offsets|fades|applyto ...", "Edit background music rules", a.musicCommand)
	a.registerCommand("overlap", "overlap intro|outro <seconds>", "Set crossfade overlaps", a.overlapCommand)
	a.registerCommand("save", "save", "Save the open template", a.saveCommand)
	a.registerCommand("media", "media [category] [filter] | media add <path> <category> [name]", "Browse or ingest media", a.mediaCommand, "m")
	a.registerCommand("episodes", "episodes", "List episodes", a.episodesCommand, "e")
	a.registerCommand("episode", "episode new|content|ready ...", "Manage episode drafts", a.episodeCommand)
	a.registerCommand("export", "export <episode_id> <file>", "Export a render plan for the assembly engine", a.exportCommand)
	a.registerCommand("voices", "voices", "List available TTS voices", a.voicesCommand)
	a.registerCommand("help", "help", "List available commands", a.helpCommand, "h", "?")
}

func (a *App) helpCommand(_ context.Context, _ []string) (CommandResult, error) {
	seen := make(map[*command]bool)
	lines := make([]string, 0, len(a.commands))
	for _, name := range a.CommandNames() {
		cmd := a.commands[name]
		if seen[cmd] {
			continue
		}
		seen[cmd] = true
		lines = append(lines, fmt.Sprintf("%-70s %s", cmd.usage, cmd.summary))
	}
	return CommandResult{Message: strings.Join(lines, "\n")}, nil
}

func (a *App) registerCommand(name, usage, summary string, handler commandHandler, aliases ...string) {
	cmd := &command{usage: usage, summary: summary, handler: handler}
	names := append([]string{name}, aliases...)
	for _, alias := range names {
		a.commands[alias] = cmd
	}
}

func (a *App) configCommand(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) == 0 {
		return CommandResult{Message: "Usage: config [show]"}, nil
	}
	switch strings.ToLower(args[0]) {
	case "show":
		data, err := yaml.Marshal(a.config)
		if err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Message: string(data)}, nil
	default:
		return a.editConfig(ctx)
	}
}

func (a *App) editConfig(ctx context.Context) (CommandResult, error) {
	updated, err := config.EditInteractive(ctx, a.config)
	if err != nil {
		return CommandResult{}, err
	}
	if err := config.Save(a.configPath, updated); err != nil {
		return CommandResult{}, err
	}
	a.config = updated
	log.Println("configuration updated")
	return CommandResult{Message: "Configuration saved."}, nil
}

func (a *App) exitCommand(_ context.Context, _ []string) (CommandResult, error) {
	if a.session != nil && a.session.Dirty() {
		return CommandResult{Message: "Unsaved template changes. Run 'save' first, or 'template close discard'."}, nil
	}
	return CommandResult{Quit: true}, nil
}

func (a *App) showsCommand(ctx context.Context, args []string) (CommandResult, error) {
	filter := strings.Join(args, " ")
	summaries, err := a.shows.Summaries(ctx, filter)
	if err != nil {
		return CommandResult{}, err
	}
	if len(summaries) == 0 {
		if filter != "" {
			return CommandResult{Message: fmt.Sprintf("No shows matching '%s'.", filter)}, nil
		}
		return CommandResult{Message: "No shows yet. Add one with 'show add <title>'."}, nil
	}
	return CommandResult{ShowResults: summaries}, nil
}

func (a *App) showCommand(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) == 0 {
		return CommandResult{Message: "Usage: show add <title> [description] | show remove <id>"}, nil
	}

	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 2 {
			return CommandResult{Message: "Usage: show add <title> [description]"}, nil
		}
		description := ""
		if len(args) > 2 {
			description = strings.Join(args[2:], " ")
		}
		show, err := a.shows.Add(ctx, args[1], description)
		if err != nil {
			if errors.Is(err, shows.ErrMissingTitle) {
				return CommandResult{Message: "Show title cannot be empty."}, nil
			}
			return CommandResult{}, err
		}
		return CommandResult{Message: fmt.Sprintf("Added show %s (%s).", show.Title, show.ID)}, nil
	case "remove":
		if len(args) != 2 {
			return CommandResult{Message: "Usage: show remove <id>"}, nil
		}
		if err := a.shows.Remove(ctx, args[1]); err != nil {
			if errors.Is(err, shows.ErrShowNotFound) {
				return CommandResult{Message: "No show found with that ID."}, nil
			}
			return CommandResult{}, err
		}
		return CommandResult{Message: "Show removed."}, nil
	default:
		return CommandResult{Message: fmt.Sprintf("unknown show action: %s", args[0])}, nil
	}
}

func (a *App) templatesCommand(ctx context.Context, args []string) (CommandResult, error) {
	filter := strings.Join(args, " ")
	summaries, err := a.templates.List(ctx, filter)
	if err != nil {
		return CommandResult{}, err
	}
	if len(summaries) == 0 {
		if filter != "" {
			return CommandResult{Message: fmt.Sprintf("No templates matching '%s'.", filter)}, nil
		}
		return CommandResult{Message: "No templates yet. Start one with 'template new <name>'."}, nil
	}
	return CommandResult{TemplateResults: summaries}, nil
}

func (a *App) templateCommand(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) == 0 {
		return CommandResult{Message: "Usage: template new|open|close|delete|show|name|podcast|active|voices ..."}, nil
	}

	switch strings.ToLower(args[0]) {
	case "new":
		if len(args) < 2 {
			return CommandResult{Message: "Usage: template new <name>"}, nil
		}
		if a.session != nil && a.session.Dirty() {
			return CommandResult{Message: "Unsaved template changes. Save or close the current session first."}, nil
		}
		a.session = templates.NewEditor(strings.Join(args[1:], " "))
		return CommandResult{Message: fmt.Sprintf("Editing new template '%s'. Assign a show with 'template podcast <show_id>'.", a.session.Name())}, nil
	case "open":
		if len(args) != 2 {
			return CommandResult{Message: "Usage: template open <id>"}, nil
		}
		if a.session != nil && a.session.Dirty() {
			return CommandResult{Message: "Unsaved template changes. Save or close the current session first."}, nil
		}
		ed, err := a.templates.Open(ctx, args[1])
		if err != nil {
			if errors.Is(err, templates.ErrTemplateNotFound) {
				return CommandResult{Message: "No template found with that ID."}, nil
			}
			return CommandResult{}, err
		}
		a.session = ed
		return CommandResult{Message: fmt.Sprintf("Editing template '%s'.", ed.Name())}, nil
	case "close":
		if a.session == nil {
			return CommandResult{Message: "No template session open."}, nil
		}
		if a.session.Dirty() && (len(args) < 2 || strings.ToLower(args[1]) != "discard") {
			return CommandResult{Message: "Unsaved changes. Use 'template close discard' to drop them."}, nil
		}
		a.session = nil
		return CommandResult{Message: "Template session closed."}, nil
	case "delete":
		if len(args) != 2 {
			return CommandResult{Message: "Usage: template delete <id>"}, nil
		}
		if err := a.templates.Delete(ctx, args[1]); err != nil {
			switch {
			case errors.Is(err, templates.ErrTemplateNotFound):
				return CommandResult{Message: "No template found with that ID."}, nil
			case errors.Is(err, repository.ErrTemplateInUse):
				return CommandResult{Message: fmt.Sprintf("Cannot delete: %v.", err)}, nil
			}
			return CommandResult{}, err
		}
		return CommandResult{Message: "Template deleted."}, nil
	case "show":
		return a.sessionOverview()
	case "name":
		if len(args) < 2 {
			return CommandResult{Message: "Usage: template name <name>"}, nil
		}
		if a.session == nil {
			return CommandResult{Message: "No template session open."}, nil
		}
		a.session.SetName(strings.Join(args[1:], " "))
		return CommandResult{Message: fmt.Sprintf("Template renamed to '%s'.", a.session.Name())}, nil
	case "podcast":
		if len(args) != 2 {
			return CommandResult{Message: "Usage: template podcast <show_id>"}, nil
		}
		if a.session == nil {
			return CommandResult{Message: "No template session open."}, nil
		}
		exists, title, err := a.shows.Exists(ctx, args[1])
		if err != nil {
			return CommandResult{}, err
		}
		if !exists {
			return CommandResult{Message: "No show found with that ID."}, nil
		}
		a.session.SetShow(args[1])
		return CommandResult{Message: fmt.Sprintf("Template assigned to show '%s'.", title)}, nil
	case "active":
		if len(args) != 2 {
			return CommandResult{Message: "Usage: template active on|off"}, nil
		}
		if a.session == nil {
			return CommandResult{Message: "No template session open."}, nil
		}
		switch strings.ToLower(args[1]) {
		case "on":
			a.session.SetActive(true)
			return CommandResult{Message: "Template marked active."}, nil
		case "off":
			a.session.SetActive(false)
			return CommandResult{Message: "Template marked inactive."}, nil
		default:
			return CommandResult{Message: "Usage: template active on|off"}, nil
		}
	case "voices":
		if a.session == nil {
			return CommandResult{Message: "No template session open."}, nil
		}
		elevenID := ""
		internID := ""
		if len(args) > 1 {
			elevenID = args[1]
		}
		if len(args) > 2 {
			internID = args[2]
		}
		if elevenID != "" && elevenID != "-" {
			if _, err := a.voices.Resolve(ctx, elevenID); err != nil {
				return CommandResult{Message: fmt.Sprintf("Voice lookup failed: %v.", err)}, nil
			}
		}
		if elevenID == "-" {
			elevenID = ""
		}
		if internID == "-" {
			internID = ""
		}
		a.session.SetDefaultVoices(elevenID, internID)
		return CommandResult{Message: "Default voices updated."}, nil
	default:
		return CommandResult{Message: fmt.Sprintf("unknown template action: %s", args[0])}, nil
	}
}

func (a *App) sessionOverview() (CommandResult, error) {
	if a.session == nil {
		return CommandResult{Message: "No template session open."}, nil
	}

	segRows := a.segmentRows()
	ruleRows := a.musicRuleRows()

	var header strings.Builder
	fmt.Fprintf(&header, "Template: %s", a.session.Name())
	if a.session.Dirty() {
		header.WriteString(" (unsaved)")
	}
	if showID := a.session.ShowID(); showID != "" {
		fmt.Fprintf(&header, "\nShow: %s", showID)
	} else {
		header.WriteString("\nShow: (none)")
	}
	fmt.Fprintf(&header, "\nOverlap intro/content: %.1fs  content/outro: %.1fs",
		a.session.IntroContentOverlap(), a.session.ContentOutroOverlap())

	return CommandResult{
		Message:       header.String(),
		SegmentRows:   segRows,
		MusicRuleRows: ruleRows,
	}, nil
}

func (a *App) segmentRows() []SegmentRow {
	segs := a.session.Segments()
	rows := make([]SegmentRow, len(segs))
	for i, seg := range segs {
		rows[i] = SegmentRow{
			Index:  i + 1,
			ID:     seg.ID,
			Type:   seg.Type,
			Source: describeSource(seg),
		}
	}
	return rows
}

func (a *App) musicRuleRows() []MusicRuleRow {
	rules := a.session.MusicRules()
	rows := make([]MusicRuleRow, len(rules))
	for i, rule := range rules {
		source := rule.MusicFilename
		if source == "" && rule.MusicAssetID != "" {
			source = "asset:" + rule.MusicAssetID
		}
		if source == "" {
			source = "(no source)"
		}
		rows[i] = MusicRuleRow{
			Index:    i + 1,
			Source:   source,
			ApplyTo:  rule.ApplyTo,
			Level:    rule.Level(),
			VolumeDB: rule.VolumeDB,
			FadeInS:  rule.FadeInS,
			FadeOutS: rule.FadeOutS,
		}
	}
	return rows
}

func describeSource(seg domain.Segment) string {
	switch seg.Type {
	case domain.SegmentContent:
		return "(per-episode content)"
	}
	switch seg.Source.Type {
	case domain.SourceTTS:
		desc := "tts: " + seg.Source.TextPrompt
		if seg.Source.VoiceID != "" {
			desc += " [" + seg.Source.VoiceID + "]"
		}
		return desc
	default:
		if seg.Source.Filename == "" {
			return "(no file)"
		}
		return seg.Source.Filename
	}
}

func (a *App) segmentCommand(ctx context.Context, args []string) (CommandResult, error) {
	if a.session == nil {
		return CommandResult{Message: "No template session open."}, nil
	}
	if len(args) == 0 {
		return CommandResult{Message: "Usage: segment add|remove|move|file|tts|rate ..."}, nil
	}

	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) != 2 {
			return CommandResult{Message: "Usage: segment add intro|content|outro|commercial"}, nil
		}
		seg, err := a.session.AddSegment(strings.ToLower(args[1]))
		if err != nil {
			switch {
			case errors.Is(err, templates.ErrContentSegmentExists):
				return CommandResult{Message: "The template already has a content segment."}, nil
			case errors.Is(err, templates.ErrUnknownSegmentType):
				return CommandResult{Message: fmt.Sprintf("Unknown segment type '%s'.", args[1])}, nil
			}
			return CommandResult{}, err
		}
		return CommandResult{Message: fmt.Sprintf("Added %s segment %s.", seg.Type, seg.ID), SegmentRows: a.segmentRows()}, nil
	case "remove":
		if len(args) != 2 {
			return CommandResult{Message: "Usage: segment remove <id>"}, nil
		}
		if err := a.session.DeleteSegment(args[1]); err != nil {
			switch {
			case errors.Is(err, templates.ErrSegmentNotFound):
				return CommandResult{Message: "No segment found with that ID."}, nil
			case errors.Is(err, templates.ErrContentSegmentLocked):
				return CommandResult{Message: "The content segment cannot be removed."}, nil
			}
			return CommandResult{}, err
		}
		return CommandResult{Message: "Segment removed.", SegmentRows: a.segmentRows()}, nil
	case "move":
		if len(args) != 3 {
			return CommandResult{Message: "Usage: segment move <from> <to> (1-based positions)"}, nil
		}
		from, err1 := strconv.Atoi(args[1])
		to, err2 := strconv.Atoi(args[2])
		if err1 != nil || err2 != nil {
			return CommandResult{Message: "Positions must be numbers."}, nil
		}
		if !a.session.MoveSegment(from-1, to-1) {
			return CommandResult{Message: "Move rejected: intros stay before the content slot, outros after it."}, nil
		}
		return CommandResult{Message: "Segment moved.", SegmentRows: a.segmentRows()}, nil
	case "file":
		if len(args) != 3 {
			return CommandResult{Message: "Usage: segment file <id> <filename>"}, nil
		}
		if _, err := a.media.GetByFilename(ctx, args[2]); err != nil {
			if errors.Is(err, media.ErrAssetNotFound) {
				return CommandResult{Message: fmt.Sprintf("File '%s' is not in the media library. Ingest it with 'media add'.", args[2])}, nil
			}
			return CommandResult{}, err
		}
		if err := a.session.SetStaticSource(args[1], args[2]); err != nil {
			if errors.Is(err, templates.ErrSegmentNotFound) {
				return CommandResult{Message: "No segment found with that ID."}, nil
			}
			return CommandResult{}, err
		}
		return CommandResult{Message: "Segment source updated.", SegmentRows: a.segmentRows()}, nil
	case "tts":
		if len(args) < 3 {
			return CommandResult{Message: "Usage: segment tts <id> <prompt> [voice_id]"}, nil
		}
		voiceID := ""
		if len(args) > 3 {
			voiceID = args[len(args)-1]
			args = args[:len(args)-1]
		}
		prompt := strings.Join(args[2:], " ")
		if err := a.session.SetTTSSource(args[1], prompt, voiceID); err != nil {
			switch {
			case errors.Is(err, templates.ErrSegmentNotFound):
				return CommandResult{Message: "No segment found with that ID."}, nil
			case errors.Is(err, templates.ErrTTSNotSupported):
				return CommandResult{Message: "Commercial segments cannot use generated speech."}, nil
			}
			return CommandResult{}, err
		}
		return CommandResult{Message: "Segment switched to generated speech.", SegmentRows: a.segmentRows()}, nil
	case "rate":
		if len(args) != 3 {
			return CommandResult{Message: "Usage: segment rate <id> <speaking_rate>"}, nil
		}
		rate, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return CommandResult{Message: "Speaking rate must be a number."}, nil
		}
		if err := a.session.SetSpeakingRate(args[1], rate); err != nil {
			switch {
			case errors.Is(err, templates.ErrSegmentNotFound):
				return CommandResult{Message: "No segment found with that ID."}, nil
			case errors.Is(err, templates.ErrNotTTSSegment):
				return CommandResult{Message: "Speaking rate applies only to generated speech segments."}, nil
			}
			return CommandResult{}, err
		}
		return CommandResult{Message: "Speaking rate updated."}, nil
	default:
		return CommandResult{Message: fmt.Sprintf("unknown segment action: %s", args[0])}, nil
	}
}

func (a *App) musicCommand(ctx context.Context, args []string) (CommandResult, error) {
	if a.session == nil {
		return CommandResult{Message: "No template session open."}, nil
	}
	if len(args) == 0 {
		return CommandResult{Message: "Usage: music add|remove|file|asset|volume|offsets|fades|applyto ..."}, nil
	}

	action := strings.ToLower(args[0])
	if action == "add" {
		rule := a.session.AddMusicRule()
		return CommandResult{
			Message:       fmt.Sprintf("Added music rule %d (level %.0f). Bind a source with 'music file' or 'music asset'.", len(a.session.MusicRules()), rule.Level()),
			MusicRuleRows: a.musicRuleRows(),
		}, nil
	}

	if len(args) < 2 {
		return CommandResult{Message: "Music rule commands need a rule number."}, nil
	}
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return CommandResult{Message: "Rule number must be a number."}, nil
	}
	index-- // 1-based on the surface

	switch action {
	case "remove":
		if err := a.session.RemoveMusicRule(index); err != nil {
			return CommandResult{Message: "No music rule with that number."}, nil
		}
		return CommandResult{Message: "Music rule removed.", MusicRuleRows: a.musicRuleRows()}, nil
	case "file":
		if len(args) != 3 {
			return CommandResult{Message: "Usage: music file <n> <filename>"}, nil
		}
		if _, err := a.media.GetByFilename(ctx, args[2]); err != nil {
			if errors.Is(err, media.ErrAssetNotFound) {
				return CommandResult{Message: fmt.Sprintf("File '%s' is not in the media library.", args[2])}, nil
			}
			return CommandResult{}, err
		}
		if err := a.session.SetMusicFile(index, args[2]); err != nil {
			return CommandResult{Message: "No music rule with that number."}, nil
		}
		return CommandResult{Message: "Music rule bound to file.", MusicRuleRows: a.musicRuleRows()}, nil
	case "asset":
		if len(args) != 3 {
			return CommandResult{Message: "Usage: music asset <n> <asset_id>"}, nil
		}
		if _, err := a.media.Get(ctx, args[2]); err != nil {
			if errors.Is(err, media.ErrAssetNotFound) {
				return CommandResult{Message: "No media asset with that ID."}, nil
			}
			return CommandResult{}, err
		}
		if err := a.session.SetMusicAsset(index, args[2]); err != nil {
			return CommandResult{Message: "No music rule with that number."}, nil
		}
		return CommandResult{Message: "Music rule bound to catalog asset.", MusicRuleRows: a.musicRuleRows()}, nil
	case "volume":
		if len(args) != 3 {
			return CommandResult{Message: "Usage: music volume <n> <level 1-11>"}, nil
		}
		level, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return CommandResult{Message: "Volume level must be a number."}, nil
		}
		if err := a.session.SetMusicVolumeLevel(index, level); err != nil {
			return CommandResult{Message: "No music rule with that number."}, nil
		}
		rules := a.session.MusicRules()
		rule := rules[index]
		return CommandResult{
			Message:       fmt.Sprintf("Volume set to level %.1f (%.2f dB).", rule.Level(), rule.VolumeDB),
			MusicRuleRows: a.musicRuleRows(),
		}, nil
	case "offsets":
		if len(args) != 4 {
			return CommandResult{Message: "Usage: music offsets <n> <start_s> <end_s>"}, nil
		}
		start, err1 := strconv.ParseFloat(args[2], 64)
		end, err2 := strconv.ParseFloat(args[3], 64)
		if err1 != nil || err2 != nil {
			return CommandResult{Message: "Offsets must be numbers."}, nil
		}
		if err := a.session.SetMusicOffsets(index, start, end); err != nil {
			return CommandResult{Message: "No music rule with that number."}, nil
		}
		return CommandResult{Message: "Offsets updated.", MusicRuleRows: a.musicRuleRows()}, nil
	case "fades":
		if len(args) != 4 {
			return CommandResult{Message: "Usage: music fades <n> <fade_in_s> <fade_out_s>"}, nil
		}
		fadeIn, err1 := strconv.ParseFloat(args[2], 64)
		fadeOut, err2 := strconv.ParseFloat(args[3], 64)
		if err1 != nil || err2 != nil {
			return CommandResult{Message: "Fades must be numbers."}, nil
		}
		if err := a.session.SetMusicFades(index, fadeIn, fadeOut); err != nil {
			if errors.Is(err, templates.ErrNegativeSeconds) {
				return CommandResult{Message: "Fades cannot be negative."}, nil
			}
			return CommandResult{Message: "No music rule with that number."}, nil
		}
		return CommandResult{Message: "Fades updated.", MusicRuleRows: a.musicRuleRows()}, nil
	case "applyto":
		if len(args) < 3 {
			return CommandResult{Message: "Usage: music applyto <n> <segment_type> [...]"}, nil
		}
		types := make([]string, 0, len(args)-2)
		for _, t := range args[2:] {
			types = append(types, strings.ToLower(t))
		}
		if err := a.session.SetMusicApplyTo(index, types); err != nil {
			if errors.Is(err, templates.ErrUnknownSegmentType) {
				return CommandResult{Message: fmt.Sprintf("%v.", err)}, nil
			}
			return CommandResult{Message: "No music rule with that number."}, nil
		}
		return CommandResult{Message: "Rule coverage updated.", MusicRuleRows: a.musicRuleRows()}, nil
	default:
		return CommandResult{Message: fmt.Sprintf("unknown music action: %s", args[0])}, nil
	}
}

func (a *App) overlapCommand(_ context.Context, args []string) (CommandResult, error) {
	if a.session == nil {
		return CommandResult{Message: "No template session open."}, nil
	}
	if len(args) != 2 {
		return CommandResult{Message: "Usage: overlap intro|outro <seconds>"}, nil
	}

	seconds, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return CommandResult{Message: "Seconds must be a number."}, nil
	}

	switch strings.ToLower(args[0]) {
	case "intro":
		if err := a.session.SetIntroContentOverlap(seconds); err != nil {
			return CommandResult{Message: "Overlap cannot be negative."}, nil
		}
		return CommandResult{Message: fmt.Sprintf("Content now starts %.1fs before the intros finish.", seconds)}, nil
	case "outro":
		if err := a.session.SetContentOutroOverlap(seconds); err != nil {
			return CommandResult{Message: "Overlap cannot be negative."}, nil
		}
		return CommandResult{Message: fmt.Sprintf("Outro now starts %.1fs before the content finishes.", seconds)}, nil
	default:
		return CommandResult{Message: "Usage: overlap intro|outro <seconds>"}, nil
	}
}

func (a *App) saveCommand(ctx context.Context, _ []string) (CommandResult, error) {
	if a.session == nil {
		return CommandResult{Message: "No template session open."}, nil
	}

	saved, err := a.templates.Save(ctx, a.session)
	if err != nil {
		switch {
		case errors.Is(err, templates.ErrMissingName):
			return CommandResult{Message: "The template needs a name before saving."}, nil
		case errors.Is(err, templates.ErrNoShowSelected):
			return CommandResult{Message: "Assign a show first: 'template podcast <show_id>'."}, nil
		case errors.Is(err, templates.ErrRuleMissingSource):
			return CommandResult{Message: fmt.Sprintf("Cannot save: %v. Bind a source or remove the rule.", err)}, nil
		case errors.Is(err, templates.ErrOrderingViolated):
			return CommandResult{Message: "Cannot save: segment order violates intro/content/outro placement."}, nil
		}
		return CommandResult{}, err
	}

	log.Printf("template %s saved", saved.ID)
	return CommandResult{Message: fmt.Sprintf("Template '%s' saved (%s).", saved.Name, saved.ID)}, nil
}

func (a *App) mediaCommand(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) > 0 && strings.ToLower(args[0]) == "add" {
		if len(args) < 3 {
			return CommandResult{Message: "Usage: media add <path> <category> [friendly name]"}, nil
		}
		friendly := ""
		if len(args) > 3 {
			friendly = strings.Join(args[3:], " ")
		}
		asset, err := a.media.Ingest(ctx, args[1], strings.ToLower(args[2]), friendly)
		if err != nil {
			switch {
			case errors.Is(err, media.ErrUnknownCategory):
				return CommandResult{Message: "Category must be one of: segment, music, content."}, nil
			case errors.Is(err, os.ErrNotExist):
				return CommandResult{Message: fmt.Sprintf("File not found: %s.", args[1])}, nil
			}
			return CommandResult{}, err
		}
		return CommandResult{Message: fmt.Sprintf("Ingested %s into the %s library.", asset.Filename, asset.Category)}, nil
	}

	category := ""
	filter := ""
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case domain.AssetCategorySegment, domain.AssetCategoryMusic, domain.AssetCategoryContent:
			category = strings.ToLower(args[0])
			filter = strings.Join(args[1:], " ")
		default:
			filter = strings.Join(args, " ")
		}
	}

	assets, err := a.media.List(ctx, category, filter)
	if err != nil {
		return CommandResult{}, err
	}
	if len(assets) == 0 {
		return CommandResult{Message: "No media assets found."}, nil
	}
	return CommandResult{MediaResults: assets}, nil
}

func (a *App) episodesCommand(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) > 0 {
		return CommandResult{Message: "Usage: episodes"}, nil
	}
	list, err := a.episodes.List(ctx)
	if err != nil {
		return CommandResult{}, err
	}
	if len(list) == 0 {
		return CommandResult{Message: "No episodes yet. Start one with 'episode new <template_id> <title>'."}, nil
	}
	return CommandResult{EpisodeResults: list}, nil
}

func (a *App) episodeCommand(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) == 0 {
		return CommandResult{Message: "Usage: episode new|content|ready ..."}, nil
	}

	switch strings.ToLower(args[0]) {
	case "new":
		if len(args) < 3 {
			return CommandResult{Message: "Usage: episode new <template_id> <title>"}, nil
		}
		episode, err := a.episodes.Create(ctx, args[1], strings.Join(args[2:], " "))
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return CommandResult{Message: "No template found with that ID."}, nil
			case errors.Is(err, episodes.ErrTemplateInactive):
				return CommandResult{Message: "That template is inactive. Activate it before creating episodes."}, nil
			}
			return CommandResult{}, err
		}
		return CommandResult{Message: fmt.Sprintf("Draft '%s' created (%s).", episode.Title, episode.ID)}, nil
	case "content":
		if len(args) != 3 {
			return CommandResult{Message: "Usage: episode content <episode_id> <filename>"}, nil
		}
		episode, err := a.episodes.SetContent(ctx, args[1], args[2])
		if err != nil {
			switch {
			case errors.Is(err, episodes.ErrEpisodeNotFound):
				return CommandResult{Message: "No episode found with that ID."}, nil
			case errors.Is(err, episodes.ErrContentNotInLib):
				return CommandResult{Message: fmt.Sprintf("File '%s' is not in the media library. Ingest it with 'media add'.", args[2])}, nil
			}
			return CommandResult{}, err
		}
		return CommandResult{Message: fmt.Sprintf("Content audio set for '%s'.", episode.Title)}, nil
	case "ready":
		if len(args) != 2 {
			return CommandResult{Message: "Usage: episode ready <episode_id>"}, nil
		}
		episode, err := a.episodes.MarkReady(ctx, args[1])
		if err != nil {
			switch {
			case errors.Is(err, episodes.ErrEpisodeNotFound):
				return CommandResult{Message: "No episode found with that ID."}, nil
			case errors.Is(err, episodes.ErrMissingContent):
				return CommandResult{Message: "Attach content audio first: 'episode content <id> <filename>'."}, nil
			case errors.Is(err, episodes.ErrContentNotInLib):
				return CommandResult{Message: fmt.Sprintf("Cannot mark ready: %v.", err)}, nil
			}
			return CommandResult{}, err
		}
		return CommandResult{Message: fmt.Sprintf("Episode '%s' is ready for export.", episode.Title)}, nil
	default:
		return CommandResult{Message: fmt.Sprintf("unknown episode action: %s", args[0])}, nil
	}
}

func (a *App) exportCommand(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) != 2 {
		return CommandResult{Message: "Usage: export <episode_id> <file>"}, nil
	}

	episode, err := a.episodes.Get(ctx, args[0])
	if err != nil {
		if errors.Is(err, episodes.ErrEpisodeNotFound) {
			return CommandResult{Message: "No episode found with that ID."}, nil
		}
		return CommandResult{}, err
	}

	ed, err := a.templates.Open(ctx, episode.TemplateID)
	if err != nil {
		return CommandResult{}, err
	}
	tmpl := ed.Template()

	missing, err := a.media.MissingReferences(ctx, tmpl)
	if err != nil {
		return CommandResult{}, err
	}
	if len(missing) > 0 {
		return CommandResult{Message: fmt.Sprintf("Cannot export: missing media %s.", strings.Join(missing, ", "))}, nil
	}

	renderPlan, err := plan.Build(tmpl, episode)
	if err != nil {
		switch {
		case errors.Is(err, plan.ErrEpisodeNotReady):
			return CommandResult{Message: "Episode must be marked ready before export."}, nil
		case errors.Is(err, plan.ErrRuleWithoutSource):
			return CommandResult{Message: fmt.Sprintf("Cannot export: %v.", err)}, nil
		}
		return CommandResult{}, err
	}

	file, err := os.Create(args[1])
	if err != nil {
		return CommandResult{}, fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	if err := plan.Export(file, renderPlan); err != nil {
		return CommandResult{}, err
	}

	if _, err := a.episodes.MarkExported(ctx, episode.ID); err != nil && !errors.Is(err, episodes.ErrAlreadyExported) {
		return CommandResult{}, err
	}

	log.Printf("render plan for episode %s exported to %s", episode.ID, args[1])
	return CommandResult{Message: fmt.Sprintf("Render plan for '%s' written to %s.", episode.Title, args[1])}, nil
}

func (a *App) voicesCommand(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) > 0 {
		return CommandResult{Message: "Usage: voices"}, nil
	}
	list, err := a.voices.List(ctx)
	if err != nil {
		return CommandResult{}, err
	}
	if len(list) == 0 {
		return CommandResult{Message: "No voices available."}, nil
	}
	return CommandResult{VoiceResults: list}, nil
}

// LevelPreview formats a 1-11 loudness level with its dB gain for prompts.
func LevelPreview(level float64) string {
	db := volume.LevelToDB(level)
	return fmt.Sprintf("%.1f (%.2f dB)", volume.Clamp(level), db)
}
