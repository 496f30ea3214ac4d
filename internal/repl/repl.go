package repl

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"podforge/internal/app"
	"podforge/internal/theme"
)

// Run starts the interactive REPL session.
func Run(ctx context.Context, application *app.App) error {
	styles := theme.ForName(application.Config().ColorTheme)
	program := tea.NewProgram(newModel(ctx, application, styles), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}
