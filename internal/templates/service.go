package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"podforge/internal/domain"
	"podforge/internal/fuzzy"
	"podforge/internal/repository"
)

var ErrTemplateNotFound = errors.New("template not found")

// Service persists template editing sessions. Validation and normalization
// happen here, at the save boundary; the editor itself never refuses a value
// it can represent.
type Service struct {
	store *repository.Store
}

func NewService(store *repository.Store) *Service {
	return &Service{store: store}
}

// Save validates the session, normalizes the aggregate and writes it. On
// success the editor is marked clean; on any failure it is left untouched so
// the user can fix the problem and retry.
func (s *Service) Save(ctx context.Context, ed *Editor) (domain.Template, error) {
	if err := ed.Validate(); err != nil {
		return domain.Template{}, err
	}

	tmpl := ed.NormalizedTemplate()
	if tmpl.ID == "" {
		tmpl.ID = uuid.NewString()
	}

	if err := s.store.SaveTemplate(ctx, tmpl); err != nil {
		return domain.Template{}, fmt.Errorf("save template: %w", err)
	}

	ed.MarkSaved(tmpl)
	return tmpl, nil
}

// Open loads a stored template into a fresh editing session.
func (s *Service) Open(ctx context.Context, templateID string) (*Editor, error) {
	tmpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return nil, fmt.Errorf("load template: %w", err)
	}
	return EditorFor(tmpl), nil
}

// List returns template summaries, optionally filtered by a typo-tolerant
// query over template and show names.
func (s *Service) List(ctx context.Context, query string) ([]domain.TemplateSummary, error) {
	summaries, err := s.store.ListTemplateSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return summaries, nil
	}

	filtered := make([]domain.TemplateSummary, 0, len(summaries))
	for _, summary := range summaries {
		if fuzzy.Matches(summary.Name, query) || fuzzy.Matches(summary.ShowTitle, query) {
			filtered = append(filtered, summary)
		}
	}
	return filtered, nil
}

// SetActive flips the active flag on a stored template without opening a full
// editing session.
func (s *Service) SetActive(ctx context.Context, templateID string, active bool) (domain.Template, error) {
	tmpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return domain.Template{}, fmt.Errorf("load template: %w", err)
	}

	tmpl.IsActive = active
	if err := s.store.SaveTemplate(ctx, tmpl); err != nil {
		return domain.Template{}, fmt.Errorf("save template: %w", err)
	}
	return tmpl, nil
}

// Delete removes a stored template. Templates still referenced by episodes
// cannot be deleted; the wrapped error names the episode count.
func (s *Service) Delete(ctx context.Context, templateID string) error {
	err := s.store.DeleteTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return err
	}
	return nil
}
