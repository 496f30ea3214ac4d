// Package shows manages the podcast shows templates and episodes belong to.
package shows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"podforge/internal/domain"
	"podforge/internal/fuzzy"
	"podforge/internal/repository"
)

var (
	ErrMissingTitle  = errors.New("show title cannot be empty")
	ErrMissingShowID = errors.New("show ID cannot be empty")
	ErrShowNotFound  = errors.New("show not found")
)

type Service struct {
	store *repository.Store
}

func NewService(store *repository.Store) *Service {
	return &Service{store: store}
}

// Add creates a new show and returns it with its assigned id.
func (s *Service) Add(ctx context.Context, title, description string) (domain.Show, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Show{}, ErrMissingTitle
	}

	show := domain.Show{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.SaveShow(ctx, show); err != nil {
		return domain.Show{}, err
	}
	return show, nil
}

// Exists reports whether a show is known, and its title if so.
func (s *Service) Exists(ctx context.Context, showID string) (bool, string, error) {
	showID = strings.TrimSpace(showID)
	if showID == "" {
		return false, "", ErrMissingShowID
	}
	return s.store.ShowExists(ctx, showID)
}

// Remove deletes a show. Templates and episodes owned by the show go with it.
func (s *Service) Remove(ctx context.Context, showID string) error {
	showID = strings.TrimSpace(showID)
	if showID == "" {
		return ErrMissingShowID
	}

	removed, err := s.store.DeleteShow(ctx, showID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrShowNotFound
	}
	return nil
}

// Summaries lists all shows with template and episode counts, optionally
// filtered by a typo-tolerant title query.
func (s *Service) Summaries(ctx context.Context, query string) ([]domain.ShowSummary, error) {
	summaries, err := s.store.ListShowSummaries(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return summaries, nil
	}

	filtered := make([]domain.ShowSummary, 0, len(summaries))
	for _, summary := range summaries {
		if fuzzy.Matches(summary.Title, query) {
			filtered = append(filtered, summary)
		}
	}
	return filtered, nil
}
