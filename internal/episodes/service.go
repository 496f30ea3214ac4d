// Package episodes manages episode drafts: a template plus per-episode
// content audio, moving from draft to ready to exported.
package episodes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"podforge/internal/domain"
	"podforge/internal/media"
	"podforge/internal/repository"
)

var (
	ErrMissingTitle      = errors.New("episode title cannot be empty")
	ErrEpisodeNotFound   = errors.New("episode not found")
	ErrMissingContent    = errors.New("episode has no content audio")
	ErrContentNotInLib   = errors.New("content audio is not in the media library")
	ErrTemplateInactive  = errors.New("template is not active")
	ErrAlreadyExported   = errors.New("episode is already exported")
	ErrNotReadyForExport = errors.New("episode must be ready before export")
)

type Service struct {
	store *repository.Store
	media *media.Service
}

func NewService(store *repository.Store, mediaSvc *media.Service) *Service {
	return &Service{store: store, media: mediaSvc}
}

// Create starts a draft from a stored template. Inactive templates cannot
// spawn new episodes.
func (s *Service) Create(ctx context.Context, templateID, title string) (domain.Episode, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Episode{}, ErrMissingTitle
	}

	tmpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Episode{}, fmt.Errorf("template %s: %w", templateID, repository.ErrNotFound)
		}
		return domain.Episode{}, err
	}
	if !tmpl.IsActive {
		return domain.Episode{}, fmt.Errorf("%w: %s", ErrTemplateInactive, tmpl.Name)
	}

	episode := domain.Episode{
		ID:         uuid.NewString(),
		ShowID:     tmpl.ShowID,
		TemplateID: tmpl.ID,
		Title:      title,
		State:      domain.EpisodeStateDraft,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveEpisode(ctx, episode); err != nil {
		return domain.Episode{}, err
	}
	return episode, nil
}

// SetContent attaches the per-episode content audio by library filename.
func (s *Service) SetContent(ctx context.Context, episodeID, filename string) (domain.Episode, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return domain.Episode{}, ErrMissingContent
	}

	episode, err := s.get(ctx, episodeID)
	if err != nil {
		return domain.Episode{}, err
	}

	if _, err := s.media.GetByFilename(ctx, filename); err != nil {
		if errors.Is(err, media.ErrAssetNotFound) {
			return domain.Episode{}, fmt.Errorf("%w: %s", ErrContentNotInLib, filename)
		}
		return domain.Episode{}, err
	}

	episode.ContentFilename = filename
	if err := s.store.SaveEpisode(ctx, episode); err != nil {
		return domain.Episode{}, err
	}
	return episode, nil
}

// MarkReady promotes a draft once its content audio is present in the
// library.
func (s *Service) MarkReady(ctx context.Context, episodeID string) (domain.Episode, error) {
	episode, err := s.get(ctx, episodeID)
	if err != nil {
		return domain.Episode{}, err
	}
	if episode.ContentFilename == "" {
		return domain.Episode{}, ErrMissingContent
	}
	if _, err := s.media.GetByFilename(ctx, episode.ContentFilename); err != nil {
		if errors.Is(err, media.ErrAssetNotFound) {
			return domain.Episode{}, fmt.Errorf("%w: %s", ErrContentNotInLib, episode.ContentFilename)
		}
		return domain.Episode{}, err
	}

	if err := s.store.UpdateEpisodeState(ctx, episode.ID, domain.EpisodeStateReady); err != nil {
		return domain.Episode{}, err
	}
	episode.State = domain.EpisodeStateReady
	return episode, nil
}

// MarkExported records that a render plan was handed to the assembly engine.
func (s *Service) MarkExported(ctx context.Context, episodeID string) (domain.Episode, error) {
	episode, err := s.get(ctx, episodeID)
	if err != nil {
		return domain.Episode{}, err
	}
	switch episode.State {
	case domain.EpisodeStateExported:
		return domain.Episode{}, ErrAlreadyExported
	case domain.EpisodeStateReady:
	default:
		return domain.Episode{}, fmt.Errorf("%w: state is %s", ErrNotReadyForExport, episode.State)
	}

	if err := s.store.UpdateEpisodeState(ctx, episode.ID, domain.EpisodeStateExported); err != nil {
		return domain.Episode{}, err
	}
	episode.State = domain.EpisodeStateExported
	return episode, nil
}

func (s *Service) Get(ctx context.Context, episodeID string) (domain.Episode, error) {
	return s.get(ctx, episodeID)
}

func (s *Service) List(ctx context.Context) ([]domain.Episode, error) {
	return s.store.ListEpisodes(ctx)
}

func (s *Service) get(ctx context.Context, episodeID string) (domain.Episode, error) {
	episode, err := s.store.GetEpisode(ctx, strings.TrimSpace(episodeID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Episode{}, fmt.Errorf("%w: %s", ErrEpisodeNotFound, episodeID)
		}
		return domain.Episode{}, err
	}
	return episode, nil
}
