// Package media manages the library of audio files templates and episodes
// refer to. Files are copied into a category directory under the media root
// and registered in the database; everything else references them by
// filename.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"podforge/internal/config"
	"podforge/internal/domain"
	"podforge/internal/fuzzy"
	"podforge/internal/repository"
)

var (
	ErrMissingPath     = errors.New("file path cannot be empty")
	ErrUnknownCategory = errors.New("unknown media category")
	ErrAssetNotFound   = errors.New("media asset not found")
)

var invalidPathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

type Service struct {
	cfg   config.Config
	store *repository.Store
}

func NewService(cfg config.Config, store *repository.Store) *Service {
	return &Service{cfg: cfg, store: store}
}

// Ingest copies an audio file into the media root under its category, hashes
// it and registers the asset. Re-ingesting the same filename updates the
// existing record.
func (s *Service) Ingest(ctx context.Context, sourcePath, category, friendlyName string) (domain.MediaAsset, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return domain.MediaAsset{}, ErrMissingPath
	}
	if err := validCategory(category); err != nil {
		return domain.MediaAsset{}, err
	}

	root := strings.TrimSpace(s.cfg.MediaRoot)
	if root == "" {
		return domain.MediaAsset{}, fmt.Errorf("media root is not configured")
	}

	filename := safeFilename(filepath.Base(sourcePath))
	if filename == "" {
		return domain.MediaAsset{}, fmt.Errorf("cannot derive a filename from %q", sourcePath)
	}

	stat, err := os.Stat(sourcePath)
	if err != nil {
		return domain.MediaAsset{}, fmt.Errorf("stat source file: %w", err)
	}

	destDir := filepath.Join(root, category)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return domain.MediaAsset{}, err
	}
	tmpDir := s.cfg.TmpDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return domain.MediaAsset{}, err
	}

	// Stage through the tmp dir so a failed copy never leaves a truncated
	// file in the library.
	stagingPath := filepath.Join(tmpDir, fmt.Sprintf("podforge-%s.partial", filename))
	hash, err := copyAndHash(sourcePath, stagingPath)
	if err != nil {
		os.Remove(stagingPath)
		return domain.MediaAsset{}, err
	}

	finalPath := filepath.Join(destDir, filename)
	if err := moveFile(stagingPath, finalPath); err != nil {
		os.Remove(stagingPath)
		return domain.MediaAsset{}, err
	}

	asset := domain.MediaAsset{
		ID:           uuid.NewString(),
		Filename:     filename,
		FriendlyName: strings.TrimSpace(friendlyName),
		Category:     category,
		ContentType:  contentTypeFor(filename),
		FilePath:     finalPath,
		SizeBytes:    stat.Size(),
		Hash:         hash,
		AddedAt:      time.Now().UTC(),
	}

	if existing, err := s.store.GetMediaAssetByFilename(ctx, filename); err == nil {
		asset.ID = existing.ID
		asset.AddedAt = existing.AddedAt
	}

	if err := s.store.SaveMediaAsset(ctx, asset); err != nil {
		return domain.MediaAsset{}, fmt.Errorf("register asset: %w", err)
	}
	return asset, nil
}

// List returns assets, optionally restricted to a category and filtered by a
// typo-tolerant query over filenames and friendly names.
func (s *Service) List(ctx context.Context, category, query string) ([]domain.MediaAsset, error) {
	if category != "" {
		if err := validCategory(category); err != nil {
			return nil, err
		}
	}

	assets, err := s.store.ListMediaAssets(ctx, category)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return assets, nil
	}

	filtered := make([]domain.MediaAsset, 0, len(assets))
	for _, asset := range assets {
		if fuzzy.Matches(asset.Filename, query) || fuzzy.Matches(asset.FriendlyName, query) {
			filtered = append(filtered, asset)
		}
	}
	return filtered, nil
}

func (s *Service) Get(ctx context.Context, assetID string) (domain.MediaAsset, error) {
	asset, err := s.store.GetMediaAsset(ctx, assetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.MediaAsset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
		}
		return domain.MediaAsset{}, err
	}
	return asset, nil
}

func (s *Service) GetByFilename(ctx context.Context, filename string) (domain.MediaAsset, error) {
	asset, err := s.store.GetMediaAssetByFilename(ctx, strings.TrimSpace(filename))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.MediaAsset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, filename)
		}
		return domain.MediaAsset{}, err
	}
	return asset, nil
}

// MissingReferences reports every file or asset a template refers to that is
// not in the library. Segment sources and music rule sources are both
// checked.
func (s *Service) MissingReferences(ctx context.Context, tmpl domain.Template) ([]string, error) {
	var missing []string

	for _, seg := range tmpl.Segments {
		if seg.Source.Type != domain.SourceStatic || seg.Source.Filename == "" {
			continue
		}
		if _, err := s.store.GetMediaAssetByFilename(ctx, seg.Source.Filename); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				missing = append(missing, seg.Source.Filename)
				continue
			}
			return nil, err
		}
	}

	for _, rule := range tmpl.MusicRules {
		switch {
		case rule.MusicFilename != "":
			if _, err := s.store.GetMediaAssetByFilename(ctx, rule.MusicFilename); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					missing = append(missing, rule.MusicFilename)
					continue
				}
				return nil, err
			}
		case rule.MusicAssetID != "":
			if _, err := s.store.GetMediaAsset(ctx, rule.MusicAssetID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					missing = append(missing, rule.MusicAssetID)
					continue
				}
				return nil, err
			}
		}
	}

	return missing, nil
}

func validCategory(category string) error {
	switch category {
	case domain.AssetCategorySegment, domain.AssetCategoryMusic, domain.AssetCategoryContent:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
}

func safeFilename(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	cleaned := invalidPathChars.ReplaceAllString(value, "_")
	cleaned = strings.Trim(cleaned, "._- ")
	if cleaned == "" {
		return ""
	}
	if len(cleaned) > 128 {
		cleaned = cleaned[:128]
	}
	return cleaned
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "audio/mpeg"
}

func copyAndHash(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, hasher), in); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func moveFile(src, dst string) error {
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && linkErr.Err == syscall.EXDEV {
			in, err := os.Open(src)
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := os.Create(dst)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, in); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
			return os.Remove(src)
		}
		return err
	}
	return nil
}
