package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"podforge/internal/domain"
)

var (
	ErrTemplateInUse = errors.New("template is referenced by episodes")

	// ErrNotFound is returned by lookups and deletes that matched no row.
	ErrNotFound = sql.ErrNoRows
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) SaveShow(ctx context.Context, show domain.Show) error {
	title := strings.TrimSpace(show.Title)
	if title == "" {
		title = "Untitled Show"
	}
	createdAt := show.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO shows (id, title, description, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET title=excluded.title, description=excluded.description`,
		show.ID, title, show.Description, createdAt.Format(time.RFC3339Nano))
	return err
}

func (s *Store) ShowExists(ctx context.Context, showID string) (bool, string, error) {
	var title string
	err := s.db.QueryRowContext(ctx, "SELECT title FROM shows WHERE id = ?", showID).Scan(&title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, "", nil
		}
		return false, "", err
	}
	return true, title, nil
}

func (s *Store) DeleteShow(ctx context.Context, showID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM shows WHERE id = ?", showID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) ListShowSummaries(ctx context.Context) ([]domain.ShowSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
s.id,
s.title,
(SELECT COUNT(*) FROM templates t WHERE t.show_id = s.id) AS template_count,
(SELECT COUNT(*) FROM episodes e WHERE e.show_id = s.id) AS episode_count
FROM shows s
ORDER BY LOWER(s.title)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]domain.ShowSummary, 0, 8)
	for rows.Next() {
		var summary domain.ShowSummary
		if err := rows.Scan(&summary.ID, &summary.Title, &summary.TemplateCount, &summary.EpisodeCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// SaveTemplate persists the aggregate in one transaction: the template row is
// upserted and the segment and music rule children are rewritten, with list
// position as playback order.
func (s *Store) SaveTemplate(ctx context.Context, tmpl domain.Template) error {
	return s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				tx.Rollback()
			}
		}()

		now := time.Now().UTC().Format(time.RFC3339Nano)
		createdAt := now
		if !tmpl.CreatedAt.IsZero() {
			createdAt = tmpl.CreatedAt.UTC().Format(time.RFC3339Nano)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO templates
(id, show_id, name, is_active, content_start_offset_s, outro_start_offset_s,
 ai_title_instructions, ai_description_instructions, ai_tag_instructions,
 ai_auto_title, ai_auto_description, ai_auto_tags,
 default_elevenlabs_voice_id, default_intern_voice_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
show_id=excluded.show_id,
name=excluded.name,
is_active=excluded.is_active,
content_start_offset_s=excluded.content_start_offset_s,
outro_start_offset_s=excluded.outro_start_offset_s,
ai_title_instructions=excluded.ai_title_instructions,
ai_description_instructions=excluded.ai_description_instructions,
ai_tag_instructions=excluded.ai_tag_instructions,
ai_auto_title=excluded.ai_auto_title,
ai_auto_description=excluded.ai_auto_description,
ai_auto_tags=excluded.ai_auto_tags,
default_elevenlabs_voice_id=excluded.default_elevenlabs_voice_id,
default_intern_voice_id=excluded.default_intern_voice_id,
updated_at=excluded.updated_at`,
			tmpl.ID, tmpl.ShowID, tmpl.Name, boolToInt(tmpl.IsActive),
			tmpl.Timing.ContentStartOffsetS, tmpl.Timing.OutroStartOffsetS,
			tmpl.AI.TitleInstructions, tmpl.AI.DescriptionInstructions, tmpl.AI.TagInstructions,
			boolToInt(tmpl.AI.AutoFillTitle), boolToInt(tmpl.AI.AutoFillDescription), boolToInt(tmpl.AI.AutoFillTags),
			nullableString(tmpl.DefaultElevenLabsVoiceID), nullableString(tmpl.DefaultInternVoiceID),
			createdAt, now); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM template_segments WHERE template_id = ?", tmpl.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM template_music_rules WHERE template_id = ?", tmpl.ID); err != nil {
			return err
		}

		for position, seg := range tmpl.Segments {
			if _, err := tx.ExecContext(ctx, `INSERT INTO template_segments
(id, template_id, position, segment_type, source_type, filename, text_prompt, voice_id, speaking_rate)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				seg.ID, tmpl.ID, position, seg.Type, seg.Source.Type,
				seg.Source.Filename, seg.Source.TextPrompt, seg.Source.VoiceID, seg.Source.SpeakingRate); err != nil {
				return err
			}
		}

		for _, rule := range tmpl.MusicRules {
			if _, err := tx.ExecContext(ctx, `INSERT INTO template_music_rules
(id, template_id, apply_to, music_filename, music_asset_id, start_offset_s, end_offset_s, fade_in_s, fade_out_s, volume_db)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rule.ID, tmpl.ID, strings.Join(rule.ApplyTo, ","),
				rule.MusicFilename, rule.MusicAssetID,
				rule.StartOffsetS, rule.EndOffsetS, rule.FadeInS, rule.FadeOutS, rule.VolumeDB); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		return nil
	})
}

func (s *Store) GetTemplate(ctx context.Context, templateID string) (domain.Template, error) {
	var tmpl domain.Template
	var isActive, autoTitle, autoDescription, autoTags int
	var elevenVoice, internVoice sql.NullString
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, `SELECT id, show_id, name, is_active,
content_start_offset_s, outro_start_offset_s,
COALESCE(ai_title_instructions, ''), COALESCE(ai_description_instructions, ''), COALESCE(ai_tag_instructions, ''),
ai_auto_title, ai_auto_description, ai_auto_tags,
default_elevenlabs_voice_id, default_intern_voice_id, created_at, updated_at
FROM templates WHERE id = ?`, templateID).
		Scan(&tmpl.ID, &tmpl.ShowID, &tmpl.Name, &isActive,
			&tmpl.Timing.ContentStartOffsetS, &tmpl.Timing.OutroStartOffsetS,
			&tmpl.AI.TitleInstructions, &tmpl.AI.DescriptionInstructions, &tmpl.AI.TagInstructions,
			&autoTitle, &autoDescription, &autoTags,
			&elevenVoice, &internVoice, &createdAt, &updatedAt)
	if err != nil {
		return domain.Template{}, err
	}

	tmpl.IsActive = isActive != 0
	tmpl.AI.AutoFillTitle = autoTitle != 0
	tmpl.AI.AutoFillDescription = autoDescription != 0
	tmpl.AI.AutoFillTags = autoTags != 0
	if elevenVoice.Valid && elevenVoice.String != "" {
		v := elevenVoice.String
		tmpl.DefaultElevenLabsVoiceID = &v
	}
	if internVoice.Valid && internVoice.String != "" {
		v := internVoice.String
		tmpl.DefaultInternVoiceID = &v
	}
	tmpl.CreatedAt = parseTimestamp(createdAt)
	tmpl.UpdatedAt = parseTimestamp(updatedAt)

	tmpl.Segments, err = s.templateSegments(ctx, templateID)
	if err != nil {
		return domain.Template{}, err
	}
	tmpl.MusicRules, err = s.templateMusicRules(ctx, templateID)
	if err != nil {
		return domain.Template{}, err
	}
	return tmpl, nil
}

func (s *Store) templateSegments(ctx context.Context, templateID string) ([]domain.Segment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, segment_type, source_type,
COALESCE(filename, ''), COALESCE(text_prompt, ''), COALESCE(voice_id, ''), COALESCE(speaking_rate, 0)
FROM template_segments WHERE template_id = ? ORDER BY position`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	segments := make([]domain.Segment, 0, 4)
	for rows.Next() {
		var seg domain.Segment
		if err := rows.Scan(&seg.ID, &seg.Type, &seg.Source.Type,
			&seg.Source.Filename, &seg.Source.TextPrompt, &seg.Source.VoiceID, &seg.Source.SpeakingRate); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return segments, nil
}

func (s *Store) templateMusicRules(ctx context.Context, templateID string) ([]domain.MusicRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, apply_to,
COALESCE(music_filename, ''), COALESCE(music_asset_id, ''),
start_offset_s, end_offset_s, fade_in_s, fade_out_s, volume_db
FROM template_music_rules WHERE template_id = ? ORDER BY rowid`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]domain.MusicRule, 0, 2)
	for rows.Next() {
		var rule domain.MusicRule
		var applyTo string
		if err := rows.Scan(&rule.ID, &applyTo,
			&rule.MusicFilename, &rule.MusicAssetID,
			&rule.StartOffsetS, &rule.EndOffsetS, &rule.FadeInS, &rule.FadeOutS, &rule.VolumeDB); err != nil {
			return nil, err
		}
		if applyTo != "" {
			rule.ApplyTo = strings.Split(applyTo, ",")
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) ListTemplateSummaries(ctx context.Context) ([]domain.TemplateSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
t.id, t.name, t.show_id, s.title, t.is_active,
(SELECT COUNT(*) FROM template_segments g WHERE g.template_id = t.id) AS segment_count,
(SELECT COUNT(*) FROM episodes e WHERE e.template_id = t.id) AS episode_count
FROM templates t
JOIN shows s ON s.id = t.show_id
ORDER BY LOWER(s.title), LOWER(t.name)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]domain.TemplateSummary, 0, 8)
	for rows.Next() {
		var summary domain.TemplateSummary
		var isActive int
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.ShowID, &summary.ShowTitle,
			&isActive, &summary.SegmentCount, &summary.EpisodeCount); err != nil {
			return nil, err
		}
		summary.IsActive = isActive != 0
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// DeleteTemplate removes a template unless episodes still reference it.
func (s *Store) DeleteTemplate(ctx context.Context, templateID string) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM episodes WHERE template_id = ?", templateID).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %d episode(s)", ErrTemplateInUse, count)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", templateID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) SaveMediaAsset(ctx context.Context, asset domain.MediaAsset) error {
	addedAt := asset.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO media_assets
(id, filename, friendly_name, category, content_type, file_path, duration_s, size_bytes, hash, added_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(filename) DO UPDATE SET
friendly_name=excluded.friendly_name,
category=excluded.category,
content_type=excluded.content_type,
file_path=excluded.file_path,
duration_s=excluded.duration_s,
size_bytes=excluded.size_bytes,
hash=excluded.hash`,
		asset.ID, asset.Filename, asset.FriendlyName, asset.Category, asset.ContentType,
		asset.FilePath, asset.DurationS, asset.SizeBytes, asset.Hash,
		addedAt.Format(time.RFC3339Nano))
	return err
}

func (s *Store) ListMediaAssets(ctx context.Context, category string) ([]domain.MediaAsset, error) {
	query := `SELECT id, filename, COALESCE(friendly_name, ''), category, COALESCE(content_type, ''),
COALESCE(file_path, ''), COALESCE(duration_s, 0), size_bytes, COALESCE(hash, ''), added_at
FROM media_assets`
	args := []interface{}{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY LOWER(filename)"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := make([]domain.MediaAsset, 0, 16)
	for rows.Next() {
		var asset domain.MediaAsset
		var addedAt string
		if err := rows.Scan(&asset.ID, &asset.Filename, &asset.FriendlyName, &asset.Category,
			&asset.ContentType, &asset.FilePath, &asset.DurationS, &asset.SizeBytes, &asset.Hash, &addedAt); err != nil {
			return nil, err
		}
		asset.AddedAt = parseTimestamp(addedAt)
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

func (s *Store) GetMediaAssetByFilename(ctx context.Context, filename string) (domain.MediaAsset, error) {
	var asset domain.MediaAsset
	var addedAt string
	err := s.db.QueryRowContext(ctx, `SELECT id, filename, COALESCE(friendly_name, ''), category, COALESCE(content_type, ''),
COALESCE(file_path, ''), COALESCE(duration_s, 0), size_bytes, COALESCE(hash, ''), added_at
FROM media_assets WHERE filename = ?`, filename).
		Scan(&asset.ID, &asset.Filename, &asset.FriendlyName, &asset.Category,
			&asset.ContentType, &asset.FilePath, &asset.DurationS, &asset.SizeBytes, &asset.Hash, &addedAt)
	if err != nil {
		return domain.MediaAsset{}, err
	}
	asset.AddedAt = parseTimestamp(addedAt)
	return asset, nil
}

func (s *Store) GetMediaAsset(ctx context.Context, assetID string) (domain.MediaAsset, error) {
	var asset domain.MediaAsset
	var addedAt string
	err := s.db.QueryRowContext(ctx, `SELECT id, filename, COALESCE(friendly_name, ''), category, COALESCE(content_type, ''),
COALESCE(file_path, ''), COALESCE(duration_s, 0), size_bytes, COALESCE(hash, ''), added_at
FROM media_assets WHERE id = ?`, assetID).
		Scan(&asset.ID, &asset.Filename, &asset.FriendlyName, &asset.Category,
			&asset.ContentType, &asset.FilePath, &asset.DurationS, &asset.SizeBytes, &asset.Hash, &addedAt)
	if err != nil {
		return domain.MediaAsset{}, err
	}
	asset.AddedAt = parseTimestamp(addedAt)
	return asset, nil
}

func (s *Store) SaveEpisode(ctx context.Context, episode domain.Episode) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	createdAt := now
	if !episode.CreatedAt.IsZero() {
		createdAt = episode.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO episodes
(id, show_id, template_id, title, state, content_filename, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
title=excluded.title,
state=excluded.state,
content_filename=excluded.content_filename,
updated_at=excluded.updated_at`,
		episode.ID, episode.ShowID, episode.TemplateID, episode.Title, episode.State,
		episode.ContentFilename, createdAt, now)
	return err
}

func (s *Store) GetEpisode(ctx context.Context, episodeID string) (domain.Episode, error) {
	var episode domain.Episode
	var contentFilename sql.NullString
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `SELECT e.id, e.show_id, s.title, e.template_id, t.name,
e.title, e.state, e.content_filename, e.created_at, e.updated_at
FROM episodes e
JOIN shows s ON s.id = e.show_id
JOIN templates t ON t.id = e.template_id
WHERE e.id = ?`, episodeID).
		Scan(&episode.ID, &episode.ShowID, &episode.ShowTitle, &episode.TemplateID, &episode.TemplateName,
			&episode.Title, &episode.State, &contentFilename, &createdAt, &updatedAt)
	if err != nil {
		return domain.Episode{}, err
	}
	if contentFilename.Valid {
		episode.ContentFilename = contentFilename.String
	}
	episode.CreatedAt = parseTimestamp(createdAt)
	episode.UpdatedAt = parseTimestamp(updatedAt)
	return episode, nil
}

func (s *Store) ListEpisodes(ctx context.Context) ([]domain.Episode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT e.id, e.show_id, s.title, e.template_id, t.name,
e.title, e.state, e.content_filename, e.created_at, e.updated_at
FROM episodes e
JOIN shows s ON s.id = e.show_id
JOIN templates t ON t.id = e.template_id
ORDER BY e.created_at DESC, LOWER(e.title)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	episodes := make([]domain.Episode, 0, 16)
	for rows.Next() {
		var episode domain.Episode
		var contentFilename sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&episode.ID, &episode.ShowID, &episode.ShowTitle,
			&episode.TemplateID, &episode.TemplateName,
			&episode.Title, &episode.State, &contentFilename, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if contentFilename.Valid {
			episode.ContentFilename = contentFilename.String
		}
		episode.CreatedAt = parseTimestamp(createdAt)
		episode.UpdatedAt = parseTimestamp(updatedAt)
		episodes = append(episodes, episode)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return episodes, nil
}

func (s *Store) UpdateEpisodeState(ctx context.Context, episodeID, state string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, "UPDATE episodes SET state = ?, updated_at = ? WHERE id = ?", state, now, episodeID)
	return err
}

func (s *Store) CountEpisodesUsingTemplate(ctx context.Context, templateID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM episodes WHERE template_id = ?", templateID).Scan(&count)
	return count, err
}

func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	const attempts = 5
	var err error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fn()
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) {
			return err
		}
		backoff := 50 * time.Millisecond * time.Duration(1<<i)
		if err := waitWithContext(ctx, backoff); err != nil {
			return err
		}
	}
	return err
}

func waitWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func parseTimestamp(value string) time.Time {
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(value *string) interface{} {
	if value == nil || *value == "" {
		return nil
	}
	return *value
}
