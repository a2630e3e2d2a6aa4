// Package chapter owns the create/replace/delete lifecycle of chapter
// content. At most one content row exists per chapter at any time.
package chapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"novelhub/internal/markup"
	"novelhub/pkg/models"
)

var (
	ErrNotFound     = errors.New("chapter not found")
	ErrWorkNotFound = errors.New("work not found")
)

type Repo struct {
	DB        *sql.DB
	Formatter *markup.Formatter
	Logger    *slog.Logger
}

func NewRepo(db *sql.DB, formatter *markup.Formatter, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo{DB: db, Formatter: formatter, Logger: logger}
}

// ContentInput carries new content plus the caller's explicit typography
// request, if any. An explicit font or size forces reformatting.
type ContentInput struct {
	Content    string
	FontFamily string
	FontSize   string
}

// Create inserts the chapter and, when content was supplied, its single
// content row. Prose works get the formatting policy applied; illustrated
// works store content verbatim.
func (r *Repo) Create(ctx context.Context, ch *models.Chapter, content *ContentInput) error {
	workType, err := r.workType(ctx, ch.WorkID)
	if err != nil {
		return err
	}

	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chapters (id, work_id, number, title, release_date, locked, unlock_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ch.ID, ch.WorkID, ch.Number, ch.Title, ch.ReleaseDate, ch.Locked, ch.UnlockPrice)
	if err != nil {
		return fmt.Errorf("insert chapter: %w", err)
	}

	if content != nil && content.Content != "" {
		body := content.Content
		if workType == models.WorkTypeProse {
			body = r.formatProse(body, content.FontFamily, content.FontSize)
		}
		if err := insertContent(ctx, tx, ch.ID, body); err != nil {
			return fmt.Errorf("insert content for chapter %s: %w", ch.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chapter %s: %w", ch.ID, err)
	}
	return nil
}

// Update is a partial field update: nil fields are dropped before
// persisting. When new content is supplied, all prior content rows are
// deleted and one new row inserted, inside a single transaction so
// concurrent updates can neither observe zero rows nor produce duplicates.
type Update struct {
	Title       *string
	Number      *int
	Locked      *bool
	UnlockPrice *int
	ReleaseDate *string // "" clears the date; unparseable values are ignored
	Content     *string
	FontFamily  *string
	FontSize    *string
}

func (r *Repo) Update(ctx context.Context, id string, upd Update) (*models.Chapter, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(*upd.Title))
	}
	if upd.Number != nil {
		sets = append(sets, "number = ?")
		args = append(args, *upd.Number)
	}
	if upd.Locked != nil {
		sets = append(sets, "locked = ?")
		args = append(args, *upd.Locked)
	}
	if upd.UnlockPrice != nil {
		sets = append(sets, "unlock_price = ?")
		args = append(args, *upd.UnlockPrice)
	}
	if upd.ReleaseDate != nil {
		if d, ok := ParseReleaseDate(*upd.ReleaseDate); ok {
			sets = append(sets, "release_date = ?")
			args = append(args, d)
		}
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if len(sets) > 0 {
		args = append(args, id)
		if _, err := tx.ExecContext(ctx, "UPDATE chapters SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
			return nil, fmt.Errorf("update chapter %s: %w", id, err)
		}
	}

	if upd.Content != nil {
		workType, err := r.workType(ctx, existing.WorkID)
		if err != nil {
			return nil, err
		}
		body := *upd.Content
		if workType == models.WorkTypeProse {
			body = r.formatProse(body, deref(upd.FontFamily), deref(upd.FontSize))
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chapter_contents WHERE chapter_id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete content for chapter %s: %w", id, err)
		}
		if err := insertContent(ctx, tx, id, body); err != nil {
			return nil, fmt.Errorf("replace content for chapter %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit chapter %s: %w", id, err)
	}

	return r.GetByID(ctx, id)
}

// Delete removes the content row(s) first, then the chapter row.
func (r *Repo) Delete(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chapter_contents WHERE chapter_id = ?`, id); err != nil {
		return fmt.Errorf("delete content for chapter %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chapter %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Chapter, error) {
	return r.get(ctx, `WHERE id = ?`, id)
}

func (r *Repo) GetByWorkAndNumber(ctx context.Context, workID string, number int) (*models.Chapter, error) {
	return r.get(ctx, `WHERE work_id = ? AND number = ?`, workID, number)
}

func (r *Repo) get(ctx context.Context, where string, args ...any) (*models.Chapter, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, work_id, number, title, release_date, locked, unlock_price, views
		FROM chapters `+where, args...)

	var (
		ch      models.Chapter
		release sql.NullTime
	)
	if err := row.Scan(&ch.ID, &ch.WorkID, &ch.Number, &ch.Title, &release, &ch.Locked, &ch.UnlockPrice, &ch.Views); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan chapter: %w", err)
	}
	if release.Valid {
		t := release.Time
		ch.ReleaseDate = &t
	}

	if err := r.attachContent(ctx, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// attachContent loads the chapter's content row. Absence is not an error:
// content stays empty and length zero.
func (r *Repo) attachContent(ctx context.Context, ch *models.Chapter) error {
	var content string
	err := r.DB.QueryRowContext(ctx, `
		SELECT content FROM chapter_contents WHERE chapter_id = ?
	`, ch.ID).Scan(&content)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load content for chapter %s: %w", ch.ID, err)
	}
	ch.Content = content
	ch.ContentLength = len(content)
	r.Logger.Debug("loaded chapter content", "chapter", ch.ID, "bytes", ch.ContentLength)
	return nil
}

func (r *Repo) ListByWork(ctx context.Context, workID string) ([]models.Chapter, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, work_id, number, title, release_date, locked, unlock_price, views
		FROM chapters
		WHERE work_id = ?
		ORDER BY number ASC
	`, workID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var out []models.Chapter
	for rows.Next() {
		var (
			ch      models.Chapter
			release sql.NullTime
		)
		if err := rows.Scan(&ch.ID, &ch.WorkID, &ch.Number, &ch.Title, &release, &ch.Locked, &ch.UnlockPrice, &ch.Views); err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		if release.Valid {
			t := release.Time
			ch.ReleaseDate = &t
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) IncrementViews(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE chapters SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("bump views for chapter %s: %w", id, err)
	}
	return nil
}

// formatProse applies the formatting policy: auto-clean unless the content
// already has typography, and force the requested classes when the caller
// chose an explicit font or size.
func (r *Repo) formatProse(body, fontFamily, fontSize string) string {
	force := fontFamily != "" || fontSize != ""
	return r.Formatter.Format(body, markup.Options{
		PreserveHTML: true,
		AutoClean:    force || !markup.HasTypography(body),
		FontFamily:   fontFamily,
		FontSize:     fontSize,
		ForceFormat:  force,
	})
}

func (r *Repo) workType(ctx context.Context, workID string) (models.WorkType, error) {
	var typ string
	err := r.DB.QueryRowContext(ctx, `SELECT type FROM works WHERE id = ?`, workID).Scan(&typ)
	if err == sql.ErrNoRows {
		return "", ErrWorkNotFound
	}
	if err != nil {
		return "", fmt.Errorf("work type %s: %w", workID, err)
	}
	return models.WorkType(typ), nil
}

func insertContent(ctx context.Context, tx *sql.Tx, chapterID, content string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chapter_contents (id, chapter_id, content)
		VALUES (?, ?, ?)
	`, uuid.NewString(), chapterID, content)
	return err
}

// ParseReleaseDate normalizes a release-date request value: empty or "null"
// means no date, a parseable date string converts, anything else is treated
// as absent (ok = false) and the field is left untouched.
func ParseReleaseDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, true
		}
	}
	return nil, false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
