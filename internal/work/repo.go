package work

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"novelhub/pkg/models"
)

var ErrNotFound = errors.New("work not found")

type Repo struct {
	DB *sql.DB
}

type ListQuery struct {
	Q      string // keyword search in title/author
	Type   string // prose / illustrated
	Limit  int
	Offset int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Create(ctx context.Context, w models.Work) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO works (id, title, author, type, description, cover_url)
		VALUES (?, ?, ?, ?, ?, ?)
	`, w.ID, w.Title, w.Author, string(w.Type), w.Description, w.CoverURL)
	if err != nil {
		return fmt.Errorf("create work: %w", err)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Work, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, title, author, type, description, cover_url
		FROM works
		WHERE id = ?
	`, id)

	var (
		w           models.Work
		author      sql.NullString
		typ         string
		description sql.NullString
		coverURL    sql.NullString
	)
	if err := row.Scan(&w.ID, &w.Title, &author, &typ, &description, &coverURL); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan work %s: %w", id, err)
	}

	w.Author = author.String
	w.Type = models.WorkType(typ)
	w.Description = description.String
	w.CoverURL = coverURL.String
	return &w, nil
}

// TypeOf looks up just the work type; the ingestion pipeline reads it to
// decide whether formatting policy applies.
func (r *Repo) TypeOf(ctx context.Context, id string) (models.WorkType, error) {
	var typ string
	err := r.DB.QueryRowContext(ctx, `SELECT type FROM works WHERE id = ?`, id).Scan(&typ)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("work type %s: %w", id, err)
	}
	return models.WorkType(typ), nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Work, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Work, 0, q.Limit)
	for rows.Next() {
		var (
			w           models.Work
			author      sql.NullString
			typ         string
			description sql.NullString
			coverURL    sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.Title, &author, &typ, &description, &coverURL); err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		w.Author = author.String
		w.Type = models.WorkType(typ)
		w.Description = description.String
		w.CoverURL = coverURL.String
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// buildListSQL builds either COUNT(*) or the SELECT list.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := `
		SELECT id, title, author, type, description, cover_url
		FROM works
	`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM works`
	}

	var where []string
	var args []any

	if strings.TrimSpace(q.Q) != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(author) LIKE ?)")
		kw := "%" + strings.ToLower(strings.TrimSpace(q.Q)) + "%"
		args = append(args, kw, kw)
	}

	if strings.TrimSpace(q.Type) != "" {
		where = append(where, "LOWER(type) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(q.Type)))
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY title ASC"
		sqlStr += " LIMIT ? OFFSET ?"
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}

	return sqlStr, args
}
