package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carehub/carehub/internal/platform/db"
)

// =========== Schema Repository ===========

type schemaRepoPG struct{ pool *pgxpool.Pool }

func NewSchemaRepoPG(pool *pgxpool.Pool) SchemaRepository {
	return &schemaRepoPG{pool: pool}
}

const schemaCols = `id, title, description, elements, settings, published,
	created_by, created_at, updated_at`

func scanSchema(row pgx.Row) (*Schema, error) {
	var s Schema
	var elements, settings []byte
	err := row.Scan(&s.ID, &s.Title, &s.Description, &elements, &settings,
		&s.Published, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(elements, &s.Elements); err != nil {
		return nil, fmt.Errorf("decode elements of form %s: %w", s.ID, err)
	}
	if err := json.Unmarshal(settings, &s.Settings); err != nil {
		return nil, fmt.Errorf("decode settings of form %s: %w", s.ID, err)
	}
	return &s, nil
}

func encodeSchema(s *Schema) (elements, settings []byte, err error) {
	if elements, err = json.Marshal(s.Elements); err != nil {
		return nil, nil, fmt.Errorf("encode elements: %w", err)
	}
	if settings, err = json.Marshal(s.Settings); err != nil {
		return nil, nil, fmt.Errorf("encode settings: %w", err)
	}
	return elements, settings, nil
}

func (r *schemaRepoPG) Create(ctx context.Context, s *Schema) error {
	s.ID = uuid.New()
	elements, settings, err := encodeSchema(s)
	if err != nil {
		return err
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO form_schema (id, title, description, elements, settings, published, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		s.ID, s.Title, s.Description, elements, settings, s.Published, s.CreatedBy,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *schemaRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schema, error) {
	return scanSchema(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+schemaCols+` FROM form_schema WHERE id = $1`, id))
}

func (r *schemaRepoPG) Update(ctx context.Context, s *Schema) error {
	elements, settings, err := encodeSchema(s)
	if err != nil {
		return err
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE form_schema SET title=$2, description=$3, elements=$4, settings=$5,
			published=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.Title, s.Description, elements, settings, s.Published,
	).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *schemaRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM form_schema WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *schemaRepoPG) List(ctx context.Context, publishedOnly bool, limit, offset int) ([]*Schema, int, error) {
	where := ""
	if publishedOnly {
		where = " WHERE published"
	}
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM form_schema`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+schemaCols+` FROM form_schema`+where+`
		ORDER BY updated_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Schema
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// =========== Submission Repository ===========

type submissionRepoPG struct{ pool *pgxpool.Pool }

func NewSubmissionRepoPG(pool *pgxpool.Pool) SubmissionRepository {
	return &submissionRepoPG{pool: pool}
}

const submissionCols = `id, form_id, client_id, "values", progress, status,
	submitted_by, submitted_at, created_at, updated_at`

func scanSubmission(row pgx.Row) (*Submission, error) {
	var sub Submission
	var values []byte
	err := row.Scan(&sub.ID, &sub.FormID, &sub.ClientID, &values, &sub.Progress, &sub.Status,
		&sub.SubmittedBy, &sub.SubmittedAt, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(values, &sub.Values); err != nil {
		return nil, fmt.Errorf("decode values of submission %s: %w", sub.ID, err)
	}
	return &sub, nil
}

func (r *submissionRepoPG) Create(ctx context.Context, sub *Submission) error {
	sub.ID = uuid.New()
	values, err := json.Marshal(sub.Values)
	if err != nil {
		return fmt.Errorf("encode values: %w", err)
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO form_submission (id, form_id, client_id, "values", progress, status,
			submitted_by, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		sub.ID, sub.FormID, sub.ClientID, values, sub.Progress, sub.Status,
		sub.SubmittedBy, sub.SubmittedAt,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
}

func (r *submissionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return scanSubmission(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+submissionCols+` FROM form_submission WHERE id = $1`, id))
}

func (r *submissionRepoPG) Update(ctx context.Context, sub *Submission) error {
	values, err := json.Marshal(sub.Values)
	if err != nil {
		return fmt.Errorf("encode values: %w", err)
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE form_submission SET "values"=$2, progress=$3, status=$4, submitted_at=$5,
			updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		sub.ID, values, sub.Progress, sub.Status, sub.SubmittedAt,
	).Scan(&sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSubmissionNotFound
	}
	return err
}

func (r *submissionRepoPG) ListByForm(ctx context.Context, formID uuid.UUID, limit, offset int) ([]*Submission, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM form_submission WHERE form_id = $1`, formID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+submissionCols+` FROM form_submission
		WHERE form_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, formID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, sub)
	}
	return items, total, rows.Err()
}
