package medication

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carehub/carehub/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const adminCols = `id, client_id, medication, dose, route, scheduled_at, administered_at,
	status, administered_by, notes, created_at, updated_at`

func scanAdministration(row pgx.Row) (*Administration, error) {
	var a Administration
	err := row.Scan(&a.ID, &a.ClientID, &a.Medication, &a.Dose, &a.Route, &a.ScheduledAt,
		&a.AdministeredAt, &a.Status, &a.AdministeredBy, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Administration) error {
	a.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medication_administration (id, client_id, medication, dose, route,
			scheduled_at, administered_at, status, administered_by, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.ClientID, a.Medication, a.Dose, a.Route,
		a.ScheduledAt, a.AdministeredAt, a.Status, a.AdministeredBy, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Administration, error) {
	return scanAdministration(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+adminCols+` FROM medication_administration WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Administration) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE medication_administration SET medication=$2, dose=$3, route=$4, scheduled_at=$5,
			administered_at=$6, status=$7, administered_by=$8, notes=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Medication, a.Dose, a.Route, a.ScheduledAt,
		a.AdministeredAt, a.Status, a.AdministeredBy, a.Notes,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM medication_administration WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]*Administration, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+adminCols+` FROM medication_administration
		WHERE client_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3
		ORDER BY scheduled_at, medication`, clientID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Administration
	for rows.Next() {
		a, err := scanAdministration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
