package news2

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carehub/carehub/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const obsCols = `o.id, o.client_id, o.respiratory_rate, o.spo2, o.spo2_scale, o.on_oxygen,
	o.systolic_bp, o.pulse_rate, o.consciousness, o.temperature, o.total_score,
	o.risk_tier, o.recorded_by, o.observed_at, o.created_at`

func scanObservation(row pgx.Row, extra ...interface{}) (*Observation, error) {
	var o Observation
	var total int
	dest := []interface{}{&o.ID, &o.ClientID, &o.RespiratoryRate, &o.SpO2, &o.SpO2Scale, &o.OnOxygen,
		&o.SystolicBP, &o.PulseRate, &o.Consciousness, &o.Temperature, &total,
		&o.RiskTier, &o.RecordedBy, &o.ObservedAt, &o.CreatedAt}
	err := row.Scan(append(dest, extra...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.TotalScore = &total
	if b, ok := Score(&o); ok {
		o.Breakdown = &b
	}
	return &o, nil
}

func (r *repoPG) Create(ctx context.Context, o *Observation) error {
	o.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO news2_observation (id, client_id, respiratory_rate, spo2, spo2_scale, on_oxygen,
			systolic_bp, pulse_rate, consciousness, temperature, total_score, risk_tier,
			recorded_by, observed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at`,
		o.ID, o.ClientID, o.RespiratoryRate, o.SpO2, o.SpO2Scale, o.OnOxygen,
		o.SystolicBP, o.PulseRate, o.Consciousness, o.Temperature, o.TotalScore, o.RiskTier,
		o.RecordedBy, o.ObservedAt,
	).Scan(&o.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Observation, error) {
	return scanObservation(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+obsCols+` FROM news2_observation o WHERE o.id = $1`, id))
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM news2_observation WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Observation, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM news2_observation WHERE client_id = $1`, clientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+obsCols+` FROM news2_observation o
		WHERE o.client_id = $1 ORDER BY o.observed_at DESC LIMIT $2 OFFSET $3`, clientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

func (r *repoPG) LatestPerClient(ctx context.Context) ([]*DashboardEntry, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT DISTINCT ON (o.client_id) `+obsCols+`,
			COALESCE(NULLIF(c.preferred_name, ''), c.first_name) || ' ' || c.last_name
		FROM news2_observation o
		JOIN client c ON c.id = o.client_id
		WHERE c.status = 'active'
		ORDER BY o.client_id, o.observed_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*DashboardEntry
	for rows.Next() {
		var e DashboardEntry
		o, err := scanObservation(rows, &e.ClientName)
		if err != nil {
			return nil, err
		}
		e.Observation = o
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
