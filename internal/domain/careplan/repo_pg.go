package careplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carehub/carehub/internal/platform/db"
)

type carePlanRepoPG struct{ pool *pgxpool.Pool }

func NewCarePlanRepoPG(pool *pgxpool.Pool) CarePlanRepository {
	return &carePlanRepoPG{pool: pool}
}

const cpCols = `id, client_id, title, summary, status, needs, goals, interventions, risks,
	review_date, review_notes, signed_off_by, signed_off_at, created_by, created_at, updated_at`

func scanCarePlan(row pgx.Row) (*CarePlan, error) {
	var cp CarePlan
	var needs, goals, interventions, risks []byte
	err := row.Scan(&cp.ID, &cp.ClientID, &cp.Title, &cp.Summary, &cp.Status,
		&needs, &goals, &interventions, &risks,
		&cp.ReviewDate, &cp.ReviewNotes, &cp.SignedOffBy, &cp.SignedOffAt,
		&cp.CreatedBy, &cp.CreatedAt, &cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(needs, &cp.Needs); err != nil {
		return nil, fmt.Errorf("decode needs of care plan %s: %w", cp.ID, err)
	}
	if err := json.Unmarshal(goals, &cp.Goals); err != nil {
		return nil, fmt.Errorf("decode goals of care plan %s: %w", cp.ID, err)
	}
	if err := json.Unmarshal(interventions, &cp.Interventions); err != nil {
		return nil, fmt.Errorf("decode interventions of care plan %s: %w", cp.ID, err)
	}
	if err := json.Unmarshal(risks, &cp.Risks); err != nil {
		return nil, fmt.Errorf("decode risks of care plan %s: %w", cp.ID, err)
	}
	return &cp, nil
}

// jsonList encodes a section, writing nil as an empty array.
func jsonList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func encodeSections(cp *CarePlan) ([4][]byte, error) {
	var out [4][]byte
	var err error
	if out[0], err = jsonList(cp.Needs); err != nil {
		return out, fmt.Errorf("encode needs: %w", err)
	}
	if out[1], err = jsonList(cp.Goals); err != nil {
		return out, fmt.Errorf("encode goals: %w", err)
	}
	if out[2], err = jsonList(cp.Interventions); err != nil {
		return out, fmt.Errorf("encode interventions: %w", err)
	}
	if out[3], err = jsonList(cp.Risks); err != nil {
		return out, fmt.Errorf("encode risks: %w", err)
	}
	return out, nil
}

func (r *carePlanRepoPG) Create(ctx context.Context, cp *CarePlan) error {
	cp.ID = uuid.New()
	sec, err := encodeSections(cp)
	if err != nil {
		return err
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO care_plan (id, client_id, title, summary, status, needs, goals,
			interventions, risks, review_date, review_notes, signed_off_by, signed_off_at, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		cp.ID, cp.ClientID, cp.Title, cp.Summary, cp.Status, sec[0], sec[1], sec[2], sec[3],
		cp.ReviewDate, cp.ReviewNotes, cp.SignedOffBy, cp.SignedOffAt, cp.CreatedBy,
	).Scan(&cp.CreatedAt, &cp.UpdatedAt)
}

func (r *carePlanRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CarePlan, error) {
	return scanCarePlan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cpCols+` FROM care_plan WHERE id = $1`, id))
}

func (r *carePlanRepoPG) Update(ctx context.Context, cp *CarePlan) error {
	sec, err := encodeSections(cp)
	if err != nil {
		return err
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE care_plan SET title=$2, summary=$3, status=$4, needs=$5, goals=$6,
			interventions=$7, risks=$8, review_date=$9, review_notes=$10,
			signed_off_by=$11, signed_off_at=$12, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		cp.ID, cp.Title, cp.Summary, cp.Status, sec[0], sec[1], sec[2], sec[3],
		cp.ReviewDate, cp.ReviewNotes, cp.SignedOffBy, cp.SignedOffAt,
	).Scan(&cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *carePlanRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM care_plan WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *carePlanRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*CarePlan, int, error) {
	var conds []string
	var args []interface{}
	if f.ClientID != nil {
		args = append(args, *f.ClientID)
		conds = append(conds, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.ReviewDueBefore != nil {
		args = append(args, *f.ReviewDueBefore)
		conds = append(conds, fmt.Sprintf("review_date <= $%d AND status <> 'archived'", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM care_plan`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT %s FROM care_plan%s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		cpCols, where, n+1, n+2), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*CarePlan
	for rows.Next() {
		cp, err := scanCarePlan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, cp)
	}
	return items, total, rows.Err()
}
