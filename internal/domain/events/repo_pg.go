package events

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const eventCols = `id, type, category, severity, status, title, description,
	immediate_action, location, occurred_at, client_id, branch_id, reported_by,
	body_map_points, staff_involved, witnesses, follow_up, compliance,
	investigation, created_at, updated_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	var points, followUp, compliance, investigation []byte
	err := row.Scan(&e.ID, &e.Type, &e.Category, &e.Severity, &e.Status, &e.Title,
		&e.Description, &e.ImmediateAction, &e.Location, &e.OccurredAt, &e.ClientID,
		&e.BranchID, &e.ReportedBy, &points, &e.StaffInvolved, &e.Witnesses,
		&followUp, &compliance, &investigation, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		name string
		raw  []byte
		dst  interface{}
	}{
		{"body map points", points, &e.BodyMapPoints},
		{"follow-up", followUp, &e.FollowUp},
		{"compliance", compliance, &e.Compliance},
		{"investigation", investigation, &e.Investigation},
	} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode %s of event %s: %w", f.name, e.ID, err)
		}
	}
	return &e, nil
}

type encodedEvent struct {
	points, followUp, compliance, investigation []byte
}

func encodeEvent(e *Event) (encodedEvent, error) {
	var enc encodedEvent
	var err error
	points := e.BodyMapPoints
	if points == nil {
		points = []BodyMapPoint{}
	}
	if enc.points, err = json.Marshal(points); err != nil {
		return enc, fmt.Errorf("encode body map points: %w", err)
	}
	if enc.followUp, err = json.Marshal(e.FollowUp); err != nil {
		return enc, fmt.Errorf("encode follow-up: %w", err)
	}
	if enc.compliance, err = json.Marshal(e.Compliance); err != nil {
		return enc, fmt.Errorf("encode compliance: %w", err)
	}
	if enc.investigation, err = json.Marshal(e.Investigation); err != nil {
		return enc, fmt.Errorf("encode investigation: %w", err)
	}
	return enc, nil
}

func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *repoPG) Create(ctx context.Context, e *Event) error {
	e.ID = uuid.New()
	enc, err := encodeEvent(e)
	if err != nil {
		return err
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO event_log (id, type, category, severity, status, title, description,
			immediate_action, location, occurred_at, client_id, branch_id, reported_by,
			body_map_points, staff_involved, witnesses, follow_up, compliance, investigation)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING created_at, updated_at`,
		e.ID, e.Type, e.Category, e.Severity, e.Status, e.Title, e.Description,
		e.ImmediateAction, e.Location, e.OccurredAt, e.ClientID, e.BranchID, e.ReportedBy,
		enc.points, textArray(e.StaffInvolved), textArray(e.Witnesses),
		enc.followUp, enc.compliance, enc.investigation,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	return scanEvent(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+eventCols+` FROM event_log WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, e *Event) error {
	enc, err := encodeEvent(e)
	if err != nil {
		return err
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE event_log SET type=$2, category=$3, severity=$4, status=$5, title=$6,
			description=$7, immediate_action=$8, location=$9, occurred_at=$10,
			client_id=$11, branch_id=$12, body_map_points=$13, staff_involved=$14,
			witnesses=$15, follow_up=$16, compliance=$17, investigation=$18,
			updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		e.ID, e.Type, e.Category, e.Severity, e.Status, e.Title,
		e.Description, e.ImmediateAction, e.Location, e.OccurredAt,
		e.ClientID, e.BranchID, enc.points, textArray(e.StaffInvolved),
		textArray(e.Witnesses), enc.followUp, enc.compliance, enc.investigation,
	).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM event_log WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// whereClause renders f as an AND-joined WHERE clause with positional
// arguments. It returns an empty clause when nothing is set.
func whereClause(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Severity != "" {
		add("severity = $%d", f.Severity)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.ClientID != nil {
		add("client_id = $%d", *f.ClientID)
	}
	if f.From != nil {
		add("occurred_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("occurred_at <= $%d", *f.To)
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR location ILIKE $%d)", n, n, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Event, int, error) {
	where, args := whereClause(f)
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM event_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM event_log%s ORDER BY occurred_at DESC, id LIMIT $%d OFFSET $%d`,
		eventCols, where, n+1, n+2)
	rows, err := conn.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
