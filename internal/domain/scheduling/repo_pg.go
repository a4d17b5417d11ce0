package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

const bookingCols = `id, staff_id, client_id, start_at, end_at, status, notes, created_by, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.StaffID, &b.ClientID, &b.StartAt, &b.EndAt, &b.Status,
		&b.Notes, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collect(rows pgx.Rows) ([]*Booking, error) {
	defer rows.Close()
	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, b *Booking) error {
	b.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO booking (id, staff_id, client_id, start_at, end_at, status, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		b.ID, b.StaffID, b.ClientID, b.StartAt, b.EndAt, b.Status, b.Notes, b.CreatedBy,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return scanBooking(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+bookingCols+` FROM booking WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, b *Booking) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE booking SET staff_id=$2, client_id=$3, start_at=$4, end_at=$5, status=$6,
			notes=$7, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		b.ID, b.StaffID, b.ClientID, b.StartAt, b.EndAt, b.Status, b.Notes,
	).Scan(&b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM booking WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func whereClause(f ListFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.StaffID != "" {
		add("staff_id = $%d", f.StaffID)
	}
	if f.ClientID != nil {
		add("client_id = $%d", *f.ClientID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.From != nil {
		add("end_at > $%d", *f.From)
	}
	if f.To != nil {
		add("start_at < $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Booking, int, error) {
	conn := db.Conn(ctx, r.pool)
	where, args := whereClause(f)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM booking`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT %s FROM booking%s ORDER BY start_at LIMIT $%d OFFSET $%d`,
		bookingCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) LockStaff(ctx context.Context, staffID string) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('booking:' || $1))`, staffID)
	return err
}

func (r *repoPG) Overlapping(ctx context.Context, staffID string, start, end time.Time, exclude uuid.UUID) ([]*Booking, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+bookingCols+` FROM booking
		WHERE staff_id = $1 AND status <> 'cancelled' AND start_at < $3 AND end_at > $2 AND id <> $4
		ORDER BY start_at`, staffID, start, end, exclude)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}
