package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carehub/carehub/internal/platform/db"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// =========== Client Repository ===========

type clientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &clientRepoPG{pool: pool}
}

const clientCols = `id, first_name, last_name, preferred_name, date_of_birth, nhs_number,
	branch_id, status, address, phone, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.PreferredName, &c.DateOfBirth,
		&c.NHSNumber, &c.BranchID, &c.Status, &c.Address, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clientRepoPG) Create(ctx context.Context, c *Client) error {
	c.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO client (id, first_name, last_name, preferred_name, date_of_birth,
			nhs_number, branch_id, status, address, phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		c.ID, c.FirstName, c.LastName, c.PreferredName, c.DateOfBirth,
		c.NHSNumber, c.BranchID, c.Status, c.Address, c.Phone,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateNHS
	}
	return err
}

func (r *clientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	return scanClient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+clientCols+` FROM client WHERE id = $1`, id))
}

func (r *clientRepoPG) Update(ctx context.Context, c *Client) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE client SET first_name=$2, last_name=$3, preferred_name=$4, date_of_birth=$5,
			nhs_number=$6, branch_id=$7, status=$8, address=$9, phone=$10, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.FirstName, c.LastName, c.PreferredName, c.DateOfBirth,
		c.NHSNumber, c.BranchID, c.Status, c.Address, c.Phone,
	).Scan(&c.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrDuplicateNHS
	}
	return err
}

func (r *clientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM client WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *clientRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Client, int, error) {
	var conds []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.BranchID != "" {
		args = append(args, f.BranchID)
		conds = append(conds, fmt.Sprintf("branch_id = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR preferred_name ILIKE $%d OR nhs_number ILIKE $%d)", n, n, n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM client`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT %s FROM client%s ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`,
		clientCols, where, n+1, n+2), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

// =========== Agreement Repository ===========

type agreementRepoPG struct{ pool *pgxpool.Pool }

func NewAgreementRepoPG(pool *pgxpool.Pool) AgreementRepository {
	return &agreementRepoPG{pool: pool}
}

const agreementCols = `id, client_id, title, start_date, end_date, status, attachment_id,
	created_by, created_at, updated_at`

func scanAgreement(row pgx.Row) (*Agreement, error) {
	var a Agreement
	err := row.Scan(&a.ID, &a.ClientID, &a.Title, &a.StartDate, &a.EndDate, &a.Status,
		&a.AttachmentID, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAgreementNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *agreementRepoPG) Create(ctx context.Context, a *Agreement) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO client_agreement (id, client_id, title, start_date, end_date, status,
			attachment_id, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		a.ID, a.ClientID, a.Title, a.StartDate, a.EndDate, a.Status, a.AttachmentID, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *agreementRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Agreement, error) {
	return scanAgreement(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+agreementCols+` FROM client_agreement WHERE id = $1`, id))
}

func (r *agreementRepoPG) Update(ctx context.Context, a *Agreement) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE client_agreement SET title=$2, start_date=$3, end_date=$4, status=$5,
			attachment_id=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Title, a.StartDate, a.EndDate, a.Status, a.AttachmentID,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAgreementNotFound
	}
	return err
}

func (r *agreementRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM client_agreement WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAgreementNotFound
	}
	return nil
}

func (r *agreementRepoPG) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*Agreement, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+agreementCols+` FROM client_agreement WHERE client_id = $1 ORDER BY start_date DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
