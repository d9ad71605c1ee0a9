package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"paylink/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const linkColumns = "id, token, order_id, email, amount, created_at, status"

type ListFilter struct {
	OrderID string
	Email   string
	Status  domain.LinkStatus
	Page    int
	PerPage int
}

type PaymentLinkRepo interface {
	// Insert persists a new link and fills in its store-assigned id.
	// Returns domain.ErrDuplicateActive when another pending or paid link
	// already exists for the same order.
	Insert(ctx context.Context, link *domain.PaymentLink) error
	// FindByToken returns nil, nil when no record exists.
	FindByToken(ctx context.Context, token string) (*domain.PaymentLink, error)
	// FindActiveByOrderID returns the most recent pending or paid link for
	// the order, or nil, nil.
	FindActiveByOrderID(ctx context.Context, orderID string) (*domain.PaymentLink, error)
	// TransitionStatus applies a compare-and-set status update: the write
	// happens only if the current status is one of from. Reports whether a
	// row changed.
	TransitionStatus(ctx context.Context, id int64, to domain.LinkStatus, from ...domain.LinkStatus) (bool, error)
	// ListFiltered returns a page of links ordered by created_at descending
	// plus the unpaginated total. PerPage <= 0 disables pagination.
	ListFiltered(ctx context.Context, f ListFilter) ([]domain.PaymentLink, int64, error)
	// FindStalePending returns pending links created before the cutoff.
	FindStalePending(ctx context.Context, before time.Time, limit int) ([]domain.PaymentLink, error)
}

type paymentLinkRepo struct {
	db *sql.DB
}

func NewPaymentLinkRepo(db *sql.DB) PaymentLinkRepo {
	return &paymentLinkRepo{db: db}
}

func (r *paymentLinkRepo) Insert(ctx context.Context, link *domain.PaymentLink) error {
	query := `INSERT INTO payment_links (token, order_id, email, amount, created_at, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	err := r.db.QueryRowContext(
		ctx, query, link.Token, link.OrderID, link.Email, link.Amount, link.CreatedAt, link.Status,
	).Scan(&link.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "uq_payment_links_active_order" {
			return domain.ErrDuplicateActive
		}
		return err
	}
	return nil
}

func (r *paymentLinkRepo) FindByToken(ctx context.Context, token string) (*domain.PaymentLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_links WHERE token = $1`, linkColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, token))
}

func (r *paymentLinkRepo) FindActiveByOrderID(ctx context.Context, orderID string) (*domain.PaymentLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_links
		WHERE order_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1`, linkColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, orderID, domain.StatusPending, domain.StatusPaid))
}

func (r *paymentLinkRepo) TransitionStatus(ctx context.Context, id int64, to domain.LinkStatus, from ...domain.LinkStatus) (bool, error) {
	if len(from) == 0 {
		return false, errors.New("transition requires at least one allowed source status")
	}

	args := []any{to, id}
	placeholders := make([]string, len(from))
	for i, s := range from {
		args = append(args, s)
		placeholders[i] = fmt.Sprintf("$%d", i+3)
	}

	query := fmt.Sprintf(
		`UPDATE payment_links SET status = $1 WHERE id = $2 AND status IN (%s)`,
		strings.Join(placeholders, ", "),
	)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *paymentLinkRepo) ListFiltered(ctx context.Context, f ListFilter) ([]domain.PaymentLink, int64, error) {
	where, args := buildFilter(f)

	var total int64
	countQuery := `SELECT count(*) FROM payment_links` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM payment_links%s ORDER BY created_at DESC`, linkColumns, where)
	if f.PerPage > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, f.PerPage, (page-1)*f.PerPage)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	links, err := scanLinks(rows)
	if err != nil {
		return nil, 0, err
	}
	return links, total, nil
}

func (r *paymentLinkRepo) FindStalePending(ctx context.Context, before time.Time, limit int) ([]domain.PaymentLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_links
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`, linkColumns)

	rows, err := r.db.QueryContext(ctx, query, domain.StatusPending, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLinks(rows)
}

// buildFilter renders the shared WHERE clause: substring match on order id
// and email, exact match on status.
func buildFilter(f ListFilter) (string, []any) {
	var conds []string
	var args []any

	if f.OrderID != "" {
		args = append(args, "%"+f.OrderID+"%")
		conds = append(conds, fmt.Sprintf("order_id LIKE $%d", len(args)))
	}
	if f.Email != "" {
		args = append(args, "%"+f.Email+"%")
		conds = append(conds, fmt.Sprintf("email LIKE $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *paymentLinkRepo) scanOne(row *sql.Row) (*domain.PaymentLink, error) {
	var l domain.PaymentLink
	err := row.Scan(
		&l.ID,
		&l.Token,
		&l.OrderID,
		&l.Email,
		&l.Amount,
		&l.CreatedAt,
		&l.Status,
	)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanLinks(rows *sql.Rows) ([]domain.PaymentLink, error) {
	var links []domain.PaymentLink
	for rows.Next() {
		var l domain.PaymentLink
		if err := rows.Scan(
			&l.ID,
			&l.Token,
			&l.OrderID,
			&l.Email,
			&l.Amount,
			&l.CreatedAt,
			&l.Status,
		); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
