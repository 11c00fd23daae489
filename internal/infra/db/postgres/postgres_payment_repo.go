package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, subscription_id, branch_id, amount, currency, method, status,
       receipt_ref, reviewer_id, rejection_reason, uploaded_at, reviewed_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, subscription_id, branch_id, amount, currency, method, status,
  receipt_ref, reviewer_id, rejection_reason, uploaded_at, reviewed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  amount=$4, currency=$5, status=$7, receipt_ref=$8, reviewer_id=$9,
  rejection_reason=$10, reviewed_at=$12;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.SubscriptionID, p.BranchID, p.Amount, p.Currency, p.Method, p.Status,
		p.ReceiptRef, p.ReviewerID, p.RejectionReason, p.UploadedAt, p.ReviewedAt,
	)
	return err
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListPendingReview(ctx context.Context, tx repository.Tx, limit int) ([]*model.Payment, error) {
	q := `
SELECT ` + paymentColumns + `
  FROM payments
 WHERE status='pending' AND receipt_ref IS NOT NULL
 ORDER BY uploaded_at ASC, id ASC
 LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// UpdateReviewIfPending guards on status so two reviewers cannot both decide the same receipt.
func (r *paymentRepo) UpdateReviewIfPending(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	const q = `
UPDATE payments
   SET status=$2, amount=$3, reviewer_id=$4, rejection_reason=$5, reviewed_at=$6
 WHERE id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Status, p.Amount, p.ReviewerID, p.RejectionReason, p.ReviewedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p      model.Payment
		method string
		status string
	)
	if err := row.Scan(
		&p.ID, &p.SubscriptionID, &p.BranchID, &p.Amount, &p.Currency, &method, &status,
		&p.ReceiptRef, &p.ReviewerID, &p.RejectionReason, &p.UploadedAt, &p.ReviewedAt,
	); err != nil {
		return nil, scanError(err)
	}
	p.Method = model.PaymentMethod(method)
	p.Status = model.PaymentStatus(status)
	return &p, nil
}
