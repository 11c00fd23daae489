package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, branch_id, plan_id, status, billing_interval, trial_ends_at,
       current_period_end, past_due_since, suspended_at, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if err := s.Validate(); err != nil {
		return err
	}
	const q = `
INSERT INTO subscriptions (
  id, branch_id, plan_id, status, billing_interval, trial_ends_at,
  current_period_end, past_due_since, suspended_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  plan_id=$3, status=$4, billing_interval=$5, trial_ends_at=$6,
  current_period_end=$7, past_due_since=$8, suspended_at=$9, updated_at=$11;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.BranchID, s.PlanID, s.Status, s.BillingInterval, s.TrialEndsAt,
		s.CurrentPeriodEnd, s.PastDueSince, s.SuspendedAt, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1`
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	return r.queryOne(ctx, tx, q, id)
}

func (r *subscriptionRepo) FindByBranch(ctx context.Context, tx repository.Tx, branchID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE branch_id=$1`
	return r.queryOne(ctx, tx, q, branchID)
}

func (r *subscriptionRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.SubscriptionStatus, afterID string, limit int) ([]*model.Subscription, error) {
	q := `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE status=$1 AND id > $2
 ORDER BY id
 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, status, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// ApplyTransition is a compare-and-set on status, so a concurrent approval or a
// second engine instance cannot be overwritten.
func (r *subscriptionRepo) ApplyTransition(ctx context.Context, tx repository.Tx, id string, t model.Transition) (bool, error) {
	var q string
	switch t.To {
	case model.SubscriptionStatusPastDue:
		q = `UPDATE subscriptions SET status=$3, past_due_since=$4, updated_at=$4 WHERE id=$1 AND status=$2`
	case model.SubscriptionStatusSuspended:
		q = `UPDATE subscriptions SET status=$3, suspended_at=$4, updated_at=$4 WHERE id=$1 AND status=$2`
	default:
		return false, domain.ErrInvalidTransition
	}
	tag, err := execSQL(ctx, r.pool, tx, q, id, t.From, t.To, t.At)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) Reactivate(ctx context.Context, tx repository.Tx, id string, periodEnd, now time.Time) error {
	const q = `
UPDATE subscriptions
   SET status='active', current_period_end=$2, past_due_since=NULL, updated_at=$3
 WHERE id=$1 AND status <> 'cancelled';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, periodEnd, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) Cancel(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error) {
	const q = `UPDATE subscriptions SET status='cancelled', updated_at=$2 WHERE id=$1 AND status <> 'cancelled'`
	tag, err := execSQL(ctx, r.pool, tx, q, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.SubscriptionStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return counts, nil
}

// ---- helpers ----

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var (
		s        model.Subscription
		status   string
		interval string
	)
	if err := row.Scan(
		&s.ID, &s.BranchID, &s.PlanID, &status, &interval, &s.TrialEndsAt,
		&s.CurrentPeriodEnd, &s.PastDueSince, &s.SuspendedAt, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, scanError(err)
	}
	s.Status = model.SubscriptionStatus(status)
	s.BillingInterval = model.BillingInterval(interval)
	return &s, nil
}
