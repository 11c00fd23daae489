package postgres

import (
	"context"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

const planColumns = `id, name, price_monthly, price_annual, currency, trial_days, grace_period_days, created_at`

func (r *PostgresPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	const sql = `
INSERT INTO subscription_plans (id, name, price_monthly, price_annual, currency, trial_days, grace_period_days, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE
  SET name              = EXCLUDED.name,
      price_monthly     = EXCLUDED.price_monthly,
      price_annual      = EXCLUDED.price_annual,
      currency          = EXCLUDED.currency,
      trial_days        = EXCLUDED.trial_days,
      grace_period_days = EXCLUDED.grace_period_days;
`
	_, err := execSQL(ctx, r.pool, tx, sql,
		plan.ID, plan.Name, plan.PriceMonthly, plan.PriceAnnual, plan.Currency,
		plan.TrialDays, plan.GracePeriodDays, plan.CreatedAt,
	)
	return err
}

func (r *PostgresPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+planColumns+` FROM subscription_plans WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *PostgresPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+planColumns+` FROM subscription_plans ORDER BY price_monthly, name;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
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

func scanPlan(row pgx.Row) (*model.Plan, error) {
	var p model.Plan
	if err := row.Scan(
		&p.ID, &p.Name, &p.PriceMonthly, &p.PriceAnnual, &p.Currency,
		&p.TrialDays, &p.GracePeriodDays, &p.CreatedAt,
	); err != nil {
		return nil, scanError(err)
	}
	return &p, nil
}
