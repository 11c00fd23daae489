package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/repository"
)

var _ repository.DirectoryRepository = (*directoryRepo)(nil)

// directoryRepo reads laundries, branches and profiles. Billing never writes them.
type directoryRepo struct {
	pool *pgxpool.Pool
}

func NewDirectoryRepo(pool *pgxpool.Pool) *directoryRepo {
	return &directoryRepo{pool: pool}
}

func (r *directoryRepo) BranchContact(ctx context.Context, tx repository.Tx, branchID string) (*model.BranchContact, error) {
	const q = `
SELECT b.id, b.laundry_id, b.name, l.id, l.name, COALESCE(l.contact_email, '')
  FROM branches b
  JOIN laundries l ON l.id = b.laundry_id
 WHERE b.id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, branchID)
	if err != nil {
		return nil, err
	}
	var c model.BranchContact
	if err := row.Scan(
		&c.Branch.ID, &c.Branch.LaundryID, &c.Branch.Name,
		&c.Laundry.ID, &c.Laundry.Name, &c.Laundry.ContactEmail,
	); err != nil {
		return nil, scanError(err)
	}

	const pq = `
SELECT id, branch_id, email, full_name, is_active
  FROM profiles
 WHERE branch_id = $1 AND is_active
 ORDER BY created_at, id;`
	rows, err := queryRows(ctx, r.pool, tx, pq, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.ID, &p.BranchID, &p.Email, &p.FullName, &p.Active); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		c.Profiles = append(c.Profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &c, nil
}
