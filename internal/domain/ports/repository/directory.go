package repository

import (
	"context"

	"laundry-billing/internal/domain/model"
)

// DirectoryRepository reads tenant data owned by the operational side of the platform.
type DirectoryRepository interface {
	// BranchContact loads the branch, its laundry and the branch's active profiles.
	BranchContact(ctx context.Context, tx Tx, branchID string) (*model.BranchContact, error)
}
