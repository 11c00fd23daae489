package model

// Laundry is the tenant. ContactEmail is the registered billing contact.
type Laundry struct {
	ID           string
	Name         string
	ContactEmail string
}

type Branch struct {
	ID        string
	LaundryID string
	Name      string
}

// Profile is a staff account attached to a branch.
type Profile struct {
	ID       string
	BranchID string
	Email    string
	FullName string
	Active   bool
}

// BranchContact is what the dispatcher needs to address a branch.
type BranchContact struct {
	Branch   Branch
	Laundry  Laundry
	Profiles []Profile
}
