package account

import "context"

// Store describes the persistence the authorization core requires. The two
// sub-stores are the only shared mutable state in the system; both must be
// safe for concurrent readers and writers.
type Store interface {
	Accounts(ctx context.Context) AccountStore
	Grants(ctx context.Context) GrantStore
}

// AccountStore manages account rows.
type AccountStore interface {
	Create(ctx context.Context, a *Account) error
	Find(ctx context.Context, id string) (*Account, error)
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*Account, error)
	// FindFirmByName resolves a firm administrator account by its exact,
	// case-sensitive firm name.
	FindFirmByName(ctx context.Context, name string) (*Account, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	// ResetFirm clears the firm name and returns the account to pending,
	// the post-unlink state.
	ResetFirm(ctx context.Context, id string) error
	// Delete removes the row entirely. Only the registration rollback path
	// uses it; nothing else hard-deletes accounts.
	Delete(ctx context.Context, id string) error
}

// GrantStore manages access grants. Create must enforce uniqueness of the
// (subject, firm) pair and report ErrAlreadyExists on a duplicate.
type GrantStore interface {
	Create(ctx context.Context, g *AccessGrant) error
	FindBySubject(ctx context.Context, subjectID, firmID string) (*AccessGrant, error)
	ListByFirm(ctx context.Context, firmID string) ([]*AccessGrant, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdatePermissions(ctx context.Context, id string, perms PermissionSet) error
	Delete(ctx context.Context, id string) error
}

// StatusMirror is an optional upgrade a GrantStore may implement when its
// backend can write the grant status and the account mirror atomically.
// The service falls back to the documented two-write protocol otherwise.
type StatusMirror interface {
	UpdateStatusWithMirror(ctx context.Context, grantID, subjectID string, status Status) error
}
