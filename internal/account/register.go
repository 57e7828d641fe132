package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RegisterInput is the raw registration payload after transport decoding.
type RegisterInput struct {
	Email       string
	Password    string
	Kind        string
	DisplayName string
	FirmName    string
}

// Register classifies a registration, creates the account and, for
// affiliated kinds, the matching pending access grant under the named
// firm. When the firm cannot be resolved the just-created account is
// deleted again so a retry starts clean.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Account, error) {
	kind, err := ParseKind(input.Kind)
	if err != nil {
		return nil, err
	}
	// Intake guard carried over from the account registration flow: an
	// admin submission can never arrive shaped like an affiliated one.
	if kind == KindFirmAdmin && kind.Affiliated() {
		return nil, fmt.Errorf("%w: admin registration cannot be firm-affiliated", ErrInvalidKind)
	}

	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	firmName := strings.TrimSpace(input.FirmName)

	status := StatusApproved
	if kind.Affiliated() {
		if firmName == "" {
			return nil, ErrFirmNameRequired
		}
		status = StatusPending
	}
	if kind == KindFirmAdmin && firmName == "" {
		return nil, ErrFirmNameRequired
	}
	if kind == KindIndependent || kind == KindClient {
		firmName = ""
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	acct := &Account{
		Email:        email,
		PasswordHash: hash,
		Kind:         kind,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		FirmName:     firmName,
		Status:       status,
		Permissions:  DefaultPermissions(kind),
	}

	accounts := s.store.Accounts(ctx)
	if err := accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: email or firm name taken", ErrAlreadyExists)
		}
		return nil, err
	}

	if !kind.Affiliated() {
		return acct, nil
	}

	firm, err := accounts.FindFirmByName(ctx, firmName)
	if err != nil {
		// Compensating delete keeps retries idempotent: no orphaned
		// account may survive a failed firm resolution.
		_ = accounts.Delete(ctx, acct.ID)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrFirmNotFound, firmName)
		}
		return nil, err
	}

	grant := &AccessGrant{
		SubjectAccountID: acct.ID,
		FirmAccountID:    firm.ID,
		Status:           StatusPending,
		Permissions:      acct.Permissions,
	}
	if err := s.store.Grants(ctx).Create(ctx, grant); err != nil {
		_ = accounts.Delete(ctx, acct.ID)
		return nil, err
	}
	return acct, nil
}
