package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Decision is a successful login verdict: the account, the permission set
// in force for this session and, for firm-scoped sessions, the firm
// account providing the context.
type Decision struct {
	Account     *Account
	Permissions PermissionSet
	Firm        *Account
}

// Login authenticates a credential pair and decides session eligibility.
// The branch order is load-bearing: each later branch assumes the earlier
// ones failed. An unknown email and a wrong password are indistinguishable
// to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Decision, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Decision{}, ErrInvalidCredentials
	}

	accounts := s.store.Accounts(ctx)
	acct, err := accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Decision{}, ErrInvalidCredentials
		}
		return Decision{}, err
	}
	if err := VerifyPassword(acct.PasswordHash, password); err != nil {
		return Decision{}, ErrInvalidCredentials
	}

	switch {
	case acct.Kind == KindFirmAdmin:
		// Firm admins self-approve and always carry the full set.
		return Decision{
			Account:     acct,
			Permissions: DefaultPermissions(KindFirmAdmin),
			Firm:        acct,
		}, nil

	case !acct.Kind.Affiliated():
		// Independent practitioners and clients: default capabilities,
		// lawyerAccess always off outside a firm context.
		perms := acct.Permissions
		perms.LawyerAccess = false
		return Decision{Account: acct, Permissions: perms}, nil
	}

	// Affiliated kinds from here on. An unlinked account keeps its kind
	// but has no firm; it must re-register or be re-linked, not fall
	// through to independent access.
	if acct.FirmName == "" {
		return Decision{}, fmt.Errorf("%w: account is not linked to a firm", ErrFirmNotFound)
	}
	firm, err := accounts.FindFirmByName(ctx, acct.FirmName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Decision{}, fmt.Errorf("%w: %q", ErrFirmNotFound, acct.FirmName)
		}
		return Decision{}, err
	}

	grants := s.store.Grants(ctx)
	grant, err := grants.FindBySubject(ctx, acct.ID, firm.ID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return Decision{}, err
		}
		// Self-healing: registration should have created the grant, but a
		// missing one is recreated here as pending rather than locking the
		// account out of the approval flow entirely.
		grant = &AccessGrant{
			SubjectAccountID: acct.ID,
			FirmAccountID:    firm.ID,
			Status:           StatusPending,
			Permissions:      DefaultPermissions(acct.Kind),
		}
		if err := grants.Create(ctx, grant); err != nil && !errors.Is(err, ErrAlreadyExists) {
			return Decision{}, err
		}
		return Decision{}, ErrPendingApproval
	}

	switch grant.Status {
	case StatusApproved:
		return Decision{Account: acct, Permissions: grant.Permissions, Firm: firm}, nil
	case StatusPending:
		return Decision{}, ErrPendingApproval
	case StatusRejected:
		return Decision{}, ErrRejected
	case StatusBlocked:
		return Decision{}, ErrBlocked
	default:
		return Decision{}, fmt.Errorf("%w: %q", ErrInvalidStatus, grant.Status)
	}
}
