package account

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// requireAdmin loads the caller and verifies it is a firm administrator.
// Every approval operation is scoped to grants whose firm is the caller;
// an administrator can never see or mutate another firm's grants.
func (s *Service) requireAdmin(ctx context.Context, adminID string) (*Account, error) {
	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		return nil, ErrForbidden
	}
	admin, err := s.store.Accounts(ctx).Find(ctx, adminID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if admin.Kind != KindFirmAdmin {
		return nil, ErrForbidden
	}
	return admin, nil
}

// ListMembers returns every account affiliated with the caller's firm,
// each annotated with its grant status and the permission set in force.
func (s *Service) ListMembers(ctx context.Context, adminID string) ([]Member, error) {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	grants, err := s.store.Grants(ctx).ListByFirm(ctx, admin.ID)
	if err != nil {
		return nil, err
	}
	accounts := s.store.Accounts(ctx)
	members := make([]Member, 0, len(grants))
	for _, g := range grants {
		acct, err := accounts.Find(ctx, g.SubjectAccountID)
		if err != nil {
			return nil, fmt.Errorf("load member %s: %w", g.SubjectAccountID, err)
		}
		members = append(members, Member{
			Account:     *acct,
			Status:      g.Status,
			Permissions: g.Permissions,
		})
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].Account.Email < members[j].Account.Email
	})
	return members, nil
}

// UpdateMemberStatus moves a member's grant to the requested status and
// mirrors it onto the account. The grant write is attempted first; if the
// mirror write then fails the error is reported as partially applied so a
// reconciliation pass can repair the drift.
func (s *Service) UpdateMemberStatus(ctx context.Context, adminID, subjectID, rawStatus string) error {
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return err
	}
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	grants := s.store.Grants(ctx)
	grant, err := grants.FindBySubject(ctx, strings.TrimSpace(subjectID), admin.ID)
	if err != nil {
		return err
	}

	if m, ok := grants.(StatusMirror); ok {
		return m.UpdateStatusWithMirror(ctx, grant.ID, grant.SubjectAccountID, status)
	}

	if err := grants.UpdateStatus(ctx, grant.ID, status); err != nil {
		return err
	}
	if err := s.store.Accounts(ctx).UpdateStatus(ctx, grant.SubjectAccountID, status); err != nil {
		return fmt.Errorf("%w: grant %s updated but account mirror failed: %v", ErrPartiallyApplied, grant.ID, err)
	}
	return nil
}

// UpdateMemberPermissions replaces a member's grant permissions wholesale.
// The account keeps no separate permission copy, so a single write
// suffices.
func (s *Service) UpdateMemberPermissions(ctx context.Context, adminID, subjectID string, perms PermissionSet) error {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	grants := s.store.Grants(ctx)
	grant, err := grants.FindBySubject(ctx, strings.TrimSpace(subjectID), admin.ID)
	if err != nil {
		return err
	}
	return grants.UpdatePermissions(ctx, grant.ID, perms)
}

// Unlink severs a member from the firm: the grant is deleted and the
// account returns to an unaffiliated pending state. The account row
// itself survives.
func (s *Service) Unlink(ctx context.Context, adminID, subjectID string) error {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	grants := s.store.Grants(ctx)
	grant, err := grants.FindBySubject(ctx, strings.TrimSpace(subjectID), admin.ID)
	if err != nil {
		return err
	}
	if err := grants.Delete(ctx, grant.ID); err != nil {
		return err
	}
	if err := s.store.Accounts(ctx).ResetFirm(ctx, grant.SubjectAccountID); err != nil {
		return fmt.Errorf("%w: grant %s deleted but account reset failed: %v", ErrPartiallyApplied, grant.ID, err)
	}
	return nil
}
