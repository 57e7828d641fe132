package account

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies an account at registration time. The five values are a
// closed set; every decision in the login path branches on them exhaustively.
type Kind string

const (
	// KindIndependent is a solo practitioner with no firm relationship.
	KindIndependent Kind = "lawyer"
	// KindFirmAdmin represents a law firm itself. Self-approved at
	// registration and the approver for everyone affiliated with the firm.
	KindFirmAdmin Kind = "admin"
	// KindAffiliatedLawyer is a lawyer working under a named firm.
	KindAffiliatedLawyer Kind = "firm-lawyer"
	// KindAffiliatedNonLawyer is firm staff without lawyer capabilities.
	KindAffiliatedNonLawyer Kind = "non-lawyer"
	// KindClient is an end client of the practice.
	KindClient Kind = "client"
)

// ParseKind validates a raw kind value submitted at registration.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.TrimSpace(strings.ToLower(raw))); k {
	case KindIndependent, KindFirmAdmin, KindAffiliatedLawyer, KindAffiliatedNonLawyer, KindClient:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
	}
}

// Affiliated reports whether accounts of this kind require firm approval
// before they may hold a session.
func (k Kind) Affiliated() bool {
	return k == KindAffiliatedLawyer || k == KindAffiliatedNonLawyer
}

// Status is the approval lifecycle shared by accounts and access grants.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusBlocked  Status = "blocked"
)

// ParseStatus validates a status value requested by a firm administrator.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.TrimSpace(strings.ToLower(raw))); s {
	case StatusPending, StatusApproved, StatusRejected, StatusBlocked:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// PermissionSet is the fixed capability record controlling feature
// visibility. Grants carry the set actually in force for a firm member;
// accounts carry the default computed at registration.
type PermissionSet struct {
	Dashboard          bool `json:"dashboard"`
	AIAssistant        bool `json:"aiAssistant"`
	CaseManagement     bool `json:"caseManagement"`
	DocumentManagement bool `json:"documentManagement"`
	ClientManagement   bool `json:"clientManagement"`
	TaskManagement     bool `json:"taskManagement"`
	Billing            bool `json:"billing"`
	LawyerAccess       bool `json:"lawyerAccess"`
}

// DefaultPermissions computes the capability set a fresh account of the
// given kind starts with. Everything is on except lawyerAccess, which only
// firm administrators hold by default.
func DefaultPermissions(kind Kind) PermissionSet {
	return PermissionSet{
		Dashboard:          true,
		AIAssistant:        true,
		CaseManagement:     true,
		DocumentManagement: true,
		ClientManagement:   true,
		TaskManagement:     true,
		Billing:            true,
		LawyerAccess:       kind == KindFirmAdmin,
	}
}

// Account is one person's identity, credential and coarse lifecycle state.
// For affiliated kinds the status field is a denormalized mirror of the
// access grant; the grant remains the source of truth for login
// eligibility.
type Account struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"`
	Kind         Kind          `json:"kind"`
	DisplayName  string        `json:"display_name,omitempty"`
	FirmName     string        `json:"firm_name,omitempty"`
	Status       Status        `json:"status"`
	Permissions  PermissionSet `json:"permissions"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// AccessGrant binds an affiliated account to a firm. Exactly one grant
// exists per (subject, firm) pair and its status alone decides whether the
// subject may log in as a firm member.
type AccessGrant struct {
	ID               string        `json:"id"`
	SubjectAccountID string        `json:"subject_account_id"`
	FirmAccountID    string        `json:"firm_account_id"`
	Status           Status        `json:"status"`
	Permissions      PermissionSet `json:"permissions"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Member is one row of a firm administrator's member listing: the account
// annotated with the grant's status and permission set. Status is the
// synthesized display value, with the grant taking priority over the
// account mirror.
type Member struct {
	Account     Account       `json:"account"`
	Status      Status        `json:"status"`
	Permissions PermissionSet `json:"permissions"`
}
