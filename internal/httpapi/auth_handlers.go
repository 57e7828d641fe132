package httpapi

import (
	"errors"
	"net/http"
	"time"

	"lexora.org/internal/account"
	"lexora.org/internal/audit"
	"lexora.org/internal/obs"
	"lexora.org/internal/token"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Kind        string `json:"kind"`
	DisplayName string `json:"display_name"`
	FirmName    string `json:"firm_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token       string                `json:"token"`
	ExpiresAt   time.Time             `json:"expires_at"`
	Account     *account.Account      `json:"account"`
	Permissions account.PermissionSet `json:"permissions"`
	Firm        *token.FirmContext    `json:"firm,omitempty"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	acct, err := a.svc.Register(r.Context(), account.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		Kind:        req.Kind,
		DisplayName: req.DisplayName,
		FirmName:    req.FirmName,
	})
	if err != nil {
		handleAccountError(w, r, err)
		return
	}

	// The stamp carries the account's current status so an affiliated
	// registrant sees "pending" without a second round trip.
	identity := token.Identity{
		AccountID:   acct.ID,
		Email:       acct.Email,
		Kind:        acct.Kind,
		Status:      acct.Status,
		Permissions: acct.Permissions,
	}
	stamp, expiresAt, err := token.Issue(identity, a.stampTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token issuance failed")
		return
	}

	obs.ObserveRegistration(string(acct.Kind))
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"account_id": acct.ID,
		"kind":       string(acct.Kind),
		"status":     string(acct.Status),
	})

	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:       stamp,
		ExpiresAt:   expiresAt,
		Account:     acct,
		Permissions: acct.Permissions,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.ObserveLoginDecision(loginVerdict(err))
		_ = audit.LogEvent(r.Context(), "auth.login.deny", map[string]any{
			"email":  req.Email,
			"reason": loginVerdict(err),
		})
		handleAccountError(w, r, err)
		return
	}

	var firm *token.FirmContext
	if decision.Firm != nil {
		firm = &token.FirmContext{ID: decision.Firm.ID, Name: decision.Firm.FirmName}
	}
	identity := token.Identity{
		AccountID:   decision.Account.ID,
		Email:       decision.Account.Email,
		Kind:        decision.Account.Kind,
		Status:      account.StatusApproved,
		Permissions: decision.Permissions,
		Firm:        firm,
	}
	stamp, expiresAt, err := token.Issue(identity, a.stampTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token issuance failed")
		return
	}

	obs.ObserveLoginDecision("allow")
	_ = audit.LogEvent(r.Context(), "auth.login.allow", map[string]any{
		"account_id": decision.Account.ID,
		"kind":       string(decision.Account.Kind),
	})

	writeJSON(w, http.StatusOK, sessionResponse{
		Token:       stamp,
		ExpiresAt:   expiresAt,
		Account:     decision.Account,
		Permissions: decision.Permissions,
		Firm:        firm,
	})
}

// handlePasswordReset deliberately reports 501: reset-token issuance is an
// external collaborator that has not been designed yet, and pretending
// success would hide that.
func (a *API) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	handleAccountError(w, r, account.ErrNotImplemented)
}

func loginVerdict(err error) string {
	switch {
	case err == nil:
		return "allow"
	case errors.Is(err, account.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, account.ErrPendingApproval):
		return "pending"
	case errors.Is(err, account.ErrRejected):
		return "rejected"
	case errors.Is(err, account.ErrBlocked):
		return "blocked"
	case errors.Is(err, account.ErrFirmNotFound):
		return "firm_not_found"
	default:
		return "error"
	}
}
