package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"lexora.org/internal/account"
	"lexora.org/internal/token"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("LEXORA_AUTH_SECRET", "test-secret")
	token.ResetSecretForTests()
	t.Cleanup(token.ResetSecretForTests)

	svc, err := account.NewService(account.NewInMemory())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	api := New(ReadyProbe{}, "test", svc)
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, bearer string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, bearer string) *http.Response {
	return c.do(http.MethodPost, path, body, bearer)
}

func (c *apiClient) register(email, kind, firmName string) sessionResponse {
	c.t.Helper()
	resp := c.post("/v1/auth/register", map[string]any{
		"email":     email,
		"password":  "hunter2hunter2",
		"kind":      kind,
		"firm_name": firmName,
	}, "")
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register %s: unexpected status %d", email, resp.StatusCode)
	}
	return decode[sessionResponse](c.t, resp)
}

func (c *apiClient) login(email, password string) *http.Response {
	c.t.Helper()
	return c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, "")
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAPIProbes(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodGet, "/healthz", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
	health := decode[map[string]any](t, resp)
	if health["service"] != "lexora-api" {
		t.Fatalf("unexpected service name: %v", health["service"])
	}

	resp = api.do(http.MethodGet, "/readyz", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.do(http.MethodGet, "/v1/info", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info: %d", resp.StatusCode)
	}
	info := decode[map[string]any](t, resp)
	if info["version"] != "test" {
		t.Fatalf("unexpected version: %v", info["version"])
	}
}

func TestAPIRegisterIndependent(t *testing.T) {
	api := newTestAPI(t)

	session := api.register("solo@example.com", "lawyer", "")
	if session.Token == "" {
		t.Fatalf("expected a session token")
	}
	if session.Account.Status != account.StatusApproved {
		t.Fatalf("expected approved, got %s", session.Account.Status)
	}
	if session.Permissions.LawyerAccess {
		t.Fatalf("independent lawyer must not carry lawyerAccess")
	}

	claims, err := token.ParseAndValidate(session.Token)
	if err != nil {
		t.Fatalf("stamp does not verify: %v", err)
	}
	if claims.Subject != session.Account.ID {
		t.Fatalf("stamp subject mismatch")
	}
}

func TestAPIRegisterAffiliatedPending(t *testing.T) {
	api := newTestAPI(t)
	api.register("admin@acme.law", "admin", "Acme Law")

	session := api.register("assoc@acme.law", "firm-lawyer", "Acme Law")
	if session.Account.Status != account.StatusPending {
		t.Fatalf("expected pending, got %s", session.Account.Status)
	}

	claims, err := token.ParseAndValidate(session.Token)
	if err != nil {
		t.Fatalf("stamp does not verify: %v", err)
	}
	if claims.Status != account.StatusPending {
		t.Fatalf("stamp must carry pending status, got %s", claims.Status)
	}
}

func TestAPIRegisterErrors(t *testing.T) {
	api := newTestAPI(t)

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"invalid kind", map[string]any{
			"email": "x@example.com", "password": "hunter2hunter2", "kind": "wizard",
		}, http.StatusBadRequest},
		{"missing firm name", map[string]any{
			"email": "x@example.com", "password": "hunter2hunter2", "kind": "firm-lawyer",
		}, http.StatusBadRequest},
		{"unknown firm", map[string]any{
			"email": "x@example.com", "password": "hunter2hunter2", "kind": "firm-lawyer",
			"firm_name": "No Such Firm",
		}, http.StatusNotFound},
		{"unknown field", map[string]any{
			"email": "x@example.com", "password": "hunter2hunter2", "kind": "lawyer",
			"role": "admin",
		}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := api.post("/v1/auth/register", tc.body, "")
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, resp.StatusCode)
		}
		resp.Body.Close()
	}

	if resp := api.post("/v1/auth/register", nil, ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty body: expected 400, got %d", resp.StatusCode)
	}

	api.register("dup@example.com", "lawyer", "")
	resp := api.post("/v1/auth/register", map[string]any{
		"email": "DUP@example.com", "password": "hunter2hunter2", "kind": "lawyer",
	}, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate email: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPILoginStatuses(t *testing.T) {
	api := newTestAPI(t)
	api.register("admin@acme.law", "admin", "Acme Law")
	api.register("assoc@acme.law", "firm-lawyer", "Acme Law")

	resp := api.login("ghost@example.com", "whatever")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown email: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.login("admin@acme.law", "wrong-password")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Pending member: 403 plus the approval state for the client UI.
	resp = api.login("assoc@acme.law", "hunter2hunter2")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("pending member: expected 403, got %d", resp.StatusCode)
	}
	denied := decode[map[string]any](t, resp)
	if denied["status"] != "pending" {
		t.Fatalf("expected status=pending in denial, got %v", denied)
	}

	resp = api.login("admin@acme.law", "hunter2hunter2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin login: expected 200, got %d", resp.StatusCode)
	}
	session := decode[sessionResponse](t, resp)
	if session.Firm == nil || session.Firm.Name != "Acme Law" {
		t.Fatalf("admin session missing firm context: %+v", session.Firm)
	}
	if !session.Permissions.LawyerAccess {
		t.Fatalf("admin session must carry lawyerAccess")
	}
}

func TestAPIPasswordResetNotImplemented(t *testing.T) {
	api := newTestAPI(t)
	resp := api.post("/v1/auth/password-reset", map[string]any{"email": "x@example.com"}, "")
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIFirmEndpointsRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodGet, "/v1/firm/members", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.do(http.MethodGet, "/v1/firm/members", nil, "not-a-stamp")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIFirmMemberLifecycle(t *testing.T) {
	api := newTestAPI(t)
	admin := api.register("admin@acme.law", "admin", "Acme Law")
	member := api.register("assoc@acme.law", "firm-lawyer", "Acme Law")

	// The firm sees its one pending member.
	resp := api.do(http.MethodGet, "/v1/firm/members", nil, admin.Token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	list := decode[struct {
		Items []account.Member `json:"items"`
		Count int              `json:"count"`
	}](t, resp)
	if list.Count != 1 || list.Items[0].Status != account.StatusPending {
		t.Fatalf("unexpected member list: %+v", list)
	}

	// Approve, then the member's login succeeds with firm context.
	resp = api.do(http.MethodPut, "/v1/firm/members/"+member.Account.ID+"/status",
		map[string]any{"status": "approved"}, admin.Token)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("approve: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.login("assoc@acme.law", "hunter2hunter2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post-approval login: expected 200, got %d", resp.StatusCode)
	}
	session := decode[sessionResponse](t, resp)
	if session.Firm == nil || session.Firm.Name != "Acme Law" {
		t.Fatalf("missing firm context: %+v", session.Firm)
	}

	// Narrow permissions; the next login reflects the replacement.
	perms := account.DefaultPermissions(account.KindAffiliatedLawyer)
	perms.Billing = false
	resp = api.do(http.MethodPut, "/v1/firm/members/"+member.Account.ID+"/permissions",
		map[string]any{"permissions": perms}, admin.Token)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("permissions: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.login("assoc@acme.law", "hunter2hunter2")
	session = decode[sessionResponse](t, resp)
	if session.Permissions.Billing {
		t.Fatalf("billing permission must be revoked")
	}

	// Unlink: member drops out of the roster and cannot log in as affiliated.
	resp = api.do(http.MethodDelete, "/v1/firm/members/"+member.Account.ID, nil, admin.Token)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unlink: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.login("assoc@acme.law", "hunter2hunter2")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unlinked login: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIFirmMemberErrors(t *testing.T) {
	api := newTestAPI(t)
	admin := api.register("admin@acme.law", "admin", "Acme Law")
	member := api.register("assoc@acme.law", "firm-lawyer", "Acme Law")
	rival := api.register("admin@rival.law", "admin", "Rival Law")
	solo := api.register("solo@example.com", "lawyer", "")

	// Non-admins are refused outright.
	resp := api.do(http.MethodGet, "/v1/firm/members", nil, solo.Token)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin list: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Another firm's administrator cannot reach this member.
	resp = api.do(http.MethodPut, "/v1/firm/members/"+member.Account.ID+"/status",
		map[string]any{"status": "approved"}, rival.Token)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-firm: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.do(http.MethodPut, "/v1/firm/members/"+member.Account.ID+"/status",
		map[string]any{"status": "frozen"}, admin.Token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad status: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.do(http.MethodPost, "/v1/firm/members/"+member.Account.ID+"/status",
		map[string]any{"status": "approved"}, admin.Token)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method: expected 405, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.do(http.MethodGet, "/v1/firm/members/"+member.Account.ID+"/history", nil, admin.Token)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown subresource: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIRequestIDEcho(t *testing.T) {
	api := newTestAPI(t)

	req, err := http.NewRequest(http.MethodGet, api.baseURL+"/healthz", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Request-Id", "fixed-id-1")
	resp, err := api.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-Id"); got != "fixed-id-1" {
		t.Fatalf("request id not echoed: %q", got)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers")
	}
}
