package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/v1/auth/login", "/v1/auth/login"},
		{"/v1/auth/login?next=1", "/v1/auth/login"},
		{"/v1/firm/members", "/v1/firm/members"},
		{"/v1/firm/members/", "/v1/firm/members/"},
		{"/v1/firm/members/01J8ZC6YQ0", "/v1/firm/members/:id"},
		{"/v1/firm/members/01J8ZC6YQ0/", "/v1/firm/members/:id"},
		{"/v1/firm/members/01J8ZC6YQ0/status", "/v1/firm/members/:id/status"},
		{"/v1/firm/members/01J8ZC6YQ0/permissions", "/v1/firm/members/:id/permissions"},
		{"/v1/firm/members/01J8ZC6YQ0/history", "/v1/firm/members/01J8ZC6YQ0/history"},
		{"/v1/firm/members/01J8ZC6YQ0/status?x=1", "/v1/firm/members/:id/status"},
	}
	for _, tc := range cases {
		if got := CanonicalPath(tc.in); got != tc.want {
			t.Errorf("CanonicalPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()
	SetReady(true)
	SetReady(false)
	ObserveLoginDecision("allow")
	ObserveRegistration("lawyer")
}
