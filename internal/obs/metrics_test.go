package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"/healthz":             "/healthz",
		"/v1/query":            "/v1/query",
		"/token/revoke/abc123": "/token/revoke/:id",
		"/token/revoke":        "/token/revoke",
		"/token/list?x=1":      "/token/list",
		"":                     "/",
	}
	for in, want := range cases {
		if got := CanonicalPath(in); got != want {
			t.Errorf("CanonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}
