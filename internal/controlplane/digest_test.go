package controlplane

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string) *DigestClient {
	t.Helper()
	c, err := NewDigestClient(baseURL, "pubkey", "privkey", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// Vector de referencia RFC 2617 §3.5: con estas entradas el response
// hash documentado es 6629fae49393a05397450978507c4ef1.
func TestAuthorize_GoldenVector(t *testing.T) {
	c, err := NewDigestClient("http://unused", "Mufasa", "Circle Of Life", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	c.cnonce = func() string { return "0a4f113b" }

	challenge := `Digest realm="testrealm@host.com", qop="auth,auth-int", nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093", opaque="5ccc069c403ebaf9f0171e9517f40e41"`
	auth, err := c.authorize(http.MethodGet, "/dir/index.html", challenge)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(auth, `response="6629fae49393a05397450978507c4ef1"`) {
		t.Fatalf("digest response mismatch: %s", auth)
	}
	for _, want := range []string{
		`username="Mufasa"`,
		`realm="testrealm@host.com"`,
		`nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093"`,
		`uri="/dir/index.html"`,
		`qop=auth`,
		`nc=00000001`,
		`cnonce="0a4f113b"`,
	} {
		if !strings.Contains(auth, want) {
			t.Fatalf("missing %s in %s", want, auth)
		}
	}
}

func TestDo_NoChallengePassthrough(t *testing.T) {
	var authSeen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authSeen = append(authSeen, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Do(context.Background(), http.MethodGet, "/x", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	// sin challenge no hay segundo request ni header de credenciales
	if len(authSeen) != 1 || authSeen[0] != "" {
		t.Fatalf("unexpected auth flow: %v", authSeen)
	}
}

func TestDo_ChallengeThenAuthorized(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") == "" {
			w.Header().Set("WWW-Authenticate", `Digest realm="ramify", nonce="n1", qop="auth"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		auth := r.Header.Get("Authorization")
		for _, want := range []string{`username="pubkey"`, `realm="ramify"`, `nonce="n1"`, `nc=00000001`, `qop=auth`} {
			if !strings.Contains(auth, want) {
				t.Errorf("authorization missing %s: %s", want, auth)
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Do(context.Background(), http.MethodGet, "/clusters/c1/branches", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 requests, got %d", calls)
	}
}

func TestDo_SecondChallengeSurfaced(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("WWW-Authenticate", `Digest realm="ramify", nonce="n1"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Do(context.Background(), http.MethodGet, "/x", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	// un solo retry: el segundo 401 se retorna al caller tal cual
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 requests, got %d", calls)
	}
}

func TestDo_MalformedChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// sin nonce
		w.Header().Set("WWW-Authenticate", `Digest realm="ramify"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Do(context.Background(), http.MethodGet, "/x", nil)
	if !errors.Is(err, ErrChallengeMalformed) {
		t.Fatalf("expected ErrChallengeMalformed, got %v", err)
	}
}

func TestParseChallenge_QopDefaults(t *testing.T) {
	_, _, qop, err := parseChallenge(`Digest realm="r", nonce="n"`)
	if err != nil {
		t.Fatal(err)
	}
	if qop != "auth" {
		t.Fatalf("qop default = %q, want auth", qop)
	}
}

func TestNewDigestClient_MissingCredentials(t *testing.T) {
	if _, err := NewDigestClient("http://x", "", "priv", time.Second); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := NewDigestClient("http://x", "pub", " ", time.Second); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}
