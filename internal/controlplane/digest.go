package controlplane

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dropDatabas3/ramify/internal/metrics"
	"github.com/dropDatabas3/ramify/internal/observability/logger"
)

// digestNonceCount el cliente nunca reusa un challenge entre requests,
// así que el nonce-count es siempre el primer valor.
const digestNonceCount = "00000001"

// Tolerantes a espacios/comillas; sólo realm y nonce son obligatorios.
var (
	reRealm = regexp.MustCompile(`(?i)realm\s*=\s*"?([^",]+)"?`)
	reNonce = regexp.MustCompile(`(?i)nonce\s*=\s*"?([^",]+)"?`)
	reQop   = regexp.MustCompile(`(?i)qop\s*=\s*"?([^",]+)"?`)
)

// DigestClient hace requests HTTP con autenticación Digest contra el
// control plane. Las credenciales (public/private key) se fijan en
// construcción y nunca viajan en claro: sólo el hash derivado.
type DigestClient struct {
	base       string
	publicKey  string
	privateKey string
	http       *http.Client
	// cnonce inyectable para tests con vectores conocidos
	cnonce func() string
}

// NewDigestClient crea el cliente. Falla fuerte si faltan credenciales:
// es un error de configuración, no algo a reintentar.
func NewDigestClient(baseURL, publicKey, privateKey string, timeout time.Duration) (*DigestClient, error) {
	if strings.TrimSpace(publicKey) == "" || strings.TrimSpace(privateKey) == "" {
		return nil, ErrMissingCredentials
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DigestClient{
		base:       strings.TrimRight(baseURL, "/"),
		publicKey:  publicKey,
		privateKey: privateKey,
		http:       &http.Client{Timeout: timeout},
		cnonce:     newCnonce,
	}, nil
}

// Do emite el request. Flujo:
//  1. request sin auth; si la respuesta no es un challenge 401, se
//     retorna tal cual (deployments sin auth o con credencial cacheada
//     funcionan sin cambios).
//  2. si es challenge: parsear realm/nonce/qop, computar el digest y
//     reemitir UNA vez. Un segundo challenge se retorna al caller sin
//     reintentar.
func (c *DigestClient) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	resp, err := c.issue(ctx, method, path, body, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	challenge := resp.Header.Get("WWW-Authenticate")
	// drenar y cerrar el body del challenge antes de reemitir
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()

	auth, err := c.authorize(method, path, challenge)
	if err != nil {
		return nil, err
	}
	metrics.DigestHandshakes.Inc()
	return c.issue(ctx, method, path, body, auth)
}

func (c *DigestClient) issue(ctx context.Context, method, path string, body []byte, auth string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("controlplane: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return c.http.Do(req)
}

// authorize computa la credencial Digest para el challenge recibido.
//
//	HA1      = md5(user ":" realm ":" pass)
//	HA2      = md5(method ":" uri)
//	response = md5(HA1 ":" nonce ":" nc ":" cnonce ":" qop ":" HA2)
func (c *DigestClient) authorize(method, uri, challenge string) (string, error) {
	realm, nonce, qop, err := parseChallenge(challenge)
	if err != nil {
		return "", err
	}

	cnonce := c.cnonce()
	ha1 := md5Hex(c.publicKey + ":" + realm + ":" + c.privateKey)
	ha2 := md5Hex(method + ":" + uri)
	response := md5Hex(strings.Join([]string{ha1, nonce, digestNonceCount, cnonce, qop, ha2}, ":"))

	return fmt.Sprintf(
		`Digest username="%s", realm="%s", nonce="%s", uri="%s", qop=%s, nc=%s, cnonce="%s", response="%s"`,
		c.publicKey, realm, nonce, uri, qop, digestNonceCount, cnonce, response,
	), nil
}

// parseChallenge extrae realm/nonce/qop con matching tolerante.
// realm o nonce ausentes ⇒ ErrChallengeMalformed (error de configuración
// del server, reintentar no ayuda). qop ausente ⇒ default "auth".
func parseChallenge(header string) (realm, nonce, qop string, err error) {
	rm := reRealm.FindStringSubmatch(header)
	nm := reNonce.FindStringSubmatch(header)
	if rm == nil || nm == nil {
		logger.Named("controlplane").Warn("digest challenge malformed")
		return "", "", "", ErrChallengeMalformed
	}
	realm = strings.TrimSpace(rm[1])
	nonce = strings.TrimSpace(nm[1])

	qop = "auth"
	if qm := reQop.FindStringSubmatch(header); qm != nil {
		// el server puede anunciar "auth,auth-int": nos quedamos con auth
		for _, q := range strings.Split(qm[1], ",") {
			if strings.TrimSpace(q) == "auth" {
				qop = "auth"
				break
			}
			qop = strings.TrimSpace(q)
		}
	}
	return realm, nonce, qop, nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// newCnonce genera un client nonce fresco por request.
func newCnonce() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
