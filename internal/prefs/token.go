// Package prefs implements visitor city preferences. Preferences live in
// two realms with identical last-write-wins semantics: authenticated
// visitors get a durable database row keyed by identity, anonymous visitors
// get a long-lived signed cookie carrying a visitor token and the chosen
// city. The Resolver selects the realm from the request identity.
package prefs

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cityweather/internal/config"
)

// CookieCodec encodes and verifies the anonymous preference cookie. The
// cookie value is "token.city.issued.signature" with token and city
// base64url-encoded and the signature an HMAC-SHA256 over the first three
// parts. The issued timestamp is verified server-side so an expired value
// replayed past the cookie's browser expiry is still rejected.
type CookieCodec struct {
	name   string
	key    []byte
	ttl    time.Duration
	secure bool

	now func() time.Time // injectable for tests
}

// NewCookieCodec creates a CookieCodec from the preference configuration.
func NewCookieCodec(cfg config.PreferenceConfig) *CookieCodec {
	return &CookieCodec{
		name:   cfg.CookieName,
		key:    []byte(cfg.SigningKey),
		ttl:    cfg.CookieTTL,
		secure: cfg.CookieSecure,
		now:    time.Now,
	}
}

// Encode produces the signed cookie value for a visitor token and city id.
func (c *CookieCodec) Encode(token, cityID string) string {
	issued := strconv.FormatInt(c.now().Unix(), 10)
	payload := fmt.Sprintf("%s.%s.%s",
		base64.RawURLEncoding.EncodeToString([]byte(token)),
		base64.RawURLEncoding.EncodeToString([]byte(cityID)),
		issued,
	)
	return payload + "." + c.sign(payload)
}

// Decode verifies a cookie value and returns the visitor token and city id.
// It returns ok=false for any malformed, tampered, or expired value; callers
// treat all three identically as "no anonymous preference".
func (c *CookieCodec) Decode(value string) (token, cityID string, ok bool) {
	parts := strings.Split(value, ".")
	if len(parts) != 4 {
		return "", "", false
	}

	payload := strings.Join(parts[:3], ".")
	if !hmac.Equal([]byte(c.sign(payload)), []byte(parts[3])) {
		return "", "", false
	}

	issuedUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", "", false
	}
	if c.now().After(time.Unix(issuedUnix, 0).Add(c.ttl)) {
		return "", "", false
	}

	tokenBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", "", false
	}
	cityBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", false
	}

	return string(tokenBytes), string(cityBytes), true
}

// Read extracts and verifies the preference cookie from a request.
func (c *CookieCodec) Read(r *http.Request) (token, cityID string, ok bool) {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return "", "", false
	}
	return c.Decode(cookie.Value)
}

// Write sets the signed preference cookie on the response.
func (c *CookieCodec) Write(w http.ResponseWriter, token, cityID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    c.Encode(token, cityID),
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *CookieCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
