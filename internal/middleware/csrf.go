package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	csrfCookie    = "_csrf_token"
	csrfFormField = "_csrf_token"
	csrfHeader    = "X-CSRF-Token"
)

// csrfSigner issues and checks double-submit tokens of the form
// base64url(nonce) "." base64url(HMAC-SHA256(secret, nonce)).
type csrfSigner struct {
	key []byte
}

func (s csrfSigner) mac(nonce string) []byte {
	m := hmac.New(sha256.New, s.key)
	m.Write([]byte(nonce))
	return m.Sum(nil)
}

func (s csrfSigner) issue() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	nonce := base64.RawURLEncoding.EncodeToString(b)
	return nonce + "." + base64.RawURLEncoding.EncodeToString(s.mac(nonce)), nil
}

func (s csrfSigner) valid(token string) bool {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	return err == nil && hmac.Equal(got, s.mac(nonce))
}

// CSRF protects the HTML page routes, such as the rebuild button on
// /_builds. Safe requests get a signed token in a cookie and on the context
// (see GetCSRFToken). Unsafe requests must echo the cookie in the
// _csrf_token form field or the X-CSRF-Token header, which htmx sends, or
// they are rejected with 403. The API group does not use it.
func CSRF(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		panic("middleware: CSRF secret is empty")
	}
	signer := csrfSigner{key: []byte(secret)}
	secure := gin.Mode() == gin.ReleaseMode

	return func(c *gin.Context) {
		cookie, _ := c.Cookie(csrfCookie)

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			if !signer.valid(cookie) {
				var err error
				if cookie, err = signer.issue(); err != nil {
					_ = c.AbortWithError(http.StatusInternalServerError, err)
					return
				}
				http.SetCookie(c.Writer, &http.Cookie{
					Name:     csrfCookie,
					Value:    cookie,
					Path:     "/",
					Secure:   secure,
					SameSite: http.SameSiteStrictMode,
				})
			}
			c.Set(csrfTokenKey, cookie)
			c.Next()
			return
		}

		sent := c.GetHeader(csrfHeader)
		if sent == "" {
			sent = c.PostForm(csrfFormField)
		}
		switch {
		case cookie == "" || sent == "":
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "CSRF token missing"})
		case !signer.valid(cookie) || !hmac.Equal([]byte(cookie), []byte(sent)):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "CSRF token invalid"})
		default:
			c.Set(csrfTokenKey, cookie)
			c.Next()
		}
	}
}
