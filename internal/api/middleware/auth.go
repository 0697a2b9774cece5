package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request's canonical
// string, computed with the shared secret.
const SignatureHeader = "x-sheen-signature"

// CallerHeader identifies the advisor process making the request. Used for
// rate limiting and audit correlation only, never authorization.
const CallerHeader = "x-caller-id"

// HMACAuth verifies the request signature against the shared secret. GET
// requests sign method + path + raw query. Verification is constant-time.
func HMACAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		signature := c.GetHeader(SignatureHeader)
		if signature == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing signature"})
			c.Abort()
			return
		}

		payload := c.Request.Method + "\n" + c.Request.URL.Path + "\n" + c.Request.URL.RawQuery
		mac := hmac.New(sha256.New, key)
		mac.Write([]byte(payload))
		expected := hex.EncodeToString(mac.Sum(nil))

		if !hmac.Equal([]byte(expected), []byte(signature)) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			c.Abort()
			return
		}

		c.Next()
	}
}
