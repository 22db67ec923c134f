package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Guyuepp/engagement-sync/domain"
	"github.com/Guyuepp/engagement-sync/internal/rest/response"
)

const (
	ctxUserIDKey   = "user_id"
	ctxVerifiedKey = "verified"
)

type viewerClaims struct {
	UserID   int64 `json:"user_id"`
	Verified bool  `json:"verified"`
	jwt.RegisteredClaims
}

// AuthMiddleware rejects requests without a valid bearer token. The service
// never issues tokens itself, it only verifies claims minted elsewhere.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer, ok := parseViewer(c, secret)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("authentication required"))
			return
		}
		c.Set(ctxUserIDKey, viewer.UserID)
		c.Set(ctxVerifiedKey, viewer.Verified)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches the viewer when a valid token is present
// and lets the request through anonymously otherwise. Used on the view and
// snapshot endpoints, where anonymous traffic is legitimate.
func OptionalAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if viewer, ok := parseViewer(c, secret); ok {
			c.Set(ctxUserIDKey, viewer.UserID)
			c.Set(ctxVerifiedKey, viewer.Verified)
		}
		c.Next()
	}
}

func parseViewer(c *gin.Context, secret string) (domain.Viewer, bool) {
	header := c.GetHeader("Authorization")
	tokenStr, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenStr == "" {
		return domain.Viewer{}, false
	}

	var claims viewerClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || claims.UserID == 0 {
		return domain.Viewer{}, false
	}

	return domain.Viewer{UserID: claims.UserID, Verified: claims.Verified}, true
}

// ViewerFromContext returns the authenticated viewer, or the anonymous zero
// value when the request carried no valid token.
func ViewerFromContext(c *gin.Context) domain.Viewer {
	uid, ok := c.Get(ctxUserIDKey)
	if !ok {
		return domain.Viewer{}
	}
	return domain.Viewer{
		UserID:   uid.(int64),
		Verified: c.GetBool(ctxVerifiedKey),
	}
}
