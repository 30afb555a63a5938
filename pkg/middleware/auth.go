package middleware

import (
	"context"
	"strings"

	"promowheel/pkg/accesscontrol"
	"promowheel/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const (
	identityKey = "identity"
	tokenKey    = "session_token"
)

type IdentityValidator interface {
	ValidateIdentity(ctx context.Context, token string) (*accesscontrol.Identity, error)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// ManagerAuth resolves the session token into an Identity.
func ManagerAuth(v IdentityValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			_ = c.Error(errutil.Unauthorized("Missing session token", nil, errutil.WithReason(errutil.ReasonUnauthorized)))
			c.Abort()
			return
		}

		identity, err := v.ValidateIdentity(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// Authorize checks the caller's role against the access control policy.
func Authorize(authz accesscontrol.Authorizer, obj, act string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if identity == nil || !authz.Allowed(identity.Role, obj, act) {
			_ = c.Error(errutil.Forbidden("Actor is not allowed to perform this action", nil, errutil.WithReason(errutil.ReasonActorNotAllowed)))
			c.Abort()
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) *accesscontrol.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*accesscontrol.Identity)
	return identity
}

func TokenFrom(c *gin.Context) string {
	return c.GetString(tokenKey)
}
