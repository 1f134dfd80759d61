package httpkit

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the caller as established by AuthRequired.
type Identity struct {
	userID        uuid.UUID
	authenticated bool
}

func (i *Identity) UserID() uuid.UUID {
	return i.userID
}

func (i *Identity) IsAuthenticated() bool {
	return i.authenticated
}

// Actor returns the user id in the optional form pipeline writes take.
func (i *Identity) Actor() *uuid.UUID {
	if !i.authenticated {
		return nil
	}
	id := i.userID
	return &id
}

// GetIdentity reads the identity set by AuthRequired. The result is
// unauthenticated when the middleware did not run or rejected the token.
func GetIdentity(c *gin.Context) *Identity {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return &Identity{}
	}
	uid, ok := raw.(uuid.UUID)
	if !ok || uid == uuid.Nil {
		return &Identity{}
	}
	return &Identity{userID: uid, authenticated: true}
}

// MustGetIdentity is GetIdentity that aborts with 401 and returns nil when
// the caller is not authenticated.
func MustGetIdentity(c *gin.Context) *Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		abortUnauthorized(c, "unauthorized")
		return nil
	}
	return id
}
