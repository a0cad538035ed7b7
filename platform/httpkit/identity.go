package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the authenticated caller and the organization it acts for.
type Identity interface {
	UserID() uuid.UUID
	// TenantID scopes every client lookup.
	TenantID() uuid.UUID
	IsAuthenticated() bool
}

type identity struct {
	userID   uuid.UUID
	tenantID uuid.UUID
}

func (i identity) UserID() uuid.UUID     { return i.userID }
func (i identity) TenantID() uuid.UUID   { return i.tenantID }
func (i identity) IsAuthenticated() bool { return i.tenantID != uuid.Nil }

// GetIdentity reads what AuthRequired stored. A request that did not pass
// through it, or carried no tenant, yields an unauthenticated identity.
func GetIdentity(c *gin.Context) Identity {
	rawUser, _ := c.Get(ContextUserIDKey)
	rawTenant, _ := c.Get(ContextTenantIDKey)
	uid, _ := rawUser.(uuid.UUID)
	tid, _ := rawTenant.(uuid.UUID)
	if uid == uuid.Nil {
		return identity{}
	}
	return identity{userID: uid, tenantID: tid}
}

// MustGetIdentity is GetIdentity for handlers that cannot run without a
// tenant. It aborts with 401 and returns nil in that case.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return nil
	}
	return id
}
