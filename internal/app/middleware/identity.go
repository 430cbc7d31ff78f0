package middleware

import (
	"filingdesk/internal/app/role"

	"github.com/gin-gonic/gin"
)

// CurrentUser is the identity placed in the context by WithAuthCheck.
type CurrentUser struct {
	ID   uint
	Role role.Role
}

// Staff users may read every submission.
func (u CurrentUser) Staff() bool {
	return u.Role == role.Support || u.Role == role.Admin
}

func GetUserFromContext(c *gin.Context) (CurrentUser, bool) {
	rawID, ok := c.Get(ContextUserID)
	if !ok {
		return CurrentUser{}, false
	}
	id, ok := rawID.(uint)
	if !ok {
		return CurrentUser{}, false
	}

	user := CurrentUser{ID: id}
	if rawRole, ok := c.Get(ContextUserRole); ok {
		if r, ok := rawRole.(role.Role); ok {
			user.Role = r
		}
	}
	return user, true
}
