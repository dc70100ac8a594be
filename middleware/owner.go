package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vnkhanh/coderoom-server/access"
	"github.com/vnkhanh/coderoom-server/models"
)

// RoomAuthorizer is the capability check rooms are guarded with.
type RoomAuthorizer interface {
	Authorize(ctx context.Context, roomID string, callerID uint) (*models.Room, access.Capability, error)
}

// RequireRoom loads :roomId into the context and checks the caller holds at
// least the given capability in it.
func RequireRoom(rooms RoomAuthorizer, min access.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := CurrentUserID(c)
		roomID := c.Param("roomId")

		room, capability, err := rooms.Authorize(c.Request.Context(), roomID, userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"room_id":    roomID,
			"user_id":    userID,
			"capability": capability,
		}).Debug("Room access check")

		if capability < min {
			AbortWithError(c, access.ErrNotAuthorized)
			return
		}

		c.Set(CtxRoom, *room)
		c.Next()
	}
}

// RequireRoomMember admits the creator and members.
func RequireRoomMember(rooms RoomAuthorizer) gin.HandlerFunc {
	return RequireRoom(rooms, access.CapMember)
}

// CurrentRoom returns the room set by RequireRoom.
func CurrentRoom(c *gin.Context) models.Room {
	return c.MustGet(CtxRoom).(models.Room)
}
