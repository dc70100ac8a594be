package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/coderoom-server/access"
	"github.com/vnkhanh/coderoom-server/middleware"
)

type RoomController struct {
	rooms *access.Service
}

func NewRoomController(rooms *access.Service) *RoomController {
	return &RoomController{rooms: rooms}
}

type CreateRoomReq struct {
	Name string `json:"name" binding:"required"`
}

func (r *RoomController) CreateRoom(c *gin.Context) {
	var req CreateRoomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request", "error": err.Error()})
		return
	}

	room, err := r.rooms.CreateRoom(c.Request.Context(), req.Name, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Room created", "data": room})
}

func (r *RoomController) ListRooms(c *gin.Context) {
	rooms, err := r.rooms.ListRooms(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rooms})
}

// RecentRooms lists the caller's last visited rooms, newest first.
func (r *RoomController) RecentRooms(c *gin.Context) {
	rooms, err := r.rooms.RecentRooms(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rooms})
}

func (r *RoomController) GetRoomDetail(c *gin.Context) {
	details, err := r.rooms.GetRoomDetails(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": details})
}

func (r *RoomController) DeleteRoom(c *gin.Context) {
	if err := r.rooms.DeleteRoom(c.Request.Context(), c.Param("roomId"), middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Room deleted"})
}

func (r *RoomController) ListMembers(c *gin.Context) {
	members, err := r.rooms.ListMembers(c.Request.Context(), c.Param("roomId"), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": members})
}

func (r *RoomController) RequestJoin(c *gin.Context) {
	res, err := r.rooms.RequestJoin(c.Request.Context(), c.Param("roomId"), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if res.Outcome == access.OutcomeCreated {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": res})
}

func (r *RoomController) ListPending(c *gin.Context) {
	pending, err := r.rooms.ListPending(c.Request.Context(), c.Param("roomId"), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pending})
}

func (r *RoomController) AcceptRequest(c *gin.Context) {
	id, err := parseID(c, "requestId")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := r.rooms.AcceptRequest(c.Request.Context(), id, middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Join request accepted"})
}

func (r *RoomController) RejectRequest(c *gin.Context) {
	id, err := parseID(c, "requestId")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := r.rooms.RejectRequest(c.Request.Context(), id, middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Join request rejected"})
}

func (r *RoomController) Join(c *gin.Context) {
	room, err := r.rooms.Join(c.Request.Context(), c.Param("roomId"), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined room", "data": room})
}

func (r *RoomController) Leave(c *gin.Context) {
	if err := r.rooms.Leave(c.Request.Context(), c.Param("roomId"), middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left room"})
}
