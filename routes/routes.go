package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/coderoom-server/access"
	"github.com/vnkhanh/coderoom-server/controllers"
	"github.com/vnkhanh/coderoom-server/middleware"
	"github.com/vnkhanh/coderoom-server/realtime"
)

// Deps is everything the HTTP layer needs, built once in main.
type Deps struct {
	Auth   *controllers.AuthController
	Rooms  *controllers.RoomController
	Events *controllers.EventController
	Health *controllers.HealthController

	Access      *access.Service
	Tokens      middleware.TokenVerifier
	Users       middleware.UserFinder
	EventLimit  *middleware.RateLimiter
	AuthLimiter *middleware.RateLimiter
}

func SetupRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	r.GET("/health", d.Health.Check)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.Use(middleware.RateLimitByIP(d.AuthLimiter))
		{
			auth.POST("/register", d.Auth.Register)
			auth.POST("/login", d.Auth.Login)
		}

		protected := api.Group("/")
		protected.Use(middleware.AuthJWT(d.Tokens, d.Users))
		{
			protected.GET("/me", d.Auth.Me)

			protected.POST("/join-requests/:requestId/accept", d.Rooms.AcceptRequest)
			protected.POST("/join-requests/:requestId/reject", d.Rooms.RejectRequest)
		}

		rooms := protected.Group("/rooms")
		{
			rooms.POST("", d.Rooms.CreateRoom)
			rooms.GET("", d.Rooms.ListRooms)
			rooms.GET("/recent", d.Rooms.RecentRooms)
			rooms.GET("/:roomId", d.Rooms.GetRoomDetail)
			rooms.DELETE("/:roomId", d.Rooms.DeleteRoom)
			rooms.GET("/:roomId/users", d.Rooms.ListMembers)
			rooms.POST("/:roomId/request-join", d.Rooms.RequestJoin)
			rooms.GET("/:roomId/pending-requests", d.Rooms.ListPending)
			rooms.POST("/:roomId/join", d.Rooms.Join)
			rooms.POST("/:roomId/leave", d.Rooms.Leave)

			member := middleware.RequireRoomMember(d.Access)
			limit := middleware.RateLimitByUser(d.EventLimit)
			rooms.POST("/:roomId/code", limit, member, d.Events.Publish(realtime.KindCodeUpdate))
			rooms.POST("/:roomId/language", limit, member, d.Events.Publish(realtime.KindLanguageUpdate))
			rooms.POST("/:roomId/terminals", limit, member, d.Events.Publish(realtime.KindTerminalsUpdate))
			rooms.POST("/:roomId/file-selection", limit, member, d.Events.Publish(realtime.KindFileSelection))
		}

		// Websocket clients may pass the token as ?token=.
		api.GET("/rooms/:roomId/ws",
			middleware.AuthJWT(d.Tokens, d.Users, middleware.AllowQueryToken()),
			middleware.RequireRoomMember(d.Access),
			d.Events.Subscribe)
	}
}
