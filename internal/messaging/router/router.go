package router

import (
	"context"

	"school_messaging_service/internal/messaging/app"
	presence "school_messaging_service/internal/presence/app"
	"school_messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 注册 messaging 路由
// @title School Messaging Service API
// @version 1.0
// @description Conversations, messages, unread counts and presence
// @host localhost:8084
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func RegisterRoutes(
	r *fiber.App,
	messagingHandler *app.MessagingHandler,
	presenceHandler *presence.PresenceHandler,
	wsHandler *app.MessagingWebsocketHandler,
) {
	r.Get("/swagger/*", swagger.HandlerDefault)
	r.Get("/", app.ConnectCheck)
	r.Post("/debug", app.DebugLogFlag)

	api := r.Group("/api/v1", middlewares.JWTMiddleware())
	api.Get("/me", messagingHandler.Me)
	api.Get("/unread", messagingHandler.UnreadCounts)

	conv := api.Group("/conversations")
	conv.Get("/", messagingHandler.ListConversations)
	conv.Post("/direct", messagingHandler.CreateDirect)
	conv.Post("/group", messagingHandler.CreateGroup)
	conv.Post("/:id/leave", messagingHandler.Leave)
	conv.Post("/:id/read", messagingHandler.MarkRead)
	conv.Get("/:id/messages", messagingHandler.History)
	conv.Post("/:id/messages", messagingHandler.Send)
	conv.Delete("/:id/messages/:messageID", messagingHandler.Retract)

	p := api.Group("/presence")
	p.Post("/heartbeat", presenceHandler.Heartbeat)
	p.Post("/offline", presenceHandler.Offline)
	p.Get("/online", presenceHandler.Online)

	ws := r.Group("/ws", middlewares.JWTMiddleware(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	ws.Get("/", websocket.New(func(c *websocket.Conn) {
		wsHandler.HandleConnection(context.Background(), c)
	}))
}
