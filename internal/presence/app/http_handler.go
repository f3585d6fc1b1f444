package app

import (
	"context"

	"school_messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// PresenceHandler presence endpoints for clients without a websocket
type PresenceHandler struct {
	announcer *Announcer
	tracker   *Tracker
}

// NewPresenceHandler create PresenceHandler
func NewPresenceHandler(announcer *Announcer, tracker *Tracker) *PresenceHandler {
	return &PresenceHandler{announcer: announcer, tracker: tracker}
}

// Heartbeat announce caller online
// @Summary Presence heartbeat
// @Tags Presence
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/presence/heartbeat [post]
func (h *PresenceHandler) Heartbeat(c *fiber.Ctx) error {
	return h.announce(c, h.announcer.Online)
}

// Offline announce caller offline
// @Summary Presence offline
// @Tags Presence
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/presence/offline [post]
func (h *PresenceHandler) Offline(c *fiber.Ctx) error {
	return h.announce(c, h.announcer.Offline)
}

// Online users currently considered online
// @Summary Online users
// @Tags Presence
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/presence/online [get]
func (h *PresenceHandler) Online(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "user_ids": h.tracker.Online()})
}

func (h *PresenceHandler) announce(c *fiber.Ctx, fn func(context.Context, string) error) error {
	userID, ok := middlewares.MemberID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false, "code": "unauthorized", "error": "missing caller identity",
		})
	}
	// best effort: a relay failure is logged, the client just tries again next interval
	if err := fn(c.UserContext(), userID); err != nil {
		h.announcer.logFailure(err, userID)
	}
	return c.JSON(fiber.Map{"success": true, "interval_seconds": int(h.announcer.Interval().Seconds())})
}
