package app

import (
	"school_messaging_service/internal/messaging/domain"
	errprocess "school_messaging_service/pkg/err"
	"school_messaging_service/pkg/logger"
	"school_messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MessagingHandler REST surface of the messaging core
type MessagingHandler struct {
	convUC *ConversationUseCase
	msgUC  *MessageUseCase
}

// NewMessagingHandler create MessagingHandler
func NewMessagingHandler(convUC *ConversationUseCase, msgUC *MessageUseCase) *MessagingHandler {
	return &MessagingHandler{convUC: convUC, msgUC: msgUC}
}

// DirectRequest body of POST /conversations/direct
type DirectRequest struct {
	UserID string `json:"user_id"`
}

// GroupRequest body of POST /conversations/group
type GroupRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

// SendRequest body of POST /conversations/:id/messages
type SendRequest struct {
	Body        *string            `json:"body"`
	Attachments domain.Attachments `json:"attachments"`
}

// Me current caller
// @Summary Current user
// @Tags Messaging
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/v1/me [get]
func (h *MessagingHandler) Me(c *fiber.Ctx) error {
	userID, ok := middlewares.MemberID(c)
	if !ok {
		return writeError(c, errprocess.New(errprocess.Unauthorized, "missing caller identity"))
	}
	return c.JSON(fiber.Map{"success": true, "user_id": userID, "role": middlewares.Role(c)})
}

// ListConversations caller's conversation list
// @Summary List conversations
// @Description Non archived conversations of the caller, most recent activity first
// @Tags Messaging
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/conversations [get]
func (h *MessagingHandler) ListConversations(c *fiber.Ctx) error {
	userID, ok := middlewares.MemberID(c)
	if !ok {
		return writeError(c, errprocess.New(errprocess.Unauthorized, "missing caller identity"))
	}
	list, err := h.convUC.ListForUser(c.UserContext(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "conversations": list})
}

// CreateDirect create or get the direct conversation with user_id
// @Summary Create or get a direct conversation
// @Tags Messaging
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DirectRequest true "other user"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/conversations/direct [post]
func (h *MessagingHandler) CreateDirect(c *fiber.Ctx) error {
	userID, ok := middlewares.MemberID(c)
	if !ok {
		return writeError(c, errprocess.New(errprocess.Unauthorized, "missing caller identity"))
	}
	var req DirectRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errprocess.New(errprocess.InvalidArgument, "invalid request"))
	}

	conv, err := h.convUC.CreateOrGetDirect(c.UserContext(), userID, req.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "conversation": conv})
}

// CreateGroup create a group conversation
// @Summary Create a group conversation
// @Tags Messaging
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body GroupRequest true "group"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/conversations/group [post]
func (h *MessagingHandler) CreateGroup(c *fiber.Ctx) error {
	userID, ok := middlewares.MemberID(c)
	if !ok {
		return writeError(c, errprocess.New(errprocess.Unauthorized, "missing caller identity"))
	}
	var req GroupRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errprocess.New(errprocess.InvalidArgument, "invalid request"))
	}

	conv, err := h.convUC.CreateGroup(c.UserContext(), userID, req.Name, req.MemberIDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "conversation": conv})
}

// Leave leave a conversation
// @Summary Leave a conversation
// @Tags Messaging
// @Produce json
// @Security BearerAuth
// @Param id path string true "conversation id"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/v1/conversations/{id}/leave [post]
func (h *MessagingHandler) Leave(c *fiber.Ctx) error {
	userID, ok := middlewares.MemberID(c)
	if !ok {
		return writeError(c, errprocess.New(errprocess.Unauthorized, "missing caller identity"))
	}
	if err := h.convUC.Leave(c.UserContext(), c.Params("id"), userID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// History message history page
// @Summary Conversation messages
// @Description Newest first; pass next_cursor back as cursor for older messages
// @Tags Messaging
// @Produce json
// @Security BearerAuth
// @Param id path string true "conversation id"
// @Param cursor query string false "cursor"
// @Param limit query int false "page size (default 30, max 100)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/v1/conversations/{id}/messages [get]
func (h *MessagingHandler) History(c *fiber.Ctx) error {
	userID, ok := middlewares.MemberID(c)
	if !ok {
		return writeError(c, errprocess.New(errprocess.Unauthorized, "missing caller identity"))
	}
	page, err := h.msgUC.History(c.UserContext(), c.Params("id"), userID, c.QueryInt("limit", 0), c.Query("cursor"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"messages":    page.Messages,
		"has_more":    page.HasMore,
		"next_cursor": page.NextCursor,
	})
}

// Send send a message
// @Summary Send a message
// @Tags Messaging
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "conversation id"
// @Param request body SendRequest true "message"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/v1/conversations/{id}/messages [post]
func (h *MessagingHandler) Send(c *fiber.Ctx) error {
	userID, ok := middlewares.MemberID(c)
	if !ok {
		return writeError(c, errprocess.New(errprocess.Unauthorized, "missing caller identity"))
	}
	var req SendRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errprocess.New(errprocess.InvalidArgument, "invalid request"))
	}

	msg, err := h.msgUC.Send(c.UserContext(), SendMessageInput{
		ConversationID: c.Params("id"),
		SenderID:       userID,
		Body:           req.Body,
		Attachments:    req.Attachments,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "message": msg.View()})
}

// Retract retract own message
// @Summary Retract a message
// @Tags Messaging
// @Produce json
// @Security BearerAuth
// @Param id path string true "conversation id"
// @Param messageID path string true "message id"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/conversations/{id}/messages/{messageID} [delete]
func (h *MessagingHandler) Retract(c *fiber.Ctx) error {
	userID, ok := middlewares.MemberID(c)
	if !ok {
		return writeError(c, errprocess.New(errprocess.Unauthorized, "missing caller identity"))
	}
	if err := h.msgUC.Retract(c.UserContext(), c.Params("id"), c.Params("messageID"), userID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// MarkRead mark conversation read
// @Summary Mark a conversation read
// @Tags Messaging
// @Produce json
// @Security BearerAuth
// @Param id path string true "conversation id"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/v1/conversations/{id}/read [post]
func (h *MessagingHandler) MarkRead(c *fiber.Ctx) error {
	userID, ok := middlewares.MemberID(c)
	if !ok {
		return writeError(c, errprocess.New(errprocess.Unauthorized, "missing caller identity"))
	}
	if err := h.msgUC.MarkRead(c.UserContext(), c.Params("id"), userID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// UnreadCounts unread count per conversation
// @Summary Unread counts
// @Tags Messaging
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/unread [get]
func (h *MessagingHandler) UnreadCounts(c *fiber.Ctx) error {
	userID, ok := middlewares.MemberID(c)
	if !ok {
		return writeError(c, errprocess.New(errprocess.Unauthorized, "missing caller identity"))
	}
	counts, err := h.convUC.UnreadCounts(c.UserContext(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "unread": counts})
}

// StatusOf http status of an error kind
func StatusOf(err error) int {
	switch errprocess.KindOf(err) {
	case errprocess.Unauthorized:
		return fiber.StatusUnauthorized
	case errprocess.Forbidden:
		return fiber.StatusForbidden
	case errprocess.NotFound:
		return fiber.StatusNotFound
	case errprocess.InvalidArgument:
		return fiber.StatusBadRequest
	case errprocess.TransientStoreFailure:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func writeError(c *fiber.Ctx, err error) error {
	status := StatusOf(err)
	if status >= fiber.StatusInternalServerError {
		logger.Log.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"code":    string(errprocess.KindOf(err)),
		"error":   errprocess.Message(err),
	})
}
