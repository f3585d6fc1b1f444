package clientsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"school_messaging_service/internal/messaging/domain"
	errprocess "school_messaging_service/pkg/err"

	"github.com/gofiber/fiber/v2"
)

// DefaultRequestTimeout per request
const DefaultRequestTimeout = 10 * time.Second

// HTTPClient API over the service's REST surface
type HTTPClient struct {
	baseURL string
	token   string
	timeout time.Duration
}

var _ API = (*HTTPClient)(nil)

// NewHTTPClient baseURL like http://localhost:8084, token is the caller's JWT
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), token: token, timeout: timeout}
}

type envelope struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

type meResponse struct {
	envelope
	UserID string `json:"user_id"`
}

type conversationsResponse struct {
	envelope
	Conversations []domain.ConversationSummary `json:"conversations"`
}

type unreadResponse struct {
	envelope
	Unread map[string]int `json:"unread"`
}

// CurrentUser GET /api/v1/me
func (c *HTTPClient) CurrentUser(ctx context.Context) (string, error) {
	var resp meResponse
	if err := c.get(ctx, "/api/v1/me", &resp, &resp.envelope); err != nil {
		return "", err
	}
	return resp.UserID, nil
}

// ListConversations GET /api/v1/conversations
func (c *HTTPClient) ListConversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	var resp conversationsResponse
	if err := c.get(ctx, "/api/v1/conversations", &resp, &resp.envelope); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// UnreadCounts GET /api/v1/unread
func (c *HTTPClient) UnreadCounts(ctx context.Context) (map[string]int, error) {
	var resp unreadResponse
	if err := c.get(ctx, "/api/v1/unread", &resp, &resp.envelope); err != nil {
		return nil, err
	}
	if resp.Unread == nil {
		resp.Unread = map[string]int{}
	}
	return resp.Unread, nil
}

type result struct {
	code int
	body []byte
	err  error
}

// get fiber Agent has no context, so the call runs aside and ctx only
// stops the wait
func (c *HTTPClient) get(ctx context.Context, path string, out interface{}, env *envelope) error {
	done := make(chan result, 1)
	go func() {
		a := fiber.Get(c.baseURL + path).
			Set(fiber.HeaderAuthorization, "Bearer "+c.token).
			Timeout(c.timeout)
		code, body, errs := a.Bytes()
		done <- result{code: code, body: body, err: errors.Join(errs...)}
	}()

	var res result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return fmt.Errorf("GET %s: %w", path, res.err)
	}

	if err := json.Unmarshal(res.body, out); err != nil {
		return fmt.Errorf("GET %s: status %d: decode: %w", path, res.code, err)
	}
	if res.code >= fiber.StatusBadRequest || !env.Success {
		kind := errprocess.Kind(env.Code)
		if kind == "" {
			kind = errprocess.Internal
		}
		return errprocess.Newf(kind, "GET %s: %d %s", path, res.code, env.Error)
	}
	return nil
}
