package domain

import (
	"encoding/base64"
	"encoding/json"
	"time"

	errprocess "school_messaging_service/pkg/err"
)

// Cursor position of the oldest message of a page. Opaque to clients.
type Cursor struct {
	ConversationID string    `json:"c"`
	CreatedAt      time.Time `json:"t"`
	ID             string    `json:"i"`
}

// CursorOf cursor pointing after m
func CursorOf(m Message) Cursor {
	return Cursor{ConversationID: m.ConversationID, CreatedAt: m.CreatedAt, ID: m.ID}
}

// Encode base64url JSON
func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a cursor issued by Encode.
func DecodeCursor(s string) (Cursor, error) {
	var c Cursor
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, errprocess.New(errprocess.InvalidArgument, "malformed cursor")
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, errprocess.New(errprocess.InvalidArgument, "malformed cursor")
	}
	if c.ConversationID == "" || c.ID == "" || c.CreatedAt.IsZero() {
		return c, errprocess.New(errprocess.InvalidArgument, "malformed cursor")
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}
