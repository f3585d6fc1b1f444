package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	errprocess "school_messaging_service/pkg/err"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	// MaxBodyRunes body length after trimming
	MaxBodyRunes = 4000
	// MaxAttachments per message
	MaxAttachments = 10
	// MaxAttachmentURLLen bytes
	MaxAttachmentURLLen = 2048
	// MaxAttachmentNameRunes display name length
	MaxAttachmentNameRunes = 255
	// MaxGroupNameRunes group display name length
	MaxGroupNameRunes = 120

	// DefaultPageSize history page size when none is given
	DefaultPageSize = 30
	// MaxPageSize history page size cap
	MaxPageSize = 100
)

// Message ID is a UUIDv7 string so ids sort by creation time. Per
// conversation order is (CreatedAt, ID).
type Message struct {
	ID             string      `gorm:"type:varchar(36);primaryKey;index:idx_messages_history,priority:3"`
	ConversationID string      `gorm:"type:varchar(36);not null;index:idx_messages_history,priority:1"`
	SenderID       string      `gorm:"type:varchar(64);not null"`
	Body           *string     `gorm:"type:text"`
	Attachments    Attachments `gorm:"not null"`
	CreatedAt      time.Time   `gorm:"not null;index:idx_messages_history,priority:2"`
	IsDeleted      bool        `gorm:"not null;default:false"`
}

// TableName gorm table
func (Message) TableName() string { return "messages" }

// MessageView what clients see; retracted messages keep their slot with
// body and attachments stripped.
type MessageView struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	Body           *string     `json:"body"`
	Attachments    Attachments `json:"attachments"`
	CreatedAt      time.Time   `json:"created_at"`
	IsDeleted      bool        `json:"is_deleted"`
}

// View redacted client view
func (m Message) View() MessageView {
	v := MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		Attachments:    m.Attachments,
		CreatedAt:      m.CreatedAt,
		IsDeleted:      m.IsDeleted,
	}
	if m.IsDeleted {
		v.Body = nil
		v.Attachments = Attachments{}
	}
	if v.Attachments == nil {
		v.Attachments = Attachments{}
	}
	return v
}

// MessagePage newest first
type MessagePage struct {
	Messages   []MessageView `json:"messages"`
	HasMore    bool          `json:"has_more"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// Attachment reference to a file hosted elsewhere
type Attachment struct {
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Validate url must be absolute http(s)
func (a Attachment) Validate() error {
	if a.URL == "" {
		return errprocess.New(errprocess.InvalidArgument, "attachment url is required")
	}
	if len(a.URL) > MaxAttachmentURLLen {
		return errprocess.Newf(errprocess.InvalidArgument, "attachment url longer than %d bytes", MaxAttachmentURLLen)
	}
	u, err := url.Parse(a.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errprocess.Newf(errprocess.InvalidArgument, "attachment url %q is not an absolute http(s) url", a.URL)
	}
	if utf8.RuneCountInString(a.Name) > MaxAttachmentNameRunes {
		return errprocess.New(errprocess.InvalidArgument, "attachment name too long")
	}
	return nil
}

// Attachments ordered attachment list, stored as one JSON column
type Attachments []Attachment

// Validate list size and every entry
func (as Attachments) Validate() error {
	if len(as) > MaxAttachments {
		return errprocess.Newf(errprocess.InvalidArgument, "at most %d attachments", MaxAttachments)
	}
	for _, a := range as {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Value driver.Valuer; refuses to persist an invalid list
func (as Attachments) Value() (driver.Value, error) {
	if err := as.Validate(); err != nil {
		return nil, err
	}
	if as == nil {
		return "[]", nil
	}
	b, err := json.Marshal(as)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan sql.Scanner
func (as *Attachments) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*as = Attachments{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("attachments: unsupported column type %T", value)
	}
	var out Attachments
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("attachments: %w", err)
	}
	if out == nil {
		out = Attachments{}
	}
	*as = out
	return nil
}

// GormDataType generic gorm type
func (Attachments) GormDataType() string {
	return "json"
}

// GormDBDataType column type per dialect
func (Attachments) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	case "sqlite":
		return "TEXT"
	}
	return "JSON"
}

// NormalizeBody trims surrounding whitespace; blank becomes nil.
func NormalizeBody(body *string) *string {
	if body == nil {
		return nil
	}
	s := strings.TrimSpace(*body)
	if s == "" {
		return nil
	}
	return &s
}

// ValidateContent a message needs a body or at least one attachment.
// body must already be normalized.
func ValidateContent(body *string, attachments Attachments) error {
	if body == nil && len(attachments) == 0 {
		return errprocess.New(errprocess.InvalidArgument, "message needs a body or an attachment")
	}
	if body != nil && utf8.RuneCountInString(*body) > MaxBodyRunes {
		return errprocess.Newf(errprocess.InvalidArgument, "body longer than %d characters", MaxBodyRunes)
	}
	return attachments.Validate()
}

// ClampLimit <= 0 gives the default page size, anything above the cap is capped.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}
