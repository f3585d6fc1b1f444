package domain

import "time"

// Events published on the shared presence channel
const (
	EventOnline  = "online"
	EventOffline = "offline"
)

// DefaultHeartbeatInterval cadence of online announcements; a user is
// offline once nothing was heard for two intervals.
const DefaultHeartbeatInterval = 30 * time.Second

// Announcement payload of online / offline
type Announcement struct {
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}
