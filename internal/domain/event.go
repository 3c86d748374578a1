package domain

import "time"

// MembershipStatus describes the relationship between a caller and an event.
type MembershipStatus string

const (
	StatusOwner    MembershipStatus = "OWNER"
	StatusJoined   MembershipStatus = "JOINED"
	StatusJoinable MembershipStatus = "JOINABLE"
	StatusFull     MembershipStatus = "FULL"
)

// EventStatus is derived from the roster, never stored.
type EventStatus string

const (
	EventOpen EventStatus = "OPEN"
	EventFull EventStatus = "FULL"
)

type Event struct {
	ID               uint      `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Location         string    `json:"location"`
	Date             time.Time `json:"date"`
	StartTime        string    `json:"start_time"` // HH:MM, venue-local
	Capacity         int       `json:"capacity"`
	OwnerID          uint      `json:"owner_id"`
	ImageRef         string    `json:"image_ref,omitempty"`
	ParticipantCount int       `json:"participant_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Status computes OPEN/FULL from the roster count.
func (e Event) Status() EventStatus {
	if e.ParticipantCount < e.Capacity {
		return EventOpen
	}
	return EventFull
}

type Participation struct {
	EventID  uint      `json:"event_id"`
	UserID   uint      `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// EventPatch carries a partial update; nil fields are left unchanged.
type EventPatch struct {
	Title       *string
	Description *string
	Location    *string
	Date        *time.Time
	StartTime   *string
	Capacity    *int
	ImageRef    *string
}

// EventFilter narrows ListEvents; nil fields match everything.
type EventFilter struct {
	Location *string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// EventView is the read-model projection returned to callers. Count, roster
// membership and ownership are taken from a single consistent snapshot.
type EventView struct {
	Event
	EventStatus EventStatus `json:"status"`
	IsOwner     bool        `json:"is_owner"`
	IsJoined    bool        `json:"is_joined"`
}
