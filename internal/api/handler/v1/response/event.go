package response

import (
	"time"

	"github.com/evermeet/events-api/internal/domain"
)

// EventResponse is the read-model payload for a single event as seen by the
// authenticated caller.
type EventResponse struct {
	ID               uint   `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Location         string `json:"location"`
	Date             string `json:"date"` // YYYY-MM-DD, venue-local
	StartTime        string `json:"start_time"`
	Capacity         int    `json:"capacity"`
	OwnerID          uint   `json:"owner_id"`
	ImageRef         string `json:"image_ref,omitempty"`
	ParticipantCount int    `json:"participant_count"`
	Status           string `json:"status"`
	IsOwner          bool   `json:"is_owner"`
	IsJoined         bool   `json:"is_joined"`
}

// JoinResponse reports the roster state after a join. AlreadyJoined lets
// clients tell a fresh admission from an idempotent repeat.
type JoinResponse struct {
	EventID          uint   `json:"event_id"`
	ParticipantCount int    `json:"participant_count"`
	Capacity         int    `json:"capacity"`
	Status           string `json:"status"`
	AlreadyJoined    bool   `json:"already_joined"`
}

// EventSummary is the list-events projection.
type EventSummary struct {
	ID               uint   `json:"id"`
	Title            string `json:"title"`
	Location         string `json:"location"`
	Date             string `json:"date"`
	StartTime        string `json:"start_time"`
	Capacity         int    `json:"capacity"`
	ParticipantCount int    `json:"participant_count"`
	Status           string `json:"status"`
}

const dateLayout = "2006-01-02"

func NewEventResponse(view domain.EventView) EventResponse {
	return EventResponse{
		ID:               view.ID,
		Title:            view.Title,
		Description:      view.Description,
		Location:         view.Location,
		Date:             view.Date.Format(dateLayout),
		StartTime:        view.StartTime,
		Capacity:         view.Capacity,
		OwnerID:          view.OwnerID,
		ImageRef:         view.ImageRef,
		ParticipantCount: view.ParticipantCount,
		Status:           string(view.EventStatus),
		IsOwner:          view.IsOwner,
		IsJoined:         view.IsJoined,
	}
}

func NewEventSummaries(events []domain.Event) []EventSummary {
	summaries := make([]EventSummary, 0, len(events))
	for _, e := range events {
		summaries = append(summaries, EventSummary{
			ID:               e.ID,
			Title:            e.Title,
			Location:         e.Location,
			Date:             e.Date.Format(dateLayout),
			StartTime:        e.StartTime,
			Capacity:         e.Capacity,
			ParticipantCount: e.ParticipantCount,
			Status:           string(e.Status()),
		})
	}

	return summaries
}

type ParticipantResponse struct {
	UserID   uint      `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

func NewParticipantResponses(participations []domain.Participation) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(participations))
	for _, p := range participations {
		out = append(out, ParticipantResponse{
			UserID:   p.UserID,
			JoinedAt: p.JoinedAt,
		})
	}

	return out
}
