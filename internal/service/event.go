package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evermeet/events-api/internal/domain"
	"github.com/evermeet/events-api/internal/repository"
)

var (
	ErrCapacityBelowRoster = repository.ErrCapacityBelowRoster
	ErrForbidden           = errors.New("caller is not the event owner")
	ErrTitleRequired       = errors.New("title is required")
	ErrLocationRequired    = errors.New("location is required")
	ErrInvalidCapacity     = errors.New("capacity must be a positive integer")
	ErrDateInPast          = errors.New("event date is in the past")
)

type EventRepository interface {
	Create(ctx context.Context, event domain.Event, ownerJoins bool) (domain.Event, error)
	GetByID(ctx context.Context, id uint) (domain.Event, error)
	GetSnapshot(ctx context.Context, eventID, userID uint) (domain.Event, bool, error)
	List(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error)
	Update(ctx context.Context, eventID uint, patch domain.EventPatch) (domain.Event, error)
	Delete(ctx context.Context, eventID uint) error
	ListParticipants(ctx context.Context, eventID uint) ([]domain.Participation, error)
}

// EventService handles event lifecycle (create, update, delete) and the
// read-model queries. Ownership is checked here; the capacity floor is
// enforced by the repository under the same lock the admission path uses.
type EventService struct {
	repo EventRepository

	// When set, creating an event also puts the owner on the roster,
	// counted against capacity.
	ownerAutoJoin bool

	now func() time.Time
}

func NewEventService(repo EventRepository, ownerAutoJoin bool) *EventService {
	return &EventService{
		repo:          repo,
		ownerAutoJoin: ownerAutoJoin,
		now:           time.Now,
	}
}

func (s *EventService) Create(ctx context.Context, event domain.Event) (domain.Event, error) {
	event.Title = strings.TrimSpace(event.Title)
	event.Location = strings.TrimSpace(event.Location)

	if err := s.validateNew(event); err != nil {
		return domain.Event{}, err
	}

	event.ParticipantCount = 0
	created, err := s.repo.Create(ctx, event, s.ownerAutoJoin)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

func (s *EventService) validateNew(event domain.Event) error {
	if event.Title == "" {
		return ErrTitleRequired
	}
	if event.Location == "" {
		return ErrLocationRequired
	}
	if event.Capacity < 1 {
		return ErrInvalidCapacity
	}
	if s.dateInPast(event.Date) {
		return ErrDateInPast
	}

	return nil
}

// dateInPast compares against venue-local midnight: an event later today is
// still valid.
func (s *EventService) dateInPast(date time.Time) bool {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, date.Location())
	return date.Before(today)
}

// Update applies a partial patch. Only the owner may update; lowering
// capacity below the current roster fails with ErrCapacityBelowRoster and
// changes nothing.
func (s *EventService) Update(ctx context.Context, eventID, callerID uint, patch domain.EventPatch) (domain.Event, error) {
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return domain.Event{}, ErrEventNotFound
		}

		return domain.Event{}, fmt.Errorf("s.repo.GetByID -> %w", err)
	}

	if event.OwnerID != callerID {
		return domain.Event{}, ErrForbidden
	}

	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		if trimmed == "" {
			return domain.Event{}, ErrTitleRequired
		}
		patch.Title = &trimmed
	}
	if patch.Capacity != nil && *patch.Capacity < 1 {
		return domain.Event{}, ErrInvalidCapacity
	}
	if patch.Date != nil && s.dateInPast(*patch.Date) {
		return domain.Event{}, ErrDateInPast
	}

	updated, err := s.repo.Update(ctx, eventID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) ||
			errors.Is(err, repository.ErrCapacityBelowRoster) ||
			errors.Is(err, repository.ErrConflict) {
			return domain.Event{}, err
		}

		return domain.Event{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	return updated, nil
}

// Delete removes the event and cascades to its roster. Owner only.
func (s *EventService) Delete(ctx context.Context, eventID, callerID uint) error {
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return ErrEventNotFound
		}

		return fmt.Errorf("s.repo.GetByID -> %w", err)
	}

	if event.OwnerID != callerID {
		return ErrForbidden
	}

	if err = s.repo.Delete(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) || errors.Is(err, repository.ErrConflict) {
			return err
		}

		return fmt.Errorf("s.repo.Delete -> %w", err)
	}

	return nil
}

// GetEvent builds the read model for one event as seen by callerID. The
// count, ownership and membership flags come from a single snapshot.
func (s *EventService) GetEvent(ctx context.Context, eventID, callerID uint) (domain.EventView, error) {
	event, joined, err := s.repo.GetSnapshot(ctx, eventID, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return domain.EventView{}, ErrEventNotFound
		}

		return domain.EventView{}, fmt.Errorf("s.repo.GetSnapshot -> %w", err)
	}

	return domain.EventView{
		Event:       event,
		EventStatus: event.Status(),
		IsOwner:     event.OwnerID == callerID,
		IsJoined:    joined,
	}, nil
}

func (s *EventService) ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("s.repo.List -> %w", err)
	}

	return events, nil
}

func (s *EventService) ListParticipants(ctx context.Context, eventID uint) ([]domain.Participation, error) {
	if _, err := s.repo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}

		return nil, fmt.Errorf("s.repo.GetByID -> %w", err)
	}

	participations, err := s.repo.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.ListParticipants -> %w", err)
	}

	return participations, nil
}
