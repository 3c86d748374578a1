package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/evermeet/events-api/internal/domain"
	"github.com/evermeet/events-api/internal/repository"
)

var (
	ErrEventNotFound = repository.ErrEventNotFound
	ErrEventFull     = repository.ErrEventFull
	ErrConflict      = repository.ErrConflict
)

type AdmissionEventRepository interface {
	AddParticipant(ctx context.Context, eventID, userID uint) (domain.Event, bool, error)
	GetSnapshot(ctx context.Context, eventID, userID uint) (domain.Event, bool, error)
}

// AdmissionService owns the roster invariant: the participant count of an
// event never exceeds its capacity, no matter how many joins race. All roster
// mutations go through here.
type AdmissionService struct {
	repo AdmissionEventRepository
}

func NewAdmissionService(repo AdmissionEventRepository) *AdmissionService {
	return &AdmissionService{
		repo: repo,
	}
}

// JoinResult reports the roster state after a join attempt.
type JoinResult struct {
	Event        domain.Event
	NewlyJoined  bool
	AlreadyThere bool
}

// Join admits userID to the event. Joining twice is a no-op success: the
// result carries the same roster state a single join would have produced, so
// client retries after a lost response are safe.
func (s *AdmissionService) Join(ctx context.Context, eventID, userID uint) (JoinResult, error) {
	event, added, err := s.repo.AddParticipant(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) ||
			errors.Is(err, repository.ErrEventFull) ||
			errors.Is(err, repository.ErrConflict) {
			return JoinResult{}, err
		}

		return JoinResult{}, fmt.Errorf("s.repo.AddParticipant -> %w", err)
	}

	return JoinResult{
		Event:        event,
		NewlyJoined:  added,
		AlreadyThere: !added,
	}, nil
}

// Status reports the caller's relationship to the event, computed from one
// snapshot read. Ownership wins over roster membership; a joined user stays
// JOINED even when the event fills up afterwards.
func (s *AdmissionService) Status(ctx context.Context, eventID, userID uint) (domain.MembershipStatus, error) {
	event, joined, err := s.repo.GetSnapshot(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return "", ErrEventNotFound
		}

		return "", fmt.Errorf("s.repo.GetSnapshot -> %w", err)
	}

	switch {
	case event.OwnerID == userID:
		return domain.StatusOwner, nil
	case joined:
		return domain.StatusJoined, nil
	case event.ParticipantCount < event.Capacity:
		return domain.StatusJoinable, nil
	default:
		return domain.StatusFull, nil
	}
}
