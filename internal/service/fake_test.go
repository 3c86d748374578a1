package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/evermeet/events-api/internal/domain"
	"github.com/evermeet/events-api/internal/repository"
)

// fakeEventRepo is an in-memory stand-in for the Postgres-backed repository.
// Its mutex plays the role of the event row lock: the whole
// read-count/insert sequence of AddParticipant runs under it, matching the
// serialization the real store provides.
type fakeEventRepo struct {
	mu     sync.Mutex
	nextID uint
	events map[uint]domain.Event
	roster map[uint]map[uint]time.Time
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		events: make(map[uint]domain.Event),
		roster: make(map[uint]map[uint]time.Time),
	}
}

func (f *fakeEventRepo) Create(_ context.Context, event domain.Event, ownerJoins bool) (domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	event.ID = f.nextID
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt
	f.roster[event.ID] = make(map[uint]time.Time)
	if ownerJoins {
		f.roster[event.ID][event.OwnerID] = time.Now().UTC()
		event.ParticipantCount = 1
	}
	f.events[event.ID] = event

	return event, nil
}

func (f *fakeEventRepo) GetByID(_ context.Context, id uint) (domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	event, ok := f.events[id]
	if !ok {
		return domain.Event{}, repository.ErrEventNotFound
	}

	return event, nil
}

func (f *fakeEventRepo) GetSnapshot(_ context.Context, eventID, userID uint) (domain.Event, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	event, ok := f.events[eventID]
	if !ok {
		return domain.Event{}, false, repository.ErrEventNotFound
	}
	_, joined := f.roster[eventID][userID]

	return event, joined, nil
}

func (f *fakeEventRepo) List(_ context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var events []domain.Event
	for _, e := range f.events {
		if filter.Location != nil && e.Location != *filter.Location {
			continue
		}
		if filter.From != nil && e.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.Date.After(*filter.To) {
			continue
		}
		events = append(events, e)
	}

	// Same ordering and paging the real store applies.
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].ID < events[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(events) {
			return nil, nil
		}
		events = events[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(events) {
		events = events[:filter.Limit]
	}

	return events, nil
}

func (f *fakeEventRepo) AddParticipant(_ context.Context, eventID, userID uint) (domain.Event, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	event, ok := f.events[eventID]
	if !ok {
		return domain.Event{}, false, repository.ErrEventNotFound
	}

	if _, joined := f.roster[eventID][userID]; joined {
		return event, false, nil
	}

	if event.ParticipantCount >= event.Capacity {
		return domain.Event{}, false, repository.ErrEventFull
	}

	f.roster[eventID][userID] = time.Now().UTC()
	event.ParticipantCount++
	f.events[eventID] = event

	return event, true, nil
}

func (f *fakeEventRepo) Update(_ context.Context, eventID uint, patch domain.EventPatch) (domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	event, ok := f.events[eventID]
	if !ok {
		return domain.Event{}, repository.ErrEventNotFound
	}

	if patch.Capacity != nil && *patch.Capacity < event.ParticipantCount {
		return domain.Event{}, repository.ErrCapacityBelowRoster
	}

	if patch.Title != nil {
		event.Title = *patch.Title
	}
	if patch.Description != nil {
		event.Description = *patch.Description
	}
	if patch.Location != nil {
		event.Location = *patch.Location
	}
	if patch.Date != nil {
		event.Date = *patch.Date
	}
	if patch.StartTime != nil {
		event.StartTime = *patch.StartTime
	}
	if patch.Capacity != nil {
		event.Capacity = *patch.Capacity
	}
	if patch.ImageRef != nil {
		event.ImageRef = *patch.ImageRef
	}
	event.UpdatedAt = time.Now().UTC()
	f.events[eventID] = event

	return event, nil
}

func (f *fakeEventRepo) Delete(_ context.Context, eventID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.events[eventID]; !ok {
		return repository.ErrEventNotFound
	}

	delete(f.events, eventID)
	delete(f.roster, eventID)

	return nil
}

func (f *fakeEventRepo) ListParticipants(_ context.Context, eventID uint) ([]domain.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var participations []domain.Participation
	for userID, joinedAt := range f.roster[eventID] {
		participations = append(participations, domain.Participation{
			EventID:  eventID,
			UserID:   userID,
			JoinedAt: joinedAt,
		})
	}

	return participations, nil
}

// rosterSize reports how many users are on an event's roster, bypassing the
// counter, so tests can check the two never drift apart.
func (f *fakeEventRepo) rosterSize(eventID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.roster[eventID])
}

func (f *fakeEventRepo) seedEvent(capacity int, ownerID uint) domain.Event {
	event, _ := f.Create(context.Background(), domain.Event{
		Title:     "Trail cleanup",
		Location:  "Riverside park",
		Date:      time.Now().AddDate(0, 1, 0),
		StartTime: "10:00",
		Capacity:  capacity,
		OwnerID:   ownerID,
	}, false)

	return event
}
