package repository

import (
	"context"

	"github.com/evermeet/events-api/internal/domain"
	"github.com/evermeet/events-api/internal/repository/dao"
)

var (
	ErrEventNotFound       = dao.ErrEventNotFound
	ErrEventFull           = dao.ErrEventFull
	ErrCapacityBelowRoster = dao.ErrCapacityBelowRoster
	ErrConflict            = dao.ErrConflict
)

type EventDAO interface {
	Insert(ctx context.Context, event dao.Event, ownerJoins bool) (dao.Event, error)
	GetByID(ctx context.Context, id uint) (dao.Event, error)
	GetSnapshot(ctx context.Context, eventID, userID uint) (dao.Event, bool, error)
	List(ctx context.Context, filter dao.EventFilter) ([]dao.Event, error)
	AddParticipant(ctx context.Context, eventID, userID uint) (dao.Event, bool, error)
	Update(ctx context.Context, eventID uint, patch dao.EventPatch) (dao.Event, error)
	Delete(ctx context.Context, eventID uint) error
	ListParticipants(ctx context.Context, eventID uint) ([]dao.Participation, error)
}

type EventRepository struct {
	dao EventDAO
}

func NewEventRepository(dao EventDAO) *EventRepository {
	return &EventRepository{
		dao: dao,
	}
}

func (r *EventRepository) daoToDomain(e dao.Event) domain.Event {
	return domain.Event{
		ID:               e.ID,
		Title:            e.Title,
		Description:      e.Description,
		Location:         e.Location,
		Date:             e.Date,
		StartTime:        e.StartTime,
		Capacity:         e.Capacity,
		OwnerID:          e.OwnerID,
		ImageRef:         e.ImageRef,
		ParticipantCount: e.ParticipantCount,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func (r *EventRepository) domainToDao(e domain.Event) dao.Event {
	return dao.Event{
		ID:               e.ID,
		Title:            e.Title,
		Description:      e.Description,
		Location:         e.Location,
		Date:             e.Date,
		StartTime:        e.StartTime,
		Capacity:         e.Capacity,
		OwnerID:          e.OwnerID,
		ImageRef:         e.ImageRef,
		ParticipantCount: e.ParticipantCount,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func (r *EventRepository) Create(ctx context.Context, event domain.Event, ownerJoins bool) (domain.Event, error) {
	created, err := r.dao.Insert(ctx, r.domainToDao(event), ownerJoins)
	if err != nil {
		return domain.Event{}, err
	}

	return r.daoToDomain(created), nil
}

func (r *EventRepository) GetByID(ctx context.Context, id uint) (domain.Event, error) {
	event, err := r.dao.GetByID(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}

	return r.daoToDomain(event), nil
}

func (r *EventRepository) GetSnapshot(ctx context.Context, eventID, userID uint) (domain.Event, bool, error) {
	event, joined, err := r.dao.GetSnapshot(ctx, eventID, userID)
	if err != nil {
		return domain.Event{}, false, err
	}

	return r.daoToDomain(event), joined, nil
}

func (r *EventRepository) List(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	daoEvents, err := r.dao.List(ctx, dao.EventFilter{
		Location: filter.Location,
		From:     filter.From,
		To:       filter.To,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
	if err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(daoEvents))
	for _, e := range daoEvents {
		events = append(events, r.daoToDomain(e))
	}

	return events, nil
}

func (r *EventRepository) AddParticipant(ctx context.Context, eventID, userID uint) (domain.Event, bool, error) {
	event, added, err := r.dao.AddParticipant(ctx, eventID, userID)
	if err != nil {
		return domain.Event{}, false, err
	}

	return r.daoToDomain(event), added, nil
}

func (r *EventRepository) Update(ctx context.Context, eventID uint, patch domain.EventPatch) (domain.Event, error) {
	updated, err := r.dao.Update(ctx, eventID, dao.EventPatch{
		Title:       patch.Title,
		Description: patch.Description,
		Location:    patch.Location,
		Date:        patch.Date,
		StartTime:   patch.StartTime,
		Capacity:    patch.Capacity,
		ImageRef:    patch.ImageRef,
	})
	if err != nil {
		return domain.Event{}, err
	}

	return r.daoToDomain(updated), nil
}

func (r *EventRepository) Delete(ctx context.Context, eventID uint) error {
	return r.dao.Delete(ctx, eventID)
}

func (r *EventRepository) ListParticipants(ctx context.Context, eventID uint) ([]domain.Participation, error) {
	daoParticipations, err := r.dao.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}

	participations := make([]domain.Participation, 0, len(daoParticipations))
	for _, p := range daoParticipations {
		participations = append(participations, domain.Participation{
			EventID:  p.EventID,
			UserID:   p.UserID,
			JoinedAt: p.JoinedAt,
		})
	}

	return participations, nil
}
