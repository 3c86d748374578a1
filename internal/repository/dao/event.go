package dao

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrEventFull           = errors.New("event is full")
	ErrCapacityBelowRoster = errors.New("capacity below current participant count")
	ErrConflict            = errors.New("concurrent mutation conflict")
)

type Event struct {
	ID uint `gorm:"primaryKey"`

	Title       string `gorm:"not null"`
	Description string
	Location    string    `gorm:"not null"`
	Date        time.Time `gorm:"not null"`
	StartTime   string    `gorm:"not null"` // HH:MM, venue-local
	Capacity    int       `gorm:"not null"`
	OwnerID     uint      `gorm:"not null;index"`
	ImageRef    string

	// Authoritative roster counter, mutated only inside the same transaction
	// that inserts or removes Participation rows.
	ParticipantCount int `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type Participation struct {
	ID       uint      `gorm:"primaryKey"`
	EventID  uint      `gorm:"not null;uniqueIndex:idx_event_user"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_event_user"`
	JoinedAt time.Time `gorm:"not null"`
}

// EventPatch is a partial update; nil fields are left untouched.
type EventPatch struct {
	Title       *string
	Description *string
	Location    *string
	Date        *time.Time
	StartTime   *string
	Capacity    *int
	ImageRef    *string
}

type EventFilter struct {
	Location *string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

type EventDAO struct {
	db *gorm.DB
}

func NewEventDAO(db *gorm.DB) *EventDAO {
	return &EventDAO{
		db: db,
	}
}

// Insert creates the event row. When ownerJoins is set, the owner's
// Participation row is seeded in the same transaction and counted against
// capacity.
func (d *EventDAO) Insert(ctx context.Context, event Event, ownerJoins bool) (Event, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ownerJoins {
			event.ParticipantCount = 1
		}
		if result := tx.Create(&event); result.Error != nil {
			return result.Error
		}
		if !ownerJoins {
			return nil
		}

		participation := Participation{
			EventID:  event.ID,
			UserID:   event.OwnerID,
			JoinedAt: time.Now().UTC(),
		}
		return tx.Create(&participation).Error
	})
	if err != nil {
		return Event{}, translatePgError(err)
	}

	return event, nil
}

func (d *EventDAO) GetByID(ctx context.Context, id uint) (Event, error) {
	var event Event
	result := d.db.WithContext(ctx).First(&event, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Event{}, ErrEventNotFound
		}

		return Event{}, result.Error
	}

	return event, nil
}

// GetSnapshot reads the event together with the caller's roster membership
// from a single transaction, so the count and the joined flag can never
// disagree.
func (d *EventDAO) GetSnapshot(ctx context.Context, eventID, userID uint) (Event, bool, error) {
	var (
		event  Event
		joined bool
	)
	// Repeatable read pins one snapshot for both statements, so the counter
	// and the membership flag always agree.
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.First(&event, eventID); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return result.Error
		}

		var n int64
		result := tx.Model(&Participation{}).
			Where("event_id = ? AND user_id = ?", eventID, userID).
			Count(&n)
		if result.Error != nil {
			return result.Error
		}
		joined = n > 0

		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return Event{}, false, err
	}

	return event, joined, nil
}

func (d *EventDAO) List(ctx context.Context, filter EventFilter) ([]Event, error) {
	query := d.db.WithContext(ctx).Model(&Event{})
	if filter.Location != nil {
		query = query.Where("location = ?", *filter.Location)
	}
	if filter.From != nil {
		query = query.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("date <= ?", *filter.To)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var events []Event
	result := query.Order("date ASC, id ASC").Find(&events)
	if result.Error != nil {
		return nil, result.Error
	}

	return events, nil
}

// AddParticipant admits userID to the event, holding an exclusive row lock on
// the event for the whole read-count/insert sequence. Two concurrent joins on
// the same event serialise on that lock; joins on different events do not
// contend.
//
// The returned bool reports whether a new Participation row was created.
// A repeated join is a no-op success and returns the current roster state.
func (d *EventDAO) AddParticipant(ctx context.Context, eventID, userID uint) (Event, bool, error) {
	var (
		event Event
		added bool
	)
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SELECT ... FOR UPDATE: blocks concurrent admissions on this event
		// until commit, which is what makes the capacity re-check sound.
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&event, eventID)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return result.Error
		}

		var n int64
		result = tx.Model(&Participation{}).
			Where("event_id = ? AND user_id = ?", eventID, userID).
			Count(&n)
		if result.Error != nil {
			return result.Error
		}
		if n > 0 {
			// Already on the roster; idempotent success.
			return nil
		}

		if event.ParticipantCount >= event.Capacity {
			return ErrEventFull
		}

		participation := Participation{
			EventID:  eventID,
			UserID:   userID,
			JoinedAt: time.Now().UTC(),
		}
		if result = tx.Create(&participation); result.Error != nil {
			return result.Error
		}

		result = tx.Model(&Event{}).
			Where("id = ?", eventID).
			UpdateColumn("participant_count", gorm.Expr("participant_count + 1"))
		if result.Error != nil {
			return result.Error
		}
		event.ParticipantCount++
		added = true

		return nil
	})
	if err != nil {
		if isUniqueViolation(err, "idx_event_user") {
			// Lost a race against an identical join; the row exists, which is
			// the state the caller asked for.
			fresh, lookupErr := d.GetByID(ctx, eventID)
			if lookupErr != nil {
				return Event{}, false, lookupErr
			}
			return fresh, false, nil
		}

		return Event{}, false, translatePgError(err)
	}

	return event, added, nil
}

// Update applies the patch under the same event row lock the admission path
// takes, so a capacity decrease can never interleave with a join in a way
// that leaves the roster over capacity.
func (d *EventDAO) Update(ctx context.Context, eventID uint, patch EventPatch) (Event, error) {
	var event Event
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&event, eventID)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return result.Error
		}

		if patch.Capacity != nil && *patch.Capacity < event.ParticipantCount {
			return ErrCapacityBelowRoster
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

		return tx.Save(&event).Error
	})
	if err != nil {
		return Event{}, translatePgError(err)
	}

	return event, nil
}

// Delete removes the event and its whole roster in one transaction.
func (d *EventDAO) Delete(ctx context.Context, eventID uint) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&Event{}, eventID)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return result.Error
		}

		if result = tx.Where("event_id = ?", eventID).Delete(&Participation{}); result.Error != nil {
			return result.Error
		}

		return tx.Delete(&Event{}, eventID).Error
	})
	if err != nil {
		return translatePgError(err)
	}

	return nil
}

func (d *EventDAO) ListParticipants(ctx context.Context, eventID uint) ([]Participation, error) {
	var participations []Participation
	result := d.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("joined_at ASC, id ASC").
		Find(&participations)
	if result.Error != nil {
		return nil, result.Error
	}

	return participations, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == constraint
}

// translatePgError maps retryable Postgres failures onto ErrConflict so
// callers can distinguish "retry once" from hard errors.
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return ErrConflict
		}
	}

	return err
}
