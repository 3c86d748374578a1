package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evermeet/events-api/internal/api/handler/v1/request"
	"github.com/evermeet/events-api/internal/api/handler/v1/response"
	"github.com/evermeet/events-api/internal/domain"
	"github.com/evermeet/events-api/internal/service"
)

const dateLayout = "2006-01-02"

type EventService interface {
	Create(ctx context.Context, event domain.Event) (domain.Event, error)
	Update(ctx context.Context, eventID, callerID uint, patch domain.EventPatch) (domain.Event, error)
	Delete(ctx context.Context, eventID, callerID uint) error
	GetEvent(ctx context.Context, eventID, callerID uint) (domain.EventView, error)
	ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error)
	ListParticipants(ctx context.Context, eventID uint) ([]domain.Participation, error)
}

type AdmissionService interface {
	Join(ctx context.Context, eventID, userID uint) (service.JoinResult, error)
	Status(ctx context.Context, eventID, userID uint) (domain.MembershipStatus, error)
}

type EventHandler struct {
	svc       EventService
	admission AdmissionService
}

func NewEventHandler(svc EventService, admission AdmissionService) *EventHandler {
	return &EventHandler{
		svc:       svc,
		admission: admission,
	}
}

// HandleCreateEvent godoc
// @Summary      Create a new event
// @Description  Creates an event owned by the authenticated caller
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        input  body      request.CreateEventRequest  true  "Event details"
// @Success      201    {object}  response.EventResponse
// @Failure      400    {object}  response.Err
// @Failure      401    {object}  response.Err
// @Failure      500    {object}  response.Err
// @Router       /events [post]
// @Security BearerAuth
func (h *EventHandler) HandleCreateEvent(ctx *gin.Context) {
	callerID, respErr := getCallerID(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.CreateEventRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	parsedDate, err := time.Parse(dateLayout, input.Date)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid date format: %v", err)))
		return
	}

	event := domain.Event{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		Date:        parsedDate,
		StartTime:   input.StartTime,
		Capacity:    input.Capacity,
		ImageRef:    input.ImageRef,
		OwnerID:     callerID,
	}

	created, err := h.svc.Create(ctx.Request.Context(), event)
	if err != nil {
		if isValidationErr(err) {
			response.RenderErr(ctx, response.ErrBadRequest(err))
			return
		}

		err = fmt.Errorf("v1.HandleCreateEvent -> h.svc.Create -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusCreated, response.NewEventResponse(domain.EventView{
		Event:       created,
		EventStatus: created.Status(),
		IsOwner:     true,
		IsJoined:    created.ParticipantCount > 0 && created.OwnerID == callerID,
	}))
}

// HandleUpdateEvent godoc
// @Summary      Update an event
// @Description  Applies a partial update. Owner only. Lowering capacity below the current roster is rejected.
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        eventID  path      int                         true  "Event ID"
// @Param        input    body      request.UpdateEventRequest  true  "Fields to change"
// @Success      200      {object}  response.EventResponse
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      409      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /events/{eventID} [put]
// @Security BearerAuth
func (h *EventHandler) HandleUpdateEvent(ctx *gin.Context) {
	callerID, respErr := getCallerID(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseEventID(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.UpdateEventRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	patch := domain.EventPatch{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		StartTime:   input.StartTime,
		Capacity:    input.Capacity,
		ImageRef:    input.ImageRef,
	}
	if input.Date != nil {
		parsedDate, err := time.Parse(dateLayout, *input.Date)
		if err != nil {
			response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid date format: %v", err)))
			return
		}
		patch.Date = &parsedDate
	}

	updated, err := h.svc.Update(ctx.Request.Context(), eventID, callerID, patch)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			response.RenderErr(ctx, response.ErrNotFound("event", "ID", eventID))
		case errors.Is(err, service.ErrForbidden):
			response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v does not own event %v", callerID, eventID)))
		case errors.Is(err, service.ErrCapacityBelowRoster):
			response.RenderErr(ctx, response.ErrConflict("capacity cannot drop below the current participant count"))
		case errors.Is(err, service.ErrConflict):
			response.RenderErr(ctx, response.ErrConflict("concurrent update detected, please retry"))
		case isValidationErr(err):
			response.RenderErr(ctx, response.ErrBadRequest(err))
		default:
			err = fmt.Errorf("v1.HandleUpdateEvent -> h.svc.Update -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	view, err := h.svc.GetEvent(ctx.Request.Context(), updated.ID, callerID)
	if err != nil {
		err = fmt.Errorf("v1.HandleUpdateEvent -> h.svc.GetEvent -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.NewEventResponse(view))
}

// HandleDeleteEvent godoc
// @Summary      Delete an event
// @Description  Deletes the event and all its registrations. Owner only.
// @Tags         events
// @Produce      json
// @Param        eventID  path  int  true  "Event ID"
// @Success      204
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /events/{eventID} [delete]
// @Security BearerAuth
func (h *EventHandler) HandleDeleteEvent(ctx *gin.Context) {
	callerID, respErr := getCallerID(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseEventID(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if err := h.svc.Delete(ctx.Request.Context(), eventID, callerID); err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			response.RenderErr(ctx, response.ErrNotFound("event", "ID", eventID))
		case errors.Is(err, service.ErrForbidden):
			response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v does not own event %v", callerID, eventID)))
		default:
			err = fmt.Errorf("v1.HandleDeleteEvent -> h.svc.Delete -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleJoinEvent godoc
// @Summary      Join an event
// @Description  Registers the caller for the event. Idempotent: joining twice returns the same success. Fails with 409 when the event is full.
// @Tags         events
// @Produce      json
// @Param        eventID  path      int  true  "Event ID"
// @Success      200      {object}  response.JoinResponse
// @Failure      401      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      409      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /events/{eventID}/join [post]
// @Security BearerAuth
func (h *EventHandler) HandleJoinEvent(ctx *gin.Context) {
	callerID, respErr := getCallerID(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseEventID(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	result, err := h.admission.Join(ctx.Request.Context(), eventID, callerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			response.RenderErr(ctx, response.ErrNotFound("event", "ID", eventID))
		case errors.Is(err, service.ErrEventFull):
			response.RenderErr(ctx, response.ErrConflict("no slots available"))
		case errors.Is(err, service.ErrConflict):
			response.RenderErr(ctx, response.ErrConflict("concurrent join detected, please retry"))
		default:
			err = fmt.Errorf("v1.HandleJoinEvent -> h.admission.Join -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, response.JoinResponse{
		EventID:          result.Event.ID,
		ParticipantCount: result.Event.ParticipantCount,
		Capacity:         result.Event.Capacity,
		Status:           string(result.Event.Status()),
		AlreadyJoined:    result.AlreadyThere,
	})
}

// HandleGetEvent godoc
// @Summary      Get an event
// @Description  Returns the event with its participant count and the caller's ownership and membership flags, read from one consistent snapshot.
// @Tags         events
// @Produce      json
// @Param        eventID  path      int  true  "Event ID"
// @Success      200      {object}  response.EventResponse
// @Failure      401      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /events/{eventID} [get]
// @Security BearerAuth
func (h *EventHandler) HandleGetEvent(ctx *gin.Context) {
	callerID, respErr := getCallerID(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseEventID(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	view, err := h.svc.GetEvent(ctx.Request.Context(), eventID, callerID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("event", "ID", eventID))
			return
		}

		err = fmt.Errorf("v1.HandleGetEvent -> h.svc.GetEvent -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.NewEventResponse(view))
}

// HandleGetStatus godoc
// @Summary      Get the caller's membership status for an event
// @Description  Returns one of OWNER, JOINED, JOINABLE, FULL
// @Tags         events
// @Produce      json
// @Param        eventID  path      int  true  "Event ID"
// @Success      200      {object}  map[string]string
// @Failure      401      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /events/{eventID}/status [get]
// @Security BearerAuth
func (h *EventHandler) HandleGetStatus(ctx *gin.Context) {
	callerID, respErr := getCallerID(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseEventID(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	status, err := h.admission.Status(ctx.Request.Context(), eventID, callerID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("event", "ID", eventID))
			return
		}

		err = fmt.Errorf("v1.HandleGetStatus -> h.admission.Status -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": string(status)})
}

// HandleListEvents godoc
// @Summary      List events
// @Description  Returns event summaries, optionally filtered by location and date range
// @Tags         events
// @Produce      json
// @Param        location  query     string  false  "Exact location match"
// @Param        from      query     string  false  "Earliest date (YYYY-MM-DD)"
// @Param        to        query     string  false  "Latest date (YYYY-MM-DD)"
// @Param        limit     query     int     false  "Page size"
// @Param        offset    query     int     false  "Page offset"
// @Success      200       {array}   response.EventSummary
// @Failure      400       {object}  response.Err
// @Failure      401       {object}  response.Err
// @Failure      500       {object}  response.Err
// @Router       /events [get]
// @Security BearerAuth
func (h *EventHandler) HandleListEvents(ctx *gin.Context) {
	var input request.ListEventsRequest
	if err := ctx.ShouldBindQuery(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	filter := domain.EventFilter{
		Limit:  input.Limit,
		Offset: input.Offset,
	}
	if input.Location != "" {
		filter.Location = &input.Location
	}
	if input.From != "" {
		from, err := time.Parse(dateLayout, input.From)
		if err != nil {
			response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid from date: %v", err)))
			return
		}
		filter.From = &from
	}
	if input.To != "" {
		to, err := time.Parse(dateLayout, input.To)
		if err != nil {
			response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid to date: %v", err)))
			return
		}
		filter.To = &to
	}

	events, err := h.svc.ListEvents(ctx.Request.Context(), filter)
	if err != nil {
		err = fmt.Errorf("v1.HandleListEvents -> h.svc.ListEvents -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.NewEventSummaries(events))
}

// HandleListParticipants godoc
// @Summary      List event participants
// @Tags         events
// @Produce      json
// @Param        eventID  path      int  true  "Event ID"
// @Success      200      {array}   response.ParticipantResponse
// @Failure      401      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /events/{eventID}/participants [get]
// @Security BearerAuth
func (h *EventHandler) HandleListParticipants(ctx *gin.Context) {
	if _, respErr := getCallerID(ctx); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseEventID(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	participations, err := h.svc.ListParticipants(ctx.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("event", "ID", eventID))
			return
		}

		err = fmt.Errorf("v1.HandleListParticipants -> h.svc.ListParticipants -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.NewParticipantResponses(participations))
}

func parseEventID(ctx *gin.Context) (uint, *response.Err) {
	raw := ctx.Param("eventID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, response.ErrBadRequest(fmt.Errorf("invalid event ID %q", raw))
	}

	return uint(id), nil
}

func isValidationErr(err error) bool {
	return errors.Is(err, service.ErrTitleRequired) ||
		errors.Is(err, service.ErrLocationRequired) ||
		errors.Is(err, service.ErrInvalidCapacity) ||
		errors.Is(err, service.ErrDateInPast)
}
