package request

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
)

const dateLayout = "2006-01-02"

var timeOfDay = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type CreateEventRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location" binding:"required"`
	Date        string `json:"date" binding:"required" format:"YYYY-MM-DD"`
	StartTime   string `json:"start_time" binding:"required" format:"HH:MM"`
	Capacity    int    `json:"capacity" binding:"required"`
	ImageRef    string `json:"image_ref"`
}

func (req *CreateEventRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Title, validation.Required, validation.Length(2, 120)),
		validation.Field(&req.Description, validation.Length(0, 1000)),
		validation.Field(&req.Location, validation.Required, validation.Length(2, 255)),
		validation.Field(&req.Date, validation.Required, validation.Date(dateLayout)),
		validation.Field(&req.StartTime, validation.Required, validation.Match(timeOfDay)),
		validation.Field(&req.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&req.ImageRef, validation.Length(0, 500)),
	)
}

// UpdateEventRequest is a partial patch; absent fields stay unchanged.
type UpdateEventRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Date        *string `json:"date" format:"YYYY-MM-DD"`
	StartTime   *string `json:"start_time" format:"HH:MM"`
	Capacity    *int    `json:"capacity"`
	ImageRef    *string `json:"image_ref"`
}

func (req *UpdateEventRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Title, validation.NilOrNotEmpty, validation.Length(2, 120)),
		validation.Field(&req.Description, validation.Length(0, 1000)),
		validation.Field(&req.Location, validation.NilOrNotEmpty, validation.Length(2, 255)),
		validation.Field(&req.Date, validation.Date(dateLayout)),
		validation.Field(&req.StartTime, validation.Match(timeOfDay)),
		validation.Field(&req.Capacity, validation.Min(1)),
		validation.Field(&req.ImageRef, validation.Length(0, 500)),
	)
}

type ListEventsRequest struct {
	Location string `form:"location"`
	From     string `form:"from" format:"YYYY-MM-DD"`
	To       string `form:"to" format:"YYYY-MM-DD"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

func (req *ListEventsRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.From, validation.Date(dateLayout)),
		validation.Field(&req.To, validation.Date(dateLayout)),
		validation.Field(&req.Limit, validation.Min(0), validation.Max(500)),
		validation.Field(&req.Offset, validation.Min(0)),
	)
}
