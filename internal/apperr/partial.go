package apperr

import (
	"errors"
	"fmt"

	"salonbook/internal/model"
)

// PartialFailureError reports a two-step commit that resolved the client but
// did not create the booking. Err is the booking failure.
type PartialFailureError struct {
	Client      *model.Client
	ClientIsNew bool
	Err         error
}

func (e *PartialFailureError) Error() string {
	id := int64(0)
	if e.Client != nil {
		id = e.Client.ID
	}
	return fmt.Sprintf("client %d resolved, booking not created: %v", id, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

// AsPartial extracts a PartialFailureError from err.
func AsPartial(err error) (*PartialFailureError, bool) {
	var p *PartialFailureError
	if errors.As(err, &p) {
		return p, true
	}
	return nil, false
}

// UserMessage renders err as a notification. A partial failure always says
// which half succeeded.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var msg string
	var v *ValidationError
	switch {
	case errors.As(err, &v):
		msg = "Please check the form: " + v.Error()
	case errors.Is(err, ErrConflict):
		msg = "That time was just taken. Please pick another slot."
	case errors.Is(err, ErrNotFound):
		msg = "The booking no longer exists or is already closed."
	case errors.Is(err, ErrTransient):
		msg = "Connection problem. Nothing was retried, please try again."
	default:
		msg = "Something went wrong. Please try again."
	}

	if p, ok := AsPartial(err); ok {
		who := "Your client record was found"
		if p.ClientIsNew {
			who = "Your client record was created"
		}
		return who + ", but the appointment was not booked. " + msg
	}
	return "Nothing was booked. " + msg
}
