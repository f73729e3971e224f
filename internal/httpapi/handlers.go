package httpapi

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"salonbook/internal/apperr"
	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/identity"
	"salonbook/internal/model"
)

// GET /api/v1/availability?employeeId&serviceId&minDate&maxDate
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		query availability.Query
		err   error
	)
	if query.EmployeeID, err = requiredID(q, "employeeId"); err != nil {
		writeError(w, r, err)
		return
	}
	if query.ServiceID, err = requiredID(q, "serviceId"); err != nil {
		writeError(w, r, err)
		return
	}
	if query.From, err = requiredDate(q, "minDate"); err != nil {
		writeError(w, r, err)
		return
	}
	if query.To, err = requiredDate(q, "maxDate"); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.backend.GetAvailability(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// POST /api/v1/bookings
func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req booking.CreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	b, err := s.backend.CreateBooking(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Int64("booking_id", b.ID).Msg("booking created via api")
	writeJSON(w, r, http.StatusCreated, b)
}

// POST /api/v1/bookings/{id}/cancel
func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, apperr.Invalid("id", "must be a positive integer"))
		return
	}

	b, err := s.backend.CancelBooking(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

// GET /api/v1/bookings. Returns a bare array unless page is given.
func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		filter model.BookingFilter
		err    error
	)
	if filter.FromDate, err = optionalDate(q, "fromDate"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.ToDate, err = optionalDate(q, "toDate"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.EmployeeID, err = optionalID(q, "employeeId"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.ServiceID, err = optionalID(q, "serviceId"); err != nil {
		writeError(w, r, err)
		return
	}
	if raw := q.Get("status"); raw != "" {
		if filter.Status, err = model.ParseStatus(raw); err != nil {
			writeError(w, r, apperr.Invalid("status", "%v", err))
			return
		}
	}

	list, err := s.backend.ListBookings(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Booking{}
	}

	if !q.Has("page") {
		writeJSON(w, r, http.StatusOK, list)
		return
	}
	page, err := optionalInt(q, "page")
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := optionalInt(q, "pageSize")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, Paginate(list, page, size))
}

// POST /api/v1/clients/resolve
func (s *Server) handleResolveClient(w http.ResponseWriter, r *http.Request) {
	var in identity.Input
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.backend.ResolveClient(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.IsNew {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, res)
}

func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("body", "is empty")
		}
		return apperr.Invalid("body", "invalid JSON: %v", err)
	}
	return nil
}

func requiredID(q url.Values, key string) (int64, error) {
	if q.Get(key) == "" {
		return 0, apperr.Invalid(key, "is required")
	}
	return optionalID(q, key)
}

func optionalID(q url.Values, key string) (int64, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid(key, "must be a positive integer")
	}
	return id, nil
}

func optionalInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Invalid(key, "must be a non-negative integer")
	}
	return n, nil
}

func requiredDate(q url.Values, key string) (time.Time, error) {
	if q.Get(key) == "" {
		return time.Time{}, apperr.Invalid(key, "is required")
	}
	return optionalDate(q, key)
}

func optionalDate(q url.Values, key string) (time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperr.Invalid(key, "%v", err)
	}
	return d, nil
}
