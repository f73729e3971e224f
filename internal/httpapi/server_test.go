package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/apperr"
	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/identity"
	"salonbook/internal/model"
)

type stubBackend struct {
	availability func(availability.Query) (*availability.Result, error)
	create       func(booking.CreateRequest) (*model.Booking, error)
	cancel       func(int64) (*model.Booking, error)
	list         func(model.BookingFilter) ([]model.Booking, error)
	resolve      func(identity.Input) (identity.Resolution, error)
}

func (s *stubBackend) GetAvailability(_ context.Context, q availability.Query) (*availability.Result, error) {
	return s.availability(q)
}

func (s *stubBackend) CreateBooking(_ context.Context, req booking.CreateRequest) (*model.Booking, error) {
	return s.create(req)
}

func (s *stubBackend) CancelBooking(_ context.Context, id int64) (*model.Booking, error) {
	return s.cancel(id)
}

func (s *stubBackend) ListBookings(_ context.Context, f model.BookingFilter) ([]model.Booking, error) {
	return s.list(f)
}

func (s *stubBackend) ResolveClient(_ context.Context, in identity.Input) (identity.Resolution, error) {
	return s.resolve(in)
}

func sampleBookings(n int) []model.Booking {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	out := make([]model.Booking, n)
	for i := range out {
		start := model.OnDate(date, 9+i, 0)
		out[i] = model.Booking{
			ID: int64(i + 1), EmployeeID: 1, ServiceID: 10, ClientID: 5,
			Date: date, StartTime: start, EndTime: start.Add(time.Hour),
			Status: model.StatusActive, Quantity: 1,
		}
	}
	return out
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestAvailability_Validation(t *testing.T) {
	backend := &stubBackend{availability: func(q availability.Query) (*availability.Result, error) {
		return &availability.Result{Availability: []availability.DayAvailability{{Date: "2026-03-02", DayOfWeek: 1}}}, nil
	}}
	h := NewServer(backend, nil).Router()

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"missing employee", "/api/v1/availability?serviceId=1&minDate=2026-03-02&maxDate=2026-03-02", http.StatusBadRequest},
		{"bad employee", "/api/v1/availability?employeeId=x&serviceId=1&minDate=2026-03-02&maxDate=2026-03-02", http.StatusBadRequest},
		{"missing maxDate", "/api/v1/availability?employeeId=1&serviceId=1&minDate=2026-03-02", http.StatusBadRequest},
		{"bad date", "/api/v1/availability?employeeId=1&serviceId=1&minDate=02.03.2026&maxDate=2026-03-02", http.StatusBadRequest},
		{"ok", "/api/v1/availability?employeeId=1&serviceId=1&minDate=2026-03-02&maxDate=2026-03-02", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusBadRequest {
				assert.Equal(t, "validation_error", errorCode(t, rec))
			}
		})
	}
}

func TestCreateBooking_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"created", nil, http.StatusCreated, ""},
		{"conflict", apperr.ErrConflict, http.StatusConflict, "conflict"},
		{"validation", apperr.Invalid("startTime", "off grid"), http.StatusBadRequest, "validation_error"},
		{"not found", fmt.Errorf("get service: %w", apperr.ErrNotFound), http.StatusNotFound, "not_found"},
		{"internal", errors.New("disk full"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got booking.CreateRequest
			backend := &stubBackend{create: func(req booking.CreateRequest) (*model.Booking, error) {
				got = req
				if tt.err != nil {
					return nil, tt.err
				}
				b := sampleBookings(1)[0]
				return &b, nil
			}}
			h := NewServer(backend, nil).Router()

			rec := do(t, h, http.MethodPost, "/api/v1/bookings", map[string]any{
				"clientId": 5, "employeeId": 1, "serviceId": 10, "date": "2026-03-02", "startTime": "09:00",
			})
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, 1, got.Quantity, "quantity defaults to 1")
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, rec))
				return
			}
			var b map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
			assert.Equal(t, "09:00", b["startTime"])
			assert.Equal(t, "2026-03-02", b["date"])
		})
	}
}

func TestCreateBooking_BadBody(t *testing.T) {
	h := NewServer(&stubBackend{}, nil).Router()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelBooking(t *testing.T) {
	backend := &stubBackend{cancel: func(id int64) (*model.Booking, error) {
		if id != 1 {
			return nil, apperr.ErrNotFound
		}
		b := sampleBookings(1)[0]
		b.Status = model.StatusCancelled
		return &b, nil
	}}
	h := NewServer(backend, nil).Router()

	rec := do(t, h, http.MethodPost, "/api/v1/bookings/1/cancel", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"CANCELLED"`)

	rec = do(t, h, http.MethodPost, "/api/v1/bookings/2/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/bookings/abc/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBookings_BareAndPaged(t *testing.T) {
	var filter model.BookingFilter
	backend := &stubBackend{list: func(f model.BookingFilter) ([]model.Booking, error) {
		filter = f
		return sampleBookings(5), nil
	}}
	h := NewServer(backend, nil).Router()

	rec := do(t, h, http.MethodGet, "/api/v1/bookings?fromDate=2026-03-01&toDate=2026-03-31&employeeId=1&status=ACTIVE", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bare []model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bare))
	assert.Len(t, bare, 5)
	assert.Equal(t, int64(1), filter.EmployeeID)
	assert.Equal(t, model.StatusActive, filter.Status)

	rec = do(t, h, http.MethodGet, "/api/v1/bookings?page=2&pageSize=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page Page[model.Booking]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 5, page.Total)
	assert.True(t, page.HasNext)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.Items[0].ID)

	rec = do(t, h, http.MethodGet, "/api/v1/bookings?status=LOST", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBookings_EmptyIsArray(t *testing.T) {
	backend := &stubBackend{list: func(model.BookingFilter) ([]model.Booking, error) { return nil, nil }}
	rec := do(t, NewServer(backend, nil).Router(), http.MethodGet, "/api/v1/bookings", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestResolveClient(t *testing.T) {
	backend := &stubBackend{resolve: func(in identity.Input) (identity.Resolution, error) {
		if in.NationalID == "" {
			return identity.Resolution{}, apperr.Invalid("nationalId", "is required")
		}
		return identity.Resolution{Client: &model.Client{ID: 9, NationalID: in.NationalID}, IsNew: true}, nil
	}}
	h := NewServer(backend, nil).Router()

	rec := do(t, h, http.MethodPost, "/api/v1/clients/resolve", map[string]string{"fullName": "Dana", "nationalId": "X1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var res identity.Resolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.IsNew)
	assert.Equal(t, int64(9), res.Client.ID)

	rec = do(t, h, http.MethodPost, "/api/v1/clients/resolve", map[string]string{"fullName": "Dana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit_Mutations(t *testing.T) {
	backend := &stubBackend{
		cancel: func(int64) (*model.Booking, error) { return nil, apperr.ErrNotFound },
		list:   func(model.BookingFilter) ([]model.Booking, error) { return nil, nil },
	}
	h := NewServer(backend, nil, WithRateLimit(0.001, 2)).Router()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/bookings/1/cancel", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/bookings/1/cancel", nil).Code)
	rec := do(t, h, http.MethodPost, "/api/v1/bookings/1/cancel", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorCode(t, rec))

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/bookings", nil).Code, "reads are not limited")
}

type pingerFunc func(context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthAndReady(t *testing.T) {
	healthy := true
	db := pingerFunc(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("closed")
	})
	h := NewServer(&stubBackend{}, nil, WithReadiness(db, nil)).Router()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", nil).Code)
	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/readyz", nil).Code)
}

func TestRequestIDHeader(t *testing.T) {
	h := NewServer(&stubBackend{}, nil).Router()
	rec := do(t, h, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	p := Paginate(items, 1, 2)
	assert.Equal(t, []int{1, 2}, p.Items)
	assert.True(t, p.HasNext)

	p = Paginate(items, 3, 2)
	assert.Equal(t, []int{5}, p.Items)
	assert.False(t, p.HasNext)

	p = Paginate(items, 9, 2)
	assert.Empty(t, p.Items)

	p = Paginate(items, 0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, defaultPageSize, p.PageSize)
}

func TestAPIKey(t *testing.T) {
	backend := &stubBackend{list: func(model.BookingFilter) ([]model.Booking, error) { return nil, nil }}
	h := NewServer(backend, nil, WithAPIKey("secret")).Router()

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/v1/bookings", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("X-Api-Key", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", nil).Code)
}
