// Package api is the HTTP consumer of the scheduling engine used by the bot
// and the staff CLI.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"salonbook/internal/apperr"
	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/identity"
	"salonbook/internal/model"
)

const cachePrefix = "salonbook:api:"

// Client implements booking.Backend over HTTP. Failed calls are never
// retried; the caller decides.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	redis    redis.UniversalClient
	cacheTTL time.Duration
	logger   *zerolog.Logger
}

var _ booking.Backend = (*Client)(nil)

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// UseRedisCache enables caching of availability and booking lists.
func (c *Client) UseRedisCache(client redis.UniversalClient, ttl time.Duration) {
	c.redis = client
	c.cacheTTL = ttl
}

func (c *Client) GetAvailability(ctx context.Context, q availability.Query) (*availability.Result, error) {
	params := url.Values{}
	params.Set("employeeId", strconv.FormatInt(q.EmployeeID, 10))
	params.Set("serviceId", strconv.FormatInt(q.ServiceID, 10))
	params.Set("minDate", model.FormatDate(q.From))
	params.Set("maxDate", model.FormatDate(q.To))

	key := fmt.Sprintf("%savail:%d:%d:%s:%s", cachePrefix, q.EmployeeID, q.ServiceID,
		params.Get("minDate"), params.Get("maxDate"))
	var res availability.Result
	if c.readCache(ctx, key, &res) {
		return &res, nil
	}
	if err := c.doGet(ctx, "/api/v1/availability", params, &res); err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, res)
	return &res, nil
}

func (c *Client) CreateBooking(ctx context.Context, req booking.CreateRequest) (*model.Booking, error) {
	var b model.Booking
	if err := c.doPost(ctx, "/api/v1/bookings", req, &b); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			// Someone else took the slot; whatever we cached for it is stale.
			c.invalidate(ctx, req.EmployeeID)
		}
		return nil, err
	}
	c.invalidate(ctx, b.EmployeeID)
	return &b, nil
}

func (c *Client) CancelBooking(ctx context.Context, id int64) (*model.Booking, error) {
	var b model.Booking
	if err := c.doPost(ctx, fmt.Sprintf("/api/v1/bookings/%d/cancel", id), nil, &b); err != nil {
		return nil, err
	}
	c.invalidate(ctx, b.EmployeeID)
	return &b, nil
}

func (c *Client) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	params := url.Values{}
	if !f.FromDate.IsZero() {
		params.Set("fromDate", model.FormatDate(f.FromDate))
	}
	if !f.ToDate.IsZero() {
		params.Set("toDate", model.FormatDate(f.ToDate))
	}
	if f.EmployeeID != 0 {
		params.Set("employeeId", strconv.FormatInt(f.EmployeeID, 10))
	}
	if f.ServiceID != 0 {
		params.Set("serviceId", strconv.FormatInt(f.ServiceID, 10))
	}
	if f.Status != "" {
		params.Set("status", string(f.Status))
	}

	key := cachePrefix + "bookings:" + params.Encode()
	var list []model.Booking
	if c.readCache(ctx, key, &list) {
		return list, nil
	}

	var raw json.RawMessage
	if err := c.doGet(ctx, "/api/v1/bookings", params, &raw); err != nil {
		return nil, err
	}
	list, err := decodeList[model.Booking](raw)
	if err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	c.writeCache(ctx, key, list)
	return list, nil
}

func (c *Client) ResolveClient(ctx context.Context, in identity.Input) (identity.Resolution, error) {
	var res identity.Resolution
	if err := c.doPost(ctx, "/api/v1/clients/resolve", in, &res); err != nil {
		return identity.Resolution{}, err
	}
	if res.Client == nil {
		return identity.Resolution{}, fmt.Errorf("resolve client: empty response")
	}
	return res, nil
}

// decodeList accepts a bare array or an envelope keyed items, data or
// results.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}
	if raw[0] == '[' {
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	for _, k := range []string{"items", "data", "results"} {
		if v, ok := env[k]; ok {
			return decodeList[T](v)
		}
	}
	return nil, fmt.Errorf("no list in response")
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, path string, body, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	op := req.Method + " " + req.URL.Path
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Transient(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func (c *Client) statusError(op string, resp *http.Response) error {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	msg := body.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return &apperr.ValidationError{Message: msg}
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %s: %w", op, msg, apperr.ErrNotFound)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return apperr.Transient(op, fmt.Errorf("http %d: %s", resp.StatusCode, msg))
	default:
		return fmt.Errorf("%s: http %d: %s", op, resp.StatusCode, msg)
	}
}
