package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"salonbook/internal/apperr"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, r, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

// writeError maps the error taxonomy onto a status code. Internal errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.Code(err)
	status := http.StatusInternalServerError
	msg := "internal error"

	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		status, msg = http.StatusBadRequest, ve.Error()
	case errors.Is(err, apperr.ErrConflict):
		status, msg = http.StatusConflict, "the requested time overlaps an existing booking"
	case errors.Is(err, apperr.ErrNotFound):
		status, msg = http.StatusNotFound, "resource not found"
	case errors.Is(err, apperr.ErrTransient):
		msg = "temporarily unavailable"
	}

	l := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		l.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeErrorBody(w, r, status, code, msg)
}
