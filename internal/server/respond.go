package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lazypower/waypoint/internal/memory"
	"github.com/lazypower/waypoint/internal/session"
	"github.com/lazypower/waypoint/internal/store"
)

// maxBodyBytes leaves room for a base64 photo at the size limit.
const maxBodyBytes = memory.MaxPhotoBytes*4/3 + 64<<10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps a domain error to its HTTP status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= 500 {
		s.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	var verr *memory.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUserExists),
		errors.Is(err, memory.ErrNoCurrentUser),
		errors.Is(err, session.ErrTrackingUnavailable):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v and validates its struct tags. Failures
// are written to w and reported as false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required", "required_without":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "len":
			msgs = append(msgs, fmt.Sprintf("%s must have %s elements", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
