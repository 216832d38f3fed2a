package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey int

const requestIDKey contextKey = iota

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)

	return id
}

// requestLogger tags each request with an id (kept from the client when
// given) and logs its outcome.
func (h *HTTP) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)

		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}

		w.Header().Set(requestIDHeader, id)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()

		next.ServeHTTP(recorder, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

		entry := h.logger.WithFields(logrus.Fields{
			"request_id": id,
			"status":     recorder.status,
			"duration":   time.Since(started).String(),
		})

		if recorder.status >= http.StatusInternalServerError {
			entry.Warnf("%s %s", r.Method, r.URL.Path)
		} else {
			entry.Debugf("%s %s", r.Method, r.URL.Path)
		}
	})
}
