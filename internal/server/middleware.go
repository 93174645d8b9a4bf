package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"credit-scoring/internal/common"
	"credit-scoring/internal/scoring"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	headerRequestID   = "X-Request-ID"
	maxRequestIDLen   = 128
	unmatchedRouteTag = "unmatched"
)

// HTTPRecorder receives one observation per served request.
type HTTPRecorder interface {
	HTTPRequestObserve(method, handler string, status int, d time.Duration)
}

// statusRecorder captures the status code written by the handler chain.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.wrote {
		sr.status = code
		sr.wrote = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.wrote {
		sr.status = http.StatusOK
		sr.wrote = true
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the decision feed upgrade through the middleware chain.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	conn, rw, err := h.Hijack()
	if err == nil {
		sr.status = http.StatusSwitchingProtocols
		sr.wrote = true
	}
	return conn, rw, err
}

// routeLabel is filled in by routeTemplate once mux has matched a route.
type routeLabel struct{ name string }

type routeLabelKey struct{}

// withRequestID propagates or assigns X-Request-ID.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(scoring.WithRequestID(r.Context(), id)))
	})
}

// observe logs and instruments every request, matched or not.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		label := &routeLabel{name: unmatchedRouteTag}
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sr, r.WithContext(context.WithValue(r.Context(), routeLabelKey{}, label)))

		duration := time.Since(start)
		if s.recorder != nil {
			s.recorder.HTTPRequestObserve(r.Method, label.name, sr.status, duration)
		}

		level := zerolog.InfoLevel
		switch {
		case sr.status >= http.StatusInternalServerError:
			level = zerolog.ErrorLevel
		case sr.status >= http.StatusBadRequest:
			level = zerolog.WarnLevel
		}
		log.WithLevel(level).
			Str("request_id", scoring.RequestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", label.name).
			Int("status", sr.status).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// recoverer turns a handler panic into a bare 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.Error().
				Interface("panic", rec).
				Str("request_id", scoring.RequestIDFrom(r.Context())).
				Str("stack", string(debug.Stack())).
				Msg("handler panicked")

			if sr, ok := w.(*statusRecorder); ok && sr.wrote {
				return
			}
			writeDetail(w, http.StatusInternalServerError, common.ErrMsgInternal)
		}()
		next.ServeHTTP(w, r)
	})
}

// routeTemplate runs inside mux and records the matched path template.
func routeTemplate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if label, ok := r.Context().Value(routeLabelKey{}).(*routeLabel); ok {
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					label.name = tpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
