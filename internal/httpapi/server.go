package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yumex/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Status() types.StatusResponse
	// DrainEvents removes up to max queued events without blocking.
	DrainEvents(max int) []types.EventView
	// WaitEvent blocks until one event is queued or ctx is done.
	WaitEvent(ctx context.Context) (types.EventView, error)
	Reload(ctx context.Context) error
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: orDefault(corsAllowedMethods, []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Content-Type", "X-Log-Level"}),
			MaxAge:         300,
		}))
	}

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "max", maxEventBatch)
		if err != nil || limit <= 0 {
			writeJSONError(w, http.StatusBadRequest, "max must be a positive integer")
			return
		}
		if limit > maxEventBatch {
			limit = maxEventBatch
		}
		waitSec, err := queryInt(r, "wait", 0)
		if err != nil || waitSec < 0 {
			writeJSONError(w, http.StatusBadRequest, "wait must be a non-negative integer")
			return
		}
		events := svc.DrainEvents(limit)
		if len(events) == 0 && waitSec > 0 && maxEventWait > 0 {
			wait := time.Duration(waitSec) * time.Second
			if wait > maxEventWait {
				wait = maxEventWait
			}
			// Join server base context with request context so shutdown ends the poll.
			joined, cancel := joinContexts(serverBaseCtx, r.Context())
			defer cancel()
			ctx, cancelWait := context.WithTimeout(joined, wait)
			defer cancelWait()
			ev, err := svc.WaitEvent(ctx)
			switch {
			case err == nil:
				events = []types.EventView{ev}
				if limit > 1 {
					events = append(events, svc.DrainEvents(limit-1)...)
				}
			case r.Context().Err() != nil || serverBaseCtx.Err() != nil:
				return
			case !errors.Is(err, context.DeadlineExceeded):
				writeJSONError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		writer := io.Writer(w)
		if requestLogLevel(r) >= LevelDebug {
			writer = io.MultiWriter(w, &loggingLineWriter{})
		}
		enc := json.NewEncoder(writer)
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return
			}
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		eventsServedTotal.Add(float64(len(events)))
	})

	r.Post("/reload", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		err := svc.Reload(joined)
		status := http.StatusOK
		if err != nil {
			status = statusFor(err)
		}
		if lvl >= LevelInfo {
			logRequestEnd(r, "reload", status, time.Since(start), err)
		}
		if err != nil {
			writeJSONError(w, status, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("session closed"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func logRequestEnd(r *http.Request, op string, status int, dur time.Duration, err error) {
	if zlog == nil {
		log.Printf("%s end status=%d dur=%s err=%v", op, status, dur, err)
		return
	}
	z := zlog.Info().Str("event", op+"_end").Int("status", status).Dur("dur", dur)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if err != nil {
		z = z.Err(err)
	}
	z.Msg(op + " end")
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
