// Package router validates HTTP query parameters and maps core errors
// to status codes. Handlers stay thin; all semantics live in engine.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Janus-Aurelius/driver-proximity/internal/core/model"
	"github.com/Janus-Aurelius/driver-proximity/internal/core/observability"
	"github.com/Janus-Aurelius/driver-proximity/internal/engine"
)

// nearbyEntry keeps distance as a decimal kilometer string; existing
// clients parse it as text.
type nearbyEntry struct {
	DriverID string `json:"driver_id"`
	Distance string `json:"distance"`
}

type nearbyResponse struct {
	Results []nearbyEntry `json:"results"`
	Count   int           `json:"count"`
}

type locationBody struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// HandleNearby serves GET /nearby.
func HandleNearby(logger *slog.Logger, e *engine.Engine, defaultStrategy model.Strategy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		q, err := parseNearby(r, defaultStrategy)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, "/nearby", sw.code, time.Since(start).Seconds())
			return
		}

		matches, err := e.Search(r.Context(), q)
		if err != nil {
			logger.Warn("nearby search failed", "err", err, "strategy", string(q.Strategy))
			http.Error(sw, err.Error(), statusFor(err))
			observability.ObserveHTTP(r.Method, "/nearby", sw.code, time.Since(start).Seconds())
			return
		}

		resp := nearbyResponse{Results: make([]nearbyEntry, 0, len(matches)), Count: len(matches)}
		for _, m := range matches {
			resp.Results = append(resp.Results, nearbyEntry{
				DriverID: m.ID,
				Distance: strconv.FormatFloat(m.DistanceKm, 'f', 3, 64),
			})
		}
		sw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(sw).Encode(resp)
		observability.ObserveHTTP(r.Method, "/nearby", sw.code, time.Since(start).Seconds())
	}
}

// HandleReportLocation serves PUT /drivers/{id}/location.
func HandleReportLocation(logger *slog.Logger, gw *engine.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusNoContent}

		id := chi.URLParam(r, "id")
		var body locationBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(sw, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, "/drivers/{id}/location", sw.code, time.Since(start).Seconds())
			return
		}

		if err := gw.ReportLocation(r.Context(), id, body.Longitude, body.Latitude); err != nil {
			logger.Warn("report location failed", "err", err, "driver", id)
			http.Error(sw, err.Error(), statusFor(err))
			observability.ObserveHTTP(r.Method, "/drivers/{id}/location", sw.code, time.Since(start).Seconds())
			return
		}
		sw.WriteHeader(http.StatusNoContent)
		observability.ObserveHTTP(r.Method, "/drivers/{id}/location", sw.code, time.Since(start).Seconds())
	}
}

// HandleDeregister serves DELETE /drivers/{id}.
func HandleDeregister(logger *slog.Logger, gw *engine.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusNoContent}

		id := chi.URLParam(r, "id")
		if err := gw.Deregister(r.Context(), id); err != nil {
			logger.Warn("deregister failed", "err", err, "driver", id)
			http.Error(sw, err.Error(), statusFor(err))
			observability.ObserveHTTP(r.Method, "/drivers/{id}", sw.code, time.Since(start).Seconds())
			return
		}
		sw.WriteHeader(http.StatusNoContent)
		observability.ObserveHTTP(r.Method, "/drivers/{id}", sw.code, time.Since(start).Seconds())
	}
}

func parseNearby(r *http.Request, defaultStrategy model.Strategy) (engine.Query, error) {
	qs := r.URL.Query()

	lon, err := parseFloat(qs.Get("lon"))
	if err != nil {
		return engine.Query{}, fmt.Errorf("lon: %w", err)
	}
	lat, err := parseFloat(qs.Get("lat"))
	if err != nil {
		return engine.Query{}, fmt.Errorf("lat: %w", err)
	}
	radius, err := parseFloat(qs.Get("radius_km"))
	if err != nil {
		return engine.Query{}, fmt.Errorf("radius_km: %w", err)
	}

	count := 10
	if raw := strings.TrimSpace(qs.Get("count")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return engine.Query{}, fmt.Errorf("%w: count=%q", model.ErrInvalidCount, raw)
		}
		count = n
	}

	strategy := defaultStrategy
	if raw := qs.Get("strategy"); raw != "" {
		strategy, err = model.ParseStrategy(raw)
		if err != nil {
			return engine.Query{}, err
		}
	}

	preferPrimary := true
	if raw := strings.TrimSpace(qs.Get("prefer_real")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return engine.Query{}, fmt.Errorf("prefer_real: %w", err)
		}
		preferPrimary = b
	}

	return engine.Query{
		Longitude:     lon,
		Latitude:      lat,
		RadiusKm:      radius,
		Count:         count,
		Strategy:      strategy,
		PreferPrimary: preferPrimary,
	}, nil
}

func parseFloat(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errors.New("missing required parameter")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return f, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidCoordinate),
		errors.Is(err, model.ErrInvalidRadius),
		errors.Is(err, model.ErrInvalidCount):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrIndexUnavailable),
		errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
