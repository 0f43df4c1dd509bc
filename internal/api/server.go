// Package api is the HTTP surface: request decoding, error-to-status
// mapping, and response encoding around the query orchestrator.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/seaward-systems/marinecast/internal/forecast"
	"github.com/seaward-systems/marinecast/internal/gazetteer"
	"github.com/seaward-systems/marinecast/internal/grid"
	"github.com/seaward-systems/marinecast/internal/gridsource"
	"github.com/seaward-systems/marinecast/internal/observability"
	"github.com/seaward-systems/marinecast/internal/query"
	"github.com/seaward-systems/marinecast/internal/region"
)

// Server bundles the handlers' dependencies.
type Server struct {
	orchestrator *query.Orchestrator
	gazetteer    *gazetteer.Index
	forecasts    *forecast.Client
	source       *gridsource.Source
	metrics      *observability.Collector
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
}

// NewServer wires the handler set.
func NewServer(orchestrator *query.Orchestrator, gaz *gazetteer.Index, forecasts *forecast.Client, source *gridsource.Source, metrics *observability.Collector) *Server {
	return &Server{
		orchestrator: orchestrator,
		gazetteer:    gaz,
		forecasts:    forecasts,
		source:       source,
		metrics:      metrics,
	}
}

// Router assembles the chi route tree.
func (s *Server) Router(opts Options) http.Handler {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Post("/wind-data", s.instrument("wind-data", s.handleWindData))
	r.Post("/wave-data", s.instrument("wave-data", s.handleWaveData))
	r.Post("/marine-hazards", s.instrument("marine-hazards", s.handleMarineHazards))
	r.Get("/marine-forecast", s.instrument("marine-forecast", s.handleMarineForecast))
	r.Get("/regions/{name}", s.instrument("regions", s.handleRegion))
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	return r
}

type ctxKey int

const requestIDKey ctxKey = 0

// requestID tags every request with a UUID for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request's correlation id, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// instrument wraps a handler with query counting and timing. The handler
// reports its status through the capturing writer.
func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		h(cw, r)
		if s.metrics != nil {
			s.metrics.RecordQuery(endpoint, statusClass(cw.status), time.Since(start))
		}
	}
}

type captureWriter struct {
	http.ResponseWriter
	status int
}

func (w *captureWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func statusClass(status int) string {
	switch {
	case status < 400:
		return "ok"
	case status < 500:
		return "client_error"
	default:
		return "server_error"
	}
}

// regionRequest is the body of the three POST query endpoints. Exactly one
// of region, lat+lon, or the four bbox corners must be supplied.
type regionRequest struct {
	Region string   `json:"region,omitempty"`
	Lat    *float64 `json:"lat,omitempty"`
	Lon    *float64 `json:"lon,omitempty"`
	MinLat *float64 `json:"min_lat,omitempty"`
	MaxLat *float64 `json:"max_lat,omitempty"`
	MinLon *float64 `json:"min_lon,omitempty"`
	MaxLon *float64 `json:"max_lon,omitempty"`
}

func (req *regionRequest) toQuery() (region.Query, error) {
	hasPoint := req.Lat != nil || req.Lon != nil
	hasBox := req.MinLat != nil || req.MaxLat != nil || req.MinLon != nil || req.MaxLon != nil

	switch {
	case req.Region != "" && !hasPoint && !hasBox:
		return region.ByName(req.Region), nil
	case hasPoint && req.Region == "" && !hasBox:
		if req.Lat == nil || req.Lon == nil {
			return region.Query{}, region.InvalidQueryf("both lat and lon are required for a point query")
		}
		return region.ByPoint(*req.Lat, *req.Lon), nil
	case hasBox && req.Region == "" && !hasPoint:
		if req.MinLat == nil || req.MaxLat == nil || req.MinLon == nil || req.MaxLon == nil {
			return region.Query{}, region.InvalidQueryf("all four bounding box corners are required")
		}
		return region.ByBoundingBox(*req.MinLat, *req.MaxLat, *req.MinLon, *req.MaxLon), nil
	default:
		return region.Query{}, region.InvalidQueryf("supply exactly one of region, lat/lon, or a bounding box")
	}
}

func (s *Server) handleWindData(w http.ResponseWriter, r *http.Request) {
	s.handleQuery(w, r, s.orchestrator.WindData)
}

func (s *Server) handleWaveData(w http.ResponseWriter, r *http.Request) {
	s.handleQuery(w, r, s.orchestrator.WaveData)
}

func (s *Server) handleMarineHazards(w http.ResponseWriter, r *http.Request) {
	s.handleQuery(w, r, s.orchestrator.MarineHazards)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request,
	run func(ctx context.Context, q region.Query) (*query.Result, error)) {

	var req regionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q, err := req.toQuery()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := run(r.Context(), q)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordExtraction(len(result.Points))
		s.metrics.RecordIndicators(len(result.Indicators))
	}
	writeJSON(w, http.StatusOK, result.Payload())
}

func (s *Server) handleMarineForecast(w http.ResponseWriter, r *http.Request) {
	zone := r.URL.Query().Get("zone")
	if zone == "" {
		writeError(w, http.StatusBadRequest, "zone query parameter is required")
		return
	}

	text, err := s.forecasts.Fetch(r.Context(), zone)
	if err != nil {
		if eris.Is(err, forecast.ErrZoneNotFound) {
			writeError(w, http.StatusNotFound, "no forecast for zone "+zone)
			return
		}
		zap.L().Error("forecast fetch failed", zap.String("zone", zone), zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream forecast fetch failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"zone": zone, "forecast": text})
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	feature, err := s.gazetteer.Feature(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown region "+name)
		return
	}
	writeJSON(w, http.StatusOK, feature)
}

type healthResponse struct {
	Status string               `json:"status"`
	Grids  map[string]gridState `json:"grids"`
}

type gridState struct {
	Loaded    bool      `json:"loaded"`
	ValidTime time.Time `json:"valid_time,omitempty"`
	Cycle     string    `json:"cycle,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Grids: map[string]gridState{}}
	for _, product := range []grid.Product{grid.ProductWind, grid.ProductWave} {
		state := gridState{}
		if snap, ok := s.source.Current(product); ok {
			state.Loaded = true
			state.ValidTime = snap.Field.ValidTime()
			state.Cycle = snap.Info.Cycle
			if s.metrics != nil {
				s.metrics.SetGridAge(string(product), time.Since(snap.Field.ValidTime()))
			}
		}
		resp.Grids[string(product)] = state
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeQueryError maps the orchestration error taxonomy onto HTTP statuses.
func writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, region.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case eris.Is(err, region.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case eris.Is(err, query.ErrDataUnavailable):
		writeError(w, http.StatusServiceUnavailable, "grid data not yet available, retry later")
	case eris.Is(err, query.ErrValidTimeMismatch):
		zap.L().Warn("valid time mismatch", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		zap.L().Error("query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
