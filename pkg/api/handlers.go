package api

import (
	"encoding/json"
	"errors"
	"math"
	"mime"
	"net/http"

	"github.com/charmbracelet/log"

	"tdcch/pkg/tdfunc"
	"tdcch/pkg/tdquery"
)

// Handlers holds the HTTP handlers and their dependencies: a customized
// CCH overlay ready for point/profile queries (spec.md §4.6, §4.7) and a
// spatial index snapping request coordinates onto it.
type Handlers struct {
	graph   *tdquery.Graph
	snapper *Snapper
	stats   StatsResponse
	logger  *log.Logger
}

// NewHandlers creates handlers serving queries against graph, snapping
// request coordinates via snapper.
func NewHandlers(graph *tdquery.Graph, snapper *Snapper, stats StatsResponse, logger *log.Logger) *Handlers {
	return &Handlers{
		graph:   graph,
		snapper: snapper,
		stats:   stats,
		logger:  logger,
	}
}

// HandleRoute handles POST /api/v1/route — a point query.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	if err := validateCoord(req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "start")
		return
	}
	if err := validateCoord(req.End); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "end")
		return
	}
	if math.IsNaN(req.DepartureTime) || math.IsInf(req.DepartureTime, 0) || req.DepartureTime < 0 {
		writeError(w, http.StatusBadRequest, "invalid_departure_time", "departure_time")
		return
	}

	startSnap, err := h.snapper.Snap(req.Start.Lat, req.Start.Lng)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_road", "start")
		return
	}
	endSnap, err := h.snapper.Snap(req.End.Lat, req.End.Lng)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_road", "end")
		return
	}

	result, err := tdquery.PointQuery(h.graph, startSnap.Node(), endSnap.Node(), req.DepartureTime)
	if err != nil {
		if errors.Is(err, tdquery.ErrNoRoute) {
			writeError(w, http.StatusNotFound, "no_route_found", "")
			return
		}
		h.logger.Error("point query failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	resp := RouteResponse{
		DepartureTime: result.DepartureTime,
		ArrivalTime:   result.ArrivalTime,
		TravelTime:    result.ArrivalTime - result.DepartureTime,
		Arcs:          result.Arcs,
		StartSnap:     SnapInfoJSON{Node: startSnap.Node(), DistMeters: startSnap.Dist},
		EndSnap:       SnapInfoJSON{Node: endSnap.Node(), DistMeters: endSnap.Dist},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleProfile handles POST /api/v1/profile — a profile query over a
// departure window.
func (h *Handlers) HandleProfile(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req ProfileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	if err := validateCoord(req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "start")
		return
	}
	if err := validateCoord(req.End); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "end")
		return
	}
	if req.DepartureEnd <= req.DepartureStart {
		writeError(w, http.StatusBadRequest, "invalid_departure_window", "departure_end")
		return
	}

	startSnap, err := h.snapper.Snap(req.Start.Lat, req.Start.Lng)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_road", "start")
		return
	}
	endSnap, err := h.snapper.Snap(req.End.Lat, req.End.Lng)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_road", "end")
		return
	}

	result, err := tdquery.ProfileQuery(h.graph, startSnap.Node(), endSnap.Node(), req.DepartureStart, req.DepartureEnd)
	if err != nil {
		if errors.Is(err, tdquery.ErrNoRoute) {
			writeError(w, http.StatusNotFound, "no_route_found", "")
			return
		}
		h.logger.Error("profile query failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	resp := ProfileResponse{
		DepartureStart: result.DepartureStart,
		DepartureEnd:   result.DepartureEnd,
		Exact:          result.Exact,
		Arcs:           result.Arcs,
		StartSnap:      SnapInfoJSON{Node: startSnap.Node(), DistMeters: startSnap.Dist},
		EndSnap:        SnapInfoJSON{Node: endSnap.Node(), DistMeters: endSnap.Dist},
	}
	resp.Lower = plfPoints(result.Lower.Points)
	if !result.Exact {
		resp.Upper = plfPoints(result.Upper.Points)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func plfPoints(pts []tdfunc.TTFPoint) []PLFPointJSON {
	out := make([]PLFPointJSON, len(pts))
	for i, p := range pts {
		out[i] = PLFPointJSON{DepartureTime: p.At, ArrivalTime: p.At + p.Val}
	}
	return out
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.stats)
}

func validateCoord(ll LatLngJSON) error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if ll.Lat < -90 || ll.Lat > 90 || ll.Lng < -180 || ll.Lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
