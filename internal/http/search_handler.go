package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/reservation-availability/internal/application"
)

// AvailabilitySearcher is the service capability the handler depends on.
type AvailabilitySearcher interface {
	FindFirstReservableTimes(ctx context.Context, params application.SearchParams) ([]application.UnitAvailability, error)
}

// SearchHandler serves the batch first-reservable-time search.
type SearchHandler struct {
	service   AvailabilitySearcher
	loc       *time.Location
	responder responder
}

// NewSearchHandler wires the handler. Dates and times of day in requests are
// interpreted in loc.
func NewSearchHandler(service AvailabilitySearcher, loc *time.Location, logger *slog.Logger) *SearchHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SearchHandler{service: service, loc: loc, responder: newResponder(logger)}
}

type searchRequestDTO struct {
	UnitIDs                []int64 `json:"unit_ids"`
	DateStart              string  `json:"date_start,omitempty"`
	DateEnd                string  `json:"date_end,omitempty"`
	TimeStart              string  `json:"time_start,omitempty"`
	TimeEnd                string  `json:"time_end,omitempty"`
	MinimumDurationMinutes int     `json:"minimum_duration_minutes,omitempty"`
	ShowOnlyReservable     bool    `json:"show_only_reservable,omitempty"`
	CacheKey               string  `json:"cache_key,omitempty"`
	Offset                 int     `json:"offset,omitempty"`
	Limit                  int     `json:"limit,omitempty"`
}

type searchResultDTO struct {
	UnitID          int64   `json:"unit_id"`
	IsClosed        bool    `json:"is_closed"`
	FirstReservable *string `json:"first_reservable"`
}

type searchResponseDTO struct {
	Results []searchResultDTO `json:"results"`
}

// Search handles POST /search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var dto searchRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	params, err := h.toParams(dto)
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	results, err := h.service.FindFirstReservableTimes(ctx, params)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	response := searchResponseDTO{Results: make([]searchResultDTO, 0, len(results))}
	for _, result := range results {
		out := searchResultDTO{UnitID: result.UnitID, IsClosed: result.IsClosed}
		if result.FirstReservable != nil {
			formatted := result.FirstReservable.In(h.loc).Format(time.RFC3339)
			out.FirstReservable = &formatted
		}
		response.Results = append(response.Results, out)
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, response)
}

func (h *SearchHandler) toParams(dto searchRequestDTO) (application.SearchParams, error) {
	params := application.SearchParams{
		UnitIDs:            dto.UnitIDs,
		MinimumDuration:    time.Duration(dto.MinimumDurationMinutes) * time.Minute,
		ShowOnlyReservable: dto.ShowOnlyReservable,
		CacheKey:           dto.CacheKey,
		Offset:             dto.Offset,
		Limit:              dto.Limit,
	}

	if dto.DateStart != "" {
		date, err := time.ParseInLocation("2006-01-02", dto.DateStart, h.loc)
		if err != nil {
			return application.SearchParams{}, fmt.Errorf("date_start: expected YYYY-MM-DD")
		}
		params.FilterDateStart = &date
	}
	if dto.DateEnd != "" {
		date, err := time.ParseInLocation("2006-01-02", dto.DateEnd, h.loc)
		if err != nil {
			return application.SearchParams{}, fmt.Errorf("date_end: expected YYYY-MM-DD")
		}
		params.FilterDateEnd = &date
	}
	if dto.TimeStart != "" {
		offset, err := parseTimeOfDay(dto.TimeStart)
		if err != nil {
			return application.SearchParams{}, fmt.Errorf("time_start: %w", err)
		}
		params.FilterTimeStart = &offset
	}
	if dto.TimeEnd != "" {
		offset, err := parseTimeOfDay(dto.TimeEnd)
		if err != nil {
			return application.SearchParams{}, fmt.Errorf("time_end: %w", err)
		}
		params.FilterTimeEnd = &offset
	}

	return params, nil
}

func parseTimeOfDay(value string) (time.Duration, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM")
	}
	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
}
