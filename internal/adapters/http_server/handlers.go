package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"stayhub/internal/app"
	"stayhub/internal/domain"
)

// Ingestor triggers runs and reports on the latest one.
type Ingestor interface {
	app.Runner
	LastRun() domain.RunReport
}

type Handlers struct {
	Q   *app.QueryService
	Ing Ingestor
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.reads.Get("/api/data", h.listData)
	s.reads.Get("/api/data/sources", h.listSources)
	s.reads.Get("/api/data/stats", h.stats)
	s.mux.Post("/api/ingest", h.ingest)
	s.reads.Get("/api/ingest/status", h.ingestStatus)
}

/********** query params **********/

// listingsParams mirrors the accepted query string; empty values count as absent.
type listingsParams struct {
	Source       string `query:"source" validate:"max=256"`
	City         string `query:"city" validate:"max=256"`
	Country      string `query:"country" validate:"max=256"`
	Name         string `query:"name" validate:"max=256"`
	Availability string `query:"availability" validate:"max=256"`
	PriceSegment string `query:"priceSegment" validate:"max=256"`
	MinPrice     string `query:"minPrice" validate:"omitempty,numeric"`
	MaxPrice     string `query:"maxPrice" validate:"omitempty,numeric"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("query")
	})
	return v
}

func parseFilter(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	p := listingsParams{
		Source:       strings.TrimSpace(q.Get("source")),
		City:         strings.TrimSpace(q.Get("city")),
		Country:      strings.TrimSpace(q.Get("country")),
		Name:         strings.TrimSpace(q.Get("name")),
		Availability: strings.TrimSpace(q.Get("availability")),
		PriceSegment: strings.TrimSpace(q.Get("priceSegment")),
		MinPrice:     strings.TrimSpace(q.Get("minPrice")),
		MaxPrice:     strings.TrimSpace(q.Get("maxPrice")),
	}
	if err := validate.Struct(p); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			fe := ves[0]
			return domain.Filter{}, &domain.ValidationError{Field: fe.Field(), Value: fe.Value(), Message: validationMessage(fe)}
		}
		return domain.Filter{}, &domain.ValidationError{Message: err.Error()}
	}

	f := domain.Filter{
		Source:       optional(p.Source),
		City:         optional(p.City),
		Country:      optional(p.Country),
		Name:         optional(p.Name),
		Availability: optional(p.Availability),
		PriceSegment: optional(p.PriceSegment),
	}
	var err error
	if f.MinPrice, err = optionalFloat("minPrice", p.MinPrice); err != nil {
		return domain.Filter{}, err
	}
	if f.MaxPrice, err = optionalFloat("maxPrice", p.MaxPrice); err != nil {
		return domain.Filter{}, err
	}
	return f, nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "numeric":
		return "must be a decimal number"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "failed " + fe.Tag() + " check"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalFloat(field, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, &domain.ValidationError{Field: field, Value: s, Message: "must be a decimal number"}
	}
	return &f, nil
}

/********** responses **********/

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses; store details stay in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "failed to read listings")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "failed to encode response")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

type listingsResponse struct {
	Count int              `json:"count"`
	Data  []domain.Listing `json:"data"`
}

type sourceCount struct {
	ID    string `json:"_id"`
	Count int64  `json:"count"`
}

type statsResponse struct {
	TotalCount   int64         `json:"totalCount"`
	SourceCounts []sourceCount `json:"sourceCounts"`
}

/********** handlers **********/

func (h *Handlers) listData(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := h.Q.Query(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.Listing{}
	}
	writeJSON(w, r, listingsResponse{Count: len(rows), Data: rows})
}

func (h *Handlers) listSources(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.ListSources(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []string{}
	}
	writeJSON(w, r, out)
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Q.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := statsResponse{TotalCount: st.TotalCount, SourceCounts: make([]sourceCount, 0, len(st.PerSource))}
	for src, n := range st.PerSource {
		resp.SourceCounts = append(resp.SourceCounts, sourceCount{ID: src, Count: n})
	}
	sort.Slice(resp.SourceCounts, func(i, j int) bool { return resp.SourceCounts[i].ID < resp.SourceCounts[j].ID })
	writeJSON(w, r, resp)
}

// ingest runs one pass synchronously. A client hang-up does not cancel it.
func (h *Handlers) ingest(w http.ResponseWriter, r *http.Request) {
	rep := h.Ing.Run(context.WithoutCancel(r.Context()))
	w.Header().Set("X-Run-ID", rep.RunID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"message": "Ingestion completed"}); err != nil {
		log.Error().Err(err).Msg("failed to write ingest body")
	}
}

func (h *Handlers) ingestStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, h.Ing.LastRun())
}
