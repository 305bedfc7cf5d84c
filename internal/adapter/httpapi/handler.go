// Package httpapi is the HTTP facade over the pipeline usecases: question
// answering, retrieval-only search, catalog listing, and the health probes.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"rag-agent/agent"
	"rag-agent/internal/domain"
	"rag-agent/internal/usecase"
)

// CatalogProvider serves the collection catalog without hitting the store on
// every request. The background refresher implements it.
type CatalogProvider interface {
	Collections() []agent.Collection
}

type Handler struct {
	ask     usecase.AskUsecase
	search  usecase.SearchUsecase
	catalog CatalogProvider
	pinger  domain.Pinger
	log     *slog.Logger
}

func NewHandler(
	ask usecase.AskUsecase,
	search usecase.SearchUsecase,
	catalog CatalogProvider,
	pinger domain.Pinger,
	log *slog.Logger,
) *Handler {
	return &Handler{
		ask:     ask,
		search:  search,
		catalog: catalog,
		pinger:  pinger,
		log:     log,
	}
}

// AskRequest is the POST /v1/ask payload. Absent threshold keeps the server
// default; self_correct and rerank override the deployment defaults, where
// rerank can only switch an enabled stage off.
type AskRequest struct {
	Question    string   `json:"question"`
	Collections []string `json:"collections,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Threshold   *float64 `json:"threshold,omitempty"`
	SelfCorrect *bool    `json:"self_correct,omitempty"`
	Rerank      *bool    `json:"rerank,omitempty"`
}

type AskResponse struct {
	Answer      string              `json:"answer"`
	Collections []string            `json:"collections"`
	Context     []ChunkPayload      `json:"context"`
	Corrections []CorrectionPayload `json:"corrections"`
	Iterations  int                 `json:"iterations"`
	Cached      bool                `json:"cached"`
}

type ChunkPayload struct {
	ChunkID    string  `json:"chunk_id"`
	Collection string  `json:"collection,omitempty"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

type CorrectionPayload struct {
	OldAnswer string `json:"old_answer"`
	Feedback  string `json:"feedback"`
}

// SearchRequest is the POST /v1/search payload.
type SearchRequest struct {
	Query       string   `json:"query"`
	Collections []string `json:"collections,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Threshold   *float64 `json:"threshold,omitempty"`
	Mode        string   `json:"mode,omitempty"`
}

type SearchResponse struct {
	Results []SearchGroupPayload `json:"results"`
}

type SearchGroupPayload struct {
	Query      string         `json:"query"`
	Collection string         `json:"collection,omitempty"`
	Chunks     []ChunkPayload `json:"chunks"`
}

type CollectionsResponse struct {
	Collections []CollectionPayload `json:"collections"`
}

type CollectionPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Ask runs the full pipeline for one question.
// (POST /v1/ask)
func (h *Handler) Ask(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	input := usecase.AskInput{
		Question:    req.Question,
		Collections: req.Collections,
		Limit:       req.Limit,
		Threshold:   -1,
		SelfCorrect: req.SelfCorrect,
		Rerank:      req.Rerank,
	}
	if req.Threshold != nil {
		input.Threshold = *req.Threshold
	}

	out, err := h.ask.Execute(c.Request().Context(), input)
	if err != nil {
		if errors.Is(err, usecase.ErrEmptyQuestion) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		h.log.ErrorContext(c.Request().Context(), "ask_request_failed", slog.String("error", err.Error()))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, toAskResponse(out))
}

// Search runs retrieval only: no query rewriting, no answer.
// (POST /v1/search)
func (h *Handler) Search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	input := usecase.SearchInput{
		Query:       req.Query,
		Collections: req.Collections,
		Limit:       req.Limit,
		Threshold:   -1,
		Mode:        req.Mode,
	}
	if req.Threshold != nil {
		input.Threshold = *req.Threshold
	}

	out, err := h.search.Execute(c.Request().Context(), input)
	if err != nil {
		if errors.Is(err, usecase.ErrEmptyQuery) || errors.Is(err, usecase.ErrInvalidSearchMode) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		h.log.ErrorContext(c.Request().Context(), "search_request_failed", slog.String("error", err.Error()))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	groups := make([]SearchGroupPayload, 0, len(out.Results))
	for _, r := range out.Results {
		groups = append(groups, SearchGroupPayload{
			Query:      r.Query,
			Collection: r.Collection,
			Chunks:     toChunkPayloads(r.Chunks),
		})
	}
	return c.JSON(http.StatusOK, SearchResponse{Results: groups})
}

// Collections lists the catalog from the refresher's snapshot.
// (GET /v1/collections)
func (h *Handler) Collections(c echo.Context) error {
	catalog := h.catalog.Collections()
	payload := make([]CollectionPayload, 0, len(catalog))
	for _, col := range catalog {
		payload = append(payload, CollectionPayload{Name: col.Name, Description: col.Description})
	}
	return c.JSON(http.StatusOK, CollectionsResponse{Collections: payload})
}

// Healthz reports process liveness.
// (GET /v1/healthz)
func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports readiness by pinging the chunk store.
// (GET /v1/readyz)
func (h *Handler) Readyz(c echo.Context) error {
	if err := h.pinger.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "store down", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func toAskResponse(out *usecase.AskOutput) AskResponse {
	corrections := make([]CorrectionPayload, 0, len(out.Corrections))
	for _, c := range out.Corrections {
		corrections = append(corrections, CorrectionPayload{OldAnswer: c.OldAnswer, Feedback: c.Feedback})
	}
	return AskResponse{
		Answer:      out.Answer,
		Collections: out.Collections,
		Context:     toChunkPayloads(out.Context),
		Corrections: corrections,
		Iterations:  out.Iterations,
		Cached:      out.Cached,
	}
}

func toChunkPayloads(sources []usecase.Source) []ChunkPayload {
	chunks := make([]ChunkPayload, 0, len(sources))
	for _, s := range sources {
		chunks = append(chunks, ChunkPayload{
			ChunkID:    s.ChunkID,
			Collection: s.Collection,
			Content:    s.Content,
			Score:      s.Score,
		})
	}
	return chunks
}
