// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/wolflogic/wolfmem/pkg/api/middleware"
	"github.com/wolflogic/wolfmem/pkg/api/response"
	"github.com/wolflogic/wolfmem/pkg/memstore"
)

// Querier is the slice of the memory store the query surface reads from.
type Querier interface {
	Semantic(ctx context.Context, q memstore.SemanticQuery) ([]memstore.SemanticResult, error)
	Recent(ctx context.Context, namespace string, since time.Time, limit int) ([]memstore.Memory, error)
	Namespaces(ctx context.Context) ([]memstore.NamespaceStat, error)
}

// QueryHandler serves semantic and recency retrieval over memories.
type QueryHandler struct {
	store Querier
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(store Querier) *QueryHandler {
	return &QueryHandler{store: store}
}

// memoryPayload is the wire shape of one memory in query responses.
type memoryPayload struct {
	ID         int64          `json:"id"`
	UserID     string         `json:"user_id"`
	Content    string         `json:"content"`
	MemoryType string         `json:"memory_type"`
	Namespace  string         `json:"namespace"`
	CreatedAt  string         `json:"created_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Distance   *float64       `json:"distance,omitempty"`
}

func toPayload(m memstore.Memory) memoryPayload {
	return memoryPayload{
		ID:         m.ID,
		UserID:     m.UserID,
		Content:    m.Content,
		MemoryType: m.MemoryType,
		Namespace:  m.Namespace,
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
		Metadata:   m.Metadata,
	}
}

type queryRequest struct {
	Query      string   `json:"query"`
	Namespaces []string `json:"namespaces"`
	Limit      int      `json:"limit"`
}

type queryResponse struct {
	Query        string          `json:"query"`
	ResultsCount int             `json:"results_count"`
	Memories     []memoryPayload `json:"memories"`
}

// Query handles POST /query: semantic retrieval ordered by ascending
// cosine distance.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", requestID)
		return
	}
	if req.Query == "" {
		response.BadRequest(w, "query is required", requestID)
		return
	}

	results, err := h.store.Semantic(r.Context(), memstore.SemanticQuery{
		QueryText:  req.Query,
		Namespaces: req.Namespaces,
		Limit:      req.Limit,
	})
	if err != nil {
		response.HandleError(w, err, requestID)
		return
	}

	memories := make([]memoryPayload, 0, len(results))
	for _, res := range results {
		p := toPayload(res.Memory)
		d := res.Distance
		p.Distance = &d
		memories = append(memories, p)
	}
	response.JSON(w, http.StatusOK, queryResponse{
		Query:        req.Query,
		ResultsCount: len(memories),
		Memories:     memories,
	})
}

type recentRequest struct {
	Namespace string  `json:"namespace"`
	Hours     float64 `json:"hours"`
	Limit     int     `json:"limit"`
}

type recentResponse struct {
	Namespace string          `json:"namespace"`
	Hours     float64         `json:"hours"`
	Memories  []memoryPayload `json:"memories"`
}

// Recent handles POST /recent: newest memories in a namespace within
// the requested window.
func (h *QueryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req recentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body", requestID)
		return
	}
	if req.Namespace == "" {
		response.BadRequest(w, "namespace is required", requestID)
		return
	}
	if req.Hours <= 0 {
		req.Hours = 24
	}

	since := time.Now().Add(-time.Duration(req.Hours * float64(time.Hour)))
	rows, err := h.store.Recent(r.Context(), req.Namespace, since, req.Limit)
	if err != nil {
		response.HandleError(w, err, requestID)
		return
	}

	memories := make([]memoryPayload, 0, len(rows))
	for _, m := range rows {
		memories = append(memories, toPayload(m))
	}
	response.JSON(w, http.StatusOK, recentResponse{
		Namespace: req.Namespace,
		Hours:     req.Hours,
		Memories:  memories,
	})
}

type namespacesResponse struct {
	Namespaces      []memstore.NamespaceStat `json:"namespaces"`
	TotalNamespaces int                      `json:"total_namespaces"`
	TotalMemories   int64                    `json:"total_memories"`
}

// Namespaces handles GET /namespaces: per-namespace counts plus totals.
func (h *QueryHandler) Namespaces(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	stats, err := h.store.Namespaces(r.Context())
	if err != nil {
		response.HandleError(w, err, requestID)
		return
	}

	var total int64
	for _, st := range stats {
		total += st.Count
	}
	response.JSON(w, http.StatusOK, namespacesResponse{
		Namespaces:      stats,
		TotalNamespaces: len(stats),
		TotalMemories:   total,
	})
}
