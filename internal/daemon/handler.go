package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/Aman-CERP/minirag/internal/engine"
	"github.com/Aman-CERP/minirag/pkg/version"
)

// EngineHandler serves daemon requests from an open engine.
type EngineHandler struct {
	engine *engine.Engine
}

// NewEngineHandler wraps e.
func NewEngineHandler(e *engine.Engine) *EngineHandler {
	return &EngineHandler{engine: e}
}

// Upload ingests a file by path or an inline payload.
func (h *EngineHandler) Upload(ctx context.Context, p UploadParams) (*UploadResult, error) {
	if p.Path != "" {
		return h.engine.Ingester.UploadFile(ctx, p.Path)
	}
	return h.engine.Ingester.Upload(ctx, p.Filename, p.Data)
}

// Query runs a search, filling omitted parameters from the config.
func (h *EngineHandler) Query(ctx context.Context, p QueryParams) (*QueryResult, error) {
	q := h.engine.Retriever.NewQuery(p.Query)
	if p.MaxResults != nil {
		q.MaxResults = *p.MaxResults
	}
	if p.SimilarityThreshold != nil {
		q.SimilarityThreshold = *p.SimilarityThreshold
	}
	return h.engine.Retriever.Search(ctx, q)
}

// List returns every document summary.
func (h *EngineHandler) List(_ context.Context) (*ListResult, error) {
	return &ListResult{Documents: h.engine.Store.List()}, nil
}

// Get returns one document without its chunks.
func (h *EngineHandler) Get(_ context.Context, id string) (*DocumentResult, error) {
	doc, err := h.engine.Store.Get(id)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{
		ID:          doc.ID,
		Filename:    doc.Filename,
		UploadTime:  doc.UploadTime.Format(time.RFC3339),
		Metadata:    doc.Metadata,
		ContentText: doc.RawText,
	}, nil
}

// Delete removes a document and its chunks.
func (h *EngineHandler) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	doc, err := h.engine.Store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{
		ID:            doc.ID,
		ChunksRemoved: len(doc.Chunks),
		Message:       fmt.Sprintf("Document %s deleted successfully", doc.ID),
	}, nil
}

// Stats returns corpus and query counters.
func (h *EngineHandler) Stats(ctx context.Context) (*StatsResult, error) {
	s := h.engine.Stats.Stats(ctx)
	return &s, nil
}

// Rebuild recomputes the index from stored chunk text.
func (h *EngineHandler) Rebuild(ctx context.Context) (*RebuildResult, error) {
	start := time.Now()
	if err := h.engine.Store.Rebuild(ctx); err != nil {
		return nil, err
	}
	_, chunks, keywords := h.engine.Store.Counts()
	return &RebuildResult{
		Chunks:   chunks,
		Keywords: keywords,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}, nil
}

// Status reports the engine side of daemon status.
func (h *EngineHandler) Status() StatusResult {
	docs, _, _ := h.engine.Store.Counts()
	return StatusResult{
		Version:   version.Short(),
		DataDir:   h.engine.Config.Storage.DataDir,
		Backend:   h.engine.Store.BackendName(),
		Documents: docs,
	}
}
