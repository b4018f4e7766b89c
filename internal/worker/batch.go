package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/outflowhq/outflow-backend/internal/models"
	"github.com/outflowhq/outflow-backend/internal/scheduler"
	"github.com/outflowhq/outflow-backend/internal/service"
)

// BatchHandler runs campaign-batch jobs through the compliance batcher.
type BatchHandler struct {
	batcher *service.Batcher
}

// NewBatchHandler creates a campaign-batch job handler
func NewBatchHandler(batcher *service.Batcher) *BatchHandler {
	return &BatchHandler{batcher: batcher}
}

// Handle processes one campaign-batch job
func (h *BatchHandler) Handle(ctx context.Context, job *scheduler.Job) error {
	var payload models.BatchJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal batch job: %w", err)
	}

	return h.batcher.RunBatch(ctx, &payload)
}
