package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/task-escalation-engine/internal/errors"
	"github.com/yukikurage/task-escalation-engine/internal/logger"
	"github.com/yukikurage/task-escalation-engine/internal/services"
)

// Scanner runs one escalation pass
type Scanner interface {
	Scan(ctx context.Context) (services.EscalationSummary, error)
}

// Materializer runs one materialization pass
type Materializer interface {
	Run(ctx context.Context) (services.MaterializeSummary, error)
}

// CronHandler exposes the batch jobs to an external scheduler
type CronHandler struct {
	scanner      Scanner
	materializer Materializer
}

func NewCronHandler(scanner Scanner, materializer Materializer) *CronHandler {
	return &CronHandler{
		scanner:      scanner,
		materializer: materializer,
	}
}

// Escalate runs the escalation scanner and returns its summary
func (h *CronHandler) Escalate(c *gin.Context) {
	summary, err := h.scanner.Scan(c.Request.Context())
	respondBatch(c, "escalate", summary, err)
}

// Materialize runs the recurring task materializer and returns its summary
func (h *CronHandler) Materialize(c *gin.Context) {
	summary, err := h.materializer.Run(c.Request.Context())
	respondBatch(c, "materialize", summary, err)
}

// respondBatch writes the summary. An aborted run still reports what it
// committed before the failure.
func respondBatch(c *gin.Context, job string, summary any, err error) {
	if err == nil {
		c.JSON(http.StatusOK, summary)
		return
	}

	logger.Log.WithError(err).WithField("job", job).Error("Batch run aborted")

	status, code := apierrors.StatusFor(err)
	message := "Internal server error"
	switch {
	case errors.Is(err, apierrors.ErrPersistence):
		message = "Store unavailable, partial results returned"
	case errors.Is(err, apierrors.ErrCanceled):
		message = "Run canceled, partial results returned"
	}
	c.JSON(status, gin.H{
		"summary": summary,
		"error":   apierrors.NewAPIError(code, message),
	})
}
