package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	cache "github.com/datachat/backend/internal/cache/redis"
	"github.com/datachat/backend/internal/engine"
	"github.com/datachat/backend/internal/ingestion"
	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/internal/storage/sqlite"
	"github.com/datachat/backend/internal/usage"
	"github.com/datachat/backend/internal/vector/milvus"
	"github.com/datachat/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	db        *sqlite.Client
	index     *milvus.Client
	cache     *cache.Client
	engine    *engine.Engine
	gate      *usage.Gate
}

func NewDocumentHandler(processor *ingestion.Processor, db *sqlite.Client, index *milvus.Client, answerCache *cache.Client, eng *engine.Engine, gate *usage.Gate) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		db:        db,
		index:     index,
		cache:     answerCache,
		engine:    eng,
		gate:      gate,
	}
}

// UploadDocuments ingests one or more multipart files under the "files"
// field. Each file succeeds or fails independently.
func (h *DocumentHandler) UploadDocuments(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	tier, _ := c.Locals("tier").(string)

	decision, err := h.gate.RecordAndCheck(userID, tier, "upload")
	if err != nil {
		logger.Error("Usage check failed", zap.Error(err))
		return internalError(c)
	}
	if !decision.Allowed {
		metrics.UsageDenials.WithLabelValues(tier, "upload").Inc()
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Daily upload limit reached. Upgrade your plan for a higher limit.",
			"used":  decision.Used,
			"limit": decision.Limit,
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Expected multipart form data",
		})
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one file is required under the 'files' field",
		})
	}

	files := make([]ingestion.File, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			logger.Error("Failed to open upload", zap.String("filename", header.Filename), zap.Error(err))
			files = append(files, ingestion.File{Name: header.Filename})
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			logger.Error("Failed to read upload", zap.String("filename", header.Filename), zap.Error(err))
			files = append(files, ingestion.File{Name: header.Filename})
			continue
		}
		files = append(files, ingestion.File{Name: header.Filename, Data: data})
	}

	items := h.processor.IngestBatch(c.Context(), files, userID)

	// Newly indexed content can change any answer.
	if err := h.cache.InvalidateAnswers(c.Context()); err != nil {
		logger.Warn("Failed to invalidate answer cache", zap.Error(err))
	}

	status := fiber.StatusOK
	if allFailed(items) {
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{
		"results": items,
	})
}

func allFailed(items []ingestion.BatchItem) bool {
	for _, item := range items {
		if item.Error == "" {
			return false
		}
	}
	return len(items) > 0
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	docs, err := h.db.ListDocuments(limit)
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return internalError(c)
	}

	return c.JSON(fiber.Map{
		"documents": docs,
		"count":     len(docs),
	})
}

// DeleteDocument is not supported; chunks carry content-derived ids and the
// index has no per-document tombstoning. Reset is the supported path.
func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
		"error": "Per-document deletion is not supported. Use POST /api/v1/documents/reset to clear the knowledge base.",
	})
}

// ResetKnowledgeBase drops every indexed chunk, document record, cached
// answer and the in-memory conversation. Destructive and unrecoverable.
func (h *DocumentHandler) ResetKnowledgeBase(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	logger.Warn("Knowledge base reset requested", zap.String("user_id", userID))

	if err := h.index.Reset(c.Context()); err != nil {
		logger.Error("Failed to reset vector index", zap.Error(err))
		return internalError(c)
	}
	if err := h.db.DeleteAllDocuments(); err != nil {
		logger.Error("Failed to clear document registry", zap.Error(err))
		return internalError(c)
	}
	if err := h.cache.InvalidateAnswers(c.Context()); err != nil {
		logger.Warn("Failed to invalidate answer cache", zap.Error(err))
	}
	h.engine.History().Clear()

	return c.JSON(fiber.Map{
		"message": "Knowledge base reset",
	})
}
