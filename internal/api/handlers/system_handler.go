package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/engine"
	"github.com/datachat/backend/internal/llm"
	"github.com/datachat/backend/internal/storage/sqlite"
	"github.com/datachat/backend/internal/vector/milvus"
	"github.com/datachat/backend/pkg/logger"
)

type SystemHandler struct {
	db        *sqlite.Client
	index     *milvus.Client
	generator llm.Generator
	engine    *engine.Engine
}

func NewSystemHandler(db *sqlite.Client, index *milvus.Client, generator llm.Generator, eng *engine.Engine) *SystemHandler {
	return &SystemHandler{
		db:        db,
		index:     index,
		generator: generator,
		engine:    eng,
	}
}

// Health reports per-dependency status. The service is degraded, not down,
// when the language model is unreachable.
func (h *SystemHandler) Health(c *fiber.Ctx) error {
	status := "healthy"
	components := fiber.Map{}

	if _, err := h.index.Count(c.Context()); err != nil {
		components["vector_index"] = "unreachable"
		status = "degraded"
	} else {
		components["vector_index"] = "ok"
	}

	if h.generator.Available(c.Context()) {
		components["llm"] = "ok"
	} else {
		components["llm"] = "unreachable"
		status = "degraded"
	}

	code := fiber.StatusOK
	if status != "healthy" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":     status,
		"components": components,
	})
}

func (h *SystemHandler) Stats(c *fiber.Ctx) error {
	chunkCount, err := h.index.Count(c.Context())
	if err != nil {
		logger.Error("Failed to count chunks", zap.Error(err))
		return internalError(c)
	}

	docCount, err := h.db.CountDocuments()
	if err != nil {
		logger.Error("Failed to count documents", zap.Error(err))
		return internalError(c)
	}

	models, err := h.generator.ListModels(c.Context())
	if err != nil {
		logger.Warn("Failed to list models", zap.Error(err))
		models = nil
	}

	return c.JSON(fiber.Map{
		"documents":           docCount,
		"chunks":              chunkCount,
		"conversation_length": h.engine.History().Len(),
		"available_models":    models,
	})
}
