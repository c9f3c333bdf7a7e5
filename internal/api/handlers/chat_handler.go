package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	cache "github.com/datachat/backend/internal/cache/redis"
	"github.com/datachat/backend/internal/engine"
	"github.com/datachat/backend/internal/llm"
	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/internal/storage/sqlite"
	"github.com/datachat/backend/internal/usage"
	"github.com/datachat/backend/pkg/logger"
	"github.com/datachat/backend/pkg/utils"
)

type ChatHandler struct {
	engine *engine.Engine
	db     *sqlite.Client
	cache  *cache.Client
	gate   *usage.Gate
}

func NewChatHandler(eng *engine.Engine, db *sqlite.Client, answerCache *cache.Client, gate *usage.Gate) *ChatHandler {
	return &ChatHandler{
		engine: eng,
		db:     db,
		cache:  answerCache,
		gate:   gate,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		Question      string `json:"question"`
		UseHistory    bool   `json:"use_history"`
		ReturnContext bool   `json:"return_context"`
		Source        string `json:"source"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	userID, _ := c.Locals("user_id").(string)
	tier, _ := c.Locals("tier").(string)

	decision, err := h.gate.RecordAndCheck(userID, tier, "chat")
	if err != nil {
		logger.Error("Usage check failed", zap.Error(err))
		return internalError(c)
	}
	if !decision.Allowed {
		metrics.UsageDenials.WithLabelValues(tier, "chat").Inc()
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": fmt.Sprintf("Daily limit of %d questions reached. Upgrade your plan for a higher limit.", decision.Limit),
			"used":  decision.Used,
			"limit": decision.Limit,
			"tier":  decision.Tier,
		})
	}

	// Cached answers only serve stateless questions; history changes the
	// prompt per conversation. The source filter and context flag change
	// what an answer is built from, so they are part of the key.
	questionHash := answerCacheKey(req.Question, req.Source, req.ReturnContext)
	if !req.UseHistory {
		var cached engine.Answer
		if h.cache.GetAnswer(c.Context(), questionHash, &cached) {
			metrics.CacheHits.WithLabelValues("answer").Inc()
			resp := fiber.Map{
				"question":    cached.Question,
				"answer":      cached.Answer,
				"num_sources": cached.NumSources,
				"sources":     cached.Sources,
				"cached":      true,
			}
			if req.ReturnContext {
				resp["context"] = cached.Context
			}
			return c.JSON(resp)
		}
		metrics.CacheMisses.WithLabelValues("answer").Inc()
	}

	start := time.Now()
	opts := engine.QueryOptions{
		UseHistory:    req.UseHistory,
		ReturnContext: req.ReturnContext,
	}
	if req.Source != "" {
		opts.Filter = map[string]string{"source": req.Source}
	}

	answer, err := h.engine.Query(c.Context(), req.Question, opts)
	latency := time.Since(start)
	metrics.QueryDuration.WithLabelValues("chat").Observe(latency.Seconds())

	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to answer question", zap.Error(err))

		switch {
		case errors.Is(err, llm.ErrTimeout):
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error": "The language model timed out. Please try again.",
			})
		case errors.Is(err, llm.ErrUnavailable):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "The language model is unavailable. Please try again later.",
			})
		default:
			return internalError(c)
		}
	}

	metrics.QueryTotal.WithLabelValues("success").Inc()
	metrics.VectorResultsCount.Observe(float64(answer.NumSources))

	record := &models.ChatRecord{
		ID:         uuid.New().String(),
		UserID:     userID,
		Question:   answer.Question,
		Answer:     answer.Answer,
		NumSources: answer.NumSources,
		LatencyMS:  int(latency.Milliseconds()),
		CreatedAt:  time.Now(),
	}
	if err := h.db.InsertChatRecord(record); err != nil {
		logger.Error("Failed to persist chat record", zap.Error(err))
	}

	if !req.UseHistory {
		h.cache.SetAnswer(c.Context(), questionHash, answer)
	}

	resp := fiber.Map{
		"id":          record.ID,
		"question":    answer.Question,
		"answer":      answer.Answer,
		"num_sources": answer.NumSources,
		"sources":     answer.Sources,
		"latency_ms":  record.LatencyMS,
	}
	if req.ReturnContext {
		resp["context"] = answer.Context
	}
	return c.JSON(resp)
}

func (h *ChatHandler) GetChatHistory(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	records, err := h.db.GetChatHistory(userID, limit)
	if err != nil {
		logger.Error("Failed to load chat history", zap.Error(err))
		return internalError(c)
	}

	return c.JSON(fiber.Map{
		"history": records,
		"count":   len(records),
	})
}

// answerCacheKey derives the cache key for a stateless answer. Question,
// source filter and context flag all shape the response, so each combination
// gets its own entry.
func answerCacheKey(question, source string, returnContext bool) string {
	return utils.HashString(fmt.Sprintf("%s\x00%s\x00%t", question, source, returnContext))
}

func (h *ChatHandler) ClearConversation(c *fiber.Ctx) error {
	h.engine.History().Clear()
	return c.JSON(fiber.Map{
		"message": "Conversation cleared",
	})
}
