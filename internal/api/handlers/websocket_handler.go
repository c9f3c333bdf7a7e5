package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/engine"
	"github.com/datachat/backend/internal/llm"
	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/internal/usage"
	"github.com/datachat/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine *engine.Engine
	gate   *usage.Gate
}

func NewWebSocketHandler(eng *engine.Engine, gate *usage.Gate) *WebSocketHandler {
	return &WebSocketHandler{engine: eng, gate: gate}
}

// HandleConnection serves one authenticated chat session, streaming each
// answer back word by word. Every question passes the same usage gate as
// the HTTP chat endpoint.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	userID, _ := c.Locals("user_id").(string)
	tier, _ := c.Locals("tier").(string)

	logger.Info("WebSocket connection established", zap.String("user_id", userID))

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed", zap.String("user_id", userID))
	}()

	for {
		var msg struct {
			Type       string `json:"type"`
			Question   string `json:"question"`
			UseHistory bool   `json:"use_history"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type != "question" {
			continue
		}

		decision, err := h.gate.RecordAndCheck(userID, tier, "chat")
		if err != nil {
			logger.Error("Usage check failed", zap.Error(err))
			h.sendError(c, errors.New("usage check failed"))
			continue
		}
		if !decision.Allowed {
			metrics.UsageDenials.WithLabelValues(tier, "chat").Inc()
			c.WriteJSON(map[string]interface{}{
				"type":  "limit",
				"error": "Daily question limit reached. Upgrade your plan for a higher limit.",
				"used":  decision.Used,
				"limit": decision.Limit,
			})
			continue
		}

		if err := h.streamAnswer(c, msg.Question, msg.UseHistory); err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, err)
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, question string, useHistory bool) error {
	h.send(c, "status", "Thinking...")

	answer, err := h.engine.Query(context.Background(), question, engine.QueryOptions{
		UseHistory: useHistory,
	})
	if err != nil {
		return err
	}

	words := strings.Fields(answer.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := h.send(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":        "complete",
		"num_sources": answer.NumSources,
		"sources":     answer.Sources,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, err error) {
	msg := "Failed to answer question"
	switch {
	case errors.Is(err, llm.ErrTimeout):
		msg = "The language model timed out"
	case errors.Is(err, llm.ErrUnavailable):
		msg = "The language model is unavailable"
	}
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": msg,
	})
}
