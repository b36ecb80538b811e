package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"customer-support-rag/internal/telemetry"
	"customer-support-rag/models"
	"customer-support-rag/services"
	"customer-support-rag/utils"

	"github.com/gin-gonic/gin"
)

// Answerer runs retrieval and generation for one question, emitting
// stream events as they are produced.
type Answerer interface {
	Answer(ctx context.Context, question string, events services.StreamEvents) (*services.AnswerResult, error)
}

func SetupChatRoutes(router *gin.Engine, responder Answerer, metrics *telemetry.Metrics) {
	chat := router.Group("/api/v1/chat")
	chat.POST("/stream", StreamChat(responder, metrics))
}

// StreamChat answers a question over Server-Sent Events. Tokens are
// forwarded as they arrive from the model, followed by suggested
// follow-up questions and a terminating [DONE] marker.
func StreamChat(responder Answerer, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.ChatInput
		if err := c.ShouldBindJSON(&input); err != nil {
			utils.RespondWithBadRequest(c, "Invalid chat request", gin.H{"error": err.Error()})
			return
		}

		question := strings.TrimSpace(input.Question())
		if question == "" {
			utils.RespondWithBadRequest(c, "Question must not be empty", nil)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		stream := &sseStream{c: c}

		// The request context carries the client disconnect, which
		// cancels the in-flight model stream. The timeout bounds the
		// full retrieval and generation round trip.
		ctx, cancel := context.WithTimeout(c.Request.Context(), utils.GenerationTimeout)
		defer cancel()

		result, err := responder.Answer(ctx, question, stream)
		if err != nil {
			metrics.RecordAnswer("failed", 0)
			stream.sendError(streamErrorMessage(err))
			stream.done()
			return
		}

		metrics.RecordAnswer("completed", int64(result.Retrieved))
		stream.done()
	}
}

// sseStream writes stream events in the `data: <json>` wire format.
type sseStream struct {
	c *gin.Context
}

func (s *sseStream) send(event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}

func (s *sseStream) OnContent(token string) error {
	return s.send(models.ContentEvent{Content: token})
}

func (s *sseStream) OnFollowups(questions []string) error {
	return s.send(models.FollowupEvent{FollowupQuestions: questions})
}

func (s *sseStream) sendError(message string) {
	// Client may already be gone; nothing useful to do with a write error
	_ = s.send(models.StreamErrorEvent{Error: message})
}

func (s *sseStream) done() {
	fmt.Fprint(s.c.Writer, "data: [DONE]\n\n")
	s.c.Writer.Flush()
}

func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrCollectionNotFound):
		return "The document collection does not exist yet. Create it and index documents before asking questions."
	case errors.Is(err, models.ErrServiceUnavailable):
		return "The model service is temporarily unavailable. Please try again in a moment."
	default:
		return "Failed to generate a response: " + err.Error()
	}
}
