package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"situationcord.app/relay/common/logger"
	"situationcord.app/relay/internal/http/dto"
	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/service"
)

type DiscordWebhookHandler struct {
	service     service.EventIngestService
	traceHeader string
}

func NewDiscordWebhookHandler(service service.EventIngestService, traceHeader string) *DiscordWebhookHandler {
	return &DiscordWebhookHandler{
		service:     service,
		traceHeader: traceHeader,
	}
}

// Receive stores a message posted by the Discord collector and schedules its
// enrichment. Redelivered messages answer with the existing row.
func (h *DiscordWebhookHandler) Receive(c *gin.Context) {
	ctx := c.Request.Context()

	var payload model.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		slog.WarnContext(ctx, "invalid webhook payload", "error", err)
		c.JSON(http.StatusBadRequest, dto.Error("Invalid webhook payload: "+err.Error()))
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &payload.Message.ID,
		AuthorID:  &payload.Message.Author.ID,
	})

	var traceID *string
	if id := c.GetHeader(h.traceHeader); id != "" {
		traceID = &id
	} else if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		id := spanCtx.TraceID().String()
		traceID = &id
	}

	result, err := h.service.Ingest(ctx, payload, traceID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, dto.Error(err.Error()))
			return
		}
		slog.ErrorContext(ctx, "failed to ingest discord message", "error", err)
		c.JSON(http.StatusInternalServerError, dto.Error("failed to store message"))
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{
		Success:    true,
		MessageID:  result.MessageID,
		DBID:       result.DBID,
		ReceivedAt: result.ReceivedAt,
	})
}
