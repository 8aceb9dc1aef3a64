package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"situationcord.app/relay/common/id"
	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/queue"
)

var ErrInvalidPayload = errors.New("invalid webhook payload")

type EventIngestResult struct {
	MessageID  string
	DBID       int64
	ReceivedAt time.Time
	Created    bool
	Enqueued   bool
}

type EventIngestService interface {
	Ingest(ctx context.Context, payload model.WebhookPayload, traceID *string) (*EventIngestResult, error)
}

type eventIngestService struct {
	txRunner TxRunner
	queue    queue.Producer
	logger   *slog.Logger
	now      func() time.Time
}

func NewEventIngestService(txRunner TxRunner, producer queue.Producer, logger *slog.Logger) EventIngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventIngestService{
		txRunner: txRunner,
		queue:    producer,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest persists the webhook message and its author, then schedules
// enrichment. A redelivered message id is acknowledged with the existing row
// and is enqueued again only while that row has no analysis, so a message
// whose first enqueue was lost still gets enriched. Enqueue failures are
// logged only: the message is already stored and the response still reports
// success.
func (s *eventIngestService) Ingest(ctx context.Context, payload model.WebhookPayload, traceID *string) (*EventIngestResult, error) {
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	msg := payload.Message
	receivedAt := s.now().UTC()
	incoming := payload.Incoming()

	discriminator := msg.Author.Discriminator
	if discriminator == "" {
		discriminator = "0"
	}
	author := &model.DiscordAuthor{
		ID:            msg.Author.ID,
		Username:      msg.Author.Username,
		Discriminator: discriminator,
		DisplayName:   msg.Author.DisplayName,
		AvatarURL:     msg.Author.AvatarURL,
		Bot:           msg.Author.Bot,
		System:        msg.Author.System,
	}

	stored := &model.StoredMessage{
		Key:                 id.New(),
		EventType:           payload.EventType,
		ReceivedAt:          receivedAt,
		MessageID:           msg.ID,
		Content:             msg.Content,
		MessageTimestamp:    msg.Timestamp,
		EditedTimestamp:     msg.EditedTimestamp,
		ChannelID:           msg.ChannelID,
		ChannelName:         msg.ChannelName,
		ChannelType:         msg.ChannelType,
		ThreadID:            incoming.ThreadID,
		ThreadName:          msg.ThreadName,
		ThreadType:          msg.ThreadType,
		ParentChannelID:     msg.ParentChannelID,
		ParentChannelName:   msg.ParentChannelName,
		Pinned:              msg.Pinned,
		MessageType:         msg.Type,
		ReferencedMessageID: msg.ReferencedMessageID,
		AuthorID:            msg.Author.ID,
		GuildID:             incoming.GuildID,
		GuildName:           incoming.GuildName,
		Embeds:              msg.Embeds,
		Attachments:         msg.Attachments,
		Mentions:            msg.Mentions,
		Reactions:           msg.Reactions,
	}

	var (
		dbID     int64
		created  bool
		analyzed bool
	)
	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if err := sp.Messages().UpsertAuthor(ctx, author); err != nil {
			return fmt.Errorf("upserting author: %w", err)
		}

		var err error
		created, err = sp.Messages().InsertMessage(ctx, stored)
		if err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
		if created {
			dbID = stored.Key
			return nil
		}

		dbID, err = sp.Messages().GetKeyByExternalID(ctx, msg.ID)
		if err != nil {
			return fmt.Errorf("fetching existing message: %w", err)
		}

		analyses, err := sp.Analyses().ListByMessage(ctx, dbID)
		if err != nil {
			return fmt.Errorf("checking existing analysis: %w", err)
		}
		analyzed = len(analyses) > 0
		return nil
	}); err != nil {
		return nil, err
	}

	result := &EventIngestResult{
		MessageID:  msg.ID,
		DBID:       dbID,
		ReceivedAt: receivedAt,
		Created:    created,
	}

	if analyzed {
		s.logger.InfoContext(ctx, "duplicate message delivery ignored", "message_id", msg.ID, "db_id", dbID)
		return result, nil
	}
	if !created {
		s.logger.InfoContext(ctx, "re-enqueueing unanalyzed duplicate", "message_id", msg.ID, "db_id", dbID)
	}

	if err := s.queue.Enqueue(ctx, queue.EnrichmentTask{
		Message: incoming,
		TraceID: traceID,
		Attempt: 1,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue enrichment", "error", err, "message_id", msg.ID)
		return result, nil
	}
	result.Enqueued = true

	return result, nil
}

func validatePayload(p model.WebhookPayload) error {
	switch {
	case p.EventType == "":
		return fmt.Errorf("%w: eventType is required", ErrInvalidPayload)
	case p.Message.ID == "":
		return fmt.Errorf("%w: message.id is required", ErrInvalidPayload)
	case p.Message.ChannelID == "":
		return fmt.Errorf("%w: message.channelId is required", ErrInvalidPayload)
	case p.Message.Author.ID == "":
		return fmt.Errorf("%w: message.author.id is required", ErrInvalidPayload)
	case p.Message.Author.Username == "":
		return fmt.Errorf("%w: message.author.username is required", ErrInvalidPayload)
	case p.Message.Timestamp.IsZero():
		return fmt.Errorf("%w: message.timestamp is required", ErrInvalidPayload)
	}
	return nil
}
