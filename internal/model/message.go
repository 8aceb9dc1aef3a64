package model

import (
	"encoding/json"
	"time"
)

// WebhookPayload is the body the Discord collector posts for every new message.
type WebhookPayload struct {
	EventType string      `json:"eventType" binding:"required"`
	Timestamp time.Time   `json:"timestamp" binding:"required"`
	Message   MessageData `json:"message" binding:"required"`
}

type MessageData struct {
	ID                  string     `json:"id" binding:"required"`
	Content             string     `json:"content"`
	Timestamp           time.Time  `json:"timestamp" binding:"required"`
	EditedTimestamp     *time.Time `json:"editedTimestamp,omitempty"`
	ChannelID           string     `json:"channelId" binding:"required"`
	ChannelName         *string    `json:"channelName,omitempty"`
	ChannelType         int        `json:"channelType"`
	ThreadID            *string    `json:"threadId,omitempty"`
	ThreadName          *string    `json:"threadName,omitempty"`
	ThreadType          *int       `json:"threadType,omitempty"`
	ParentChannelID     *string    `json:"parentChannelId,omitempty"`
	ParentChannelName   *string    `json:"parentChannelName,omitempty"`
	Author              AuthorData `json:"author" binding:"required"`
	GuildID             *string    `json:"guildId,omitempty"`
	GuildName           *string    `json:"guildName,omitempty"`
	Guild               *GuildData `json:"guild,omitempty"`
	Pinned              bool       `json:"pinned"`
	Type                int        `json:"type"`
	ReferencedMessageID *string    `json:"referencedMessageId,omitempty"`

	// Discord object arrays are kept verbatim and stored as JSONB.
	Embeds      json.RawMessage `json:"embeds,omitempty"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
	Mentions    json.RawMessage `json:"mentions,omitempty"`
	Reactions   json.RawMessage `json:"reactions,omitempty"`
}

type AuthorData struct {
	ID            string  `json:"id" binding:"required"`
	Username      string  `json:"username" binding:"required"`
	Discriminator string  `json:"discriminator"`
	DisplayName   *string `json:"displayName,omitempty"`
	AvatarURL     *string `json:"avatarUrl,omitempty"`
	Bot           bool    `json:"bot"`
	System        bool    `json:"system"`
}

type GuildData struct {
	ID   string  `json:"id"`
	Name *string `json:"name,omitempty"`
}

// IncomingMessage is the immutable snapshot the enrichment pipeline works on.
type IncomingMessage struct {
	ID          string    `json:"id"`
	EventType   string    `json:"event_type"`
	Content     string    `json:"content"`
	Author      Author    `json:"author"`
	ChannelID   string    `json:"channel_id"`
	ChannelName *string   `json:"channel_name,omitempty"`
	ThreadID    *string   `json:"thread_id,omitempty"`
	ThreadName  *string   `json:"thread_name,omitempty"`
	GuildID     *string   `json:"guild_id,omitempty"`
	GuildName   *string   `json:"guild_name,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type Author struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name,omitempty"`
	Bot         bool    `json:"bot"`
}

// Label is the name shown to the model: display name when set, username otherwise.
func (a Author) Label() string {
	if a.DisplayName != nil && *a.DisplayName != "" {
		return *a.DisplayName
	}
	return a.Username
}

func (m IncomingMessage) HasThread() bool {
	return m.ThreadID != nil && *m.ThreadID != ""
}

// Incoming projects the webhook payload onto the pipeline's message snapshot.
// A nested guild object wins over the flat guildId/guildName fields.
func (p WebhookPayload) Incoming() IncomingMessage {
	msg := p.Message
	guildID, guildName := msg.GuildID, msg.GuildName
	if msg.Guild != nil {
		guildID = &msg.Guild.ID
		guildName = msg.Guild.Name
	}

	threadID := msg.ThreadID
	if threadID != nil && *threadID == "" {
		threadID = nil
	}

	return IncomingMessage{
		ID:        msg.ID,
		EventType: p.EventType,
		Content:   msg.Content,
		Author: Author{
			ID:          msg.Author.ID,
			Username:    msg.Author.Username,
			DisplayName: msg.Author.DisplayName,
			Bot:         msg.Author.Bot,
		},
		ChannelID:   msg.ChannelID,
		ChannelName: msg.ChannelName,
		ThreadID:    threadID,
		ThreadName:  msg.ThreadName,
		GuildID:     guildID,
		GuildName:   guildName,
		Timestamp:   msg.Timestamp,
	}
}

// StoredMessage is a row of discord_messages as written by ingestion.
type StoredMessage struct {
	Key                 int64      `json:"key"`
	EventType           string     `json:"event_type"`
	ReceivedAt          time.Time  `json:"received_at"`
	MessageID           string     `json:"message_id"`
	Content             string     `json:"content"`
	MessageTimestamp    time.Time  `json:"message_timestamp"`
	EditedTimestamp     *time.Time `json:"edited_timestamp,omitempty"`
	ChannelID           string     `json:"channel_id"`
	ChannelName         *string    `json:"channel_name,omitempty"`
	ChannelType         int        `json:"channel_type"`
	ThreadID            *string    `json:"thread_id,omitempty"`
	ThreadName          *string    `json:"thread_name,omitempty"`
	ThreadType          *int       `json:"thread_type,omitempty"`
	ParentChannelID     *string    `json:"parent_channel_id,omitempty"`
	ParentChannelName   *string    `json:"parent_channel_name,omitempty"`
	Pinned              bool       `json:"pinned"`
	MessageType         int        `json:"message_type"`
	ReferencedMessageID *string    `json:"referenced_message_id,omitempty"`
	AuthorID            string     `json:"author_id"`
	GuildID             *string    `json:"guild_id,omitempty"`
	GuildName           *string    `json:"guild_name,omitempty"`

	Embeds      json.RawMessage `json:"embeds,omitempty"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
	Mentions    json.RawMessage `json:"mentions,omitempty"`
	Reactions   json.RawMessage `json:"reactions,omitempty"`
}

// DiscordAuthor is a row of discord_authors, upserted on every ingested message.
type DiscordAuthor struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	Discriminator string  `json:"discriminator"`
	DisplayName   *string `json:"display_name,omitempty"`
	AvatarURL     *string `json:"avatar_url,omitempty"`
	Bot           bool    `json:"bot"`
	System        bool    `json:"system"`
}

// ThreadContextEntry is a prior message in the same thread, as shown to the model.
type ThreadContextEntry struct {
	MessageID string    `json:"message_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsBot     bool      `json:"is_bot"`
}

func (m IncomingMessage) AuthorLabel() string {
	return m.Author.Label()
}
