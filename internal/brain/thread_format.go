package brain

import (
	"fmt"
	"strings"
	"time"

	"situationcord.app/relay/internal/model"
)

const noThreadMessages = "No previous messages in this thread."

const contextTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatThreadContext renders context entries as numbered lines for the
// classification prompt, oldest first.
func FormatThreadContext(entries []model.ThreadContextEntry) string {
	if len(entries) == 0 {
		return noThreadMessages
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("[%d] %s%s (%s): %s",
			i+1, e.Author, botLabel(e.IsBot), formatTimestamp(e.Timestamp), promptContent(e.Content))
	}
	return strings.Join(lines, "\n\n")
}

// FormatThreadContextWithIDs renders context entries with explicit message ids
// so the model can reference one of them.
func FormatThreadContextWithIDs(entries []model.ThreadContextEntry) string {
	if len(entries) == 0 {
		return noThreadMessages
	}

	blocks := make([]string, len(entries))
	for i, e := range entries {
		blocks[i] = fmt.Sprintf("Message ID: %s\nAuthor: %s%s\nContent: %s\n---",
			e.MessageID, e.Author, botLabel(e.IsBot), promptContent(e.Content))
	}
	return strings.Join(blocks, "\n\n")
}

func botLabel(isBot bool) string {
	if isBot {
		return " [BOT]"
	}
	return ""
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(contextTimeLayout)
}
