package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hn-digest/hn-digest-go/internal/aggregate"
)

// telegramMessageCap is Telegram's per-message text limit.
const telegramMessageCap = 4096

// ChatSink is the Chat sink (soft failure): it sends one message per
// Processed Story, built directly from structured data rather than by
// re-parsing the rendered Markdown.
type ChatSink struct {
	bot       *tgbotapi.BotAPI
	chatID    int64
	delay     time.Duration
	batchSize int
}

// NewChatSink creates a ChatSink posting to chatID. Messages go out in
// bursts of batchSize with delay between bursts, pacing the sink under
// Telegram's flood limits.
func NewChatSink(bot *tgbotapi.BotAPI, chatID int64, delay time.Duration, batchSize int) *ChatSink {
	if batchSize < 1 {
		batchSize = 1
	}
	return &ChatSink{bot: bot, chatID: chatID, delay: delay, batchSize: batchSize}
}

// Name identifies this sink for logging.
func (c *ChatSink) Name() string { return "chat" }

// Publish sends one message per story. A single story's send failure is
// logged and the remaining stories are still attempted; Publish then
// reports whether any story failed, which the caller treats as a soft
// failure.
func (c *ChatSink) Publish(ctx context.Context, digest *aggregate.Digest) error {
	var failures int

	for i, story := range digest.Stories {
		msg := tgbotapi.NewMessage(c.chatID, formatStoryMessage(story))
		msg.ParseMode = tgbotapi.ModeMarkdown
		msg.DisableWebPagePreview = false

		if _, err := c.bot.Send(msg); err != nil {
			slog.WarnContext(ctx, "chat message send failed, continuing with next story",
				"story_id", story.StoryID, "error", err)
			failures++
			continue
		}

		if i < len(digest.Stories)-1 && (i+1)%c.batchSize == 0 && c.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.delay):
			}
		}
	}

	if failures > 0 {
		return fmt.Errorf("publish: chat: %d of %d stories failed to send", failures, len(digest.Stories))
	}
	return nil
}

func formatStoryMessage(s aggregate.Story) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*%d. %s*\n", s.Rank, s.TitleChinese)
	fmt.Fprintf(&b, "%s\n\n", s.TitleEnglish)
	fmt.Fprintf(&b, "%s\n\n", s.URL)
	fmt.Fprintf(&b, "%s\n", truncate(s.Description, telegramMessageCap/2))
	if s.CommentSummary != nil && *s.CommentSummary != "" {
		fmt.Fprintf(&b, "\n💬 %s\n", truncate(*s.CommentSummary, telegramMessageCap/4))
	}
	fmt.Fprintf(&b, "\nhttps://news.ycombinator.com/item?id=%d", s.StoryID)

	return truncate(b.String(), telegramMessageCap)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
