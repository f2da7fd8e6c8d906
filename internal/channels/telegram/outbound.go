package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/time/rate"

	"github.com/opslane/agentd/internal/canon"
	"github.com/opslane/agentd/internal/channels"
)

// Process dispatches intent by kind: thinking/streaming/tool-call become a
// debounced typing indicator, agent_responding sends text or media,
// agent_error sends a styled warning message.
func (c *Channel) Process(ctx context.Context, intent canon.OutboundIntent) (channels.Confirmation, error) {
	loc, err := decodeRef(intent.IntentDestination().Ref)
	if err != nil {
		return channels.Confirmation{}, fmt.Errorf("telegram: %w", err)
	}
	chatIDObj := tu.ID(loc.chatID)
	threadID := parseThreadSegment(loc.threadID)

	switch v := intent.(type) {
	case canon.AgentThinking, canon.AgentStreaming, canon.AgentToolCall:
		return c.sendTypingAction(ctx, loc.chatID, chatIDObj, threadID)
	case canon.AgentResponding:
		replyTo, hasReply := replyToMessageID(intent.IntentDestination())
		return c.sendResponse(ctx, chatIDObj, threadID, replyTo, hasReply, v.Content)
	case canon.AgentError:
		return c.sendErrorMessage(ctx, chatIDObj, threadID, v)
	default:
		return channels.Confirmation{}, fmt.Errorf("telegram: unsupported intent kind %q", intent.Kind())
	}
}

func parseThreadSegment(s string) int {
	if s == "" {
		return 0
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return id
}

// resolveThreadIDForSend omits the General topic: Telegram rejects send
// calls that explicitly target thread id 1.
func resolveThreadIDForSend(threadID int) int {
	if threadID == telegramGeneralTopicID {
		return 0
	}
	return threadID
}

func replyToMessageID(dest canon.Destination) (int, bool) {
	if dest.Metadata.PlatformData == nil {
		return 0, false
	}
	raw, ok := dest.Metadata.PlatformData["replyToMessageId"]
	if !ok || raw == "" {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (c *Channel) sendTypingAction(ctx context.Context, chatID int64, chatIDObj telego.ChatID, threadID int) (channels.Confirmation, error) {
	key := strconv.FormatInt(chatID, 10)
	limiterVal, _ := c.typingLimiters.LoadOrStore(key, rate.NewLimiter(rate.Every(typingDebounce), 1))
	limiter := limiterVal.(*rate.Limiter)
	if !limiter.Allow() {
		return channels.Confirmation{Success: true}, nil
	}

	action := tu.ChatAction(chatIDObj, telego.ChatActionTyping)
	if sendThread := resolveThreadIDForSend(threadID); sendThread != 0 {
		action.MessageThreadID = sendThread
	}
	if err := c.bot.SendChatAction(ctx, action); err != nil {
		return channels.Confirmation{Success: false, Err: err}, err
	}
	return channels.Confirmation{Success: true}, nil
}

func (c *Channel) sendResponse(ctx context.Context, chatIDObj telego.ChatID, threadID int, replyTo int, hasReply bool, content canon.OutboundContent) (channels.Confirmation, error) {
	switch v := content.(type) {
	case canon.OutboundMedia:
		return c.sendMedia(ctx, chatIDObj, threadID, replyTo, hasReply, v)
	case canon.OutboundCompound:
		text, hint := flattenCompoundText(v)
		return c.sendText(ctx, chatIDObj, threadID, replyTo, hasReply, text, hint)
	case canon.OutboundText:
		return c.sendText(ctx, chatIDObj, threadID, replyTo, hasReply, v.Text, v.FormattingHint)
	default:
		return channels.Confirmation{}, fmt.Errorf("telegram: unsupported outbound content kind %q", content.Kind())
	}
}

// flattenCompoundText concatenates every text part with a blank-line
// separator; the formatting hint of the first text part wins.
func flattenCompoundText(c canon.OutboundCompound) (string, canon.FormattingHint) {
	var texts []string
	hint := canon.FormatPlain
	hintSet := false
	for _, part := range c.Parts {
		if t, ok := part.(canon.OutboundText); ok {
			texts = append(texts, t.Text)
			if !hintSet {
				hint = t.FormattingHint
				hintSet = true
			}
		}
	}
	return strings.Join(texts, "\n\n"), hint
}

// renderForSend maps a formatting hint onto the Telegram HTML parse mode.
// Markdown is converted through the hand-rolled HTML-subset sanitizer
// rather than sent as raw MarkdownV2, which avoids MarkdownV2's brittle
// escaping rules for arbitrary agent-composed text.
func renderForSend(text string, hint canon.FormattingHint) (body string, parseMode string) {
	switch hint {
	case canon.FormatMarkdown:
		return markdownToTelegramHTML(text), telego.ModeHTML
	case canon.FormatHTML:
		return sanitizeHTMLSubset(text), telego.ModeHTML
	default:
		return text, ""
	}
}

func (c *Channel) sendText(ctx context.Context, chatIDObj telego.ChatID, threadID int, replyTo int, hasReply bool, text string, hint canon.FormattingHint) (channels.Confirmation, error) {
	body, parseMode := renderForSend(text, hint)

	msg := tu.Message(chatIDObj, body)
	if parseMode != "" {
		msg.ParseMode = parseMode
	}
	if sendThread := resolveThreadIDForSend(threadID); sendThread != 0 {
		msg.MessageThreadID = sendThread
	}
	if hasReply {
		msg.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo}
	}

	sent, err := c.bot.SendMessage(ctx, msg)
	if err != nil {
		return channels.Confirmation{Success: false, Err: err}, err
	}
	return channels.Confirmation{Success: true, MessageId: strconv.Itoa(sent.MessageID)}, nil
}

func (c *Channel) sendErrorMessage(ctx context.Context, chatIDObj telego.ChatID, threadID int, e canon.AgentError) (channels.Confirmation, error) {
	msg := tu.Message(chatIDObj, "⚠ "+e.Error)
	if sendThread := resolveThreadIDForSend(threadID); sendThread != 0 {
		msg.MessageThreadID = sendThread
	}
	sent, err := c.bot.SendMessage(ctx, msg)
	if err != nil {
		return channels.Confirmation{Success: false, Err: err}, err
	}
	return channels.Confirmation{Success: true, MessageId: strconv.Itoa(sent.MessageID)}, nil
}

// sendMedia dispatches agent_responding media content by kind. Only URL
// sources are supported; bytes/stream sources are out of scope and fail
// with a clear error.
func (c *Channel) sendMedia(ctx context.Context, chatIDObj telego.ChatID, threadID int, replyTo int, hasReply bool, media canon.OutboundMedia) (channels.Confirmation, error) {
	if media.Source.Kind != canon.SourceURL {
		err := fmt.Errorf("telegram: outbound media source %q unsupported, only url sources are", media.Source.Kind)
		return channels.Confirmation{Success: false, Err: err}, err
	}

	file := tu.FileFromURL(media.Source.URL)
	sendThread := resolveThreadIDForSend(threadID)
	var reply *telego.ReplyParameters
	if hasReply {
		reply = &telego.ReplyParameters{MessageID: replyTo}
	}

	var sent *telego.Message
	var err error

	switch media.MediaKind {
	case canon.MediaPhoto:
		p := tu.Photo(chatIDObj, file)
		p.Caption = media.Caption
		p.MessageThreadID = sendThread
		p.ReplyParameters = reply
		sent, err = c.bot.SendPhoto(ctx, p)
	case canon.MediaVideo:
		p := tu.Video(chatIDObj, file)
		p.Caption = media.Caption
		p.MessageThreadID = sendThread
		p.ReplyParameters = reply
		sent, err = c.bot.SendVideo(ctx, p)
	case canon.MediaAudio:
		p := tu.Audio(chatIDObj, file)
		p.Caption = media.Caption
		p.MessageThreadID = sendThread
		p.ReplyParameters = reply
		sent, err = c.bot.SendAudio(ctx, p)
	case canon.MediaVoice:
		p := tu.Voice(chatIDObj, file)
		p.Caption = media.Caption
		p.MessageThreadID = sendThread
		p.ReplyParameters = reply
		sent, err = c.bot.SendVoice(ctx, p)
	case canon.MediaDocument:
		p := tu.Document(chatIDObj, file)
		p.Caption = media.Caption
		p.MessageThreadID = sendThread
		p.ReplyParameters = reply
		sent, err = c.bot.SendDocument(ctx, p)
	case canon.MediaAnimation:
		p := tu.Animation(chatIDObj, file)
		p.Caption = media.Caption
		p.MessageThreadID = sendThread
		p.ReplyParameters = reply
		sent, err = c.bot.SendAnimation(ctx, p)
	default:
		err = fmt.Errorf("telegram: unsupported outbound media kind %q", media.MediaKind)
	}

	if err != nil {
		return channels.Confirmation{Success: false, Err: err}, err
	}
	return channels.Confirmation{Success: true, MessageId: strconv.Itoa(sent.MessageID)}, nil
}
