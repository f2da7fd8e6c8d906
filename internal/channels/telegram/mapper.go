package telegram

import (
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/opslane/agentd/internal/canon"
)

// telegramGeneralTopicID is the fixed topic id Telegram assigns to a forum
// supergroup's default "General" topic; it is never carried explicitly.
const telegramGeneralTopicID = 1

// mapUpdate dispatches a raw platform update to its canonical inbound
// event. The second return value is false for updates with no canonical
// representation (e.g. a callback with no originating message).
func mapUpdate(update telego.Update) (canon.InboundEvent, bool) {
	now := time.Now().UnixMilli()
	switch {
	case update.Message != nil:
		return mapMessage(update.Message, false, now), true
	case update.EditedMessage != nil:
		return mapMessage(update.EditedMessage, true, now), true
	case update.CallbackQuery != nil:
		return mapCallback(update.CallbackQuery, now)
	case update.MyChatMember != nil:
		return mapMembership(update.MyChatMember, now)
	case update.ChatMember != nil:
		return mapMembership(update.ChatMember, now)
	default:
		return nil, false
	}
}

func mapMessage(msg *telego.Message, edited bool, now int64) canon.InboundEvent {
	threadID := resolveThreadID(msg)
	origin := buildDestination(msg.Chat.ID, threadID, msg.Chat.Type, msg.Chat.Title, msg.MessageID)
	author := resolveAuthor(msg.From)
	ts := now
	if msg.Date != 0 {
		ts = int64(msg.Date) * 1000
	}

	if !edited && strings.HasPrefix(msg.Text, "/") {
		cmd, args := parseCommand(msg.Text)
		ev := canon.CommandReceived{Command: cmd, Args: args}
		ev.Origin = origin
		ev.Author = &author
		ev.TimestampMs = ts
		return ev
	}

	content := resolveInboundContent(msg)
	if edited {
		ev := canon.MessageEdited{
			Content:          content,
			EditedMessageRef: encodeRef(msg.Chat.ID, threadSegment(threadID), strconv.Itoa(msg.MessageID)),
		}
		ev.Origin = origin
		ev.Author = &author
		ev.TimestampMs = ts
		return ev
	}

	ev := canon.MessageReceived{Content: content}
	ev.Origin = origin
	ev.Author = &author
	ev.TimestampMs = ts
	return ev
}

func mapCallback(cb *telego.CallbackQuery, now int64) (canon.InboundEvent, bool) {
	chatID, messageID, threadID, ok := callbackOriginChat(cb.Message)
	if !ok {
		return nil, false
	}
	origin := buildDestination(chatID, threadID, "", "", messageID)
	author := resolveAuthor(&cb.From)

	ev := canon.CallbackReceived{CallbackId: cb.ID, Data: cb.Data}
	ev.Origin = origin
	ev.Author = &author
	ev.TimestampMs = now
	return ev, true
}

// callbackOriginChat resolves the chat/message/thread a callback query's
// originating message belongs to. Telegram can deliver a callback whose
// message is no longer accessible (or absent entirely, e.g. from an inline
// message); such callbacks carry no destination and are dropped by the
// caller.
func callbackOriginChat(msg interface{}) (chatID int64, messageID int, threadID int, ok bool) {
	m, matched := msg.(*telego.Message)
	if !matched || m == nil {
		return 0, 0, 0, false
	}
	return m.Chat.ID, m.MessageID, resolveThreadID(m), true
}

// chatMemberStatus is implemented by every telego.ChatMember concrete
// variant (owner, administrator, member, restricted, left, banned).
type chatMemberStatus interface {
	MemberStatus() string
}

func memberStatus(m telego.ChatMember) string {
	if m == nil {
		return ""
	}
	if s, ok := m.(chatMemberStatus); ok {
		return s.MemberStatus()
	}
	return ""
}

func isNonMemberStatus(status string) bool {
	return status == "left" || status == "kicked"
}

func isActiveMemberStatus(status string) bool {
	return status == "member" || status == "administrator" || status == "creator"
}

// mapMembership reports conversation_started only on a transition from
// non-member (left/kicked) into an active member status; every other
// transition (e.g. member → administrator, or one non-member status to
// another) is not a conversation start and is ignored.
func mapMembership(cmu *telego.ChatMemberUpdated, now int64) (canon.InboundEvent, bool) {
	oldStatus := memberStatus(cmu.OldChatMember)
	newStatus := memberStatus(cmu.NewChatMember)
	if !isNonMemberStatus(oldStatus) || !isActiveMemberStatus(newStatus) {
		return nil, false
	}

	origin := buildDestination(cmu.Chat.ID, 0, cmu.Chat.Type, cmu.Chat.Title, 0)
	author := resolveAuthor(&cmu.From)

	ev := canon.ConversationStarted{}
	ev.Origin = origin
	ev.Author = &author
	ev.TimestampMs = now
	return ev, true
}

// parseCommand strips the leading slash, trims at the first space, and
// removes an optional "@bot" suffix from the command head; args is the
// trimmed remainder.
func parseCommand(text string) (cmd, args string) {
	body := strings.TrimPrefix(text, "/")
	head := body
	if sp := strings.IndexByte(body, ' '); sp >= 0 {
		head = body[:sp]
		args = strings.TrimSpace(body[sp+1:])
	}
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return head, args
}

func resolveAuthor(u *telego.User) canon.Author {
	if u == nil {
		return canon.UnknownAuthor()
	}
	return canon.Author{
		Id:          strconv.FormatInt(u.ID, 10),
		Username:    u.Username,
		DisplayName: strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName)),
		IsBot:       u.IsBot,
	}
}

// resolveThreadID returns the forum topic id for msg, 0 for non-forum
// chats, and telegramGeneralTopicID when a forum message carries no
// explicit thread (the General topic).
func resolveThreadID(msg *telego.Message) int {
	if msg == nil || !msg.Chat.IsForum {
		return 0
	}
	if msg.MessageThreadID == 0 {
		return telegramGeneralTopicID
	}
	return msg.MessageThreadID
}

func threadSegment(threadID int) string {
	if threadID == 0 {
		return ""
	}
	return strconv.Itoa(threadID)
}

func conversationTypeFor(chatType string, threadID int) canon.ConversationType {
	switch chatType {
	case "private":
		return canon.ConversationDirect
	case "channel":
		return canon.ConversationChannel
	case "group", "supergroup":
		if threadID != 0 && threadID != telegramGeneralTopicID {
			return canon.ConversationTopic
		}
		return canon.ConversationGroup
	default:
		return canon.ConversationGroup
	}
}

// buildDestination builds the routing-grade destination for chatID: the
// ref excludes the message id, which travels instead in
// metadata.platformData.replyToMessageId for reply construction.
func buildDestination(chatID int64, threadID int, chatType, title string, messageID int) canon.Destination {
	meta := canon.DestinationMetadata{
		ConversationType: conversationTypeFor(chatType, threadID),
		Title:            title,
	}
	if messageID != 0 {
		meta.PlatformData = map[string]string{"replyToMessageId": strconv.Itoa(messageID)}
	}
	return canon.Destination{
		ChannelId: "telegram",
		Ref:       routingRef(chatID, threadSegment(threadID)),
		Metadata:  meta,
	}
}

// resolveInboundContent maps a message's payload to the canonical content
// model, preferring the highest-resolution photo size when several are
// offered.
func resolveInboundContent(msg *telego.Message) canon.InboundContent {
	switch {
	case len(msg.Photo) > 0:
		photo := msg.Photo[len(msg.Photo)-1]
		return canon.MediaContent{
			MediaKind: canon.MediaPhoto,
			Size:      int64(photo.FileSize),
			Caption:   msg.Caption,
			Reference: canon.Reference{Platform: "telegram", Id: photo.FileID},
		}
	case msg.Video != nil:
		return canon.MediaContent{
			MediaKind: canon.MediaVideo,
			MimeType:  msg.Video.MimeType,
			Filename:  msg.Video.FileName,
			Size:      int64(msg.Video.FileSize),
			Caption:   msg.Caption,
			Reference: canon.Reference{Platform: "telegram", Id: msg.Video.FileID},
		}
	case msg.Animation != nil:
		return canon.MediaContent{
			MediaKind: canon.MediaAnimation,
			MimeType:  msg.Animation.MimeType,
			Filename:  msg.Animation.FileName,
			Size:      int64(msg.Animation.FileSize),
			Caption:   msg.Caption,
			Reference: canon.Reference{Platform: "telegram", Id: msg.Animation.FileID},
		}
	case msg.Audio != nil:
		return canon.MediaContent{
			MediaKind: canon.MediaAudio,
			MimeType:  msg.Audio.MimeType,
			Filename:  msg.Audio.FileName,
			Size:      int64(msg.Audio.FileSize),
			Caption:   msg.Caption,
			Reference: canon.Reference{Platform: "telegram", Id: msg.Audio.FileID},
		}
	case msg.Voice != nil:
		return canon.MediaContent{
			MediaKind: canon.MediaVoice,
			MimeType:  msg.Voice.MimeType,
			Size:      int64(msg.Voice.FileSize),
			Caption:   msg.Caption,
			Reference: canon.Reference{Platform: "telegram", Id: msg.Voice.FileID},
		}
	case msg.Document != nil:
		return canon.MediaContent{
			MediaKind: canon.MediaDocument,
			MimeType:  msg.Document.MimeType,
			Filename:  msg.Document.FileName,
			Size:      int64(msg.Document.FileSize),
			Caption:   msg.Caption,
			Reference: canon.Reference{Platform: "telegram", Id: msg.Document.FileID},
		}
	case msg.Sticker != nil:
		return canon.StickerContent{
			Emoji:     msg.Sticker.Emoji,
			Reference: canon.Reference{Platform: "telegram", Id: msg.Sticker.FileID},
		}
	case msg.Location != nil:
		return canon.LocationContent{Lat: msg.Location.Latitude, Lng: msg.Location.Longitude}
	case msg.Contact != nil:
		return canon.ContactContent{
			Phone: msg.Contact.PhoneNumber,
			First: msg.Contact.FirstName,
			Last:  msg.Contact.LastName,
		}
	case msg.Text != "":
		return canon.TextContent{Text: msg.Text}
	default:
		return nil
	}
}
