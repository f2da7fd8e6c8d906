package telegram

import (
	"testing"

	"github.com/mymmrac/telego"

	"github.com/opslane/agentd/internal/canon"
)

func TestReplyToMessageIDAbsent(t *testing.T) {
	dest := canon.Destination{}
	if _, ok := replyToMessageID(dest); ok {
		t.Error("expected no reply when metadata is empty")
	}
}

func TestReplyToMessageIDPresent(t *testing.T) {
	dest := canon.Destination{Metadata: canon.DestinationMetadata{
		PlatformData: map[string]string{"replyToMessageId": "99"},
	}}
	id, ok := replyToMessageID(dest)
	if !ok || id != 99 {
		t.Errorf("got (%d, %v)", id, ok)
	}
}

func TestResolveThreadIDForSendOmitsGeneralTopic(t *testing.T) {
	if got := resolveThreadIDForSend(telegramGeneralTopicID); got != 0 {
		t.Errorf("general topic should resolve to 0, got %d", got)
	}
	if got := resolveThreadIDForSend(42); got != 42 {
		t.Errorf("got %d", got)
	}
}

func TestFlattenCompoundTextJoinsWithBlankLine(t *testing.T) {
	compound := canon.OutboundCompound{Parts: []canon.OutboundContent{
		canon.OutboundText{Text: "first", FormattingHint: canon.FormatMarkdown},
		canon.OutboundText{Text: "second"},
	}}
	text, hint := flattenCompoundText(compound)
	if text != "first\n\nsecond" {
		t.Errorf("text = %q", text)
	}
	if hint != canon.FormatMarkdown {
		t.Errorf("hint = %q", hint)
	}
}

func TestRenderForSendMapsMarkdownAndHTMLToHTMLParseMode(t *testing.T) {
	_, mode := renderForSend("**x**", canon.FormatMarkdown)
	if mode != telego.ModeHTML {
		t.Errorf("markdown parse mode = %q", mode)
	}
	_, mode = renderForSend("<b>x</b>", canon.FormatHTML)
	if mode != telego.ModeHTML {
		t.Errorf("html parse mode = %q", mode)
	}
	_, mode = renderForSend("plain", canon.FormatPlain)
	if mode != "" {
		t.Errorf("plain parse mode = %q, want empty", mode)
	}
}

func TestSendMediaRejectsNonURLSource(t *testing.T) {
	ch := &Channel{}
	_, err := ch.sendMedia(nil, telego.ChatID{}, 0, 0, false, canon.OutboundMedia{
		MediaKind: canon.MediaPhoto,
		Source:    canon.MediaSource{Kind: canon.SourceBytes, Bytes: []byte("x")},
	})
	if err == nil {
		t.Error("expected error for non-url media source")
	}
}
