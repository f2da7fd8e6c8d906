package telegram

import (
	"testing"

	"github.com/mymmrac/telego"

	"github.com/opslane/agentd/internal/canon"
)

func TestParseCommandStripsSlashAndBotSuffix(t *testing.T) {
	cases := []struct {
		text, cmd, args string
	}{
		{"/start", "start", ""},
		{"/settings@mybot dark mode", "settings", "dark mode"},
		{"/help   ", "help", ""},
		{"/echo hello world", "echo", "hello world"},
	}
	for _, c := range cases {
		cmd, args := parseCommand(c.text)
		if cmd != c.cmd || args != c.args {
			t.Errorf("parseCommand(%q) = (%q, %q), want (%q, %q)", c.text, cmd, args, c.cmd, c.args)
		}
	}
}

func TestResolveAuthorFallsBackToUnknown(t *testing.T) {
	a := resolveAuthor(nil)
	if a != canon.UnknownAuthor() {
		t.Errorf("got %+v", a)
	}
}

func TestResolveAuthorMapsFields(t *testing.T) {
	u := &telego.User{ID: 42, Username: "ada", FirstName: "Ada", IsBot: false}
	a := resolveAuthor(u)
	if a.Id != "42" || a.Username != "ada" || a.IsBot {
		t.Errorf("got %+v", a)
	}
}

func TestResolveInboundContentPicksHighestResolutionPhoto(t *testing.T) {
	msg := &telego.Message{
		Caption: "a cat",
		Photo: []telego.PhotoSize{
			{FileID: "small"},
			{FileID: "large"},
		},
	}
	content := resolveInboundContent(msg)
	media, ok := content.(canon.MediaContent)
	if !ok {
		t.Fatalf("got %T", content)
	}
	if media.Reference.Id != "large" || media.MediaKind != canon.MediaPhoto {
		t.Errorf("got %+v", media)
	}
}

func TestResolveInboundContentText(t *testing.T) {
	msg := &telego.Message{Text: "hello"}
	content := resolveInboundContent(msg)
	text, ok := content.(canon.TextContent)
	if !ok || text.Text != "hello" {
		t.Errorf("got %+v", content)
	}
}

func TestConversationTypeForPrivateAndGroup(t *testing.T) {
	if conversationTypeFor("private", 0) != canon.ConversationDirect {
		t.Error("private should map to direct")
	}
	if conversationTypeFor("supergroup", 0) != canon.ConversationGroup {
		t.Error("supergroup with no thread should map to group")
	}
	if conversationTypeFor("supergroup", 9) != canon.ConversationTopic {
		t.Error("supergroup with a non-general thread should map to topic")
	}
	if conversationTypeFor("supergroup", telegramGeneralTopicID) != canon.ConversationGroup {
		t.Error("general topic should still map to group")
	}
}

func TestBuildDestinationCarriesReplyToMessageID(t *testing.T) {
	dest := buildDestination(-100, 0, "group", "My Group", 55)
	if dest.Ref != "-100::" {
		t.Errorf("ref = %q", dest.Ref)
	}
	if dest.Metadata.PlatformData["replyToMessageId"] != "55" {
		t.Errorf("metadata = %+v", dest.Metadata)
	}
}

func TestIsNonMemberAndActiveMemberStatus(t *testing.T) {
	if !isNonMemberStatus("left") || !isNonMemberStatus("kicked") {
		t.Error("left/kicked should be non-member")
	}
	if isNonMemberStatus("member") {
		t.Error("member should not be non-member")
	}
	if !isActiveMemberStatus("member") || !isActiveMemberStatus("administrator") || !isActiveMemberStatus("creator") {
		t.Error("member/administrator/creator should be active")
	}
}
