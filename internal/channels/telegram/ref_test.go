package telegram

import "testing"

func TestEncodeDecodeRefRoundTrip(t *testing.T) {
	s := encodeRef(-1009, "7", "42")
	got, err := decodeRef(s)
	if err != nil {
		t.Fatal(err)
	}
	if got.chatID != -1009 || got.threadID != "7" || got.messageID != "42" {
		t.Errorf("got %+v", got)
	}
}

func TestDecodeRefRetainsEmptySegments(t *testing.T) {
	got, err := decodeRef("55::")
	if err != nil {
		t.Fatal(err)
	}
	if got.chatID != 55 || got.threadID != "" || got.messageID != "" {
		t.Errorf("got %+v", got)
	}
}

func TestDecodeRefRejectsWrongColonCount(t *testing.T) {
	cases := []string{"55", "55:1", "55:1:2:3", ""}
	for _, c := range cases {
		if _, err := decodeRef(c); err == nil {
			t.Errorf("decodeRef(%q): expected error", c)
		}
	}
}

func TestDecodeRefRejectsNonIntegerChatID(t *testing.T) {
	if _, err := decodeRef("abc::"); err == nil {
		t.Error("expected error for non-integer chatId")
	}
}

func TestRoutingRefExcludesMessageID(t *testing.T) {
	got := routingRef(-100, "3")
	if got != "-100:3:" {
		t.Errorf("routingRef = %q", got)
	}
}
