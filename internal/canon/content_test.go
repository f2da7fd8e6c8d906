package canon

import (
	"encoding/json"
	"testing"
)

func TestInboundContentRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   InboundContent
	}{
		{"text", TextContent{Text: "hello"}},
		{"media", MediaContent{MediaKind: MediaPhoto, Size: 50000, Caption: "Photo caption", Reference: Reference{Platform: "telegram", Id: "large"}}},
		{"location", LocationContent{Lat: 1.5, Lng: -2.5}},
		{"contact", ContactContent{Phone: "+1", First: "Ada"}},
		{"sticker", StickerContent{Emoji: "😀", Reference: Reference{Platform: "telegram", Id: "s1"}}},
		{"poll_vote", PollVoteContent{PollId: "p1", Selected: []int{0, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := EncodeInboundContent(tt.in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := DecodeInboundContent(raw)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Kind() != tt.in.Kind() {
				t.Errorf("kind = %q, want %q", got.Kind(), tt.in.Kind())
			}
		})
	}
}

func TestDecodeInboundContentUnknown(t *testing.T) {
	raw := json.RawMessage(`{"type":"future_variant","foo":"bar"}`)
	got, err := DecodeInboundContent(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	uc, ok := got.(UnknownContent)
	if !ok {
		t.Fatalf("got %T, want UnknownContent", got)
	}
	if uc.Kind() != "future_variant" {
		t.Errorf("kind = %q", uc.Kind())
	}
}

func TestPhotoMappingExample(t *testing.T) {
	// Photo inbound content should round-trip the highest-resolution variant.
	content := MediaContent{
		MediaKind: MediaPhoto,
		Size:      50000,
		Caption:   "Photo caption",
		Reference: Reference{Platform: "telegram", Id: "large"},
	}
	raw, err := EncodeInboundContent(content)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeInboundContent(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	mc, ok := decoded.(MediaContent)
	if !ok {
		t.Fatalf("got %T", decoded)
	}
	if mc.Size != 50000 || mc.Reference.Id != "large" || mc.Caption != "Photo caption" {
		t.Errorf("unexpected media content: %+v", mc)
	}
}
