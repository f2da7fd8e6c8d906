// Package canon holds the canonical, platform-neutral content, event and
// intent model: tagged variant types for inbound/outbound content, inbound
// events, outbound intents, and destinations. Every variant carries an
// explicit "type" discriminator on the wire. Inbound content decodes an
// unrecognised tag to Unknown; outbound intents have no Unknown variant, and
// DecodeOutboundIntent returns an error for an unrecognised tag.
package canon

import (
	"encoding/json"
	"fmt"
)

// MediaKind enumerates the inbound/outbound media kinds.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaVoice    MediaKind = "voice"
	MediaDocument MediaKind = "document"
	MediaAnimation MediaKind = "animation"
)

// Reference is an opaque, adapter-owned pointer to a piece of media.
// Only the originating adapter (identified by Platform) may interpret Id.
type Reference struct {
	Platform string `json:"platform"`
	Id       string `json:"id"`
}

// InboundContent is implemented by every inbound content variant. Kind
// returns the wire discriminator.
type InboundContent interface {
	Kind() string
}

type TextContent struct {
	Text string `json:"text"`
}

func (TextContent) Kind() string { return "text" }

type MediaContent struct {
	MediaKind MediaKind  `json:"kind"`
	MimeType  string     `json:"mimeType,omitempty"`
	Filename  string     `json:"filename,omitempty"`
	Size      int64      `json:"size,omitempty"`
	Caption   string     `json:"caption,omitempty"`
	Reference Reference  `json:"reference"`
}

func (MediaContent) Kind() string { return "media" }

type LocationContent struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (LocationContent) Kind() string { return "location" }

type ContactContent struct {
	Phone string `json:"phone"`
	First string `json:"first"`
	Last  string `json:"last,omitempty"`
}

func (ContactContent) Kind() string { return "contact" }

type StickerContent struct {
	Emoji     string    `json:"emoji,omitempty"`
	Reference Reference `json:"reference"`
}

func (StickerContent) Kind() string { return "sticker" }

type PollVoteContent struct {
	PollId   string `json:"pollId"`
	Selected []int  `json:"selected"`
}

func (PollVoteContent) Kind() string { return "poll_vote" }

// UnknownContent is the quarantine variant for content tags this build does
// not recognise. It carries the raw payload through for logging only.
type UnknownContent struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

func (u UnknownContent) Kind() string { return u.Type }

// DecodeInboundContent dispatches on the wire "type" tag to the concrete
// variant. Unrecognised tags decode to UnknownContent rather than failing.
func DecodeInboundContent(raw json.RawMessage) (InboundContent, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("decode content tag: %w", err)
	}
	switch tag.Type {
	case "text":
		var v TextContent
		return v, json.Unmarshal(raw, &v)
	case "media":
		var v MediaContent
		return v, json.Unmarshal(raw, &v)
	case "location":
		var v LocationContent
		return v, json.Unmarshal(raw, &v)
	case "contact":
		var v ContactContent
		return v, json.Unmarshal(raw, &v)
	case "sticker":
		var v StickerContent
		return v, json.Unmarshal(raw, &v)
	case "poll_vote":
		var v PollVoteContent
		return v, json.Unmarshal(raw, &v)
	default:
		return UnknownContent{Type: tag.Type, Raw: raw}, nil
	}
}

// EncodeInboundContent marshals a variant with its "type" discriminator
// attached, regardless of which concrete struct was supplied.
func EncodeInboundContent(c InboundContent) ([]byte, error) {
	return encodeTagged(c.Kind(), c)
}

// FormattingHint selects how OutboundText.Text should be interpreted by the
// target platform.
type FormattingHint string

const (
	FormatPlain    FormattingHint = "plain"
	FormatMarkdown FormattingHint = "markdown"
	FormatHTML     FormattingHint = "html"
)

// OutboundContent is implemented by every outbound content variant.
type OutboundContent interface {
	Kind() string
}

type OutboundText struct {
	Text           string          `json:"text"`
	FormattingHint FormattingHint  `json:"formattingHint,omitempty"`
}

func (OutboundText) Kind() string { return "text" }

// MediaSourceKind distinguishes how outbound media bytes are supplied.
type MediaSourceKind string

const (
	SourceURL    MediaSourceKind = "url"
	SourceBytes  MediaSourceKind = "bytes"
	SourceStream MediaSourceKind = "stream"
)

type MediaSource struct {
	Kind  MediaSourceKind `json:"kind"`
	URL   string          `json:"url,omitempty"`
	Bytes []byte          `json:"bytes,omitempty"`
}

type OutboundMedia struct {
	MediaKind MediaKind   `json:"kind"`
	Source    MediaSource `json:"source"`
	Caption   string      `json:"caption,omitempty"`
	Filename  string      `json:"filename,omitempty"`
}

func (OutboundMedia) Kind() string { return "media" }

type OutboundLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (OutboundLocation) Kind() string { return "location" }

// OutboundCompound bundles several parts (text and/or media) into a single
// logical outbound content value.
type OutboundCompound struct {
	Parts []OutboundContent `json:"parts"`
}

func (OutboundCompound) Kind() string { return "compound" }

// MarshalJSON flattens each part with its own discriminator so decode can
// round-trip.
func (c OutboundCompound) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(c.Parts))
	for _, p := range c.Parts {
		raw, err := EncodeOutboundContent(p)
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	return json.Marshal(struct {
		Type  string            `json:"type"`
		Parts []json.RawMessage `json:"parts"`
	}{Type: "compound", Parts: raws})
}

type UnknownOutboundContent struct {
	Type string
	Raw  json.RawMessage
}

func (u UnknownOutboundContent) Kind() string { return u.Type }

// DecodeOutboundContent mirrors DecodeInboundContent for the outbound side.
func DecodeOutboundContent(raw json.RawMessage) (OutboundContent, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("decode outbound content tag: %w", err)
	}
	switch tag.Type {
	case "text":
		var v OutboundText
		return v, json.Unmarshal(raw, &v)
	case "media":
		var v OutboundMedia
		return v, json.Unmarshal(raw, &v)
	case "location":
		var v OutboundLocation
		return v, json.Unmarshal(raw, &v)
	case "compound":
		var wire struct {
			Parts []json.RawMessage `json:"parts"`
		}
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		parts := make([]OutboundContent, 0, len(wire.Parts))
		for _, p := range wire.Parts {
			part, err := DecodeOutboundContent(p)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
		return OutboundCompound{Parts: parts}, nil
	default:
		return UnknownOutboundContent{Type: tag.Type, Raw: raw}, nil
	}
}

// EncodeOutboundContent marshals a variant with its discriminator attached.
func EncodeOutboundContent(c OutboundContent) ([]byte, error) {
	if compound, ok := c.(OutboundCompound); ok {
		return compound.MarshalJSON()
	}
	return encodeTagged(c.Kind(), c)
}

// encodeTagged marshals v and splices in a "type" field carrying tag,
// without requiring every variant struct to declare its own Type field.
func encodeTagged(tag string, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	tagRaw, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}
	m["type"] = tagRaw
	return json.Marshal(m)
}
