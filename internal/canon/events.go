package canon

import (
	"encoding/json"
	"fmt"
)

// InboundEvent is implemented by every inbound event variant. Every
// variant carries Origin (the destination it arrived on), an optional
// Author, and a millisecond timestamp.
type InboundEvent interface {
	Kind() string
	EventOrigin() Destination
	EventTimestampMs() int64
}

type baseInbound struct {
	Origin      Destination `json:"origin"`
	Author      *Author     `json:"author,omitempty"`
	TimestampMs int64       `json:"timestampMs"`
}

func (b baseInbound) EventOrigin() Destination { return b.Origin }
func (b baseInbound) EventTimestampMs() int64  { return b.TimestampMs }

type MessageReceived struct {
	baseInbound
	Content InboundContent `json:"-"`
}

func (MessageReceived) Kind() string { return "message_received" }

type MessageEdited struct {
	baseInbound
	Content InboundContent `json:"-"`
	EditedMessageRef string `json:"editedMessageRef"`
}

func (MessageEdited) Kind() string { return "message_edited" }

type MessageDeleted struct {
	baseInbound
	DeletedMessageRef string `json:"deletedMessageRef"`
}

func (MessageDeleted) Kind() string { return "message_deleted" }

type ReactionAdded struct {
	baseInbound
	Emoji      string `json:"emoji"`
	MessageRef string `json:"messageRef"`
}

func (ReactionAdded) Kind() string { return "reaction_added" }

type ReactionRemoved struct {
	baseInbound
	Emoji      string `json:"emoji"`
	MessageRef string `json:"messageRef"`
}

func (ReactionRemoved) Kind() string { return "reaction_removed" }

type CommandReceived struct {
	baseInbound
	Command string `json:"command"`
	Args    string `json:"args"`
}

func (CommandReceived) Kind() string { return "command_received" }

type CallbackReceived struct {
	baseInbound
	CallbackId string `json:"callbackId"`
	Data       string `json:"data"`
}

func (CallbackReceived) Kind() string { return "callback_received" }

type ConversationStarted struct {
	baseInbound
}

func (ConversationStarted) Kind() string { return "conversation_started" }

type MemberJoined struct {
	baseInbound
}

func (MemberJoined) Kind() string { return "member_joined" }

type MemberLeft struct {
	baseInbound
}

func (MemberLeft) Kind() string { return "member_left" }

// UnknownEvent quarantines an inbound event tag this build does not
// recognise.
type UnknownEvent struct {
	baseInbound
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

func (u UnknownEvent) Kind() string { return u.Type }

// eventWire is the on-the-wire shape shared by every inbound event variant;
// Content is kept raw so each variant can decode it through
// DecodeInboundContent.
type eventWire struct {
	Type        string          `json:"type"`
	Origin      Destination     `json:"origin"`
	Author      *Author         `json:"author,omitempty"`
	TimestampMs int64           `json:"timestampMs"`
	Content     json.RawMessage `json:"content,omitempty"`
	Command     string          `json:"command,omitempty"`
	Args        string          `json:"args,omitempty"`
	CallbackId  string          `json:"callbackId,omitempty"`
	Data        string          `json:"data,omitempty"`
	MessageRef  string          `json:"messageRef,omitempty"`
	Emoji       string          `json:"emoji,omitempty"`
	EditedMessageRef  string    `json:"editedMessageRef,omitempty"`
	DeletedMessageRef string    `json:"deletedMessageRef,omitempty"`
}

// DecodeInboundEvent dispatches on the wire "type" tag. Unrecognised tags
// decode to UnknownEvent and are logged by the caller rather than rejected.
func DecodeInboundEvent(raw json.RawMessage) (InboundEvent, error) {
	var w eventWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	base := baseInbound{Origin: w.Origin, Author: w.Author, TimestampMs: w.TimestampMs}

	decodeContent := func() (InboundContent, error) {
		if len(w.Content) == 0 {
			return nil, nil
		}
		return DecodeInboundContent(w.Content)
	}

	switch w.Type {
	case "message_received":
		c, err := decodeContent()
		if err != nil {
			return nil, err
		}
		return MessageReceived{baseInbound: base, Content: c}, nil
	case "message_edited":
		c, err := decodeContent()
		if err != nil {
			return nil, err
		}
		return MessageEdited{baseInbound: base, Content: c, EditedMessageRef: w.EditedMessageRef}, nil
	case "message_deleted":
		return MessageDeleted{baseInbound: base, DeletedMessageRef: w.DeletedMessageRef}, nil
	case "reaction_added":
		return ReactionAdded{baseInbound: base, Emoji: w.Emoji, MessageRef: w.MessageRef}, nil
	case "reaction_removed":
		return ReactionRemoved{baseInbound: base, Emoji: w.Emoji, MessageRef: w.MessageRef}, nil
	case "command_received":
		return CommandReceived{baseInbound: base, Command: w.Command, Args: w.Args}, nil
	case "callback_received":
		return CallbackReceived{baseInbound: base, CallbackId: w.CallbackId, Data: w.Data}, nil
	case "conversation_started":
		return ConversationStarted{baseInbound: base}, nil
	case "member_joined":
		return MemberJoined{baseInbound: base}, nil
	case "member_left":
		return MemberLeft{baseInbound: base}, nil
	default:
		return UnknownEvent{baseInbound: base, Type: w.Type, Raw: raw}, nil
	}
}

// EncodeInboundEvent marshals any event variant into its wire shape.
func EncodeInboundEvent(e InboundEvent) ([]byte, error) {
	w := eventWire{
		Type:        e.Kind(),
		Origin:      e.EventOrigin(),
		TimestampMs: e.EventTimestampMs(),
	}
	switch v := e.(type) {
	case MessageReceived:
		w.Author = v.Author
		if v.Content != nil {
			raw, err := EncodeInboundContent(v.Content)
			if err != nil {
				return nil, err
			}
			w.Content = raw
		}
	case MessageEdited:
		w.Author = v.Author
		w.EditedMessageRef = v.EditedMessageRef
		if v.Content != nil {
			raw, err := EncodeInboundContent(v.Content)
			if err != nil {
				return nil, err
			}
			w.Content = raw
		}
	case MessageDeleted:
		w.Author = v.Author
		w.DeletedMessageRef = v.DeletedMessageRef
	case ReactionAdded:
		w.Author = v.Author
		w.Emoji = v.Emoji
		w.MessageRef = v.MessageRef
	case ReactionRemoved:
		w.Author = v.Author
		w.Emoji = v.Emoji
		w.MessageRef = v.MessageRef
	case CommandReceived:
		w.Author = v.Author
		w.Command = v.Command
		w.Args = v.Args
	case CallbackReceived:
		w.Author = v.Author
		w.CallbackId = v.CallbackId
		w.Data = v.Data
	case ConversationStarted:
		w.Author = v.Author
	case MemberJoined:
		w.Author = v.Author
	case MemberLeft:
		w.Author = v.Author
	case UnknownEvent:
		return v.Raw, nil
	}
	return json.Marshal(w)
}
