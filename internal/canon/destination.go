package canon

// ConversationType enumerates the destination metadata kinds.
type ConversationType string

const (
	ConversationDirect  ConversationType = "direct"
	ConversationGroup   ConversationType = "group"
	ConversationChannel ConversationType = "channel"
	ConversationThread  ConversationType = "thread"
	ConversationTopic   ConversationType = "topic"
)

// Author identifies the sender of an inbound event.
type Author struct {
	Id          string `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	IsBot       bool   `json:"isBot"`
}

// UnknownAuthor is the fallback author used when an update carries no
// identifiable sender.
func UnknownAuthor() Author {
	return Author{Id: "unknown", IsBot: false}
}

// DestinationMetadata carries conversational context alongside a Ref.
type DestinationMetadata struct {
	ConversationType   ConversationType  `json:"conversationType"`
	Title              string            `json:"title,omitempty"`
	ParticipantCount   int               `json:"participantCount,omitempty"`
	PlatformData       map[string]string `json:"platformData,omitempty"`
}

// Destination is a channel-scoped routing token plus conversational
// metadata. Ref is opaque outside the owning adapter.
type Destination struct {
	ChannelId string              `json:"channelId"`
	Ref       string              `json:"ref"`
	Metadata  DestinationMetadata `json:"metadata"`
}
