package domain

import "strings"

// Channel is a delivery medium a subscriber can opt into.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// SubscriberStatus mirrors the status column of the subscriber backend.
type SubscriberStatus string

const (
	StatusActive       SubscriberStatus = "active"
	StatusUnsubscribed SubscriberStatus = "unsubscribed"
)

// Subscriber is a recipient owned by the external sign-up backend.
type Subscriber struct {
	ID       string
	Email    string
	Phone    string
	Channels []Channel
	Status   SubscriberStatus
}

// Active reports whether the subscriber should receive digests.
func (s Subscriber) Active() bool {
	return s.Status == StatusActive
}

// Identifier is the value used in delivery reports.
func (s Subscriber) Identifier() string {
	if s.ID != "" {
		return s.ID
	}
	if s.Email != "" {
		return s.Email
	}
	return s.Phone
}

// DeliveryChannels resolves the opted-in channels; email is implied when
// no preference is stored and an address exists.
func (s Subscriber) DeliveryChannels() []Channel {
	if len(s.Channels) > 0 {
		return s.Channels
	}
	if strings.TrimSpace(s.Email) != "" {
		return []Channel{ChannelEmail}
	}
	return nil
}

// Address returns the contact address for a channel.
func (s Subscriber) Address(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return strings.TrimSpace(s.Email)
	case ChannelSMS:
		return strings.TrimSpace(s.Phone)
	default:
		return ""
	}
}

// Message is one outbound transport request.
type Message struct {
	Recipient string
	Channel   Channel
	Subject   string
	Body      string
}

// DeliveryFailure records why one subscriber did not receive the digest.
type DeliveryFailure struct {
	SubscriberID string
	Reason       string
}

// DeliveryReport summarises one distributor run.
type DeliveryReport struct {
	Attempted int
	Succeeded int
	Failed    int
	Failures  []DeliveryFailure
}
