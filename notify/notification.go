package notify

import "time"

// Type classifies what happened to the account.
type Type string

const (
	TypeReply   Type = "reply"
	TypeMention Type = "mention"
	TypeUpvote  Type = "upvote"
	TypeFollow  Type = "follow"
	TypeReshare Type = "reshare"
)

// Notification is one derived feed entry.
type Notification struct {
	Type      Type      `json:"type"`
	Actor     string    `json:"actor"`
	Subject   string    `json:"subject"`
	Permlink  string    `json:"permlink,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Key is the notification's stable identity: type, actor and subject.
// Re-scans of overlapping history windows collapse onto the same key,
// and read flags survive a feed rebuild because they attach to it.
func (n Notification) Key() string {
	return string(n.Type) + "|" + n.Actor + "|" + n.Subject
}
