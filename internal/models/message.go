package models

import "time"

// Message is a single group-chat message submitted for analysis.
type Message struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id,omitempty"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Sender identifies the account that posted the message.
type Sender struct {
	ID          string    `json:"id"`
	Username    string    `json:"username,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	JoinedAt    time.Time `json:"joined_at,omitempty"`
}

// BaselineSnapshot captures a sender's historical posting behavior at the
// moment of analysis. A zero-valued snapshot (TotalMessages == 0) means the
// sender has no usable history and disables all anomaly checks.
type BaselineSnapshot struct {
	AvgMessageLength float64 `json:"avg_message_length"`
	StdMessageLength float64 `json:"std_message_length"`
	TypicalHours     []int   `json:"typical_hours"`
	URLSharingRate   float64 `json:"url_sharing_rate"`
	EmojiUsageRate   float64 `json:"emoji_usage_rate"`
	TotalMessages    int     `json:"total_messages"`
}

// Empty reports whether the snapshot carries no history.
func (b BaselineSnapshot) Empty() bool {
	return b.TotalMessages == 0 && b.AvgMessageLength == 0 &&
		len(b.TypicalHours) == 0 && b.URLSharingRate == 0 && b.EmojiUsageRate == 0
}
