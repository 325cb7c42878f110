package models

import (
	"time"
)

type QueueStatus string

const (
	QueueStatusPending QueueStatus = "pending"
	QueueStatusSending QueueStatus = "sending"
	QueueStatusSent    QueueStatus = "sent"
	QueueStatusFailed  QueueStatus = "failed"
)

// QueueEntry is one outbound message job in the durable backlog. Entries move
// pending -> sending -> sent|failed and are never deleted by the dispatch
// core; the admin surface owns purging.
type QueueEntry struct {
	ID               int64       `db:"id" json:"id"`
	ClientID         *int64      `db:"client_id" json:"clientId,omitempty"`
	Destination      string      `db:"destination" json:"destination"`
	Body             string      `db:"body" json:"body"`
	Template         *string     `db:"template" json:"template,omitempty"`
	Status           QueueStatus `db:"status" json:"status"`
	Attempts         int         `db:"attempts" json:"attempts"`
	ScheduledAt      *time.Time  `db:"scheduled_at" json:"scheduledAt,omitempty"`
	ChannelMessageID *string     `db:"channel_message_id" json:"channelMessageId,omitempty"`
	LastError        *string     `db:"last_error" json:"lastError,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updatedAt"`

	// ClientName is populated only by listing queries that join the
	// clients table, for observability.
	ClientName string `db:"client_name" json:"clientName,omitempty"`
}

// RunSummary reports the outcome of one dispatch run.
type RunSummary struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

func (s RunSummary) Total() int {
	return s.Sent + s.Failed + s.Skipped
}

func (s *RunSummary) Add(other RunSummary) {
	s.Sent += other.Sent
	s.Failed += other.Failed
	s.Skipped += other.Skipped
}
