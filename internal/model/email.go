package model

import "time"

// Outbound email statuses. A row moves pending -> sending -> sent|failed.
const (
	EmailPending = "pending"
	EmailSending = "sending"
	EmailSent    = "sent"
	EmailFailed  = "failed"
)

// OutboundEmail is a queued message. Attachments holds a JSON array of
// Attachment values.
type OutboundEmail struct {
	ID          uint64     `db:"id" json:"id"`
	ToEmail     string     `db:"to_email" json:"to_email"`
	ToName      *string    `db:"to_name" json:"to_name"`
	Subject     string     `db:"subject" json:"subject"`
	Body        string     `db:"body" json:"body"`
	Attachments *string    `db:"attachments" json:"-"`
	Status      string     `db:"status" json:"status"`
	Tries       int        `db:"tries" json:"tries"`
	LastAttempt *time.Time `db:"last_attempt" json:"last_attempt"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Attachment is an inline or regular mail attachment. Content is base64
// encoded; CID is set for images referenced from the HTML body.
type Attachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
	ContentType string `json:"contentType"`
	CID         string `json:"cid,omitempty"`
}
