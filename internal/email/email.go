package email

import "context"

// NotificationHeader carries the notification kind, e.g. order_paid.
const NotificationHeader = "X-Verdandi-Notification"

// Email is a composed message ready for a Sender. HTMLBody is optional.
type Email struct {
	To          []string
	From        string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
	Headers     map[string]string
}

// Attachment is an in-memory file, such as an invoice PDF.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Sender delivers a composed message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, email *Email) (string, error)
}
