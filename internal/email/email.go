// Package email delivers inspection report emails over SMTP.
package email

import "context"

// Attachment is a file attached to an outgoing email.
type Attachment struct {
	FileName string
	Content  []byte
}

// ReportEmailData holds the fields rendered into the report email.
type ReportEmailData struct {
	ClientName       string
	MissionReference string
	VehicleLabel     string
	Kind             string
	ReportURL        string
	QRCodePNG        []byte
}

// Sender delivers inspection report emails.
type Sender interface {
	SendReportEmail(ctx context.Context, toEmail string, data ReportEmailData, attachments ...Attachment) error
}

// Config provides the SMTP settings for the sender.
type Config interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromAddress() string
	GetEmailFromName() string
	IsEmailEnabled() bool
}

// NewSender returns the configured sender, or a no-op sender when SMTP is
// not configured.
func NewSender(cfg Config) (Sender, error) {
	if !cfg.IsEmailEnabled() {
		return &noopSender{}, nil
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(), cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(), cfg.GetEmailFromName(),
	), nil
}

type noopSender struct{}

func (noopSender) SendReportEmail(_ context.Context, _ string, _ ReportEmailData, _ ...Attachment) error {
	return nil
}
