package notify

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"stocksync/internal/config"
	"stocksync/internal/domain"
)

// Notifier sends the per-run report email. Every run, successful or
// partially failed, produces exactly one notification; silence is never
// an acceptable outcome of a triggered run.
type Notifier struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
	// send is swappable for tests.
	send func(*gomail.Message) error
}

// NewNotifier creates a notifier over the configured SMTP account.
func NewNotifier(cfg config.SMTPConfig, logger *zap.Logger) *Notifier {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Notifier{
		cfg:    cfg,
		logger: logger,
		send: func(m *gomail.Message) error {
			return dialer.DialAndSend(m)
		},
	}
}

// SendReport emails the run summary, attaching the generated import file
// and images bundle when the run produced them.
func (n *Notifier) SendReport(report *domain.RunReport) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.Username)
	m.SetHeader("To", n.cfg.NotificationEmail)
	m.SetHeader("Subject", Subject(report))
	m.SetBody("text/plain", TextBody(report))
	m.AddAlternative("text/html", HTMLBody(report))

	if report.ImportFilePath != "" {
		m.Attach(report.ImportFilePath)
	}
	if report.ImagesZipPath != "" {
		m.Attach(report.ImagesZipPath)
	}

	if err := n.send(m); err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}
	n.logger.Info("Run report email sent",
		zap.String("run_id", report.RunID),
	)
	return nil
}

// SendErrorNotification is the best-effort last resort used when a run
// dies before producing a report.
func (n *Notifier) SendErrorNotification(message, details string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.Username)
	m.SetHeader("To", n.cfg.NotificationEmail)
	m.SetHeader("Subject", "Inventory sync error - action required")
	m.SetBody("text/plain", errorText(message, details))
	m.AddAlternative("text/html", errorHTML(message, details))

	if err := n.send(m); err != nil {
		return fmt.Errorf("failed to send error notification: %w", err)
	}
	return nil
}

// TestConnection opens and closes an SMTP session without sending.
func (n *Notifier) TestConnection() error {
	dialer := gomail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.Username, n.cfg.Password)
	closer, err := dialer.Dial()
	if err != nil {
		return fmt.Errorf("smtp connection failed: %w", err)
	}
	return closer.Close()
}
