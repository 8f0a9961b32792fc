// Package alert delivers operational alerts, primarily circuit-breaker
// trips from the embedding layer.
package alert

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/soundprediction/studygraph/pkg/config"
)

// Alerter notifies operators of a degraded backend, such as the
// embedding provider tripping its circuit breaker.
type Alerter interface {
	Alert(subject, message string) error
}

// EmailAlerter sends notifications over SMTP to the addresses in the
// alert config.
type EmailAlerter struct {
	cfg config.AlertConfig
}

func NewEmailAlerter(cfg config.AlertConfig) *EmailAlerter {
	return &EmailAlerter{
		cfg: cfg,
	}
}

// Alert emails the configured recipients. A disabled config makes it
// a no-op, so builds and retrievals never block on mail delivery.
func (a *EmailAlerter) Alert(subject, message string) error {
	if !a.cfg.Enabled {
		return nil
	}

	auth := smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)

	to := a.cfg.To
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", strings.Join(to, ","), subject, message))

	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)

	if err := smtp.SendMail(addr, auth, a.cfg.From, to, msg); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	return nil
}

// NoOpAlerter discards alerts. It stands in when alerting is turned
// off so the circuit breaker can always assume an Alerter is present.
type NoOpAlerter struct{}

func (n *NoOpAlerter) Alert(subject, message string) error {
	return nil
}
