package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

// EmailNotifier sends alerts over SMTP.
type EmailNotifier struct {
	host string
	port int
	user string
	pass string
	to   string
}

var _ Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier creates an SMTP notifier. user doubles as the sender
// address.
func NewEmailNotifier(host string, port int, user, pass, to string) *EmailNotifier {
	return &EmailNotifier{host: host, port: port, user: user, pass: pass, to: to}
}

// Send delivers the alert as a plain-text email.
func (n *EmailNotifier) Send(ctx context.Context, title, message string) error {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Price Tracker <%s>", n.user)
	mail.To = []string{n.to}
	mail.Subject = title
	mail.Text = []byte(message)

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	err := mail.Send(addr, smtp.PlainAuth("", n.user, n.pass, n.host))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		return mail.Send(addr, nil)
	}
	return err
}

// Channel implements Notifier.
func (n *EmailNotifier) Channel() string {
	return "email"
}
