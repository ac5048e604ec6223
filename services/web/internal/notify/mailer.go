// Package notify sends transactional email to people who reach out through
// the public enquiry forms.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
)

type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error)
}

// Notifier renders the messages the web front end sends.
type Notifier struct {
	mailer Mailer
}

func New(mailer Mailer) *Notifier {
	return &Notifier{mailer: mailer}
}

// CoachEnquiryReceived acknowledges a coach enquiry. Enquiries without an
// email address are skipped.
func (n *Notifier) CoachEnquiryReceived(ctx context.Context, email, name string, sports []string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}

	subject := "Thanks for applying to coach with FitKeeda"
	list := strings.Join(sports, ", ")
	text := fmt.Sprintf("Hi %s,\n\nWe received your application to coach %s. Our team will call you within two working days.\n\nTeam FitKeeda", name, list)
	body := fmt.Sprintf(`
		<h2>Thanks for applying, %s!</h2>
		<p>We received your application to coach <strong>%s</strong>.</p>
		<p>Our team will call you within two working days.</p>
		<p>Team FitKeeda</p>
	`, html.EscapeString(name), html.EscapeString(list))

	_, err := n.mailer.Send(ctx, email, name, subject, text, body)
	return err
}
