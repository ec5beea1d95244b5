package user

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer sends the transactional mail the identity flows trigger. Both mails
// are side effects: callers log failures and carry on.
type Mailer interface {
	SendWelcome(email, fullName string) error
	SendOTP(email, otp string) error
}

type SMTPMailer struct {
	dialer    *gomail.Dialer
	from      string
	clientURL string
}

func NewSMTPMailer(host string, port int, username, password, from, clientURL string) *SMTPMailer {
	return &SMTPMailer{
		dialer:    gomail.NewDialer(host, port, username, password),
		from:      from,
		clientURL: clientURL,
	}
}

func (m *SMTPMailer) SendWelcome(email, fullName string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Welcome to Murmur")
	msg.SetBody("text/html", fmt.Sprintf(
		"<p>Hi %s,</p><p>Your account is ready. Start chatting at <a href=%q>%s</a>.</p>",
		fullName, m.clientURL, m.clientURL))
	return m.dialer.DialAndSend(msg)
}

func (m *SMTPMailer) SendOTP(email, otp string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Your password reset code")
	msg.SetBody("text/html", fmt.Sprintf(
		"<p>Your one-time code is <b>%s</b>. It expires in 5 minutes.</p>", otp))
	return m.dialer.DialAndSend(msg)
}
