package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"
	"time"

	htmltemplate "html/template"

	mail "gopkg.in/mail.v2"
)

// Sender delivers a composed message. *mail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

type SMTPMailer struct {
	fromEmail string
	sender    Sender
	backoff   time.Duration
}

func NewSMTPMailer(host string, port int, username, password, fromEmail string) (*SMTPMailer, error) {
	if host == "" {
		return nil, errors.New("smtp host is required")
	}
	if fromEmail == "" {
		return nil, errors.New("from email is required")
	}

	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = 10 * time.Second

	return &SMTPMailer{fromEmail: fromEmail, sender: dialer, backoff: time.Second}, nil
}

func (m *SMTPMailer) compose(templateFile, username, email string, data any) (*mail.Message, error) {
	tmpl, err := template.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	subject := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(subject, "subject", data); err != nil {
		return nil, err
	}

	plainBody := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(plainBody, "plainBody", data); err != nil {
		return nil, err
	}

	// The HTML part goes through html/template so payer-supplied names are escaped.
	htmlTmpl, err := htmltemplate.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	htmlBody := new(bytes.Buffer)
	if err := htmlTmpl.ExecuteTemplate(htmlBody, "htmlBody", data); err != nil {
		return nil, err
	}

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, FromName)
	msg.SetAddressHeader("To", email, username)
	msg.SetHeader("Subject", subject.String())
	msg.SetBody("text/plain", plainBody.String())
	msg.AddAlternative("text/html", htmlBody.String())
	return msg, nil
}

// Send renders templateFile and delivers it, retrying with a linear backoff.
// The returned int is 200 on success, mirroring HTTP mail APIs.
func (m *SMTPMailer) Send(templateFile, username, email string, data any) (int, error) {
	msg, err := m.compose(templateFile, username, email, data)
	if err != nil {
		return -1, err
	}

	var retryErr error
	for i := 0; i < maxRetires; i++ {
		retryErr = m.sender.DialAndSend(msg)
		if retryErr == nil {
			return 200, nil
		}
		if i < maxRetires-1 {
			time.Sleep(m.backoff * time.Duration(i+1))
		}
	}

	return -1, fmt.Errorf("failed to send email after %d attempts, error: %w", maxRetires, retryErr)
}
