package mailer

import "embed"

const (
	FromName                 = "Zelton Livings"
	maxRetires               = 3
	PaymentCompletedTemplate = "payment_completed.tmpl"
	PaymentFailedTemplate    = "payment_failed.tmpl"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	Send(templateFile, username, email string, data any) (int, error)
}
