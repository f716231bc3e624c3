package notifications

import (
	"context"

	"github.com/9ssi7/exponent"
)

// PushSender is the slice of the Expo client the notifiers need.
type PushSender interface {
	PublishSingle(ctx context.Context, msg *exponent.Message) ([]*exponent.MessageResponse, error)
}

// NewExpoSender returns an Expo push client. An empty access token is fine
// for projects without enhanced push security.
func NewExpoSender(accessToken string) PushSender {
	if accessToken == "" {
		return exponent.NewClient()
	}
	return exponent.NewClient(exponent.WithAccessToken(accessToken))
}
