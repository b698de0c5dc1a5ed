package booking

import (
	"context"
	"fmt"
	"line_chatbot/src/model"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// OAuth obtains the refresh token the Google calendar runs with
type OAuth struct {
	conf *oauth2.Config
}

func NewOAuth(cfg model.GoogleConfig) *OAuth {
	return &OAuth{conf: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       []string{calendar.CalendarScope},
		Endpoint:     google.Endpoint,
	}}
}

// AuthURL returns the consent page URL. Consent is forced so Google always issues a refresh token.
func (o *OAuth) AuthURL(state string) string {
	return o.conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a refresh token
func (o *OAuth) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := o.conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if tok.RefreshToken == "" {
		return "", fmt.Errorf("no refresh token in token response")
	}
	return tok.RefreshToken, nil
}

func (o *OAuth) TokenSource(ctx context.Context, refreshToken string) oauth2.TokenSource {
	return o.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}
