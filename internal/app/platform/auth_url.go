package platform

import (
	"strings"

	"golang.org/x/oauth2"
)

const DefaultAuthBackend = "https://noir-prover.zk.email"

// AuthURLBuilder builds the address of the gmail authorization backend. The
// backend fetches the platform email on the user's behalf, proves it and
// redirects back with a proof id.
type AuthURLBuilder struct {
	cfg oauth2.Config
}

func NewAuthURLBuilder(backendURL, clientID, redirectURL string) *AuthURLBuilder {
	if backendURL == "" {
		backendURL = DefaultAuthBackend
	}
	return &AuthURLBuilder{cfg: oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL: strings.TrimRight(backendURL, "/") + "/gmail/auth",
		},
	}}
}

// Build returns the URL for p. state routes the outcome back to the waiting
// handshake; handle is optional.
func (b *AuthURLBuilder) Build(p Platform, command, handle, state string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("query", p.GmailQuery),
		oauth2.SetAuthURLParam("blueprint", p.Blueprint),
		oauth2.SetAuthURLParam("command", command),
	}
	if h := strings.TrimSpace(handle); h != "" {
		opts = append(opts, oauth2.SetAuthURLParam("handle", h))
	}
	return b.cfg.AuthCodeURL(state, opts...)
}
