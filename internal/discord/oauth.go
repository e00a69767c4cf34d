package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"banappeals/backend/internal/config"
)

// Identity is the result of a completed OAuth login: who the user is plus
// the access token needed for the guilds.join grant later.
type Identity struct {
	User        User
	AccessToken string
}

// OAuth drives the Discord authorization-code flow.
type OAuth struct {
	config *oauth2.Config
}

// NewOAuth Constructor
func NewOAuth(cfg config.DiscordConfig) *OAuth {
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"identify", "guilds.join"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}
}

// AuthCodeURL builds the Discord consent page URL for the given state.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state)
}

// Exchange trades the callback code for a token and resolves the
// authenticated user's profile.
func (o *OAuth) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("discord: code exchange failed: %w", err)
	}

	client := o.config.Client(ctx, token)
	resp, err := client.Get(apiBase + "/users/@me")
	if err != nil {
		return nil, fmt.Errorf("discord: identity lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discord: identity lookup returned %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Identity{
		User:        *parseUser(string(payload)),
		AccessToken: token.AccessToken,
	}, nil
}
