// Package session issues and validates the signed cookie that carries
// the authenticated Discord identity between requests.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"banappeals/backend/internal/discord"
)

// CookieName is the session cookie set after a completed Discord login.
const CookieName = "appeal_session"

// Lifetime matches the cookie Max-Age set by the auth handler.
const Lifetime = 72 * time.Hour

const issuer = "banappeals"

var ErrInvalidSession = errors.New("invalid session token")

// Identity is the authenticated caller decoded from the session cookie.
// AccessToken is the user's OAuth token, kept for the guilds.join grant.
type Identity struct {
	DiscordID   int64
	Username    string
	Avatar      string
	AccessToken string
}

// User converts the session identity to a Discord user value.
func (i Identity) User() discord.User {
	return discord.User{ID: i.DiscordID, Username: i.Username, Avatar: i.Avatar}
}

// Issue signs a session token for the identity.
// The Discord id travels as a string claim: snowflakes overflow the
// float64 that JSON numbers decode into.
func (i Identity) Issue(secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"discord_id":   strconv.FormatInt(i.DiscordID, 10),
		"username":     i.Username,
		"avatar":       i.Avatar,
		"access_token": i.AccessToken,
		"exp":          time.Now().Add(Lifetime).Unix(),
		"iss":          issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Parse validates a session token and recovers the identity.
func Parse(tokenString string, secret []byte) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}

	rawID, _ := claims["discord_id"].(string)
	discordID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, ErrInvalidSession
	}

	username, _ := claims["username"].(string)
	avatar, _ := claims["avatar"].(string)
	accessToken, _ := claims["access_token"].(string)

	return &Identity{
		DiscordID:   discordID,
		Username:    username,
		Avatar:      avatar,
		AccessToken: accessToken,
	}, nil
}
