// Package discord wraps the two Discord surfaces the app talks to: the
// bot-token REST API (ban lookups, unbans, guild joins) and the OAuth2
// login flow.
package discord

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"banappeals/backend/internal/config"
)

const apiBase = "https://discord.com/api/v10"

// User is the subset of a Discord profile the app displays.
type User struct {
	ID       int64
	Username string
	Avatar   string
}

// AvatarURL builds the CDN URL for the user's avatar, or the default
// embed avatar when they have none.
func (u User) AvatarURL() string {
	if u.Avatar == "" {
		return "https://cdn.discordapp.com/embed/avatars/0.png"
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%d/%s.png", u.ID, u.Avatar)
}

// Client talks to the Discord REST API with the bot token.
type Client struct {
	httpClient *http.Client
	botToken   string
	guildID    string
}

// NewClient Constructor
func NewClient(cfg config.DiscordConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		botToken:   cfg.BotToken,
		guildID:    cfg.GuildID,
	}
}

func (c *Client) request(method, route string, body []byte) (string, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, apiBase+route, reader)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Authorization", "Bot "+c.botToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(payload), resp.StatusCode, nil
}

// FetchUser returns the profile for a Discord snowflake.
func (c *Client) FetchUser(id int64) (*User, error) {
	payload, status, err := c.request(http.MethodGet, fmt.Sprintf("/users/%d", id), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("discord: fetch user %d returned %d", id, status)
	}
	return parseUser(payload), nil
}

// GetBan returns the ban reason recorded for the user on the configured
// guild. found is false when the user is not banned.
func (c *Client) GetBan(userID int64) (reason string, found bool, err error) {
	route := fmt.Sprintf("/guilds/%s/bans/%d", c.guildID, userID)
	payload, status, err := c.request(http.MethodGet, route, nil)
	if err != nil {
		return "", false, err
	}
	switch status {
	case http.StatusOK:
		return gjson.Get(payload, "reason").String(), true, nil
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("discord: ban lookup for %d returned %d", userID, status)
	}
}

// RemoveBan lifts the user's ban on the configured guild.
func (c *Client) RemoveBan(userID int64) error {
	route := fmt.Sprintf("/guilds/%s/bans/%d", c.guildID, userID)
	_, status, err := c.request(http.MethodDelete, route, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusNotFound {
		return fmt.Errorf("discord: unban of %d returned %d", userID, status)
	}
	return nil
}

// AddGuildMember joins the user to the configured guild using the OAuth
// access token they granted at login (guilds.join scope).
func (c *Client) AddGuildMember(userID int64, accessToken string) error {
	route := fmt.Sprintf("/guilds/%s/members/%d", c.guildID, userID)
	body := []byte(fmt.Sprintf(`{"access_token":%s}`, strconv.Quote(accessToken)))
	_, status, err := c.request(http.MethodPut, route, body)
	if err != nil {
		return err
	}
	// 201 when added, 204 when already a member.
	if status != http.StatusCreated && status != http.StatusNoContent {
		return fmt.Errorf("discord: guild join for %d returned %d", userID, status)
	}
	return nil
}

// GuildID returns the configured guild snowflake, for building the
// post-join redirect.
func (c *Client) GuildID() string {
	return c.guildID
}

func parseUser(payload string) *User {
	return &User{
		ID:       gjson.Get(payload, "id").Int(),
		Username: gjson.Get(payload, "username").String(),
		Avatar:   gjson.Get(payload, "avatar").String(),
	}
}
