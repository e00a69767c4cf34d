package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"banappeals/backend/internal/api/handler"
	"banappeals/backend/internal/api/session"
	"banappeals/backend/internal/appeal"
	"banappeals/backend/internal/config"
	"banappeals/backend/internal/discord"
	"banappeals/backend/internal/models"
	"banappeals/backend/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testStorage backs the relational part with an in-memory database and
// replaces the redis-backed methods with plain maps.
type testStorage struct {
	*storage.Service
	states   map[string]struct{}
	profiles map[int64]string
}

func (s *testStorage) SetOAuthState(state string) error {
	s.states[state] = struct{}{}
	return nil
}

func (s *testStorage) ConsumeOAuthState(state string) (bool, error) {
	_, ok := s.states[state]
	delete(s.states, state)
	return ok, nil
}

func (s *testStorage) CacheUserProfile(discordID int64, profile string) error {
	s.profiles[discordID] = profile
	return nil
}

func (s *testStorage) CachedUserProfile(discordID int64) (string, error) {
	return s.profiles[discordID], nil
}

// fakeDirectory stands in for the Discord API.
type fakeDirectory struct {
	banned      bool
	removedBans []int64
	joined      []int64
}

func (f *fakeDirectory) FetchUser(id int64) (*discord.User, error) {
	return &discord.User{ID: id, Username: "someone"}, nil
}

func (f *fakeDirectory) GetBan(userID int64) (string, bool, error) {
	return "spam", f.banned, nil
}

func (f *fakeDirectory) RemoveBan(userID int64) error {
	f.removedBans = append(f.removedBans, userID)
	return nil
}

func (f *fakeDirectory) AddGuildMember(userID int64, accessToken string) error {
	f.joined = append(f.joined, userID)
	return nil
}

func (f *fakeDirectory) GuildID() string { return "42" }

// fakeOAuth completes the login flow without talking to Discord.
type fakeOAuth struct {
	identity *discord.Identity
}

func (f *fakeOAuth) AuthCodeURL(state string) string {
	return "https://discord.com/oauth2/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeOAuth) Exchange(ctx context.Context, code string) (*discord.Identity, error) {
	return f.identity, nil
}

type testApp struct {
	router    *gin.Engine
	storage   *testStorage
	directory *fakeDirectory
	config    *config.Config
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Appeal{}, &models.Reviewer{}))

	store := &testStorage{
		Service:  storage.NewService(db, nil),
		states:   make(map[string]struct{}),
		profiles: make(map[int64]string),
	}

	cfg := &config.Config{
		Server: config.ServerConfig{SessionSecret: "test-secret"},
		Roles: config.RolesConfig{
			Staff:  []string{"555"},
			Admins: []string{"777"},
		},
		Submissions: config.SubmissionsConfig{Open: true, RatePerMinute: 10},
	}

	directory := &fakeDirectory{banned: true}
	appeals := appeal.NewService(store, directory, nil, cfg.Submissions)

	oauth := &fakeOAuth{identity: &discord.Identity{
		User:        discord.User{ID: 1001, Username: "someone", Avatar: "abc123"},
		AccessToken: "oauth-token",
	}}

	router := gin.New()
	router.LoadHTMLGlob("../../../web/templates/*.htm")
	handler.NewHandler(cfg, store, appeals, directory, oauth).RegisterRoutes(router)

	return &testApp{router: router, storage: store, directory: directory, config: cfg}
}

func (app *testApp) sessionCookie(t *testing.T, discordID int64, username string) *http.Cookie {
	t.Helper()

	token, err := session.Identity{
		DiscordID:   discordID,
		Username:    username,
		AccessToken: "oauth-token",
	}.Issue([]byte(app.config.Server.SessionSecret))
	require.NoError(t, err)
	return &http.Cookie{Name: session.CookieName, Value: token}
}

func (app *testApp) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func submitRequest() *http.Request {
	form := url.Values{
		"whyWereYouBanned":       {"I posted too much"},
		"whyShouldYouBeUnbanned": {"I will stop"},
	}
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// flashNotice decodes the notice cookie set on a redirect. The value is
// query-escaped twice: once by the flash package, once by gin's
// SetCookie.
func flashNotice(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	for _, cookie := range w.Result().Cookies() {
		if cookie.Name != "appeal_flash" || cookie.MaxAge < 0 {
			continue
		}
		once, err := url.QueryUnescape(cookie.Value)
		require.NoError(t, err)
		twice, err := url.QueryUnescape(once)
		require.NoError(t, err)
		return twice
	}
	return ""
}

func (app *testApp) seedAppeal(t *testing.T, discordID int64) *models.Appeal {
	t.Helper()

	created := &models.Appeal{
		DiscordUser:      "someone",
		DiscordID:        discordID,
		BanReason:        "spam",
		BanExplanation:   "I posted too much",
		UnbanExplanation: "I will stop",
		Timestamp:        1700000000,
		IPAddress:        "203.0.113.7",
	}
	require.NoError(t, app.storage.CreateAppeal(created))
	return created
}

// TestSubmitRequiresLogin verifies anonymous submissions bounce to the
// login flow and store nothing.
func TestSubmitRequiresLogin(t *testing.T) {
	// Arrange
	app := newTestApp(t)

	// Act
	w := app.do(submitRequest())

	// Assert
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	all, err := app.storage.GetAllAppeals()
	require.NoError(t, err)
	assert.Empty(t, all)
}

// TestSubmitCreatesAppeal verifies a logged-in submission lands in the
// store with the proxied client address.
func TestSubmitCreatesAppeal(t *testing.T) {
	app := newTestApp(t)

	req := submitRequest()
	req.Header.Set("X-Real-IP", "203.0.113.7")
	w := app.do(req, app.sessionCookie(t, 1001, "someone"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	stored, err := app.storage.GetAppealByDiscordID(1001)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "I posted too much", stored.BanExplanation)
	assert.Equal(t, "203.0.113.7", stored.IPAddress)
	assert.Nil(t, stored.Status)
}

// TestSubmitEmptyForm verifies an empty form redirects home without
// creating anything.
func TestSubmitEmptyForm(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := app.do(req, app.sessionCookie(t, 1001, "someone"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	all, err := app.storage.GetAllAppeals()
	require.NoError(t, err)
	assert.Empty(t, all)
}

// TestApproveRequiresStaff verifies a non-staff caller cannot decide an
// appeal: they are bounced home and the appeal stays pending.
func TestApproveRequiresStaff(t *testing.T) {
	app := newTestApp(t)
	target := app.seedAppeal(t, 1001)

	req := httptest.NewRequest(http.MethodGet, "/approve/1", nil)
	w := app.do(req, app.sessionCookie(t, 1001, "someone"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	stored, err := app.storage.GetAppealByID(target.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Status, "non-staff calls must not decide the appeal")
}

// TestApproveAppeal verifies staff can approve through both route forms
// and the reviewer is stamped.
func TestApproveAppeal(t *testing.T) {
	routes := []string{"/approve/1", "/review/approve/1"}

	for _, route := range routes {
		t.Run(route, func(t *testing.T) {
			app := newTestApp(t)
			target := app.seedAppeal(t, 1001)

			req := httptest.NewRequest(http.MethodGet, route, nil)
			w := app.do(req, app.sessionCookie(t, 555, "staffer"))

			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "/review", w.Header().Get("Location"))
			assert.Equal(t, "info|Appeal #1 has been approved.", flashNotice(t, w))

			stored, err := app.storage.GetAppealByID(target.ID)
			require.NoError(t, err)
			require.NotNil(t, stored.Status)
			assert.True(t, *stored.Status)
			require.NotNil(t, stored.Reviewer)
			assert.Equal(t, int64(555), *stored.Reviewer)
		})
	}
}

// TestRejectAppeal verifies the reject route records the other terminal
// state.
func TestRejectAppeal(t *testing.T) {
	app := newTestApp(t)
	target := app.seedAppeal(t, 1001)

	req := httptest.NewRequest(http.MethodGet, "/reject/1", nil)
	w := app.do(req, app.sessionCookie(t, 555, "staffer"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/review", w.Header().Get("Location"))
	assert.Equal(t, "info|Appeal #1 has been rejected.", flashNotice(t, w))

	stored, err := app.storage.GetAppealByID(target.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Status)
	assert.False(t, *stored.Status)
}

// TestApproveUnknownID verifies deciding a missing appeal lands back on
// the overview.
func TestApproveUnknownID(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/approve/99", nil)
	w := app.do(req, app.sessionCookie(t, 555, "staffer"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/overview", w.Header().Get("Location"))
}

// TestAdminAllowsAdminsOnly verifies staff membership alone does not
// open the admin panel.
func TestAdminAllowsAdminsOnly(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	w := app.do(req, app.sessionCookie(t, 555, "staffer"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	w = app.do(req, app.sessionCookie(t, 777, "admin"))

	assert.Equal(t, http.StatusOK, w.Code)
}

// TestSearchByDiscordID verifies snowflake search forwards to the appeal
// on a hit and back to the overview on a miss.
func TestSearchByDiscordID(t *testing.T) {
	app := newTestApp(t)
	target := app.seedAppeal(t, 1001)
	staff := app.sessionCookie(t, 555, "staffer")

	w := app.do(httptest.NewRequest(http.MethodGet, "/search/id/1001", nil), staff)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/review/1", w.Header().Get("Location"))
	assert.Equal(t, uint(1), target.ID)

	w = app.do(httptest.NewRequest(http.MethodGet, "/search/id/9999", nil), staff)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/overview", w.Header().Get("Location"))

	w = app.do(httptest.NewRequest(http.MethodGet, "/search/id/not-a-snowflake", nil), staff)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/overview", w.Header().Get("Location"))
}

// TestJoinRequiresApproval verifies the guild join only happens for an
// approved appeal.
func TestJoinRequiresApproval(t *testing.T) {
	app := newTestApp(t)
	target := app.seedAppeal(t, 1001)
	cookie := app.sessionCookie(t, 1001, "someone")

	// Pending appeal: no unban, no join.
	w := app.do(httptest.NewRequest(http.MethodGet, "/join", nil), cookie)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/status", w.Header().Get("Location"))
	assert.Empty(t, app.directory.joined, "no grant call may happen before approval")

	require.NoError(t, app.storage.UpdateAppealStatus(target.ID, true, 555))

	w = app.do(httptest.NewRequest(http.MethodGet, "/join", nil), cookie)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://discord.com/channels/42", w.Header().Get("Location"))
	assert.Equal(t, []int64{1001}, app.directory.removedBans)
	assert.Equal(t, []int64{1001}, app.directory.joined)
}

// TestStatusWithoutAppeal verifies users who never submitted are sent
// home with a notice.
func TestStatusWithoutAppeal(t *testing.T) {
	app := newTestApp(t)

	w := app.do(httptest.NewRequest(http.MethodGet, "/status", nil), app.sessionCookie(t, 1001, "someone"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

// TestStatusShowsOwnAppeal verifies the status page renders for a user
// with a submission.
func TestStatusShowsOwnAppeal(t *testing.T) {
	app := newTestApp(t)
	app.seedAppeal(t, 1001)

	w := app.do(httptest.NewRequest(http.MethodGet, "/status", nil), app.sessionCookie(t, 1001, "someone"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "I posted too much")
}

// TestReviewEmptyQueue verifies an empty review queue forwards to the
// overview.
func TestReviewEmptyQueue(t *testing.T) {
	app := newTestApp(t)

	w := app.do(httptest.NewRequest(http.MethodGet, "/review", nil), app.sessionCookie(t, 555, "staffer"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/overview", w.Header().Get("Location"))
}

// TestReviewShowsQueueHead verifies /review without an id renders the
// oldest pending appeal.
func TestReviewShowsQueueHead(t *testing.T) {
	app := newTestApp(t)
	app.seedAppeal(t, 1001)

	w := app.do(httptest.NewRequest(http.MethodGet, "/review", nil), app.sessionCookie(t, 555, "staffer"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "I posted too much")
}

// TestOverviewRenders verifies the overview lists decided appeals with
// the reviewer's display name.
func TestOverviewRenders(t *testing.T) {
	app := newTestApp(t)
	target := app.seedAppeal(t, 1001)
	require.NoError(t, app.storage.UpdateAppealStatus(target.ID, true, 555))
	require.NoError(t, app.storage.SaveReviewer(&models.Reviewer{DiscordID: 555, Username: "staffer"}))

	w := app.do(httptest.NewRequest(http.MethodGet, "/overview", nil), app.sessionCookie(t, 555, "staffer"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "staffer")
}

// TestIndexAnonymous verifies the landing page works logged out.
func TestIndexAnonymous(t *testing.T) {
	app := newTestApp(t)

	w := app.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

// TestLoginStartsOAuth verifies /login stores a state nonce and forwards
// to the Discord consent screen with it.
func TestLoginStartsOAuth(t *testing.T) {
	app := newTestApp(t)

	w := app.do(httptest.NewRequest(http.MethodGet, "/login", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	assert.Contains(t, location, "https://discord.com/oauth2/authorize")

	parsed, err := url.Parse(location)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Contains(t, app.storage.states, state, "issued state must be stored for the callback")
}

// TestCallbackIssuesSession verifies a callback with a known state sets
// the session cookie.
func TestCallbackIssuesSession(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, app.storage.SetOAuthState("state-nonce"))

	w := app.do(httptest.NewRequest(http.MethodGet, "/callback?state=state-nonce&code=auth-code", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	var token string
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == session.CookieName {
			token = cookie.Value
		}
	}
	require.NotEmpty(t, token, "callback must set the session cookie")

	identity, err := session.Parse(token, []byte(app.config.Server.SessionSecret))
	require.NoError(t, err)
	assert.Equal(t, int64(1001), identity.DiscordID)
	assert.Equal(t, "someone", identity.Username)
	assert.Equal(t, "oauth-token", identity.AccessToken)
}

// TestCallbackRejectsUnknownState verifies a state we never issued does
// not produce a session.
func TestCallbackRejectsUnknownState(t *testing.T) {
	app := newTestApp(t)

	w := app.do(httptest.NewRequest(http.MethodGet, "/callback?state=forged&code=auth-code", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	for _, cookie := range w.Result().Cookies() {
		assert.NotEqual(t, session.CookieName, cookie.Name, "no session may be issued for a forged state")
	}
}

// TestCallbackStateIsOneShot verifies a state nonce cannot be replayed.
func TestCallbackStateIsOneShot(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, app.storage.SetOAuthState("state-nonce"))

	app.do(httptest.NewRequest(http.MethodGet, "/callback?state=state-nonce&code=auth-code", nil))
	w := app.do(httptest.NewRequest(http.MethodGet, "/callback?state=state-nonce&code=auth-code", nil))

	for _, cookie := range w.Result().Cookies() {
		assert.NotEqual(t, session.CookieName, cookie.Name, "replayed state must not issue a session")
	}
}

// TestLogoutClearsSession verifies logout drops the cookie and lands on
// the home page.
func TestLogoutClearsSession(t *testing.T) {
	app := newTestApp(t)

	w := app.do(httptest.NewRequest(http.MethodGet, "/logout", nil), app.sessionCookie(t, 1001, "someone"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	cleared := false
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == session.CookieName && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}
