package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/session"
	"github.com/xanderlab/labauth/testutils"
)

var codePattern = regexp.MustCompile(`\d{6}`)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func startApp(t *testing.T, cfg *config.Config, mail *testutils.MailRecorder) *App {
	t.Helper()

	app, err := NewApp().WithConfig(cfg).WithMailSender(mail).Build()
	require.NoError(t, err)

	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() { _ = app.Stop() })

	require.NotEmpty(t, app.Addr())
	return app
}

func call(t *testing.T, app *App, method, path string, body any, token string) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, "http://"+app.Addr()+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func codeLogin(t *testing.T, app *App, mail *testutils.MailRecorder, email string) session.TokenPair {
	t.Helper()

	status, _ := call(t, app, http.MethodGet, "/api/auth/code?email="+email, nil, "")
	require.Equal(t, http.StatusOK, status)

	sent, ok := mail.Last()
	require.True(t, ok)
	code := codePattern.FindString(sent.Body)
	require.NotEmpty(t, code)

	status, env := call(t, app, http.MethodPost, "/api/auth/login", map[string]string{
		"type":    "code",
		"account": email,
		"code":    code,
	}, "")
	require.Equal(t, http.StatusOK, status, env.Message)

	var pair session.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	return pair
}

func exerciseSessionLifecycle(t *testing.T, app *App, mail *testutils.MailRecorder) {
	t.Helper()

	pair := codeLogin(t, app, mail, "carol@lab.test")

	status, env := call(t, app, http.MethodGet, "/api/auth/me", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, status)
	var info session.UserInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "carol@lab.test", info.Username)
	assert.Equal(t, "carol", info.Nickname)

	status, env = call(t, app, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": pair.RefreshToken}, "")
	require.Equal(t, http.StatusOK, status, env.Message)
	var rotated session.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &rotated))

	status, _ = call(t, app, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": pair.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, http.MethodPost, "/api/auth/logout", map[string]string{"refreshToken": rotated.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": rotated.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestApp_SessionLifecycle(t *testing.T) {
	mail := &testutils.MailRecorder{}
	app := startApp(t, testutils.GetTestConfig(), mail)

	exerciseSessionLifecycle(t, app, mail)

	active, err := app.Sessions().IsSessionActive(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestApp_RedisBackedStores(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testutils.GetTestConfig()
	cfg.Credentials.Store = "redis"
	cfg.Redis.Addr = mr.Addr()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Store = "redis"

	mail := &testutils.MailRecorder{}
	app := startApp(t, cfg, mail)

	exerciseSessionLifecycle(t, app, mail)

	assert.True(t, mr.Exists("login:activeToken:1"))
}

func TestApp_DatabaseBackedStore(t *testing.T) {
	cfg := testutils.GetTestConfig()
	cfg.Credentials.Store = "database"

	mail := &testutils.MailRecorder{}
	app := startApp(t, cfg, mail)

	exerciseSessionLifecycle(t, app, mail)
}

func TestApp_Docs(t *testing.T) {
	cfg := testutils.GetTestConfig()
	cfg.Server.DocsEnabled = true
	app := startApp(t, cfg, &testutils.MailRecorder{})

	resp, err := http.Get("http://" + app.Addr() + "/openapi.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "Test Lab API", doc.Info.Title)
	assert.Contains(t, doc.Paths, "/api/auth/login")

	resp, err = http.Get("http://" + app.Addr() + "/docs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApp_Stop(t *testing.T) {
	app, err := NewApp().WithConfig(testutils.GetTestConfig()).Build()
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))

	addr := app.Addr()
	require.NoError(t, app.Stop())

	_, err = http.Get("http://" + addr + "/health")
	assert.Error(t, err)
}
