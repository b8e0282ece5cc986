package e2etesting

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xanderlab/labauth/app"
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/services/auth"
	"github.com/xanderlab/labauth/services/users"
	"github.com/xanderlab/labauth/testutils"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// E2EApp is a fully wired application listening on a random local port.
type E2EApp struct {
	App             *app.App
	BaseURL         string
	Config          *config.Config
	DB              *gorm.DB
	Users           *users.Repository
	AuthSvc         *auth.Service
	Mail            *testutils.MailRecorder
	CoverageTracker *CoverageTracker
}

type TestConfig struct {
	// OverrideConfig adjusts the configuration before the app is built.
	OverrideConfig func(*config.Config)
	EnableCoverage bool
	// ExcludePaths are left out of the coverage report, e.g. "/openapi".
	ExcludePaths []string
}

// createTestConfig backs the database with a file in t.TempDir so every
// pooled connection sees the same schema.
func createTestConfig(t *testing.T, testConfig *TestConfig) *config.Config {
	cfg := testutils.GetTestConfig()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "e2e.db")
	cfg.Log.Level = "fatal"

	if testConfig.OverrideConfig != nil {
		testConfig.OverrideConfig(cfg)
	}
	return cfg
}

// BuildTestApp builds and starts the application. It is stopped when the
// test finishes.
func BuildTestApp(t *testing.T, testConfig *TestConfig) *E2EApp {
	t.Helper()

	if testConfig == nil {
		testConfig = &TestConfig{}
	}

	cfg := createTestConfig(t, testConfig)
	e2eApp := &E2EApp{
		Config: cfg,
		Mail:   &testutils.MailRecorder{},
	}

	builtApp, err := app.NewApp().
		WithConfig(cfg).
		WithMailSender(e2eApp.Mail).
		WithFxOptions(fx.Populate(&e2eApp.Users, &e2eApp.AuthSvc)).
		Build()
	require.NoError(t, err, "failed to build test app")

	e2eApp.App = builtApp
	e2eApp.DB = builtApp.DB()

	if testConfig.EnableCoverage {
		e2eApp.CoverageTracker = NewCoverageTracker(testConfig.ExcludePaths...)
		builtApp.Echo().Use(e2eApp.CoverageTracker.TrackingMiddleware())
		e2eApp.CoverageTracker.RegisterRoutes(builtApp.Echo())
	}

	require.NoError(t, e2eApp.start(context.Background()), "failed to start test app")
	t.Cleanup(func() {
		_ = e2eApp.App.Stop()
	})

	return e2eApp
}

func (e *E2EApp) start(ctx context.Context) error {
	if err := e.App.Start(ctx); err != nil {
		return err
	}

	addr := e.App.Addr()
	if addr == "" {
		return fmt.Errorf("server did not report a listener address")
	}
	e.BaseURL = "http://" + addr
	return nil
}

func (e *E2EApp) Client() *HTTPClient {
	return &HTTPClient{
		Client:  &http.Client{Timeout: 10 * time.Second},
		BaseURL: e.BaseURL,
	}
}

func (e *E2EApp) AuthHelper() *AuthHelper {
	return NewAuthHelper(e.Client(), e.Users, e.AuthSvc, e.Mail)
}

func (e *E2EApp) AssertMinimumCoverage(t *testing.T, minPercent float64) {
	t.Helper()

	require.NotNil(t, e.CoverageTracker, "coverage tracking not enabled")
	stats := e.CoverageTracker.GetStats()
	if stats.Coverage < minPercent {
		t.Fatalf("route coverage %.1f%% is below %.1f%%, missing: %v", stats.Coverage, minPercent, stats.MissingRoutes)
	}
}
