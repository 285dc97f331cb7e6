package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
environment: dev
dev_mode_bypass: true
openmrs:
  url: https://emr.example.org/
  username: superman
  password: Admin123
  timeout: 5s
endpoints:
  enrollment: /openmrs/ws/rest/v1/programenrollment
auth:
  okta_domain: https://example.okta.com/oauth2/default/
app:
  mandatoryProgramAttributes:
    - ID Number
    - Stage
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.True(t, cfg.DevModeBypass)
	assert.Equal(t, "https://emr.example.org", cfg.OpenMRS.URL)
	assert.Equal(t, "superman", cfg.OpenMRS.Username)
	assert.Equal(t, 5*time.Second, cfg.OpenMRS.Timeout)
	assert.Equal(t, "/openmrs/ws/rest/v1/programenrollment", cfg.Endpoints.Enrollment)
	assert.Empty(t, cfg.Endpoints.Program)
	assert.Equal(t, "https://example.okta.com/oauth2/default", cfg.Auth.OktaDomain)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadConfig_AppDescriptor(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"ID Number", "Stage"}, cfg.AppDescriptor().GetStringSlice("mandatoryProgramAttributes"))
	assert.Empty(t, cfg.AppDescriptor().GetStringSlice("somethingElse"))
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("OPENMRS_URL", "https://override.example.org")
	t.Setenv("OPENMRS_PASSWORD", "secret")

	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.org", cfg.OpenMRS.URL)
	assert.Equal(t, "secret", cfg.OpenMRS.Password)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.False(t, cfg.IsDev())
	assert.Equal(t, "http://localhost:8050", cfg.OpenMRS.URL)
	assert.Equal(t, 30*time.Second, cfg.OpenMRS.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.AppDescriptor().GetStringSlice("mandatoryProgramAttributes"))
}

func TestNormalizeOktaIssuer(t *testing.T) {
	assert.Equal(t, "https://x.okta.com", normalizeOktaIssuer(" https://x.okta.com/ "))
	assert.Equal(t, "", normalizeOktaIssuer(""))
}
