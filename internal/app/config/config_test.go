package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zkemail/paytox/internal/app/platform"
	"github.com/zkemail/paytox/pkg/utilities"
)

const sampleConfig = `{
	"logger": {"log_level": "debug", "console": true},
	"rabbitmq": {"enabled": false},
	"rest": {"port": 9090, "public_origin": "https://paytox.example/"},
	"database": {"driver": "sqlite", "connection_string": "claims.db"},
	"auth": {"client_id": "claimer", "window_ttl_seconds": 120},
	"prover": {"cache_dir": "/var/cache/paytox", "workers": 4},
	"relay": {"rpc_url": "https://sepolia.example", "bundler_url": "https://bundler.example", "receipt_timeout_seconds": 30},
	"ens": {"sepolia_rpc_url": "https://sepolia.example"},
	"platforms": [{"id": "github", "coming_soon": false}],
	"janitor": {"session_idle_minutes": 45}
}`

// clearEnv hides any PAYTOX_* values from the surrounding environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvPublicOrigin, EnvBundlerRPC, EnvSponsorURL, EnvSponsorKey,
		EnvSepoliaRPC, EnvMainnetRPC, EnvDatabase, EnvAuthBackend, EnvChainID} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadConfig(t *testing.T) {
	clearEnv(t)
	cfg, err := utilities.ReadConfig[PaytoxConfigJson, PaytoxConfig](writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, uint16(9090), cfg.GetRestApiPort())
	assert.Equal(t, "https://paytox.example", cfg.RestConf.PublicOrigin)
	assert.Equal(t, "https://paytox.example/auth/callback", cfg.AuthConf.RedirectURL)
	assert.Equal(t, platform.DefaultAuthBackend, cfg.AuthConf.BackendURL)
	assert.Equal(t, "claimer", cfg.AuthConf.ClientID)
	assert.Equal(t, 2*time.Minute, cfg.AuthConf.WindowTTL)
	assert.Equal(t, "claims.db", cfg.DatabaseConf.ConnectionString)
	assert.Equal(t, 4, cfg.ProverConf.Workers)
	assert.Equal(t, 120*time.Second, cfg.ProverConf.RemoteTimeout)
	assert.Equal(t, uint64(platform.SepoliaChainID), cfg.RelayConf.ChainID)
	assert.Equal(t, 30*time.Second, cfg.RelayConf.ReceiptTimeout)
	require.Len(t, cfg.EnsConf, 1)
	assert.Equal(t, "sepolia", cfg.EnsConf[0].Name)
	require.Len(t, cfg.PlatformsConf, 1)
	assert.Equal(t, platform.GitHub, cfg.PlatformsConf[0].ID)
	assert.Equal(t, 45*time.Minute, cfg.JanitorConf.SessionIdle)
	assert.False(t, cfg.GetRabbitmqConfig().Enabled)
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvChainID, "1")
	t.Setenv(EnvPublicOrigin, "https://override.example")
	t.Setenv(EnvDatabase, "override.db")
	t.Setenv(EnvBundlerRPC, "https://bundler.override")
	t.Setenv(EnvMainnetRPC, "https://mainnet.override")

	cfg, err := utilities.ReadConfig[PaytoxConfigJson, PaytoxConfig](writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://override.example", cfg.RestConf.PublicOrigin)
	assert.Equal(t, "https://override.example/auth/callback", cfg.AuthConf.RedirectURL)
	assert.Equal(t, "override.db", cfg.DatabaseConf.ConnectionString)
	assert.Equal(t, "https://bundler.override", cfg.RelayConf.BundlerURL)
	assert.Equal(t, uint64(1), cfg.RelayConf.ChainID)
	require.Len(t, cfg.EnsConf, 2)
	assert.Equal(t, "mainnet", cfg.EnsConf[1].Name)
	assert.Equal(t, "https://mainnet.override", cfg.EnsConf[1].RPCURL)
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg := PaytoxConfigJson{}.ConvertToDomain()
	assert.Equal(t, uint16(8080), cfg.RestConf.Port)
	assert.Equal(t, "http://localhost:8080", cfg.RestConf.PublicOrigin)
	assert.Equal(t, 10*time.Minute, cfg.AuthConf.WindowTTL)
	assert.Empty(t, cfg.EnsConf)
}

func TestGetenvHelpers(t *testing.T) {
	t.Setenv("PAYTOX_TEST_VALUE", "42")
	assert.Equal(t, "42", GetenvDefault("PAYTOX_TEST_VALUE", "x"))
	assert.Equal(t, "x", GetenvDefault("PAYTOX_TEST_MISSING", "x"))
	assert.Equal(t, uint64(42), GetenvUint("PAYTOX_TEST_VALUE", 1))
	assert.Equal(t, uint64(1), GetenvUint("PAYTOX_TEST_MISSING", 1))
	assert.Equal(t, "42", MustEnv("PAYTOX_TEST_VALUE"))
}
