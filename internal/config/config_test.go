package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinanceCollector/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configPathEnv, dartAPIKeyEnv, geminiAPIKeyEnv, geminiModelEnv, marketAPIKeyEnv,
		databaseDSNEnv, telegramTokenEnv, telegramChatIDEnv, logLevelEnv,
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, writeConfig(t, `
collector:
  market: kosdaq
  count: 50
  callTimeout: 7s
dart:
  apiKey: file-key
marketData:
  endpoint: http://market.local
cache:
  driver: postgres
  dsn: postgres://localhost/finance
retry:
  maxAttempts: 4
  baseDelay: 2s
scheduler:
  enabled: true
  runAt: "07:15"
  timezone: UTC
`))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, domain.MarketKOSDAQ, cfg.Market())
	assert.Equal(t, 50, cfg.Collector.Count)
	assert.Equal(t, 5, cfg.Collector.Workers)
	assert.Equal(t, 7*time.Second, cfg.Collector.CallTimeout)
	assert.Equal(t, "file-key", cfg.DART.APIKey)
	assert.Equal(t, "https://opendart.fss.or.kr/api", cfg.DART.BaseURL)
	assert.Equal(t, "postgres", cfg.Cache.Driver)
	assert.Equal(t, "filing_cache", cfg.Cache.Table)
	assert.Equal(t, time.UTC, cfg.Scheduler.Location())

	policy := cfg.Retry.Policy()
	assert.Equal(t, 4, policy.MaxAttempts)
	assert.Equal(t, 4*time.Second, policy.Backoff(2))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, writeConfig(t, "dart:\n  apiKey: file-key\nmarketData:\n  endpoint: http://market.local\n"))
	t.Setenv(dartAPIKeyEnv, "env-key")
	t.Setenv(geminiModelEnv, "gemini-test")
	t.Setenv(telegramChatIDEnv, "42")
	t.Setenv(logLevelEnv, "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.DART.APIKey)
	assert.Equal(t, "gemini-test", cfg.Gemini.Model)
	assert.Equal(t, "42", cfg.Notifications.Telegram.ChatID)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "Asia/Seoul", cfg.Scheduler.Location().String())
}

func TestLoadReportsInvalidSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, writeConfig(t, `
collector:
  market: NYSE
  workers: 0
cache:
  driver: redis
gemini:
  enabled: true
scheduler:
  enabled: true
  runAt: "6pm"
`))

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{"dart.apiKey", "marketData.endpoint", "collector.market", "collector.workers", "cache.driver", "gemini.apiKey", "scheduler.runAt"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestLoadMissingFileIsAnError(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadUnknownTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, writeConfig(t, "scheduler:\n  timezone: Mars/Olympus\n"))
	_, err := Load()
	assert.ErrorContains(t, err, "Mars/Olympus")
}
