package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	Reset()
	path := writeTemp(t, "trader.yaml", `
engine:
  account_id: acc01
  compare_pos: true
  cancel_seconds: 60
gateways:
  - name: CTP1
    type: ctp
    td_host: tcp://180.168.146.187:10201
    md_host: tcp://180.168.146.187:10211
    broker_id: "9999"
web_listen: ":8901"
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "acc01", cfg.Engine.AccountID)
	assert.True(t, cfg.Engine.ComparePos)
	assert.Equal(t, 60, cfg.Engine.CancelSeconds)
	require.Len(t, cfg.Gateways, 1)
	assert.Equal(t, "CTP1", cfg.Gateways[0].Name)
	assert.Equal(t, ":8901", cfg.WebListen)
	// 文件未写的字段取默认值
	assert.Equal(t, "30 8 * * *", cfg.Recorder.CleanupCron)
}

func TestLoadJSON(t *testing.T) {
	Reset()
	path := writeTemp(t, "trader.json", `{
  "engine": {"accountid": "acc02", "auto_balance": true},
  "gateways": [{"name": "SIM", "type": "paper"}]
}`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "acc02", cfg.Engine.AccountID)
	assert.True(t, cfg.Engine.AutoBalance)
}

func TestUnsupportedExtensionRejected(t *testing.T) {
	Reset()
	path := writeTemp(t, "trader.toml", "x=1")
	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestEnvOverridesGatewayCredentials(t *testing.T) {
	Reset()
	t.Setenv("CTP1_PASSWORD", "secret")
	t.Setenv("TRADER_ACCOUNT_ID", "env-acc")
	path := writeTemp(t, "trader.yaml", `
gateways:
  - name: CTP1
    type: ctp
    td_host: tcp://a:1
    md_host: tcp://a:2
    password: file-pass
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Gateways[0].Password)
	assert.Equal(t, "env-acc", cfg.Engine.AccountID)
}

func TestValidateRejectsDuplicateGateway(t *testing.T) {
	Reset()
	path := writeTemp(t, "trader.yaml", `
gateways:
  - name: A
    type: paper
  - name: A
    type: paper
`)
	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "网关名重复")
}

func TestValidateRejectsBadVtSymbol(t *testing.T) {
	Reset()
	path := writeTemp(t, "trader.yaml", `
feed:
  subscribe: ["rb2401"]
`)
	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "vt_symbol")
}

func TestSameFileIsCached(t *testing.T) {
	Reset()
	path := writeTemp(t, "trader.yaml", `engine: {account_id: one}`)
	first, err := LoadFromFile(path)
	require.NoError(t, err)
	second, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
}
