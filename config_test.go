//go:build !integration

// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
engine_id: "80:00:1f:88:80:01:02:03:04"
engine_boots: 7
report_strategy: noAuthNoPrivIfNeeded
engine_cache_size: 16
log_level: debug
users:
  - name: SHADES
    auth_protocol: sha
    auth_password: "The Bourbon Street"
    priv_protocol: des
    priv_password: "The Bourbon Street"
  - name: bound
    engine_id: "000000000000000000000002"
    auth_protocol: md5
    auth_key: "526f5eed9fcce26f8964c2930787d82b"
  - name: public
`

func TestLoadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/snmp/engine.yaml", []byte(testConfig), 0o640))

	cfg, err := LoadConfig(fs, "/etc/snmp/engine.yaml")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), cfg.EngineBoots)
	assert.Equal(t, int32(DefaultMaxMessageSize), cfg.MaxMessageSize)
	assert.Equal(t, uint32(TimeWindowSeconds), cfg.TimeWindow)
	assert.Equal(t, 16, cfg.EngineCacheSize)
	require.Len(t, cfg.Users, 3)

	var buf bytes.Buffer
	e, err := NewEngineFromConfig(cfg, zerolog.New(&buf))
	require.NoError(t, err)
	assert.Equal(t, mustHex("80001f888001020304"), e.EngineID())
	assert.Equal(t, ReportNoAuthNoPrivIfNeeded, e.strategy)

	u, ok := e.Users().Lookup(vectorEngineID, "bound")
	require.True(t, ok)
	assert.Equal(t, AuthNoPriv, u.SecurityLevel())

	u, ok = e.Users().Lookup(e.EngineID(), "SHADES")
	require.True(t, ok)
	assert.Equal(t, AuthPriv, u.SecurityLevel())
	assert.Equal(t, "des", u.PrivProtocol.Name())

	boots, _ := e.USM().BootsAndTime()
	assert.Equal(t, uint32(7), boots)
}

func TestLoadConfigErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := LoadConfig(fs, "/missing.yaml")
	assert.ErrorContains(t, err, "reading config")

	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("users: [:"), 0o640))
	_, err = LoadConfig(fs, "/bad.yaml")
	assert.ErrorContains(t, err, "parse config")
}

func TestConfigValidate(t *testing.T) {
	p := DefaultSecurityProtocols()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad engine id", Config{EngineID: "zz"}},
		{"short engine id", Config{EngineID: "01020304"}},
		{"boots latched", Config{EngineBoots: MaxEngineBoots}},
		{"strategy", Config{ReportStrategy: "loud"}},
		{"log level", Config{LogLevel: "chatty"}},
		{"no name", Config{Users: []UserConfig{{}}}},
		{"priv without auth", Config{Users: []UserConfig{{Name: "u", PrivProtocol: "des", PrivPassword: "12345678"}}}},
		{"unknown auth", Config{Users: []UserConfig{{Name: "u", AuthProtocol: "sha3", AuthPassword: "12345678"}}}},
		{"unknown priv", Config{Users: []UserConfig{{Name: "u", AuthProtocol: "sha", AuthPassword: "12345678", PrivProtocol: "rc4", PrivPassword: "12345678"}}}},
		{"short password", Config{Users: []UserConfig{{Name: "u", AuthProtocol: "sha", AuthPassword: "1234"}}}},
		{"key without engine", Config{Users: []UserConfig{{Name: "u", AuthProtocol: "md5", AuthKey: "00"}}}},
		{"key and password", Config{Users: []UserConfig{{Name: "u", EngineID: "000000000000000000000002", AuthProtocol: "md5", AuthKey: "00", AuthPassword: "12345678"}}}},
		{"duplicate", Config{Users: []UserConfig{{Name: "u"}, {Name: "u"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate(p))
		})
	}

	cfg := Config{}
	require.NoError(t, cfg.Validate(p))
	assert.Equal(t, int32(DefaultMaxMessageSize), cfg.MaxMessageSize)
	assert.Equal(t, DefaultEngineCacheSize, cfg.EngineCacheSize)
}

func TestNewEngineFromConfigGeneratesEngineID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Users = []UserConfig{{Name: "bad", EngineID: "000000000000000000000002", AuthProtocol: "md5", AuthKey: "0011"}}
	_, err := NewEngineFromConfig(cfg, zerolog.Nop())
	assert.Error(t, err)

	cfg.Users = nil
	e, err := NewEngineFromConfig(cfg, zerolog.Nop())
	require.NoError(t, err)
	id := e.EngineID()
	require.Len(t, id, 21)
	assert.Equal(t, []byte{0x80, 0x00, 0x1f, 0x88, EngineIDFormatOctets}, id[:5])
}
