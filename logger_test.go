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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&buf, LoggerJSON, "")
	require.NoError(t, err)
	log.Debug().Msg("hidden")
	log.Info().Str("user", "SHADES").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"user":"SHADES"`)

	buf.Reset()
	log, err = NewLogger(&buf, LoggerConsole, "debug")
	require.NoError(t, err)
	log.Debug().Msg("console line")
	assert.Contains(t, buf.String(), "console line")
	assert.NotContains(t, buf.String(), "{")

	_, err = NewLogger(&buf, LoggerJSON, "loud")
	assert.Error(t, err)
}
