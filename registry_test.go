//go:build !integration

// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlegPowerC/powersnmpv3engine/ber"
)

func TestDefaultSecurityProtocols(t *testing.T) {
	p := DefaultSecurityProtocols()

	for _, name := range []string{"md5", "sha", "sha224", "sha256", "sha384", "sha512", "SHA"} {
		_, ok := p.AuthByName(name)
		assert.True(t, ok, name)
	}
	for _, name := range []string{"des", "3des", "aes", "aes192", "aes256", "aes192a", "AES256A"} {
		_, ok := p.PrivByName(name)
		assert.True(t, ok, name)
	}

	a, ok := p.Auth(ber.MustParseOID("1.3.6.1.6.3.10.1.1.3"))
	require.True(t, ok)
	assert.Equal(t, "sha", a.Name())

	pr, ok := p.Priv(OIDUsmAESCfb256AProtocol)
	require.True(t, ok)
	assert.Equal(t, 32, pr.KeyLength())

	_, ok = p.Auth(OIDUsmNoAuthProtocol)
	assert.False(t, ok)

	auths := p.AuthProtocols()
	require.Len(t, auths, 6)
	assert.Equal(t, "md5", auths[0].Name())
	assert.Len(t, p.PrivProtocols(), 7)
}

func TestSecurityProtocolsAreIndependent(t *testing.T) {
	a := NewSecurityProtocols()
	require.NoError(t, a.AddAuth(AuthSHA))
	assert.Error(t, a.AddAuth(AuthSHA))
	require.NoError(t, a.AddPriv(NewPrivAES()))
	assert.Error(t, a.AddPriv(NewPrivAES()))

	b := NewSecurityProtocols()
	_, ok := b.AuthByName("sha")
	assert.False(t, ok)

	d1, _ := DefaultSecurityProtocols().PrivByName("des")
	d2, _ := DefaultSecurityProtocols().PrivByName("des")
	assert.NotSame(t, d1, d2)
}
