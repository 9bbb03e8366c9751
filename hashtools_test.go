//go:build !integration

// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	vectorPassword = []byte("maplesyrup")
	vectorEngineID = mustHex("000000000000000000000002")
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func TestPasswordToKey(t *testing.T) {
	tests := []struct {
		proto AuthProtocol
		want  string
	}{
		{AuthMD5, "526f5eed9fcce26f8964c2930787d82b"},
		{AuthSHA, "6695febc9288e36282235fc7151f128497b38f3f"},
		{AuthHMAC128SHA224, "0bd8827c6e29f8065e08e09237f177e410f69b90e1782be682075674"},
		{AuthHMAC192SHA256, "8982e0e549e866db361a6b625d84cccc11162d453ee8ce3a6445c2d6776f0f8b"},
		{AuthHMAC256SHA384, "3b298f16164a11184279d5432bf169e2d2a48307de02b3d3f7e2b4f36eb6f0455a53689a3937eea07319a633d2ccba78"},
		{AuthHMAC384SHA512, "22a5a36cedfcc085807a128d7bc6c2382167ad6c0dbc5fdff856740f3d84c099ad1ea87a8db096714d9788bd544047c9021e4229ce27e4c0a69250adfcffbb0b"},
	}
	for _, tt := range tests {
		t.Run(tt.proto.Name(), func(t *testing.T) {
			key, err := tt.proto.PasswordToKey(vectorPassword, vectorEngineID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hex.EncodeToString(key))
			assert.Len(t, key, tt.proto.KeyLength())
		})
	}
}

func TestPasswordToKeyBindsEngine(t *testing.T) {
	a, err := PasswordToKey(AuthSHA, vectorPassword, vectorEngineID)
	require.NoError(t, err)
	b, err := PasswordToKey(AuthSHA, vectorPassword, mustHex("000000000000000000000003"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = PasswordToKey(AuthSHA, nil, vectorEngineID)
	assert.Error(t, err)
	_, err = PasswordToKey(nil, vectorPassword, vectorEngineID)
	assert.Error(t, err)
}

func TestExtendKey(t *testing.T) {
	tests := []struct {
		name   string
		auth   AuthProtocol
		reeder bool
		want   string
	}{
		{"md5 reeder", AuthMD5, true, "526f5eed9fcce26f8964c2930787d82b79eff44a90650ee0a3a40abfac5acc12"},
		{"sha reeder", AuthSHA, true, "6695febc9288e36282235fc7151f128497b38f3f9b8b6d78936ba6e7d19dfd9c"},
		{"md5 blumenthal", AuthMD5, false, "526f5eed9fcce26f8964c2930787d82bfa24a92467426c2f4b09192be10dfaec"},
		{"sha blumenthal", AuthSHA, false, "6695febc9288e36282235fc7151f128497b38f3f505e07eb9af25568fa1f5dbe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := tt.auth.PasswordToKey(vectorPassword, vectorEngineID)
			require.NoError(t, err)
			ext, err := extendPrivKey(tt.auth, key, vectorEngineID, 32, tt.reeder)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hex.EncodeToString(ext))
		})
	}
}

func TestExtendKeyTruncates(t *testing.T) {
	key, err := AuthHMAC192SHA256.PasswordToKey(vectorPassword, vectorEngineID)
	require.NoError(t, err)

	ext, err := NewPrivAES().ExtendKey(AuthHMAC192SHA256, key, vectorEngineID)
	require.NoError(t, err)
	assert.Equal(t, key[:16], ext)

	_, err = extendPrivKey(nil, key[:16], vectorEngineID, 32, true)
	assert.Error(t, err)
}

func TestKeyChange(t *testing.T) {
	for _, proto := range []AuthProtocol{AuthMD5, AuthSHA, AuthHMAC192SHA256, AuthHMAC384SHA512} {
		t.Run(proto.Name(), func(t *testing.T) {
			oldKey, err := proto.PasswordToKey(vectorPassword, vectorEngineID)
			require.NoError(t, err)
			newKey, err := proto.PasswordToKey([]byte("newsyrup"), vectorEngineID)
			require.NoError(t, err)
			random := bytes.Repeat([]byte{0x5a}, len(oldKey))

			change, err := ChangeDelta(proto, oldKey, newKey, random)
			require.NoError(t, err)
			require.Len(t, change, 2*len(oldKey))
			assert.Equal(t, random, change[:len(random)])
			assert.NotEqual(t, newKey, change[len(random):])

			got, err := ApplyKeyChange(proto, oldKey, change)
			require.NoError(t, err)
			assert.Equal(t, newKey, got)
		})
	}
}

// 3DES keys are longer than an MD5 digest, so the chain runs twice.
func TestKeyChangeLongKey(t *testing.T) {
	oldKey := bytes.Repeat([]byte{0x11}, 32)
	newKey := bytes.Repeat([]byte{0x22}, 32)
	random := bytes.Repeat([]byte{0x33}, 32)

	change, err := ChangeDelta(AuthMD5, oldKey, newKey, random)
	require.NoError(t, err)
	got, err := ApplyKeyChange(AuthMD5, oldKey, change)
	require.NoError(t, err)
	assert.Equal(t, newKey, got)

	_, err = ChangeDelta(AuthMD5, oldKey, newKey[:16], random)
	assert.Error(t, err)
	_, err = ApplyKeyChange(AuthMD5, oldKey, change[:40])
	assert.Error(t, err)
}
