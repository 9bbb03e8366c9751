//go:build !integration

// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package ber

import (
	"testing"

	ASNber "github.com/OlegPowerC/asn1modsnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueRoundTrip(t *testing.T) {
	values := []Value{
		Integer(-2511),
		Integer(7),
		OctetString("TestVal123"),
		OctetString{},
		Null{},
		ObjectIdentifier{1, 3, 6, 1, 6, 3, 15, 1, 1, 3, 0},
		IPAddress{192, 168, 21, 119},
		Counter32(4294967295),
		Gauge32(63025),
		TimeTicks(120),
		Opaque{0xDE, 0xAD},
		Counter64(1099511627775),
		NoSuchObject{},
		NoSuchInstance{},
		EndOfMibView{},
	}
	for _, v := range values {
		enc, err := AppendValue(nil, v)
		require.NoError(t, err, "%T", v)
		assert.Equal(t, byte(v.Tag()), enc[0])
		got, err := NewDecoder(enc).DecodeValue()
		require.NoError(t, err, "%T", v)
		assert.Equal(t, v, got)
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"OctetString", OctetString("TestVal123"), "TestVal123"},
		{"OctetStringNulPadded", OctetString("host\x00\x00"), "host"},
		{"HexString", OctetString{0x80, 0x00, 0x1F, 0x88}, "80001f88"},
		{"INTEGER", Integer(7), "7"},
		{"IPADDR", IPAddress{192, 168, 21, 119}, "192.168.21.119"},
		{"TIMETICKS", TimeTicks(120), "1.2s"},
		{"OID", ObjectIdentifier{1, 3, 6, 99999}, "1.3.6.99999"},
		{"COUNTER64", Counter64(1 << 40), "1099511627776"},
		{"OPAQUE", Opaque{0xCA, 0xFE}, "cafe"},
		{"endOfMibView", EndOfMibView{}, "endOfMibView"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestDecodeValueRejects(t *testing.T) {
	tests := map[string][]byte{
		"short ipaddress":   {0x40, 0x03, 10, 0, 0},
		"unknown tag":       {0x47, 0x01, 0x00},
		"integer32 range":   {0x02, 0x05, 0x01, 0x00, 0x00, 0x00, 0x00},
		"null with content": {0x05, 0x01, 0x00},
	}
	for name, in := range tests {
		_, err := NewDecoder(in).DecodeValue()
		assert.ErrorIs(t, err, ErrFraming, name)
	}
	_, err := AppendValue(nil, nil)
	assert.Error(t, err)
}

func TestParseOID(t *testing.T) {
	_, err := ParseOID(".1.3.6.abc.6")
	assert.Error(t, err)
	_, err = ParseOID("1..3")
	assert.Error(t, err)
	_, err = ParseOID("")
	assert.Error(t, err)

	oid, err := ParseOID(".1.3.6.134.141.31.2.1.47.1.3.2.1.2.134.141.31.1")
	require.NoError(t, err)
	assert.Equal(t, OID{1, 3, 6, 134, 141, 31, 2, 1, 47, 1, 3, 2, 1, 2, 134, 141, 31, 1}, oid)
	assert.Equal(t, "1.3.6.134.141.31.2.1.47.1.3.2.1.2.134.141.31.1", oid.String())
}

func TestOIDOrdering(t *testing.T) {
	system := MustParseOID("1.3.6.1.2.1.1")
	assert.True(t, MustParseOID("1.3.6.1.2.1.1.1.0").HasPrefix(system))
	assert.False(t, MustParseOID("1.3.6.1.2.1.2.1").HasPrefix(system))
	assert.False(t, OID{1, 3}.HasPrefix(system))

	assert.Equal(t, 0, system.Compare(OID{1, 3, 6, 1, 2, 1, 1}))
	assert.Equal(t, -1, system.Compare(system.Append(0)))
	assert.Equal(t, 1, OID{1, 3, 6, 2}.Compare(system))
	assert.Equal(t, -1, OID{1, 3, 6, 1, 2, 1, 0, 9}.Compare(system))

	child := system.Append(5)
	assert.Len(t, system, 7, "Append must not alias")
	assert.Equal(t, "1.3.6.1.2.1.1.5", child.String())
}

// asn1modsnmp is an independent decoder; both must agree on the bytes this
// package produces.
func TestInteropWithASN1ModSNMP(t *testing.T) {
	for _, oid := range []OID{
		{1, 3, 6, 1, 6, 3, 15, 1, 1, 4, 0},
		{1, 3, 6, 1, 4, 1, 99999, 16384, 2097152},
		{1, 3, 6, 1, 4, 1, 9, 12, 6, 1, 2},
	} {
		enc, err := AppendOID(nil, TagOID, oid)
		require.NoError(t, err)
		var got ASNber.ObjectIdentifier
		rest, err := ASNber.Unmarshal(enc, &got)
		require.NoError(t, err)
		assert.Empty(t, rest)
		require.Len(t, got, len(oid))
		for i := range oid {
			assert.Equal(t, int(oid[i]), got[i])
		}
	}

	for _, v := range []int64{0, 1, -1, 127, 128, -129, 65535, -2147483648, 2147483647} {
		var got int64
		_, err := ASNber.Unmarshal(AppendInteger(nil, TagInteger, v), &got)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	var s []byte
	_, err := ASNber.Unmarshal(AppendOctetString(nil, TagOctetString, []byte("maplesyrup")), &s)
	require.NoError(t, err)
	assert.Equal(t, "maplesyrup", string(s))
}
