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

	ASNber "github.com/OlegPowerC/asn1modsnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlegPowerC/powersnmpv3engine/ber"
)

var sysDescr = ber.MustParseOID("1.3.6.1.2.1.1.1.0")

func testScopedPDU() *ScopedPDU {
	return &ScopedPDU{
		ContextEngineID: vectorEngineID,
		ContextName:     []byte("ctx"),
		PDU: PDU{
			Type:      ber.TagGetRequest,
			RequestID: 1234,
			VarBinds: []VarBind{
				{Name: sysDescr},
				{Name: ber.MustParseOID("1.3.6.1.2.1.1.3.0"), Value: ber.TimeTicks(100)},
			},
		},
	}
}

func TestScopedPDURoundTrip(t *testing.T) {
	s := testScopedPDU()
	b, err := s.MarshalBER()
	require.NoError(t, err)

	got, err := ParseScopedPDU(append(b, 0x00, 0x00, 0x00))
	require.NoError(t, err)
	assert.Equal(t, s.ContextEngineID, got.ContextEngineID)
	assert.Equal(t, s.ContextName, got.ContextName)
	assert.Equal(t, s.PDU.RequestID, got.PDU.RequestID)
	assert.True(t, got.PDU.Confirmed())
	require.Len(t, got.PDU.VarBinds, 2)
	assert.Equal(t, ber.Null{}, got.PDU.VarBinds[0].Value)
	assert.Equal(t, ber.TimeTicks(100), got.PDU.VarBinds[1].Value)
}

func TestGetBulkFields(t *testing.T) {
	p := PDU{Type: ber.TagGetBulkRequest}
	p.SetBulk(1, 25)
	s := &ScopedPDU{PDU: p}
	b, err := s.MarshalBER()
	require.NoError(t, err)
	got, err := ParseScopedPDU(b)
	require.NoError(t, err)
	assert.Equal(t, int32(1), got.PDU.NonRepeaters())
	assert.Equal(t, int32(25), got.PDU.MaxRepetitions())
}

func TestPDURejects(t *testing.T) {
	_, err := (&ScopedPDU{PDU: PDU{Type: ber.TagTrapV1}}).MarshalBER()
	assert.Error(t, err)
	_, err = (&ScopedPDU{PDU: PDU{Type: ber.TagGetRequest, VarBinds: []VarBind{{Name: ber.OID{7}}}}}).MarshalBER()
	assert.Error(t, err)

	// request-id does not fit Integer32
	bad := []byte{0x30, 0x15, 0x04, 0x00, 0x04, 0x00,
		0xA0, 0x0F, 0x02, 0x05, 0x01, 0x00, 0x00, 0x00, 0x00, 0x02, 0x01, 0x00, 0x02, 0x01, 0x00, 0x30, 0x00}
	_, err = ParseScopedPDU(bad)
	assert.ErrorIs(t, err, ber.ErrFraming)

	_, err = ParseScopedPDU([]byte{0x30, 0x05, 0x04, 0x00})
	assert.ErrorIs(t, err, ber.ErrFraming)
}

func TestMessageRoundTrip(t *testing.T) {
	scoped, err := testScopedPDU().MarshalBER()
	require.NoError(t, err)

	h := HeaderData{MsgID: 0x00070001, MaxSize: DefaultMaxMessageSize, Flags: msgFlagReportable | msgFlagAuth, SecurityModel: SecurityModelUSM}
	sp := &SecurityParameters{
		AuthoritativeEngineID:    vectorEngineID,
		AuthoritativeEngineBoots: 7,
		AuthoritativeEngineTime:  1000,
		UserName:                 "SHADES",
		AuthenticationParameters: make([]byte, 12),
		PrivacyParameters:        []byte{},
	}
	msg, authOffset := encodeMessage(h, sp, scoped, false)
	// msgFlags OCTET STRING: auth is bit 0, reportable bit 2 (RFC 3412)
	assert.True(t, bytes.Contains(msg, []byte{0x04, 0x01, 0x05}))

	offset, length, err := ASNber.FindSNMPv3AuthParamsOffset(msg)
	require.NoError(t, err)
	assert.Equal(t, offset, authOffset)
	assert.Equal(t, 12, length)

	m, err := DecodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, h, m.Header)
	assert.True(t, m.Header.Reportable())
	assert.Equal(t, authOffset, m.AuthOffset)
	assert.Equal(t, *sp, m.Params)
	assert.Equal(t, scoped, m.ScopedData)
	assert.False(t, m.Encrypted)

	ct := bytes.Repeat([]byte{0xEE}, 24)
	sp.PrivacyParameters = []byte{1, 2, 3, 4, 5, 6, 7, 8}
	msg, authOffset = encodeMessage(h, sp, ct, true)
	m, err = DecodeMessage(msg)
	require.NoError(t, err)
	assert.True(t, m.Encrypted)
	assert.Equal(t, ct, m.ScopedData)
	assert.Equal(t, authOffset, m.AuthOffset)
	assert.Equal(t, sp.PrivacyParameters, m.Params.PrivacyParameters)
}

// Auth parameter offsets stay right when lengths switch to long form.
func TestMessageAuthOffsetLongForm(t *testing.T) {
	s := testScopedPDU()
	s.PDU.VarBinds[1].Value = ber.OctetString(bytes.Repeat([]byte{'x'}, 300))
	scoped, err := s.MarshalBER()
	require.NoError(t, err)

	sp := &SecurityParameters{
		AuthoritativeEngineID:    vectorEngineID,
		UserName:                 string(bytes.Repeat([]byte{'u'}, 32)),
		AuthenticationParameters: make([]byte, 48),
	}
	msg, authOffset := encodeMessage(HeaderData{MsgID: 1, MaxSize: 1500, SecurityModel: 3}, sp, scoped, false)
	offset, length, err := ASNber.FindSNMPv3AuthParamsOffset(msg)
	require.NoError(t, err)
	assert.Equal(t, offset, authOffset)
	assert.Equal(t, 48, length)
}

func TestDecodeMessageRejects(t *testing.T) {
	scoped, err := testScopedPDU().MarshalBER()
	require.NoError(t, err)
	sp := &SecurityParameters{AuthoritativeEngineID: vectorEngineID}
	encode := func(h HeaderData) []byte {
		msg, _ := encodeMessage(h, sp, scoped, false)
		return msg
	}
	good := HeaderData{MsgID: 1, MaxSize: 1500, SecurityModel: SecurityModelUSM}

	h := good
	h.MaxSize = 100
	_, err = DecodeMessage(encode(h))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	h = good
	h.Flags = msgFlagPriv
	_, err = DecodeMessage(encode(h))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	h = good
	h.MsgID = -5
	_, err = DecodeMessage(encode(h))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	h = good
	h.SecurityModel = 2
	_, err = DecodeMessage(encode(h))
	assert.ErrorIs(t, err, ErrUnknownSecurityModel)

	msg := encode(good)
	msg[4] = 1 // msgVersion
	_, err = DecodeMessage(msg)
	assert.ErrorIs(t, err, ErrBadVersion)

	_, err = DecodeMessage(encode(good)[:40])
	assert.ErrorIs(t, err, ber.ErrFraming)

	_, err = DecodeMessage([]byte{0x30, 0x80, 0x02, 0x01, 0x03, 0x00, 0x00})
	assert.ErrorIs(t, err, ber.ErrFraming)
}

func TestPDUErr(t *testing.T) {
	p := PDU{Type: ber.TagResponse, VarBinds: []VarBind{{Name: sysDescr}}}
	assert.NoError(t, p.Err())

	p.ErrorStatus, p.ErrorIndex = NotWritable, 1
	err := p.Err()
	var rerr *ResponseError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, sysDescr, rerr.FailedName)
	assert.Equal(t, "notWritable (status=17, index=1): 1.3.6.1.2.1.1.1.0", err.Error())

	p.ErrorIndex = 5
	require.ErrorAs(t, p.Err(), &rerr)
	assert.Nil(t, rerr.FailedName)

	p.Type = ber.TagGetBulkRequest
	assert.NoError(t, p.Err())
}
