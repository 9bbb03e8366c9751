// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"fmt"

	"github.com/OlegPowerC/powersnmpv3engine/ber"
)

// VarBind represents single SNMP VarBind (OID + Value pair).
//
// RFC3416 §4.1.2.2 compliant structure: ObjectName + ObjectSyntax.
//
// Fields:
//
//	Name  - decoded OID, e.g. ber.OID{1,3,6,1,2,1,1,1,0} → sysDescr.0
//	Value - one of the ber.Value types; nil is sent as NULL (requests)
//
// Exceptions (noSuchObject, noSuchInstance, endOfMibView) arrive as the
// matching ber.Value types, so a walk can switch on the value type.
type VarBind struct {
	Name  ber.OID
	Value ber.Value
}

// PDU represents an SNMPv2 PDU (RFC3416 §3).
//
// Unified structure for ALL operations: GET/GETNEXT/SET/GETBULK, RESPONSE,
// INFORM, TRAP and REPORT. For GetBulkRequest the error fields carry
// non-repeaters and max-repetitions, use NonRepeaters/MaxRepetitions.
type PDU struct {
	Type        ber.Tag
	RequestID   int32
	ErrorStatus ErrorStatus
	ErrorIndex  int32
	VarBinds    []VarBind
}

func (p *PDU) NonRepeaters() int32   { return int32(p.ErrorStatus) }
func (p *PDU) MaxRepetitions() int32 { return p.ErrorIndex }

// SetBulk stores GetBulkRequest parameters.
func (p *PDU) SetBulk(nonRepeaters, maxRepetitions int32) {
	p.ErrorStatus = ErrorStatus(nonRepeaters)
	p.ErrorIndex = maxRepetitions
}

// Confirmed reports whether the PDU belongs to the Confirmed Class
// (RFC 3411 §2.8): a response is expected.
func (p *PDU) Confirmed() bool {
	switch p.Type {
	case ber.TagGetRequest, ber.TagGetNextRequest, ber.TagGetBulkRequest, ber.TagSetRequest, ber.TagInformRequest:
		return true
	}
	return false
}

// IsResponse reports whether the PDU belongs to the Response Class.
func (p *PDU) IsResponse() bool {
	return p.Type == ber.TagResponse || p.Type == ber.TagReport
}

// Err returns a *ResponseError for a Response carrying a non-zero
// error-status, nil otherwise. FailedName is the varbind error-index
// points at, when there is one.
func (p *PDU) Err() error {
	if p.Type != ber.TagResponse || p.ErrorStatus == NoError {
		return nil
	}
	re := &ResponseError{Status: p.ErrorStatus, Index: p.ErrorIndex}
	if p.ErrorIndex > 0 && int(p.ErrorIndex) <= len(p.VarBinds) {
		re.FailedName = p.VarBinds[p.ErrorIndex-1].Name
	}
	return re
}

func appendPDU(dst []byte, p *PDU) ([]byte, error) {
	if !p.Type.IsPDU() || p.Type == ber.TagTrapV1 {
		return dst, fmt.Errorf("unsupported PDU type %s", p.Type)
	}
	var vbl []byte
	for i, vb := range p.VarBinds {
		item, err := ber.AppendOID(nil, ber.TagOID, vb.Name)
		if err != nil {
			return dst, fmt.Errorf("varbind %d: %w", i, err)
		}
		v := vb.Value
		if v == nil {
			v = ber.Null{}
		}
		if item, err = ber.AppendValue(item, v); err != nil {
			return dst, fmt.Errorf("varbind %d: %w", i, err)
		}
		vbl = ber.AppendSequence(vbl, ber.TagSequence, item)
	}
	body := ber.AppendInteger(nil, ber.TagInteger, int64(p.RequestID))
	body = ber.AppendInteger(body, ber.TagInteger, int64(p.ErrorStatus))
	body = ber.AppendInteger(body, ber.TagInteger, int64(p.ErrorIndex))
	body = ber.AppendSequence(body, ber.TagSequence, vbl)
	return ber.AppendSequence(dst, p.Type, body), nil
}

func decodeInteger32(d *ber.Decoder, field string) (int32, error) {
	start := d.Offset()
	v, tag, err := d.DecodeInteger()
	if err != nil {
		return 0, err
	}
	if tag != ber.TagInteger {
		return 0, &ber.FramingError{Offset: start, Msg: fmt.Sprintf("%s: unexpected %s", field, tag)}
	}
	if v < -maxInteger32-1 || v > maxInteger32 {
		return 0, &ber.FramingError{Offset: start, Msg: fmt.Sprintf("%s: %d out of Integer32 range", field, v)}
	}
	return int32(v), nil
}

func decodeOctets(d *ber.Decoder, field string) ([]byte, error) {
	start := d.Offset()
	b, tag, err := d.DecodeOctetString()
	if err != nil {
		return nil, err
	}
	if tag != ber.TagOctetString {
		return nil, &ber.FramingError{Offset: start, Msg: fmt.Sprintf("%s: unexpected %s", field, tag)}
	}
	return b, nil
}

func decodeSequence(d *ber.Decoder, want ber.Tag, field string) (*ber.Decoder, error) {
	start := d.Offset()
	sub, tag, err := d.DecodeSequence()
	if err != nil {
		return nil, err
	}
	if tag != want {
		return nil, &ber.FramingError{Offset: start, Msg: fmt.Sprintf("%s: unexpected %s", field, tag)}
	}
	return sub, nil
}

func decodePDU(d *ber.Decoder) (PDU, error) {
	start := d.Offset()
	body, tag, err := d.DecodeSequence()
	if err != nil {
		return PDU{}, err
	}
	if !tag.IsPDU() || tag == ber.TagTrapV1 {
		return PDU{}, &ber.FramingError{Offset: start, Msg: fmt.Sprintf("unexpected PDU %s", tag)}
	}
	p := PDU{Type: tag}
	if p.RequestID, err = decodeInteger32(body, "request-id"); err != nil {
		return PDU{}, err
	}
	status, err := decodeInteger32(body, "error-status")
	if err != nil {
		return PDU{}, err
	}
	p.ErrorStatus = ErrorStatus(status)
	if p.ErrorIndex, err = decodeInteger32(body, "error-index"); err != nil {
		return PDU{}, err
	}
	vbl, err := decodeSequence(body, ber.TagSequence, "variable-bindings")
	if err != nil {
		return PDU{}, err
	}
	for !vbl.Empty() {
		item, err := decodeSequence(vbl, ber.TagSequence, "varbind")
		if err != nil {
			return PDU{}, err
		}
		oidStart := item.Offset()
		name, tag, err := item.DecodeOID()
		if err != nil {
			return PDU{}, err
		}
		if tag != ber.TagOID {
			return PDU{}, &ber.FramingError{Offset: oidStart, Msg: fmt.Sprintf("varbind name: unexpected %s", tag)}
		}
		value, err := item.DecodeValue()
		if err != nil {
			return PDU{}, err
		}
		p.VarBinds = append(p.VarBinds, VarBind{Name: name, Value: value})
	}
	return p, nil
}

// ScopedPDU is the PDU with its context (RFC 3412 §6.1).
type ScopedPDU struct {
	ContextEngineID []byte
	ContextName     []byte
	PDU             PDU
}

// MarshalBER encodes the scoped PDU as a SEQUENCE.
func (s *ScopedPDU) MarshalBER() ([]byte, error) {
	body := ber.AppendOctetString(nil, ber.TagOctetString, s.ContextEngineID)
	body = ber.AppendOctetString(body, ber.TagOctetString, s.ContextName)
	body, err := appendPDU(body, &s.PDU)
	if err != nil {
		return nil, err
	}
	return ber.AppendSequence(nil, ber.TagSequence, body), nil
}

// ParseScopedPDU decodes the first TLV of b as a scoped PDU. Octets after it
// are ignored, they are cipher padding some agents leave behind.
func ParseScopedPDU(b []byte) (*ScopedPDU, error) {
	d := ber.NewDecoder(b)
	body, err := decodeSequence(d, ber.TagSequence, "scopedPDU")
	if err != nil {
		return nil, err
	}
	s := &ScopedPDU{}
	if s.ContextEngineID, err = decodeOctets(body, "contextEngineID"); err != nil {
		return nil, err
	}
	if s.ContextName, err = decodeOctets(body, "contextName"); err != nil {
		return nil, err
	}
	if s.PDU, err = decodePDU(body); err != nil {
		return nil, err
	}
	return s, nil
}

// SecurityParameters is UsmSecurityParameters (RFC 3414 §2.4).
type SecurityParameters struct {
	AuthoritativeEngineID    []byte
	AuthoritativeEngineBoots uint32
	AuthoritativeEngineTime  uint32
	UserName                 string
	AuthenticationParameters []byte
	PrivacyParameters        []byte
}

// marshal returns the SEQUENCE and the offset of the authentication
// parameters content inside it.
func (sp *SecurityParameters) marshal() ([]byte, int) {
	body := ber.AppendOctetString(nil, ber.TagOctetString, sp.AuthoritativeEngineID)
	body = ber.AppendInteger(body, ber.TagInteger, int64(sp.AuthoritativeEngineBoots))
	body = ber.AppendInteger(body, ber.TagInteger, int64(sp.AuthoritativeEngineTime))
	body = ber.AppendOctetString(body, ber.TagOctetString, []byte(sp.UserName))
	authOffset := len(body) + ber.HeaderLen(len(sp.AuthenticationParameters))
	body = ber.AppendOctetString(body, ber.TagOctetString, sp.AuthenticationParameters)
	body = ber.AppendOctetString(body, ber.TagOctetString, sp.PrivacyParameters)

	out := ber.AppendHeader(nil, ber.TagSequence, len(body))
	authOffset += len(out)
	return append(out, body...), authOffset
}

func decodeUnsigned31(d *ber.Decoder, field string) (uint32, error) {
	start := d.Offset()
	v, err := decodeInteger32(d, field)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, &ber.FramingError{Offset: start, Msg: fmt.Sprintf("%s: negative value %d", field, v)}
	}
	return uint32(v), nil
}

// parseSecurityParameters decodes the USM SEQUENCE and returns the absolute
// offset of the authentication parameters content.
func parseSecurityParameters(d *ber.Decoder) (SecurityParameters, int, error) {
	var sp SecurityParameters
	seq, err := decodeSequence(d, ber.TagSequence, "UsmSecurityParameters")
	if err != nil {
		return sp, 0, err
	}
	if sp.AuthoritativeEngineID, err = decodeOctets(seq, "msgAuthoritativeEngineID"); err != nil {
		return sp, 0, err
	}
	if sp.AuthoritativeEngineBoots, err = decodeUnsigned31(seq, "msgAuthoritativeEngineBoots"); err != nil {
		return sp, 0, err
	}
	if sp.AuthoritativeEngineTime, err = decodeUnsigned31(seq, "msgAuthoritativeEngineTime"); err != nil {
		return sp, 0, err
	}
	name, err := decodeOctets(seq, "msgUserName")
	if err != nil {
		return sp, 0, err
	}
	if len(name) > 32 {
		return sp, 0, &ber.FramingError{Offset: seq.Offset(), Msg: "msgUserName longer than 32 octets"}
	}
	sp.UserName = string(name)
	if sp.AuthenticationParameters, err = decodeOctets(seq, "msgAuthenticationParameters"); err != nil {
		return sp, 0, err
	}
	authOffset := seq.Offset() - len(sp.AuthenticationParameters)
	if sp.PrivacyParameters, err = decodeOctets(seq, "msgPrivacyParameters"); err != nil {
		return sp, 0, err
	}
	return sp, authOffset, nil
}

// HeaderData is msgGlobalData (RFC 3412 §6).
type HeaderData struct {
	MsgID         int32
	MaxSize       int32
	Flags         byte
	SecurityModel int32
}

// Reportable reports whether the sender expects a REPORT on failure.
func (h HeaderData) Reportable() bool { return h.Flags&msgFlagReportable != 0 }

// Message is a decoded SNMPv3Message. ScopedData holds either the plaintext
// scoped PDU TLV or the encryptedPDU octets, AuthOffset the position of the
// msgAuthenticationParameters content inside Raw.
type Message struct {
	Header     HeaderData
	Params     SecurityParameters
	AuthOffset int
	ScopedData []byte
	Encrypted  bool
	Raw        []byte
}

// encodeMessage builds an SNMPv3Message and returns the absolute offset of
// the authentication parameters content.
func encodeMessage(h HeaderData, sp *SecurityParameters, scoped []byte, encrypted bool) ([]byte, int) {
	hdr := ber.AppendInteger(nil, ber.TagInteger, int64(h.MsgID))
	hdr = ber.AppendInteger(hdr, ber.TagInteger, int64(h.MaxSize))
	hdr = ber.AppendOctetString(hdr, ber.TagOctetString, []byte{h.Flags})
	hdr = ber.AppendInteger(hdr, ber.TagInteger, int64(h.SecurityModel))

	body := ber.AppendInteger(nil, ber.TagInteger, snmpVersion3)
	body = ber.AppendSequence(body, ber.TagSequence, hdr)

	sec, authOffset := sp.marshal()
	authOffset += len(body) + ber.HeaderLen(len(sec))
	body = ber.AppendOctetString(body, ber.TagOctetString, sec)
	if encrypted {
		body = ber.AppendOctetString(body, ber.TagOctetString, scoped)
	} else {
		body = append(body, scoped...)
	}

	msg := ber.AppendHeader(make([]byte, 0, len(body)+6), ber.TagSequence, len(body))
	authOffset += len(msg)
	return append(msg, body...), authOffset
}

// DecodeMessage parses an SNMPv3Message. BER problems are *ber.FramingError;
// a wrong version is ErrBadVersion, a non-USM model ErrUnknownSecurityModel
// and out of range header fields ErrInvalidMessage.
func DecodeMessage(b []byte) (*Message, error) {
	d := ber.NewDecoder(b)
	msg, err := decodeSequence(d, ber.TagSequence, "SNMPv3Message")
	if err != nil {
		return nil, err
	}
	version, err := decodeInteger32(msg, "msgVersion")
	if err != nil {
		return nil, err
	}
	if version != snmpVersion3 {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}

	hdr, err := decodeSequence(msg, ber.TagSequence, "msgGlobalData")
	if err != nil {
		return nil, err
	}
	m := &Message{Raw: b}
	if m.Header.MsgID, err = decodeInteger32(hdr, "msgID"); err != nil {
		return nil, err
	}
	if m.Header.MaxSize, err = decodeInteger32(hdr, "msgMaxSize"); err != nil {
		return nil, err
	}
	flags, err := decodeOctets(hdr, "msgFlags")
	if err != nil {
		return nil, err
	}
	if m.Header.SecurityModel, err = decodeInteger32(hdr, "msgSecurityModel"); err != nil {
		return nil, err
	}
	switch {
	case m.Header.MsgID < 0:
		return nil, fmt.Errorf("%w: msgID %d", ErrInvalidMessage, m.Header.MsgID)
	case m.Header.MaxSize < MinMessageSize:
		return nil, fmt.Errorf("%w: msgMaxSize %d", ErrInvalidMessage, m.Header.MaxSize)
	case len(flags) != 1:
		return nil, fmt.Errorf("%w: msgFlags of %d octets", ErrInvalidMessage, len(flags))
	case m.Header.SecurityModel < 1:
		return nil, fmt.Errorf("%w: msgSecurityModel %d", ErrInvalidMessage, m.Header.SecurityModel)
	}
	m.Header.Flags = flags[0]
	if _, ok := securityLevelFromFlags(m.Header.Flags); !ok {
		return nil, fmt.Errorf("%w: msgFlags 0x%02x has priv without auth", ErrInvalidMessage, m.Header.Flags)
	}
	if m.Header.SecurityModel != SecurityModelUSM {
		return m, fmt.Errorf("%w: %d", ErrUnknownSecurityModel, m.Header.SecurityModel)
	}

	sec, err := decodeSequence(msg, ber.TagOctetString, "msgSecurityParameters")
	if err != nil {
		return nil, err
	}
	if m.Params, m.AuthOffset, err = parseSecurityParameters(sec); err != nil {
		return nil, err
	}

	tag, err := msg.PeekTag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case ber.TagSequence:
		raw, _, err := msg.DecodeRaw()
		if err != nil {
			return nil, err
		}
		m.ScopedData = raw
	case ber.TagOctetString:
		if m.ScopedData, _, err = msg.DecodeOctetString(); err != nil {
			return nil, err
		}
		m.Encrypted = true
	default:
		return nil, &ber.FramingError{Offset: msg.Offset(), Msg: fmt.Sprintf("msgData: unexpected %s", tag)}
	}
	return m, nil
}
