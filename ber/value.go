// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package ber

import (
	"encoding/hex"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"
)

// Value is a varbind value. The set of implementations is closed: every
// type below is the only way to carry the corresponding SNMP syntax.
type Value interface {
	Tag() Tag
	String() string
	isValue()
}

type (
	Integer          int32
	OctetString      []byte
	Null             struct{}
	ObjectIdentifier OID
	IPAddress        [4]byte
	Counter32        uint32
	Gauge32          uint32
	TimeTicks        uint32
	Opaque           []byte
	Counter64        uint64
	NoSuchObject     struct{}
	NoSuchInstance   struct{}
	EndOfMibView     struct{}
)

func (Integer) Tag() Tag          { return TagInteger }
func (OctetString) Tag() Tag      { return TagOctetString }
func (Null) Tag() Tag             { return TagNull }
func (ObjectIdentifier) Tag() Tag { return TagOID }
func (IPAddress) Tag() Tag        { return TagIPAddress }
func (Counter32) Tag() Tag        { return TagCounter32 }
func (Gauge32) Tag() Tag          { return TagGauge32 }
func (TimeTicks) Tag() Tag        { return TagTimeTicks }
func (Opaque) Tag() Tag           { return TagOpaque }
func (Counter64) Tag() Tag        { return TagCounter64 }
func (NoSuchObject) Tag() Tag     { return TagNoSuchObject }
func (NoSuchInstance) Tag() Tag   { return TagNoSuchInstance }
func (EndOfMibView) Tag() Tag     { return TagEndOfMibView }

func (Integer) isValue()          {}
func (OctetString) isValue()      {}
func (Null) isValue()             {}
func (ObjectIdentifier) isValue() {}
func (IPAddress) isValue()        {}
func (Counter32) isValue()        {}
func (Gauge32) isValue()          {}
func (TimeTicks) isValue()        {}
func (Opaque) isValue()           {}
func (Counter64) isValue()        {}
func (NoSuchObject) isValue()     {}
func (NoSuchInstance) isValue()   {}
func (EndOfMibView) isValue()     {}

func (v Integer) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v Counter32) String() string { return strconv.FormatUint(uint64(v), 10) }
func (v Gauge32) String() string   { return strconv.FormatUint(uint64(v), 10) }
func (v Counter64) String() string { return strconv.FormatUint(uint64(v), 10) }
func (Null) String() string        { return "NULL" }
func (NoSuchObject) String() string {
	return "noSuchObject"
}
func (NoSuchInstance) String() string {
	return "noSuchInstance"
}
func (EndOfMibView) String() string {
	return "endOfMibView"
}

func (v ObjectIdentifier) String() string { return OID(v).String() }
func (v IPAddress) String() string        { return net.IP(v[:]).String() }
func (v Opaque) String() string           { return hex.EncodeToString(v) }

// String renders hundredths of a second as a duration ("1.2s", "1h2m3s").
func (v TimeTicks) String() string {
	return (time.Duration(v) * 10 * time.Millisecond).String()
}

// String returns printable text as is, cutting trailing NUL padding, and a
// hex dump for anything else.
func (v OctetString) String() string {
	if printable, last := isPrintable(v); printable {
		return string(v[:last+1])
	}
	return hex.EncodeToString(v)
}

// isPrintable accepts ASCII text with tab/CR/LF and trailing NULs only.
func isPrintable(b []byte) (bool, int) {
	firstZero := -1
	last := 0
	seen := false
	for i, c := range b {
		switch {
		case c >= 0x20 && c <= 0x7e:
			last = i
			seen = true
		case c == '\t' || c == '\n' || c == '\r':
		case c == 0x00:
			if firstZero == -1 {
				firstZero = i
			}
		default:
			return false, last
		}
	}
	if firstZero > -1 && firstZero < last {
		return false, last
	}
	return seen, last
}

// AppendValue encodes v with its own tag.
func AppendValue(dst []byte, v Value) ([]byte, error) {
	switch v := v.(type) {
	case Integer:
		return AppendInteger(dst, TagInteger, int64(v)), nil
	case OctetString:
		return AppendOctetString(dst, TagOctetString, v), nil
	case Null:
		return AppendNull(dst, TagNull), nil
	case ObjectIdentifier:
		return AppendOID(dst, TagOID, OID(v))
	case IPAddress:
		return AppendOctetString(dst, TagIPAddress, v[:]), nil
	case Counter32:
		return AppendUnsigned32(dst, TagCounter32, uint32(v)), nil
	case Gauge32:
		return AppendUnsigned32(dst, TagGauge32, uint32(v)), nil
	case TimeTicks:
		return AppendUnsigned32(dst, TagTimeTicks, uint32(v)), nil
	case Opaque:
		return AppendOctetString(dst, TagOpaque, v), nil
	case Counter64:
		return AppendUnsigned64(dst, TagCounter64, uint64(v)), nil
	case NoSuchObject:
		return AppendNull(dst, TagNoSuchObject), nil
	case NoSuchInstance:
		return AppendNull(dst, TagNoSuchInstance), nil
	case EndOfMibView:
		return AppendNull(dst, TagEndOfMibView), nil
	case nil:
		return dst, fmt.Errorf("ber: nil value")
	default:
		return dst, fmt.Errorf("ber: unsupported value type %T", v)
	}
}

// DecodeValue decodes the next TLV as one of the Value types, chosen by tag.
// Unknown tags are framing errors.
func (d *Decoder) DecodeValue() (Value, error) {
	start := d.Offset()
	tag, err := d.PeekTag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagInteger:
		v, _, err := d.DecodeInteger()
		if err != nil {
			return nil, err
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, framingError(start, "INTEGER %d out of Integer32 range", v)
		}
		return Integer(v), nil
	case TagOctetString, TagOpaque, TagIPAddress:
		b, _, err := d.DecodeOctetString()
		if err != nil {
			return nil, err
		}
		switch tag {
		case TagOpaque:
			return Opaque(b), nil
		case TagIPAddress:
			if len(b) != 4 {
				return nil, framingError(start, "IpAddress of %d octets", len(b))
			}
			return IPAddress(b), nil
		}
		return OctetString(b), nil
	case TagNull, TagNoSuchObject, TagNoSuchInstance, TagEndOfMibView:
		if _, err := d.DecodeNull(); err != nil {
			return nil, err
		}
		switch tag {
		case TagNoSuchObject:
			return NoSuchObject{}, nil
		case TagNoSuchInstance:
			return NoSuchInstance{}, nil
		case TagEndOfMibView:
			return EndOfMibView{}, nil
		}
		return Null{}, nil
	case TagOID:
		oid, _, err := d.DecodeOID()
		if err != nil {
			return nil, err
		}
		return ObjectIdentifier(oid), nil
	case TagCounter32, TagGauge32, TagTimeTicks:
		v, _, err := d.DecodeUnsigned32()
		if err != nil {
			return nil, err
		}
		switch tag {
		case TagCounter32:
			return Counter32(v), nil
		case TagGauge32:
			return Gauge32(v), nil
		}
		return TimeTicks(v), nil
	case TagCounter64:
		v, _, err := d.DecodeUnsigned64()
		if err != nil {
			return nil, err
		}
		return Counter64(v), nil
	}
	return nil, framingError(start, "unsupported value tag %s", tag)
}
