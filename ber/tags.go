// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)

// Package ber implements the subset of the ASN.1 Basic Encoding Rules used by SNMP.
//
// Tag byte layout:
//
//	Bits 7-6: Class (Universal=00, Application=01, Context=10, Private=11)
//	Bit 5:    Constructed flag (0=primitive, 1=constructed/compound like SEQUENCE)
//	Bits 4-0: Tag Number
//
// Example: Class=0x01 (Application), Tag=0x03 → 0x43 (APPLICATION 3 = SNMP TIMETICKS)
//
// Encoders append to a caller supplied slice, decoders read from a Decoder
// positioned over a caller owned buffer. Nothing in this package keeps state
// between calls.
package ber

import "fmt"

// Tag is a single identifier octet. SNMP never uses the multi-octet tag form.
type Tag byte

const (
	ClassUniversal       = 0x00
	ClassApplication     = 0x40
	ClassContextSpecific = 0x80
	ClassPrivate         = 0xC0

	constructedBit = 0x20
	highTagNumber  = 0x1F
)

const (
	// Universal
	TagInteger     Tag = 0x02
	TagOctetString Tag = 0x04
	TagNull        Tag = 0x05
	TagOID         Tag = 0x06
	TagSequence    Tag = 0x30

	// SNMP application types (RFC 2578)
	TagIPAddress Tag = 0x40
	TagCounter32 Tag = 0x41
	TagGauge32   Tag = 0x42
	TagTimeTicks Tag = 0x43
	TagOpaque    Tag = 0x44
	TagCounter64 Tag = 0x46

	// SNMPv2 varbind exceptions (context specific, primitive)
	TagNoSuchObject   Tag = 0x80
	TagNoSuchInstance Tag = 0x81
	TagEndOfMibView   Tag = 0x82

	// PDU types (context specific, constructed)
	TagGetRequest     Tag = 0xA0
	TagGetNextRequest Tag = 0xA1
	TagResponse       Tag = 0xA2
	TagSetRequest     Tag = 0xA3
	TagTrapV1         Tag = 0xA4
	TagGetBulkRequest Tag = 0xA5
	TagInformRequest  Tag = 0xA6
	TagSNMPv2Trap     Tag = 0xA7
	TagReport         Tag = 0xA8
)

// Class returns the two class bits of the tag.
func (t Tag) Class() byte { return byte(t) & 0xC0 }

// Constructed reports whether the constructed bit is set.
func (t Tag) Constructed() bool { return byte(t)&constructedBit != 0 }

// Number returns the low five bits.
func (t Tag) Number() int { return int(byte(t) & highTagNumber) }

// IsPDU reports whether the tag is one of the SNMP PDU types.
func (t Tag) IsPDU() bool { return t >= TagGetRequest && t <= TagReport }

var tagNames = map[Tag]string{
	TagInteger:        "INTEGER",
	TagOctetString:    "OCTET STRING",
	TagNull:           "NULL",
	TagOID:            "OBJECT IDENTIFIER",
	TagSequence:       "SEQUENCE",
	TagIPAddress:      "IPADDRESS",
	TagCounter32:      "COUNTER32",
	TagGauge32:        "GAUGE32",
	TagTimeTicks:      "TIMETICKS",
	TagOpaque:         "OPAQUE",
	TagCounter64:      "COUNTER64",
	TagNoSuchObject:   "noSuchObject",
	TagNoSuchInstance: "noSuchInstance",
	TagEndOfMibView:   "endOfMibView",
	TagGetRequest:     "GetRequest",
	TagGetNextRequest: "GetNextRequest",
	TagResponse:       "Response",
	TagSetRequest:     "SetRequest",
	TagTrapV1:         "Trap",
	TagGetBulkRequest: "GetBulkRequest",
	TagInformRequest:  "InformRequest",
	TagSNMPv2Trap:     "SNMPv2Trap",
	TagReport:         "Report",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tag 0x%02X", byte(t))
}
