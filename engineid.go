// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SnmpEngineID formats (RFC 3411 SnmpEngineID TEXTUAL-CONVENTION, 5th octet).
const (
	EngineIDFormatIPv4   = 1
	EngineIDFormatIPv6   = 2
	EngineIDFormatMAC    = 3
	EngineIDFormatText   = 4
	EngineIDFormatOctets = 5
)

// DefaultEnterpriseID is the net-snmp private enterprise number, used when a
// generated engine ID has no enterprise of its own.
const DefaultEnterpriseID = 8072

// NewEngineID returns a random engine ID: the enterprise number with the
// high bit set, format 5 and a version 6 UUID.
func NewEngineID(enterprise uint32) ([]byte, error) {
	id, err := uuid.NewV6()
	if err != nil {
		return nil, fmt.Errorf("generate engine ID: %w", err)
	}
	return engineID(enterprise, EngineIDFormatOctets, id[:]), nil
}

// EngineIDFromText returns a format 4 engine ID carrying text, at most 27 bytes.
func EngineIDFromText(enterprise uint32, text string) ([]byte, error) {
	if len(text) == 0 || len(text) > MaxEngineIDLength-5 {
		return nil, fmt.Errorf("engine ID text of %d bytes, must be 1 to %d", len(text), MaxEngineIDLength-5)
	}
	return engineID(enterprise, EngineIDFormatText, []byte(text)), nil
}

func engineID(enterprise uint32, format byte, data []byte) []byte {
	out := make([]byte, 5, 5+len(data))
	binary.BigEndian.PutUint32(out, enterprise|0x80000000)
	out[4] = format
	return append(out, data...)
}

// ParseEngineID decodes a hex engine ID. A leading 0x and ':' or ' '
// separators are accepted.
func ParseEngineID(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	s = strings.NewReplacer(":", "", " ", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("engine ID %q: %w", s, err)
	}
	if len(b) < MinEngineIDLength || len(b) > MaxEngineIDLength {
		return nil, fmt.Errorf("engine ID of %d bytes, must be %d to %d", len(b), MinEngineIDLength, MaxEngineIDLength)
	}
	return b, nil
}
