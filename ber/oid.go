// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package ber

import (
	"fmt"
	"strconv"
	"strings"
)

// OID is an object identifier as a list of decoded arcs. Arcs hold the real
// decimal values, never BER sub-identifier bytes.
type OID []uint32

// ParseOID converts a dotted string to an OID.
//
// Arguments:
//
//	s - "1.3.6.1.2.1.1.1.0" or ".1.3.6.1.2.1.1.1.0" (leading/trailing dots ignored)
//
// Returns:
//
//	OID   - [1 3 6 1 2 1 1 1 0]
//	error - empty input, empty arc ("1..3") or an arc that is not a uint32
//
// ParseOID does not apply the encoder's arc rules, so "3.1" parses and only
// fails later in AppendOID.
func ParseOID(s string) (OID, error) {
	s = strings.Trim(strings.TrimSpace(s), ".")
	if s == "" {
		return nil, fmt.Errorf("ber: empty OID string")
	}
	parts := strings.Split(s, ".")
	oid := make(OID, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("ber: OID %q arc %d: %w", s, i, err)
		}
		oid[i] = uint32(v)
	}
	return oid, nil
}

// MustParseOID is ParseOID for package-level constants; it panics on error.
func MustParseOID(s string) OID {
	oid, err := ParseOID(s)
	if err != nil {
		panic(err)
	}
	return oid
}

// String returns the dotted decimal form without a leading dot.
func (o OID) String() string {
	var sb strings.Builder
	for i, arc := range o {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.FormatUint(uint64(arc), 10))
	}
	return sb.String()
}

// Equal reports whether both OIDs have the same arcs.
func (o OID) Equal(other OID) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// Compare orders OIDs lexicographically, shorter prefix first. It returns
// -1, 0 or +1.
func (o OID) Compare(other OID) int {
	n := min(len(o), len(other))
	for i := 0; i < n; i++ {
		switch {
		case o[i] < other[i]:
			return -1
		case o[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(o) < len(other):
		return -1
	case len(o) > len(other):
		return 1
	}
	return 0
}

// HasPrefix reports whether o lies in the subtree rooted at prefix.
//
//	OID{1,3,6,1,2,1,1,1}.HasPrefix(OID{1,3,6,1,2,1}) // true
//	OID{1,3,6,1,2,2,1}.HasPrefix(OID{1,3,6,1,2,1})   // false
func (o OID) HasPrefix(prefix OID) bool {
	if len(o) < len(prefix) {
		return false
	}
	return o[:len(prefix)].Equal(prefix)
}

// Append returns a new OID with arcs added; o is left untouched.
func (o OID) Append(arcs ...uint32) OID {
	out := make(OID, 0, len(o)+len(arcs))
	out = append(out, o...)
	return append(out, arcs...)
}
