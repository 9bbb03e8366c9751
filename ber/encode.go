// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package ber

import "fmt"

// AppendHeader appends a tag octet and a definite length in the shortest form.
func AppendHeader(dst []byte, tag Tag, length int) []byte {
	dst = append(dst, byte(tag))
	if length < 0x80 {
		return append(dst, byte(length))
	}
	n := 0
	for l := length; l > 0; l >>= 8 {
		n++
	}
	dst = append(dst, 0x80|byte(n))
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(length>>(8*i)))
	}
	return dst
}

// HeaderLen returns the number of octets AppendHeader writes for length.
func HeaderLen(length int) int {
	if length < 0x80 {
		return 2
	}
	n := 2
	for l := length; l > 0; l >>= 8 {
		n++
	}
	return n
}

// AppendSequence appends a constructed TLV whose content is body.
func AppendSequence(dst []byte, tag Tag, body []byte) []byte {
	dst = AppendHeader(dst, tag, len(body))
	return append(dst, body...)
}

// AppendInteger appends v in minimal two's complement form.
func AppendInteger(dst []byte, tag Tag, v int64) []byte {
	n := 1
	for t := v >> 7; t != 0 && t != -1; t >>= 8 {
		n++
	}
	dst = AppendHeader(dst, tag, n)
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}

// AppendUnsigned32 appends an unsigned 32-bit value (Counter32, Gauge32, TimeTicks...).
func AppendUnsigned32(dst []byte, tag Tag, v uint32) []byte {
	return AppendUnsigned64(dst, tag, uint64(v))
}

// AppendUnsigned64 appends v in the fewest octets that keep it non-negative:
// a leading 0x00 is inserted only when the high bit of the first significant
// octet is set. Zero is a single 0x00 content octet.
func AppendUnsigned64(dst []byte, tag Tag, v uint64) []byte {
	n := 1
	for t := v >> 7; t != 0; t >>= 8 {
		n++
	}
	dst = AppendHeader(dst, tag, n)
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}

// AppendOctetString appends a primitive string TLV.
func AppendOctetString(dst []byte, tag Tag, v []byte) []byte {
	dst = AppendHeader(dst, tag, len(v))
	return append(dst, v...)
}

// AppendNull appends a zero-length TLV with the given tag.
func AppendNull(dst []byte, tag Tag) []byte {
	return append(dst, byte(tag), 0x00)
}

// AppendOID appends an OBJECT IDENTIFIER. Encoding is strict: at least two
// arcs, first arc in {0,1,2}, second arc below 40 unless the first arc is 2.
func AppendOID(dst []byte, tag Tag, oid OID) ([]byte, error) {
	if len(oid) < 2 {
		return dst, fmt.Errorf("%w: need at least two arcs, got %d", ErrInvalidOID, len(oid))
	}
	if oid[0] > 2 {
		return dst, fmt.Errorf("%w: first arc %d out of range", ErrInvalidOID, oid[0])
	}
	if oid[0] < 2 && oid[1] >= 40 {
		return dst, fmt.Errorf("%w: second arc %d out of range for first arc %d", ErrInvalidOID, oid[1], oid[0])
	}
	content := make([]byte, 0, len(oid)*2)
	content = appendBase128(content, uint64(oid[0])*40+uint64(oid[1]))
	for _, arc := range oid[2:] {
		content = appendBase128(content, uint64(arc))
	}
	return AppendOctetString(dst, tag, content), nil
}

func appendBase128(dst []byte, v uint64) []byte {
	n := 1
	for t := v >> 7; t != 0; t >>= 7 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		b := byte(v>>(7*i)) & 0x7F
		if i > 0 {
			b |= 0x80
		}
		dst = append(dst, b)
	}
	return dst
}
