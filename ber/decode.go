// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package ber

import "math"

// maxLengthOctets bounds the significant octets of a long-form length.
// Four octets already exceed any SNMP message size.
const maxLengthOctets = 4

// Decoder reads consecutive TLVs from a buffer. Offsets reported by a
// Decoder, including those of nested decoders, are absolute positions in the
// outermost buffer.
type Decoder struct {
	buf  []byte
	pos  int
	base int
}

// NewDecoder returns a Decoder positioned at the start of b.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Offset returns the absolute position of the next unread octet.
func (d *Decoder) Offset() int { return d.base + d.pos }

// Len returns the number of unread octets.
func (d *Decoder) Len() int { return len(d.buf) - d.pos }

// Empty reports whether all octets were consumed.
func (d *Decoder) Empty() bool { return d.pos >= len(d.buf) }

// PeekTag returns the next tag without consuming it.
func (d *Decoder) PeekTag() (Tag, error) {
	if d.pos >= len(d.buf) {
		return 0, framingError(d.Offset(), "truncated tag")
	}
	return Tag(d.buf[d.pos]), nil
}

// DecodeHeader consumes a tag and a definite length. The content itself is
// not consumed. Indefinite lengths, long-form lengths with more than four
// significant octets and lengths that run past the buffer are rejected.
func (d *Decoder) DecodeHeader() (Tag, int, error) {
	start := d.pos
	tag, length, err := d.decodeHeader()
	if err != nil {
		d.pos = start
		return 0, 0, err
	}
	return tag, length, nil
}

func (d *Decoder) decodeHeader() (Tag, int, error) {
	if d.pos >= len(d.buf) {
		return 0, 0, framingError(d.Offset(), "truncated tag")
	}
	tag := Tag(d.buf[d.pos])
	if byte(tag)&highTagNumber == highTagNumber {
		return 0, 0, framingError(d.Offset(), "multi-octet tag 0x%02X not supported", byte(tag))
	}
	d.pos++
	if d.pos >= len(d.buf) {
		return 0, 0, framingError(d.Offset(), "truncated length")
	}
	first := d.buf[d.pos]
	d.pos++
	var length int
	switch {
	case first < 0x80:
		length = int(first)
	case first == 0x80:
		return 0, 0, framingError(d.Offset()-1, "indefinite length not allowed")
	default:
		n := int(first & 0x7F)
		if d.pos+n > len(d.buf) {
			return 0, 0, framingError(d.Offset(), "truncated long-form length")
		}
		significant := 0
		for _, b := range d.buf[d.pos : d.pos+n] {
			if significant == 0 && b == 0 {
				continue
			}
			significant++
			if significant > maxLengthOctets {
				return 0, 0, framingError(d.Offset(), "length of %d octets is too long", n)
			}
			length = length<<8 | int(b)
		}
		d.pos += n
	}
	if length > len(d.buf)-d.pos {
		return 0, 0, framingError(d.Offset(), "length %d exceeds remaining %d octets", length, len(d.buf)-d.pos)
	}
	return tag, length, nil
}

// readTLV consumes a whole TLV and returns its content without copying.
func (d *Decoder) readTLV() (Tag, []byte, int, error) {
	start := d.pos
	tag, length, err := d.decodeHeader()
	if err != nil {
		d.pos = start
		return 0, nil, 0, err
	}
	contentStart := d.pos
	d.pos += length
	return tag, d.buf[contentStart:d.pos], d.base + contentStart, nil
}

// DecodeRaw consumes the next TLV and returns its complete encoding
// (header included). The returned slice aliases the decoder buffer.
func (d *Decoder) DecodeRaw() ([]byte, Tag, error) {
	start := d.pos
	tag, _, _, err := d.readTLV()
	if err != nil {
		return nil, 0, err
	}
	return d.buf[start:d.pos], tag, nil
}

// Skip consumes the next TLV.
func (d *Decoder) Skip() error {
	_, _, _, err := d.readTLV()
	return err
}

// DecodeSequence consumes the next TLV, constructed or not, and returns a
// Decoder bounded to its content.
func (d *Decoder) DecodeSequence() (*Decoder, Tag, error) {
	tag, content, offset, err := d.readTLV()
	if err != nil {
		return nil, 0, err
	}
	return &Decoder{buf: content, base: offset}, tag, nil
}

// DecodeInteger decodes a two's complement integer of up to eight octets.
func (d *Decoder) DecodeInteger() (int64, Tag, error) {
	tag, c, offset, err := d.readTLV()
	if err != nil {
		return 0, 0, err
	}
	if len(c) == 0 {
		return 0, tag, framingError(offset, "zero-length integer")
	}
	if len(c) > 8 {
		return 0, tag, framingError(offset, "integer of %d octets is too long", len(c))
	}
	v := int64(int8(c[0]))
	for _, b := range c[1:] {
		v = v<<8 | int64(b)
	}
	return v, tag, nil
}

// DecodeUnsigned32 decodes an unsigned value that must fit in 32 bits. A
// fifth octet is accepted only as a leading 0x00.
func (d *Decoder) DecodeUnsigned32() (uint32, Tag, error) {
	tag, c, offset, err := d.readTLV()
	if err != nil {
		return 0, 0, err
	}
	v, err := unsigned(c, 4, offset)
	if err != nil {
		return 0, tag, err
	}
	return uint32(v), tag, nil
}

// DecodeUnsigned64 decodes an unsigned value that must fit in 64 bits. A
// ninth octet is accepted only as a leading 0x00.
func (d *Decoder) DecodeUnsigned64() (uint64, Tag, error) {
	tag, c, offset, err := d.readTLV()
	if err != nil {
		return 0, 0, err
	}
	v, err := unsigned(c, 8, offset)
	if err != nil {
		return 0, tag, err
	}
	return v, tag, nil
}

func unsigned(c []byte, width int, offset int) (uint64, error) {
	if len(c) == 0 {
		return 0, framingError(offset, "zero-length unsigned integer")
	}
	if len(c) > width+1 || (len(c) == width+1 && c[0] != 0) {
		return 0, framingError(offset, "unsigned integer of %d octets overflows %d bits", len(c), width*8)
	}
	var v uint64
	for _, b := range c {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// DecodeOctetString returns a copy of the content of the next TLV.
func (d *Decoder) DecodeOctetString() ([]byte, Tag, error) {
	tag, c, _, err := d.readTLV()
	if err != nil {
		return nil, 0, err
	}
	out := make([]byte, len(c))
	copy(out, c)
	return out, tag, nil
}

// DecodeNull consumes a TLV that must have empty content.
func (d *Decoder) DecodeNull() (Tag, error) {
	tag, c, offset, err := d.readTLV()
	if err != nil {
		return 0, err
	}
	if len(c) != 0 {
		return tag, framingError(offset, "null with %d content octets", len(c))
	}
	return tag, nil
}

// DecodeOID decodes an OBJECT IDENTIFIER. A first sub-identifier v maps to
// {v/40, v%40} below 80 and to {2, v-80} from 80 up, so a decoded first arc
// is always 0, 1 or 2.
func (d *Decoder) DecodeOID() (OID, Tag, error) {
	tag, c, offset, err := d.readTLV()
	if err != nil {
		return nil, 0, err
	}
	oid, err := parseOIDContent(c, offset)
	if err != nil {
		return nil, tag, err
	}
	return oid, tag, nil
}

func parseOIDContent(c []byte, offset int) (OID, error) {
	if len(c) == 0 {
		return OID{}, nil
	}
	oid := make(OID, 0, len(c)+1)
	var v uint64
	pending := false
	first := true
	for i, b := range c {
		if v > math.MaxUint64>>7 {
			return nil, framingError(offset+i, "sub-identifier overflow")
		}
		v = v<<7 | uint64(b&0x7F)
		pending = true
		if b&0x80 != 0 {
			continue
		}
		if first {
			switch {
			case v < 40:
				oid = append(oid, 0, uint32(v))
			case v < 80:
				oid = append(oid, 1, uint32(v-40))
			default:
				if v-80 > math.MaxUint32 {
					return nil, framingError(offset+i, "sub-identifier exceeds 32 bits")
				}
				oid = append(oid, 2, uint32(v-80))
			}
			first = false
		} else {
			if v > math.MaxUint32 {
				return nil, framingError(offset+i, "sub-identifier exceeds 32 bits")
			}
			oid = append(oid, uint32(v))
		}
		v = 0
		pending = false
	}
	if pending {
		return nil, framingError(offset+len(c), "truncated sub-identifier")
	}
	return oid, nil
}
