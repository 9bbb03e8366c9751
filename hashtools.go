// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег
// Author: Volkov Oleg
// License: MIT
// Лицензия: MIT
// Commercial support and custom development available.
package powersnmpv3engine

import (
	"errors"
	"fmt"
	"hash"
)

// passwordStreamLength is the amount of cyclically repeated password hashed
// by the RFC 3414 password-to-key algorithm.
const passwordStreamLength = 1048576

// PasswordToKey derives the USM localized key for engineID (RFC 3414 §2.6,
// RFC 7860 §9.3 for the SHA-2 family).
//
// Parameters:
//
//	proto    - authentication protocol that selects the hash function
//	password - user password, at least one byte
//	engineID - authoritative engine ID
//
// Algorithm (1,048,576 bytes processed):
//  1. Ku = H(password repeated to 1 MiB)
//  2. Kul = H(Ku | engineID | Ku)
//
// Returns:
//
//	Kul - MD5=16, SHA=20, SHA-224=28, SHA-256=32, SHA-384=48, SHA-512=64 bytes
func PasswordToKey(proto AuthProtocol, password, engineID []byte) ([]byte, error) {
	if proto == nil {
		return nil, errors.New("no authentication protocol")
	}
	if len(password) == 0 {
		return nil, errors.New("empty password")
	}
	return passwordToKey(proto.NewHash, password, engineID), nil
}

func passwordToKey(newHash func() hash.Hash, password, engineID []byte) []byte {
	h := newHash()
	buf := make([]byte, 64)
	idx := 0
	for count := 0; count < passwordStreamLength; count += len(buf) {
		for i := range buf {
			buf[i] = password[idx%len(password)]
			idx++
		}
		h.Write(buf)
	}
	ku := h.Sum(nil)

	h.Reset()
	h.Write(ku)
	h.Write(engineID)
	h.Write(ku)
	return h.Sum(nil)
}

// extendKeyReeder stretches a localized key to length by running
// password-to-key again with the previous block as the password
// (draft-reeder-snmpv3-usm-3desede §2.1, Cisco AES-192/256).
func extendKeyReeder(newHash func() hash.Hash, key, engineID []byte, length int) []byte {
	out := make([]byte, 0, length+len(key))
	out = append(out, key...)
	last := key
	for len(out) < length {
		last = passwordToKey(newHash, last, engineID)
		out = append(out, last...)
	}
	return out[:length]
}

// extendKeyBlumenthal stretches a localized key to length by appending
// H(K), H(K | K1)... (draft-blumenthal-aes-usm §3.1.2.1, AGENT++ and net-snmp).
func extendKeyBlumenthal(newHash func() hash.Hash, key []byte, length int) []byte {
	out := make([]byte, 0, length+len(key))
	out = append(out, key...)
	h := newHash()
	for len(out) < length {
		h.Reset()
		h.Write(out)
		out = h.Sum(out)
	}
	return out[:length]
}

// ChangeDelta builds the keyChange value that moves a remote user from oldKey
// to newKey (RFC 3414 §5). random must be as long as the keys; the result is
// random | delta.
func ChangeDelta(proto AuthProtocol, oldKey, newKey, random []byte) ([]byte, error) {
	if proto == nil {
		return nil, errors.New("no authentication protocol")
	}
	if len(oldKey) != len(newKey) || len(random) != len(newKey) {
		return nil, fmt.Errorf("key change: old key %d, new key %d and random %d bytes must be equal",
			len(oldKey), len(newKey), len(random))
	}
	delta := keyChangeXOR(proto.NewHash, oldKey, random, newKey)
	out := make([]byte, 0, len(random)+len(delta))
	out = append(out, random...)
	return append(out, delta...), nil
}

// ApplyKeyChange is the receiving side of ChangeDelta: it recovers the new
// key from the current key and a keyChange value.
func ApplyKeyChange(proto AuthProtocol, oldKey, keyChange []byte) ([]byte, error) {
	if proto == nil {
		return nil, errors.New("no authentication protocol")
	}
	if len(keyChange) != 2*len(oldKey) {
		return nil, fmt.Errorf("key change: got %d bytes, want %d", len(keyChange), 2*len(oldKey))
	}
	random, delta := keyChange[:len(oldKey)], keyChange[len(oldKey):]
	return keyChangeXOR(proto.NewHash, oldKey, random, delta), nil
}

// keyChangeXOR runs the RFC 3414 digest chain tmp = H(tmp | random) starting
// from oldKey and XORs one digest per block into in.
func keyChangeXOR(newHash func() hash.Hash, oldKey, random, in []byte) []byte {
	h := newHash()
	tmp := append([]byte(nil), oldKey...)
	out := make([]byte, len(in))
	for off := 0; off < len(in); off += h.Size() {
		h.Reset()
		h.Write(tmp)
		h.Write(random)
		tmp = h.Sum(nil)
		for i := off; i < len(in) && i-off < len(tmp); i++ {
			out[i] = tmp[i-off] ^ in[i]
		}
	}
	return out
}
