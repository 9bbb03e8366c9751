// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/OlegPowerC/powersnmpv3engine/ber"
)

// AuthProtocol is a USM authentication protocol. Implementations are
// stateless and safe for concurrent use.
type AuthProtocol interface {
	ID() ber.OID
	Name() string
	// KeyLength is the size of a localized key.
	KeyLength() int
	// DigestLength is the size of msgAuthenticationParameters on the wire.
	DigestLength() int
	NewHash() hash.Hash
	PasswordToKey(password, engineID []byte) ([]byte, error)
	// Authenticate computes the MAC of msg with the placeholder at
	// msg[offset:offset+length] zeroed and writes it there.
	Authenticate(key, msg []byte, offset, length int) error
	// IsAuthentic verifies the MAC at msg[offset:offset+length]. Bad
	// offsets, lengths or keys yield false; msg is not modified.
	IsAuthentic(key, msg []byte, offset, length int) bool
}

type hmacAuth struct {
	id        ber.OID
	name      string
	newHash   func() hash.Hash
	keyLen    int
	digestLen int
}

// HMAC authentication protocols. MD5 and SHA use HMAC-96 (RFC 3414), the
// SHA-2 family uses the RFC 7860 truncations.
var (
	AuthMD5 AuthProtocol = &hmacAuth{
		id: OIDUsmHMACMD5AuthProtocol, name: "md5", newHash: md5.New, keyLen: 16, digestLen: 12,
	}
	AuthSHA AuthProtocol = &hmacAuth{
		id: OIDUsmHMACSHAAuthProtocol, name: "sha", newHash: sha1.New, keyLen: 20, digestLen: 12,
	}
	AuthHMAC128SHA224 AuthProtocol = &hmacAuth{
		id: OIDUsmHMAC128SHA224AuthProtocol, name: "sha224", newHash: sha256.New224, keyLen: 28, digestLen: 16,
	}
	AuthHMAC192SHA256 AuthProtocol = &hmacAuth{
		id: OIDUsmHMAC192SHA256AuthProtocol, name: "sha256", newHash: sha256.New, keyLen: 32, digestLen: 24,
	}
	AuthHMAC256SHA384 AuthProtocol = &hmacAuth{
		id: OIDUsmHMAC256SHA384AuthProtocol, name: "sha384", newHash: sha512.New384, keyLen: 48, digestLen: 32,
	}
	AuthHMAC384SHA512 AuthProtocol = &hmacAuth{
		id: OIDUsmHMAC384SHA512AuthProtocol, name: "sha512", newHash: sha512.New, keyLen: 64, digestLen: 48,
	}
)

func (a *hmacAuth) ID() ber.OID        { return a.id }
func (a *hmacAuth) Name() string       { return a.name }
func (a *hmacAuth) KeyLength() int     { return a.keyLen }
func (a *hmacAuth) DigestLength() int  { return a.digestLen }
func (a *hmacAuth) NewHash() hash.Hash { return a.newHash() }

func (a *hmacAuth) PasswordToKey(password, engineID []byte) ([]byte, error) {
	return PasswordToKey(a, password, engineID)
}

func (a *hmacAuth) checkArgs(key []byte, msgLen, offset, length int) error {
	if len(key) != a.keyLen {
		return fmt.Errorf("%s: key is %d bytes, want %d", a.name, len(key), a.keyLen)
	}
	if length != a.digestLen {
		return fmt.Errorf("%s: digest placeholder is %d bytes, want %d", a.name, length, a.digestLen)
	}
	if offset < 0 || offset > msgLen-length {
		return fmt.Errorf("%s: digest placeholder [%d:%d] outside message of %d bytes", a.name, offset, offset+length, msgLen)
	}
	return nil
}

func (a *hmacAuth) mac(key, msg []byte) []byte {
	m := hmac.New(a.newHash, key)
	m.Write(msg)
	return m.Sum(nil)[:a.digestLen]
}

func (a *hmacAuth) Authenticate(key, msg []byte, offset, length int) error {
	if err := a.checkArgs(key, len(msg), offset, length); err != nil {
		return err
	}
	clear(msg[offset : offset+length])
	copy(msg[offset:], a.mac(key, msg))
	return nil
}

func (a *hmacAuth) IsAuthentic(key, msg []byte, offset, length int) bool {
	if a.checkArgs(key, len(msg), offset, length) != nil {
		return false
	}
	received := make([]byte, length)
	copy(received, msg[offset:offset+length])
	work := make([]byte, len(msg))
	copy(work, msg)
	clear(work[offset : offset+length])
	return hmac.Equal(received, a.mac(key, work))
}
