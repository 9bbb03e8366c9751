// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/OlegPowerC/powersnmpv3engine/ber"
)

// PrivProtocol is a USM privacy protocol. Each instance owns its salt
// counter, so an instance must not be shared between unrelated engines.
type PrivProtocol interface {
	ID() ber.OID
	Name() string
	// KeyLength is the size of the privacy key Encrypt and Decrypt expect.
	KeyLength() int
	// ExtendKey turns a key localized with auth into a key of KeyLength
	// bytes, truncating or stretching it as the protocol defines.
	ExtendKey(auth AuthProtocol, localizedKey, engineID []byte) ([]byte, error)
	// Encrypt returns the ciphertext and the 8-byte msgPrivacyParameters.
	Encrypt(plaintext, key []byte, engineBoots, engineTime uint32) (ciphertext, privParams []byte, err error)
	Decrypt(ciphertext, key []byte, engineBoots, engineTime uint32, privParams []byte) ([]byte, error)
}

func randomUint32() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

func randomUint64() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint64(b[:])
}

// pkcs7Pad always pads, a full block is added to aligned input.
func pkcs7Pad(src []byte, blockSize int) []byte {
	padding := blockSize - len(src)%blockSize
	out := make([]byte, len(src), len(src)+padding)
	copy(out, src)
	return append(out, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

// trimPadding removes the PKCS#7 padding of a decrypted CBC buffer. A buffer
// whose leading BER TLV spans it exactly came from a sender that did not pad
// an aligned scoped PDU and is returned as is, as is a buffer without valid
// PKCS#7. Zero or garbage padding from other senders stays in place; the
// scoped PDU parser ignores trailing bytes.
func trimPadding(plain []byte, blockSize int) []byte {
	if len(plain) == 0 {
		return plain
	}
	d := ber.NewDecoder(plain)
	if _, length, err := d.DecodeHeader(); err == nil && d.Offset()+length == len(plain) {
		return plain
	}
	p := int(plain[len(plain)-1])
	if p == 0 || p > blockSize || p > len(plain) {
		return plain
	}
	for _, b := range plain[len(plain)-p:] {
		if int(b) != p {
			return plain
		}
	}
	return plain[:len(plain)-p]
}

// cbcPriv implements DES-CBC (RFC 3414 §8) and 3DES-EDE-CBC
// (draft-reeder-snmpv3-usm-3desede). The key is the cipher key followed by
// an 8-byte pre-IV.
type cbcPriv struct {
	id        ber.OID
	name      string
	cipherLen int
	newCipher func([]byte) (cipher.Block, error)
	reeder    bool
	salt      atomic.Uint32
}

// NewPrivDES returns a DES-CBC protocol with a randomly seeded salt counter.
func NewPrivDES() PrivProtocol {
	p := &cbcPriv{id: OIDUsmDESPrivProtocol, name: "des", cipherLen: 8, newCipher: des.NewCipher}
	p.salt.Store(randomUint32())
	return p
}

// NewPriv3DES returns a 3DES-EDE-CBC protocol with a randomly seeded salt counter.
func NewPriv3DES() PrivProtocol {
	p := &cbcPriv{id: OIDUsm3DESEDEPrivProtocol, name: "3des", cipherLen: 24, newCipher: des.NewTripleDESCipher, reeder: true}
	p.salt.Store(randomUint32())
	return p
}

func (p *cbcPriv) ID() ber.OID    { return p.id }
func (p *cbcPriv) Name() string   { return p.name }
func (p *cbcPriv) KeyLength() int { return p.cipherLen + des.BlockSize }

func (p *cbcPriv) ExtendKey(auth AuthProtocol, key, engineID []byte) ([]byte, error) {
	return extendPrivKey(auth, key, engineID, p.KeyLength(), p.reeder)
}

// iv is preIV XOR salt, salt = engineBoots | local counter.
func (p *cbcPriv) iv(key, salt []byte) []byte {
	iv := make([]byte, des.BlockSize)
	preIV := key[p.cipherLen:p.KeyLength()]
	for i := range iv {
		iv[i] = preIV[i] ^ salt[i]
	}
	return iv
}

func (p *cbcPriv) Encrypt(plaintext, key []byte, engineBoots, _ uint32) ([]byte, []byte, error) {
	if len(key) < p.KeyLength() {
		return nil, nil, fmt.Errorf("%s: key is %d bytes, want %d", p.name, len(key), p.KeyLength())
	}
	block, err := p.newCipher(key[:p.cipherLen])
	if err != nil {
		return nil, nil, err
	}
	salt := make([]byte, privParamsLength)
	binary.BigEndian.PutUint32(salt, engineBoots)
	binary.BigEndian.PutUint32(salt[4:], p.salt.Add(1))

	padded := pkcs7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, p.iv(key, salt)).CryptBlocks(out, padded)
	return out, salt, nil
}

func (p *cbcPriv) Decrypt(ciphertext, key []byte, _, _ uint32, privParams []byte) ([]byte, error) {
	if len(key) < p.KeyLength() {
		return nil, fmt.Errorf("%w: %s key is %d bytes, want %d", ErrDecryption, p.name, len(key), p.KeyLength())
	}
	if len(privParams) != privParamsLength {
		return nil, fmt.Errorf("%w: privacy parameters are %d bytes", ErrDecryption, len(privParams))
	}
	if len(ciphertext) == 0 || len(ciphertext)%des.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext of %d bytes is not a multiple of %d", ErrDecryption, len(ciphertext), des.BlockSize)
	}
	block, err := p.newCipher(key[:p.cipherLen])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, p.iv(key, privParams)).CryptBlocks(out, ciphertext)
	return trimPadding(out, des.BlockSize), nil
}

// aesPriv implements AES-CFB128 (RFC 3826) for 128, 192 and 256 bit keys.
type aesPriv struct {
	id     ber.OID
	name   string
	keyLen int
	reeder bool
	salt   atomic.Uint64
}

func newAESPriv(id ber.OID, name string, keyLen int, reeder bool) *aesPriv {
	p := &aesPriv{id: id, name: name, keyLen: keyLen, reeder: reeder}
	p.salt.Store(randomUint64())
	return p
}

// NewPrivAES returns AES-128-CFB (usmAesCfb128Protocol).
func NewPrivAES() PrivProtocol { return newAESPriv(OIDUsmAesCfb128Protocol, "aes", 16, false) }

// NewPrivAES192 returns AES-192-CFB with Reeder key extension (Cisco).
func NewPrivAES192() PrivProtocol { return newAESPriv(OIDUsmAESCfb192Protocol, "aes192", 24, true) }

// NewPrivAES256 returns AES-256-CFB with Reeder key extension (Cisco).
func NewPrivAES256() PrivProtocol { return newAESPriv(OIDUsmAESCfb256Protocol, "aes256", 32, true) }

// NewPrivAES192A returns AES-192-CFB with Blumenthal key extension (AGENT++, net-snmp).
func NewPrivAES192A() PrivProtocol { return newAESPriv(OIDUsmAESCfb192AProtocol, "aes192a", 24, false) }

// NewPrivAES256A returns AES-256-CFB with Blumenthal key extension (AGENT++, net-snmp).
func NewPrivAES256A() PrivProtocol { return newAESPriv(OIDUsmAESCfb256AProtocol, "aes256a", 32, false) }

func (p *aesPriv) ID() ber.OID    { return p.id }
func (p *aesPriv) Name() string   { return p.name }
func (p *aesPriv) KeyLength() int { return p.keyLen }

func (p *aesPriv) ExtendKey(auth AuthProtocol, key, engineID []byte) ([]byte, error) {
	return extendPrivKey(auth, key, engineID, p.keyLen, p.reeder)
}

// iv is engineBoots | engineTime | salt (RFC 3826 §3.1.2.1).
func aesIV(engineBoots, engineTime uint32, salt []byte) []byte {
	iv := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint32(iv, engineBoots)
	binary.BigEndian.PutUint32(iv[4:], engineTime)
	copy(iv[8:], salt)
	return iv
}

func (p *aesPriv) Encrypt(plaintext, key []byte, engineBoots, engineTime uint32) ([]byte, []byte, error) {
	if len(key) < p.keyLen {
		return nil, nil, fmt.Errorf("%s: key is %d bytes, want %d", p.name, len(key), p.keyLen)
	}
	block, err := aes.NewCipher(key[:p.keyLen])
	if err != nil {
		return nil, nil, err
	}
	salt := make([]byte, privParamsLength)
	binary.BigEndian.PutUint64(salt, p.salt.Add(1))

	out := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(block, aesIV(engineBoots, engineTime, salt)).XORKeyStream(out, plaintext)
	return out, salt, nil
}

func (p *aesPriv) Decrypt(ciphertext, key []byte, engineBoots, engineTime uint32, privParams []byte) ([]byte, error) {
	if len(key) < p.keyLen {
		return nil, fmt.Errorf("%w: %s key is %d bytes, want %d", ErrDecryption, p.name, len(key), p.keyLen)
	}
	if len(privParams) != privParamsLength {
		return nil, fmt.Errorf("%w: privacy parameters are %d bytes", ErrDecryption, len(privParams))
	}
	block, err := aes.NewCipher(key[:p.keyLen])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, aesIV(engineBoots, engineTime, privParams)).XORKeyStream(out, ciphertext)
	return out, nil
}

// extendPrivKey truncates a localized key that is long enough and stretches
// a short one with the Reeder or the Blumenthal algorithm.
func extendPrivKey(auth AuthProtocol, key, engineID []byte, length int, reeder bool) ([]byte, error) {
	if len(key) == 0 {
		return nil, errors.New("empty localized key")
	}
	if len(key) >= length {
		return append([]byte(nil), key[:length]...), nil
	}
	if auth == nil {
		return nil, fmt.Errorf("localized key of %d bytes needs an authentication protocol to reach %d", len(key), length)
	}
	if reeder {
		return extendKeyReeder(auth.NewHash, key, engineID, length), nil
	}
	return extendKeyBlumenthal(auth.NewHash, key, length), nil
}
