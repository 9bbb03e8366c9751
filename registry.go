// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/OlegPowerC/powersnmpv3engine/ber"
)

// SecurityProtocols is the set of authentication and privacy protocols an
// engine accepts. It is built once and handed to the USM and the engine;
// there is no process-wide registry.
type SecurityProtocols struct {
	mu       sync.RWMutex
	auth     map[string]AuthProtocol
	priv     map[string]PrivProtocol
	authName map[string]AuthProtocol
	privName map[string]PrivProtocol
}

// NewSecurityProtocols returns an empty set.
func NewSecurityProtocols() *SecurityProtocols {
	return &SecurityProtocols{
		auth:     make(map[string]AuthProtocol),
		priv:     make(map[string]PrivProtocol),
		authName: make(map[string]AuthProtocol),
		privName: make(map[string]PrivProtocol),
	}
}

// DefaultSecurityProtocols returns every built-in protocol. Privacy
// protocols are fresh instances with their own salt counters.
func DefaultSecurityProtocols() *SecurityProtocols {
	s := NewSecurityProtocols()
	for _, a := range []AuthProtocol{
		AuthMD5, AuthSHA, AuthHMAC128SHA224, AuthHMAC192SHA256, AuthHMAC256SHA384, AuthHMAC384SHA512,
	} {
		_ = s.AddAuth(a)
	}
	for _, p := range []PrivProtocol{
		NewPrivDES(), NewPriv3DES(), NewPrivAES(),
		NewPrivAES192(), NewPrivAES256(), NewPrivAES192A(), NewPrivAES256A(),
	} {
		_ = s.AddPriv(p)
	}
	return s
}

// AddAuth registers p. An ID or name that is already taken is an error.
func (s *SecurityProtocols) AddAuth(p AuthProtocol) error {
	key, name := p.ID().String(), strings.ToLower(p.Name())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auth[key]; ok {
		return fmt.Errorf("auth protocol %s already registered", key)
	}
	if _, ok := s.authName[name]; ok {
		return fmt.Errorf("auth protocol name %q already registered", name)
	}
	s.auth[key] = p
	s.authName[name] = p
	return nil
}

// AddPriv registers p. An ID or name that is already taken is an error.
func (s *SecurityProtocols) AddPriv(p PrivProtocol) error {
	key, name := p.ID().String(), strings.ToLower(p.Name())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.priv[key]; ok {
		return fmt.Errorf("priv protocol %s already registered", key)
	}
	if _, ok := s.privName[name]; ok {
		return fmt.Errorf("priv protocol name %q already registered", name)
	}
	s.priv[key] = p
	s.privName[name] = p
	return nil
}

// Auth returns the authentication protocol registered under id.
func (s *SecurityProtocols) Auth(id ber.OID) (AuthProtocol, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.auth[id.String()]
	return p, ok
}

// Priv returns the privacy protocol registered under id.
func (s *SecurityProtocols) Priv(id ber.OID) (PrivProtocol, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.priv[id.String()]
	return p, ok
}

// AuthByName finds a protocol by its short name ("md5", "sha", "sha256"...),
// ignoring case and surrounding spaces.
func (s *SecurityProtocols) AuthByName(name string) (AuthProtocol, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.authName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// PrivByName finds a protocol by its short name ("des", "aes", "aes256a"...).
func (s *SecurityProtocols) PrivByName(name string) (PrivProtocol, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.privName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// AuthProtocols lists registered protocols ordered by ID.
func (s *SecurityProtocols) AuthProtocols() []AuthProtocol {
	s.mu.RLock()
	out := make([]AuthProtocol, 0, len(s.auth))
	for _, p := range s.auth {
		out = append(out, p)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b AuthProtocol) int { return a.ID().Compare(b.ID()) })
	return out
}

// PrivProtocols lists registered protocols ordered by ID.
func (s *SecurityProtocols) PrivProtocols() []PrivProtocol {
	s.mu.RLock()
	out := make([]PrivProtocol, 0, len(s.priv))
	for _, p := range s.priv {
		out = append(out, p)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b PrivProtocol) int { return a.ID().Compare(b.ID()) })
	return out
}
