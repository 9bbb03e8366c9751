// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"errors"
	"fmt"
	"sync"
)

// User is a USM user bound to one authoritative engine, holding keys
// already localized for that engine.
type User struct {
	Name         string
	EngineID     []byte
	AuthProtocol AuthProtocol
	AuthKey      []byte
	PrivProtocol PrivProtocol
	PrivKey      []byte
}

// SecurityLevel is the highest level the user's keys allow.
func (u *User) SecurityLevel() SecurityLevel {
	switch {
	case u.AuthProtocol == nil:
		return NoAuthNoPriv
	case u.PrivProtocol == nil:
		return AuthNoPriv
	}
	return AuthPriv
}

func (u *User) validate() error {
	if u.Name == "" {
		return errors.New("user name is required")
	}
	if l := len(u.EngineID); l < MinEngineIDLength || l > MaxEngineIDLength {
		return fmt.Errorf("user %q: engine ID of %d bytes, must be %d to %d", u.Name, l, MinEngineIDLength, MaxEngineIDLength)
	}
	if u.PrivProtocol != nil && u.AuthProtocol == nil {
		return fmt.Errorf("user %q: priv protocol accepted only with auth protocol", u.Name)
	}
	if u.AuthProtocol != nil && len(u.AuthKey) != u.AuthProtocol.KeyLength() {
		return fmt.Errorf("user %q: %s auth key is %d bytes, want %d", u.Name, u.AuthProtocol.Name(), len(u.AuthKey), u.AuthProtocol.KeyLength())
	}
	if u.PrivProtocol != nil && len(u.PrivKey) != u.PrivProtocol.KeyLength() {
		return fmt.Errorf("user %q: %s priv key is %d bytes, want %d", u.Name, u.PrivProtocol.Name(), len(u.PrivKey), u.PrivProtocol.KeyLength())
	}
	return nil
}

// Credentials is a password based user that is not bound to an engine yet.
// The table localizes it on first use for every engine ID it meets.
type Credentials struct {
	Name         string
	AuthProtocol AuthProtocol
	AuthPassword []byte
	PrivProtocol PrivProtocol
	PrivPassword []byte
}

func (c *Credentials) validate() error {
	if c.Name == "" {
		return errors.New("user name is required")
	}
	if c.PrivProtocol != nil && c.AuthProtocol == nil {
		return fmt.Errorf("user %q: priv protocol accepted only with auth protocol", c.Name)
	}
	if c.AuthProtocol != nil && len(c.AuthPassword) == 0 {
		return fmt.Errorf("user %q: auth password must be greater than 0 symbols", c.Name)
	}
	if c.PrivProtocol != nil && len(c.PrivPassword) == 0 {
		return fmt.Errorf("user %q: priv password must be greater than 0 symbols", c.Name)
	}
	return nil
}

// Localize derives the user's keys for engineID. The privacy password is
// localized with the authentication hash and then fitted to the privacy
// protocol key size.
func (c *Credentials) Localize(engineID []byte) (*User, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	u := &User{
		Name:         c.Name,
		EngineID:     append([]byte(nil), engineID...),
		AuthProtocol: c.AuthProtocol,
		PrivProtocol: c.PrivProtocol,
	}
	if c.AuthProtocol != nil {
		key, err := c.AuthProtocol.PasswordToKey(c.AuthPassword, engineID)
		if err != nil {
			return nil, fmt.Errorf("user %q auth key: %w", c.Name, err)
		}
		u.AuthKey = key
	}
	if c.PrivProtocol != nil {
		key, err := c.AuthProtocol.PasswordToKey(c.PrivPassword, engineID)
		if err != nil {
			return nil, fmt.Errorf("user %q priv key: %w", c.Name, err)
		}
		if u.PrivKey, err = c.PrivProtocol.ExtendKey(c.AuthProtocol, key, engineID); err != nil {
			return nil, fmt.Errorf("user %q priv key: %w", c.Name, err)
		}
	}
	return u, u.validate()
}

type userKey struct {
	engineID string
	name     string
}

// UserTable holds the users of one engine role. A command generator and a
// command responder in the same process each own a table.
type UserTable struct {
	mu          sync.RWMutex
	users       map[userKey]*User
	credentials map[string]*Credentials
}

// NewUserTable returns an empty table.
func NewUserTable() *UserTable {
	return &UserTable{
		users:       make(map[userKey]*User),
		credentials: make(map[string]*Credentials),
	}
}

// Add inserts a localized user, replacing an entry with the same engine ID
// and name.
func (t *UserTable) Add(u *User) error {
	if err := u.validate(); err != nil {
		return err
	}
	cp := *u
	t.mu.Lock()
	t.users[userKey{string(u.EngineID), u.Name}] = &cp
	t.mu.Unlock()
	return nil
}

// Update replaces an existing localized user and fails when it is absent.
func (t *UserTable) Update(u *User) error {
	if err := u.validate(); err != nil {
		return err
	}
	key := userKey{string(u.EngineID), u.Name}
	cp := *u
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.users[key]; !ok {
		return fmt.Errorf("user %q not found for engine %x", u.Name, u.EngineID)
	}
	t.users[key] = &cp
	return nil
}

// Remove deletes the user bound to engineID and reports whether it existed.
func (t *UserTable) Remove(engineID []byte, name string) bool {
	key := userKey{string(engineID), name}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.users[key]
	delete(t.users, key)
	return ok
}

// AddCredentials registers a password based user. Entries previously
// localized from older credentials with the same name are dropped.
func (t *UserTable) AddCredentials(c Credentials) error {
	if err := c.validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.credentials[c.Name]; ok {
		for k := range t.users {
			if k.name == c.Name {
				delete(t.users, k)
			}
		}
	}
	t.credentials[c.Name] = &c
	return nil
}

// RemoveCredentials drops a password based user and every key localized from it.
func (t *UserTable) RemoveCredentials(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.credentials[name]
	if !ok {
		return false
	}
	delete(t.credentials, name)
	for k := range t.users {
		if k.name == name {
			delete(t.users, k)
		}
	}
	return true
}

// Lookup returns the user bound to engineID. A password based user with the
// same name is localized for engineID and cached when no bound entry exists.
func (t *UserTable) Lookup(engineID []byte, name string) (*User, bool) {
	key := userKey{string(engineID), name}
	t.mu.RLock()
	u, ok := t.users[key]
	c, hasCred := t.credentials[name]
	t.mu.RUnlock()
	if ok {
		cp := *u
		return &cp, true
	}
	if !hasCred || len(engineID) < MinEngineIDLength || len(engineID) > MaxEngineIDLength {
		return nil, false
	}

	// Localization hashes a megabyte per key; do it outside the lock.
	local, err := c.Localize(engineID)
	if err != nil {
		return nil, false
	}
	t.mu.Lock()
	if existing, ok := t.users[key]; ok {
		local = existing
	} else if t.credentials[name] == c {
		t.users[key] = local
	}
	t.mu.Unlock()
	cp := *local
	return &cp, true
}

// Len returns the number of localized entries.
func (t *UserTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users)
}
