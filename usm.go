// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/OlegPowerC/powersnmpv3engine/ber"
)

// engineClock is the local snmpEngineBoots / snmpEngineTime pair. Time is
// counted from start; when it passes MaxEngineTime boots is incremented
// and time restarts from zero (RFC 3414 §2.2.2).
type engineClock struct {
	mu    sync.Mutex
	boots uint32
	start time.Time
	now   func() time.Time
}

func newEngineClock(boots uint32, now func() time.Time) *engineClock {
	if now == nil {
		now = time.Now
	}
	if boots == 0 {
		boots = 1
	}
	return &engineClock{boots: boots, start: now(), now: now}
}

func (c *engineClock) read() (boots, engineTime uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := c.now().Sub(c.start) / time.Second
	for elapsed > MaxEngineTime && c.boots < MaxEngineBoots {
		c.boots++
		c.start = c.start.Add((MaxEngineTime + 1) * time.Second)
		elapsed -= MaxEngineTime + 1
	}
	if elapsed > MaxEngineTime {
		elapsed = MaxEngineTime
	}
	return c.boots, uint32(elapsed)
}

// timeEntry is the non-authoritative view of a remote engine's clock.
type timeEntry struct {
	boots        uint32
	time         uint32
	latestTime   uint32
	localUpdated time.Time
	// authenticated is false for entries seeded from a discovery report;
	// the first authenticated message replaces them unconditionally.
	authenticated bool
}

func (t *timeEntry) estimate(now time.Time) uint32 {
	elapsed := now.Sub(t.localUpdated) / time.Second
	if elapsed < 0 {
		elapsed = 0
	}
	est := uint64(t.time) + uint64(elapsed)
	if est > MaxEngineTime {
		return MaxEngineTime
	}
	return uint32(est)
}

// SecurityState is what the USM remembers about a processed message, the
// securityStateReference of RFC 3412. It is returned for failures too so
// the engine can decide how to answer them.
type SecurityState struct {
	EngineID      []byte
	UserName      string
	Level         SecurityLevel
	Authoritative bool
	user          *User
}

// USM is the User-based Security Model of one engine.
type USM struct {
	engineID  []byte
	clock     *engineClock
	users     *UserTable
	protocols *SecurityProtocols
	stats     *Stats
	window    uint32
	log       zerolog.Logger

	mu    sync.RWMutex
	times map[string]*timeEntry
}

// NewUSM returns a USM for the local engineID. The user table belongs to
// this USM only.
func NewUSM(engineID []byte, boots uint32, users *UserTable, protocols *SecurityProtocols, stats *Stats, log zerolog.Logger) *USM {
	if users == nil {
		users = NewUserTable()
	}
	if protocols == nil {
		protocols = DefaultSecurityProtocols()
	}
	if stats == nil {
		stats = NewStats()
	}
	return &USM{
		engineID:  append([]byte(nil), engineID...),
		clock:     newEngineClock(boots, nil),
		users:     users,
		protocols: protocols,
		stats:     stats,
		window:    TimeWindowSeconds,
		log:       log,
		times:     make(map[string]*timeEntry),
	}
}

// setClock restarts the local clock at boots with a custom time source.
func (u *USM) setClock(boots uint32, now func() time.Time) {
	u.clock = newEngineClock(boots, now)
}

// EngineID returns the local snmpEngineID.
func (u *USM) EngineID() []byte { return u.engineID }

// Users returns the table the USM looks users up in.
func (u *USM) Users() *UserTable { return u.users }

// BootsAndTime returns the local snmpEngineBoots and snmpEngineTime.
func (u *USM) BootsAndTime() (uint32, uint32) { return u.clock.read() }

func (u *USM) fail(kind error, counter ber.OID, authenticated bool, err error) *USMError {
	return &USMError{
		Kind:          kind,
		Counter:       counter,
		Value:         u.stats.Increment(counter),
		Authenticated: authenticated,
		Err:           err,
	}
}

// ProcessIncoming authenticates and decrypts m (RFC 3414 §3.2). On success
// it returns the plaintext scoped PDU. USM failures are *USMError and come
// with the state gathered before the failure. Inconsistent privacy framing
// is ErrInvalidMessage.
func (u *USM) ProcessIncoming(m *Message) (*SecurityState, []byte, error) {
	level, ok := securityLevelFromFlags(m.Header.Flags)
	if !ok {
		return nil, nil, fmt.Errorf("%w: msgFlags 0x%02x", ErrInvalidMessage, m.Header.Flags)
	}
	sp := &m.Params
	state := &SecurityState{
		EngineID:      sp.AuthoritativeEngineID,
		UserName:      sp.UserName,
		Level:         level,
		Authoritative: m.Header.Reportable(),
	}
	log := u.log.With().Int32("msgID", m.Header.MsgID).Str("user", sp.UserName).Str("level", level.String()).Logger()

	// 1. engine ID
	if state.Authoritative {
		if !bytes.Equal(sp.AuthoritativeEngineID, u.engineID) {
			log.Debug().Hex("engineID", sp.AuthoritativeEngineID).Msg("unknown engine ID")
			return state, nil, u.fail(ErrUnknownEngineID, OIDUsmStatsUnknownEngineIDs, false, nil)
		}
	} else if l := len(sp.AuthoritativeEngineID); l < MinEngineIDLength || l > MaxEngineIDLength {
		return state, nil, u.fail(ErrUnknownEngineID, OIDUsmStatsUnknownEngineIDs, false,
			fmt.Errorf("engine ID of %d bytes", l))
	}

	// 2. user
	user, found := u.users.Lookup(sp.AuthoritativeEngineID, sp.UserName)
	if !found {
		// Reports to our own discovery probes name no user we know.
		if state.Authoritative || level != NoAuthNoPriv {
			log.Debug().Msg("unknown user name")
			return state, nil, u.fail(ErrUnknownSecurityName, OIDUsmStatsUnknownUserNames, false, nil)
		}
	}
	state.user = user

	// 3. security level
	if user != nil && (level > user.SecurityLevel() || !u.accepts(user, level)) {
		log.Debug().Str("userLevel", user.SecurityLevel().String()).Msg("unsupported security level")
		return state, nil, u.fail(ErrUnsupportedSecurityLevel, OIDUsmStatsUnsupportedSecLevels, false, nil)
	}
	if level == NoAuthNoPriv {
		if m.Encrypted {
			return state, nil, fmt.Errorf("%w: encrypted data without privacy flag", ErrInvalidMessage)
		}
		return state, m.ScopedData, nil
	}

	// 4. digest
	auth := user.AuthProtocol
	if !auth.IsAuthentic(user.AuthKey, m.Raw, m.AuthOffset, len(sp.AuthenticationParameters)) {
		log.Debug().Msg("wrong digest")
		return state, nil, u.fail(ErrWrongDigest, OIDUsmStatsWrongDigests, false, nil)
	}

	// 5. timeliness
	if err := u.checkTime(state, sp); err != nil {
		log.Debug().Uint32("boots", sp.AuthoritativeEngineBoots).Uint32("time", sp.AuthoritativeEngineTime).Err(err).Msg("not in time window")
		return state, nil, u.fail(ErrNotInTimeWindow, OIDUsmStatsNotInTimeWindows, true, err)
	}

	// 6. privacy
	if level < AuthPriv {
		if m.Encrypted {
			return state, nil, fmt.Errorf("%w: encrypted data without privacy flag", ErrInvalidMessage)
		}
		return state, m.ScopedData, nil
	}
	if !m.Encrypted {
		return state, nil, fmt.Errorf("%w: privacy flag set on plaintext data", ErrInvalidMessage)
	}
	plain, err := user.PrivProtocol.Decrypt(m.ScopedData, user.PrivKey,
		sp.AuthoritativeEngineBoots, sp.AuthoritativeEngineTime, sp.PrivacyParameters)
	if err == nil {
		err = checkScopedPDUHeader(plain)
	}
	if err != nil {
		log.Debug().Err(err).Msg("decryption error")
		return state, nil, u.fail(ErrDecryption, OIDUsmStatsDecryptionErrors, true, err)
	}
	return state, plain, nil
}

// accepts reports whether the protocols the user needs for level are
// registered with this engine.
func (u *USM) accepts(user *User, level SecurityLevel) bool {
	if level >= AuthNoPriv {
		if _, ok := u.protocols.Auth(user.AuthProtocol.ID()); !ok {
			return false
		}
	}
	if level == AuthPriv {
		if _, ok := u.protocols.Priv(user.PrivProtocol.ID()); !ok {
			return false
		}
	}
	return true
}

// checkScopedPDUHeader rejects decrypted data that does not start with a
// SEQUENCE; that is what a wrong privacy key produces.
func checkScopedPDUHeader(plain []byte) error {
	tag, _, err := ber.NewDecoder(plain).DecodeHeader()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if tag != ber.TagSequence {
		return fmt.Errorf("%w: plaintext starts with %s", ErrDecryption, tag)
	}
	return nil
}

var (
	errBootsLatched   = errors.New("engine boots latched at maximum")
	errBootsMismatch  = errors.New("engine boots mismatch")
	errTimeOutside    = errors.New("engine time outside window")
	errBootsDecreased = errors.New("engine boots lower than cached")
)

// checkTime is RFC 3414 §3.2 step 7. As the non-authoritative side it first
// updates the cached clock of the remote engine, then checks against it.
func (u *USM) checkTime(state *SecurityState, sp *SecurityParameters) error {
	msgBoots, msgTime := sp.AuthoritativeEngineBoots, sp.AuthoritativeEngineTime
	if state.Authoritative {
		boots, now := u.clock.read()
		switch {
		case boots == MaxEngineBoots:
			return errBootsLatched
		case msgBoots != boots:
			return fmt.Errorf("%w: got %d, local %d", errBootsMismatch, msgBoots, boots)
		case absDiff(msgTime, now) > u.window:
			return fmt.Errorf("%w: got %d, local %d", errTimeOutside, msgTime, now)
		}
		return nil
	}

	key := string(sp.AuthoritativeEngineID)
	now := u.clock.now()
	u.mu.Lock()
	defer u.mu.Unlock()
	e, ok := u.times[key]
	if !ok || !e.authenticated ||
		msgBoots > e.boots || (msgBoots == e.boots && msgTime > e.latestTime) {
		u.times[key] = &timeEntry{
			boots:         msgBoots,
			time:          msgTime,
			latestTime:    msgTime,
			localUpdated:  now,
			authenticated: true,
		}
		if msgBoots == MaxEngineBoots {
			return errBootsLatched
		}
		return nil
	}
	switch {
	case msgBoots == MaxEngineBoots:
		return errBootsLatched
	case msgBoots < e.boots:
		return fmt.Errorf("%w: got %d, cached %d", errBootsDecreased, msgBoots, e.boots)
	case msgBoots == e.boots && uint64(msgTime)+uint64(u.window) < uint64(e.estimate(now)):
		return fmt.Errorf("%w: got %d, estimated %d", errTimeOutside, msgTime, e.estimate(now))
	}
	return nil
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

// SeedEngineTime records boots and time reported by a remote engine in an
// unauthenticated discovery report. An existing entry is kept.
func (u *USM) SeedEngineTime(engineID []byte, boots, engineTime uint32) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.times[string(engineID)]; ok {
		return
	}
	u.times[string(engineID)] = &timeEntry{
		boots:        boots,
		time:         engineTime,
		latestTime:   engineTime,
		localUpdated: u.clock.now(),
	}
}

// EngineTime returns the estimated boots and time of a remote engine.
func (u *USM) EngineTime(engineID []byte) (boots, engineTime uint32, ok bool) {
	if bytes.Equal(engineID, u.engineID) {
		boots, engineTime = u.clock.read()
		return boots, engineTime, true
	}
	u.mu.RLock()
	e, ok := u.times[string(engineID)]
	u.mu.RUnlock()
	if !ok {
		return 0, 0, false
	}
	return e.boots, e.estimate(u.clock.now()), true
}

// ForgetEngine drops the cached clock of a remote engine.
func (u *USM) ForgetEngine(engineID []byte) {
	u.mu.Lock()
	delete(u.times, string(engineID))
	u.mu.Unlock()
}

// GenerateRequest secures an outgoing message for which the remote engine
// is authoritative (RFC 3414 §3.1). An empty engineID sends the
// noAuthNoPriv discovery probe.
func (u *USM) GenerateRequest(h HeaderData, engineID []byte, userName string, level SecurityLevel, scoped []byte) ([]byte, error) {
	sp := &SecurityParameters{AuthoritativeEngineID: engineID, UserName: userName}
	var user *User
	if level > NoAuthNoPriv {
		var ok bool
		if user, ok = u.users.Lookup(engineID, userName); !ok {
			return nil, fmt.Errorf("%w: %w: %q for engine %x", ErrEncodeFailed, ErrUnknownSecurityName, userName, engineID)
		}
		if level > user.SecurityLevel() {
			return nil, fmt.Errorf("%w: %w: user %q allows %s", ErrEncodeFailed, ErrUnsupportedSecurityLevel, userName, user.SecurityLevel())
		}
		sp.AuthoritativeEngineBoots, sp.AuthoritativeEngineTime, _ = u.EngineTime(engineID)
	}
	return u.secure(h, sp, user, level, scoped)
}

// GenerateResponse secures a response or report to a message described by
// state. The local engine is authoritative.
func (u *USM) GenerateResponse(h HeaderData, state *SecurityState, level SecurityLevel, scoped []byte) ([]byte, error) {
	if level > NoAuthNoPriv && (state.user == nil || level > state.user.SecurityLevel()) {
		return nil, fmt.Errorf("%w: no keys for %s response to %q", ErrEncodeFailed, level, state.UserName)
	}
	boots, now := u.clock.read()
	sp := &SecurityParameters{
		AuthoritativeEngineID:    u.engineID,
		AuthoritativeEngineBoots: boots,
		AuthoritativeEngineTime:  now,
		UserName:                 state.UserName,
	}
	return u.secure(h, sp, state.user, level, scoped)
}

// secure encrypts then authenticates.
func (u *USM) secure(h HeaderData, sp *SecurityParameters, user *User, level SecurityLevel, scoped []byte) ([]byte, error) {
	h.Flags = h.Flags&msgFlagReportable | level.flags()
	h.SecurityModel = SecurityModelUSM
	data := scoped
	if level == AuthPriv {
		ct, salt, err := user.PrivProtocol.Encrypt(scoped, user.PrivKey, sp.AuthoritativeEngineBoots, sp.AuthoritativeEngineTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
		data, sp.PrivacyParameters = ct, salt
	}
	if level >= AuthNoPriv {
		sp.AuthenticationParameters = make([]byte, user.AuthProtocol.DigestLength())
	}
	msg, authOffset := encodeMessage(h, sp, data, level == AuthPriv)
	if level >= AuthNoPriv {
		if err := user.AuthProtocol.Authenticate(user.AuthKey, msg, authOffset, len(sp.AuthenticationParameters)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
	}
	return msg, nil
}
