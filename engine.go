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
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/OlegPowerC/powersnmpv3engine/ber"
)

// Target describes where and as whom a request is sent. Timeout and
// Retries are carried for the session layer and not enforced here.
type Target struct {
	Address       net.Addr
	SecurityModel int
	SecurityName  string
	SecurityLevel SecurityLevel
	ContextName   []byte
	Timeout       time.Duration
	Retries       int
}

// PendingRequest is an outstanding confirmed request, kept until its
// response or report arrives or the session layer forgets it.
type PendingRequest struct {
	MsgID     int32
	RequestID int32
	Address   string
	EngineID  []byte
	UserName  string
	Level     SecurityLevel
	Discovery bool
	SentAt    time.Time
}

// Incoming is the result of PrepareDataElements.
//
// For requests and notifications the session layer answers with
// PrepareResponse. For responses and reports Request is the matching
// outstanding request. When the message is refused and the peer must be
// told, Report holds the encoded REPORT to send back to Address.
type Incoming struct {
	Address     net.Addr
	Header      HeaderData
	Security    *SecurityState
	ScopedPDU   *ScopedPDU
	Request     *PendingRequest
	ReportError *ReportError
	Report      []byte
}

// Option configures an Engine in NewEngine.
type Option func(*Engine)

// Engine is an SNMPv3 engine: message processing (RFC 3412) on top of the
// USM (RFC 3414). It does no I/O; callers move the bytes.
type Engine struct {
	engineID  []byte
	boots     uint32
	users     *UserTable
	protocols *SecurityProtocols
	stats     *Stats
	log       zerolog.Logger
	strategy  ReportStrategy
	cacheSize int
	maxSize   int32
	window    uint32
	now       func() time.Time

	usm   *USM
	cache *EngineIDCache

	msgCounter atomic.Uint32
	reqCounter atomic.Uint32

	mu          sync.Mutex
	outstanding map[int32]*PendingRequest
}

// NewEngine returns an engine with the local engineID, starting at boots.
func NewEngine(engineID []byte, boots uint32, options ...Option) (*Engine, error) {
	if l := len(engineID); l < MinEngineIDLength || l > MaxEngineIDLength {
		return nil, fmt.Errorf("engine ID of %d bytes, must be %d to %d", l, MinEngineIDLength, MaxEngineIDLength)
	}
	if boots >= MaxEngineBoots {
		return nil, fmt.Errorf("engine boots %d reached maximum", boots)
	}
	e := &Engine{
		engineID:    append([]byte(nil), engineID...),
		boots:       boots,
		log:         zerolog.Nop(),
		strategy:    ReportStandard,
		cacheSize:   DefaultEngineCacheSize,
		maxSize:     DefaultMaxMessageSize,
		window:      TimeWindowSeconds,
		now:         time.Now,
		outstanding: make(map[int32]*PendingRequest),
	}

	for _, option := range options {
		option(e)
	}

	if e.users == nil {
		e.users = NewUserTable()
	}
	if e.protocols == nil {
		e.protocols = DefaultSecurityProtocols()
	}
	if e.stats == nil {
		e.stats = NewStats()
	}

	cache, err := NewEngineIDCache(WithEngineCacheSize(e.cacheSize), withEngineCacheClock(e.now))
	if err != nil {
		return nil, err
	}
	e.cache = cache

	e.usm = NewUSM(e.engineID, boots, e.users, e.protocols, e.stats, e.log)
	e.usm.setClock(boots, e.now)
	e.usm.window = e.window

	e.msgCounter.Store(rand.Uint32())
	e.reqCounter.Store(rand.Uint32())

	return e, nil
}

// WithUsers sets the user table. It must not be shared with another engine.
func WithUsers(users *UserTable) Option {
	return func(e *Engine) { e.users = users }
}

// WithProtocols sets the accepted security protocols.
func WithProtocols(p *SecurityProtocols) Option {
	return func(e *Engine) { e.protocols = p }
}

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log.With().Str("component", "snmpengine").Logger() }
}

// WithReportStrategy chooses how USM failures are reported. The default is
// ReportStandard.
func WithReportStrategy(s ReportStrategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithCacheSize bounds the engine ID cache. Zero keeps the default.
func WithCacheSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.cacheSize = size
		}
	}
}

// WithMaxMessageSize sets msgMaxSize, clamped to [484, 2^31-1].
func WithMaxMessageSize(size int32) Option {
	return func(e *Engine) {
		if size != 0 {
			e.maxSize = max(size, MinMessageSize)
		}
	}
}

// WithTimeWindow sets the timeliness window in seconds. Zero keeps 150.
func WithTimeWindow(seconds uint32) Option {
	return func(e *Engine) {
		if seconds > 0 {
			e.window = seconds
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithStats shares a statistics set, for example one already registered
// with a prometheus registry.
func WithStats(s *Stats) Option {
	return func(e *Engine) { e.stats = s }
}

// EngineID returns the local snmpEngineID.
func (e *Engine) EngineID() []byte { return e.engineID }

// USM returns the security model the engine runs.
func (e *Engine) USM() *USM { return e.usm }

// Users returns the local user table.
func (e *Engine) Users() *UserTable { return e.users }

// Cache returns the engine ID cache of discovered remote engines.
func (e *Engine) Cache() *EngineIDCache { return e.cache }

// Stats returns the MPD and USM counters.
func (e *Engine) Stats() *Stats { return e.stats }

// Protocols returns the registered security protocols.
func (e *Engine) Protocols() *SecurityProtocols { return e.protocols }

// NextMessageID returns msgID with the low 15 bits of snmpEngineBoots in
// the upper half and a counter in the lower half. Bit 31 stays clear.
func (e *Engine) NextMessageID() int32 {
	boots, _ := e.usm.BootsAndTime()
	return int32((boots&0x7FFF)<<16 | e.msgCounter.Add(1)&0xFFFF)
}

// NextRequestID returns a positive request-id, never 0.
func (e *Engine) NextRequestID() int32 {
	for {
		if v := e.reqCounter.Add(1) & 0x7FFFFFFF; v != 0 {
			return int32(v)
		}
	}
}

func (e *Engine) header(msgID int32, reportable bool) HeaderData {
	h := HeaderData{MsgID: msgID, MaxSize: e.maxSize, SecurityModel: SecurityModelUSM}
	if reportable {
		h.Flags = msgFlagReportable
	}
	return h
}

func (e *Engine) track(p *PendingRequest) {
	e.mu.Lock()
	e.outstanding[p.MsgID] = p
	e.mu.Unlock()
}

// Forget drops the outstanding request msgID, after a timeout for example.
func (e *Engine) Forget(msgID int32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.outstanding[msgID]
	delete(e.outstanding, msgID)
	return ok
}

// Outstanding returns the number of requests awaiting an answer.
func (e *Engine) Outstanding() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.outstanding)
}

func (e *Engine) take(msgID int32) (*PendingRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.outstanding[msgID]
	delete(e.outstanding, msgID)
	return p, ok
}

// PrepareDiscoveryRequest builds the noAuthNoPriv probe with an empty
// engine ID that makes addr report its snmpEngineID, boots and time
// (RFC 3414 §4).
func (e *Engine) PrepareDiscoveryRequest(addr net.Addr) ([]byte, int32, error) {
	scoped := &ScopedPDU{PDU: PDU{Type: ber.TagGetRequest, RequestID: e.NextRequestID()}}
	data, err := scoped.MarshalBER()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	msgID := e.NextMessageID()
	msg, err := e.usm.GenerateRequest(e.header(msgID, true), nil, "", NoAuthNoPriv, data)
	if err != nil {
		return nil, 0, err
	}
	e.track(&PendingRequest{
		MsgID:     msgID,
		RequestID: scoped.PDU.RequestID,
		Address:   addr.String(),
		Level:     NoAuthNoPriv,
		Discovery: true,
		SentAt:    e.now(),
	})
	e.log.Debug().Str("addr", addr.String()).Int32("msgID", msgID).Msg("discovery request")
	return msg, msgID, nil
}

// PrepareOutgoingRequest secures pdu for t. Requests need the engine at
// t.Address in the cache; notifications are sent with the local engine
// as authoritative. A zero RequestID is assigned from NextRequestID and
// written back into pdu.
func (e *Engine) PrepareOutgoingRequest(t Target, pdu *PDU) ([]byte, int32, error) {
	if t.SecurityModel != 0 && t.SecurityModel != SecurityModelUSM {
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownSecurityModel, t.SecurityModel)
	}
	if pdu.IsResponse() {
		return nil, 0, fmt.Errorf("%w: %s is not a request", ErrEncodeFailed, pdu.Type)
	}
	level := t.SecurityLevel
	if level == 0 {
		level = NoAuthNoPriv
	}
	addr := t.Address.String()

	engineID := e.engineID
	if pdu.Confirmed() {
		info, ok := e.cache.Lookup(addr)
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s not discovered", ErrUnknownEngineID, addr)
		}
		engineID = info.EngineID
	}
	if pdu.RequestID == 0 {
		pdu.RequestID = e.NextRequestID()
	}

	scoped := &ScopedPDU{ContextEngineID: engineID, ContextName: t.ContextName, PDU: *pdu}
	data, err := scoped.MarshalBER()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	msgID := e.NextMessageID()
	msg, err := e.usm.GenerateRequest(e.header(msgID, pdu.Confirmed()), engineID, t.SecurityName, level, data)
	if err != nil {
		return nil, 0, err
	}
	if len(msg) > int(e.maxSize) {
		return nil, 0, fmt.Errorf("%w: message of %d bytes exceeds %d", ErrEncodeFailed, len(msg), e.maxSize)
	}
	if pdu.Confirmed() {
		e.track(&PendingRequest{
			MsgID:     msgID,
			RequestID: pdu.RequestID,
			Address:   addr,
			EngineID:  engineID,
			UserName:  t.SecurityName,
			Level:     level,
			SentAt:    e.now(),
		})
	}
	return msg, msgID, nil
}

// PrepareDataElements processes a message received from addr (RFC 3412
// §7.2). When the returned error is a USM failure the peer should hear
// about, Incoming.Report holds the encoded REPORT; otherwise Incoming is
// nil on error.
func (e *Engine) PrepareDataElements(addr net.Addr, b []byte) (*Incoming, error) {
	log := e.log.With().Str("addr", addr.String()).Logger()

	m, err := DecodeMessage(b)
	if err != nil {
		switch {
		case errors.Is(err, ber.ErrFraming):
			e.stats.Increment(OIDSnmpInASNParseErrs)
		case errors.Is(err, ErrUnknownSecurityModel):
			e.stats.Increment(OIDSnmpUnknownSecurityModels)
		case errors.Is(err, ErrInvalidMessage):
			e.stats.Increment(OIDSnmpInvalidMsgs)
		}
		log.Debug().Err(err).Msg("dropped message")
		return nil, err
	}

	state, plain, err := e.usm.ProcessIncoming(m)
	if err != nil {
		var uerr *USMError
		if !errors.As(err, &uerr) {
			if errors.Is(err, ErrInvalidMessage) {
				e.stats.Increment(OIDSnmpInvalidMsgs)
			}
			log.Debug().Err(err).Int32("msgID", m.Header.MsgID).Msg("dropped message")
			return nil, err
		}
		report, rerr := e.reportFor(m, state, uerr)
		if rerr != nil {
			log.Warn().Err(rerr).Msg("cannot build report")
		}
		if report == nil {
			log.Debug().Err(err).Int32("msgID", m.Header.MsgID).Msg("dropped message")
			return nil, err
		}
		log.Debug().Err(err).Int32("msgID", m.Header.MsgID).Str("status", uerr.Counter.String()).Msg("sending report")
		return &Incoming{Address: addr, Header: m.Header, Security: state, Report: report}, err
	}

	scoped, err := ParseScopedPDU(plain)
	if err != nil {
		e.stats.Increment(OIDSnmpInASNParseErrs)
		log.Debug().Err(err).Int32("msgID", m.Header.MsgID).Msg("dropped scoped PDU")
		return nil, err
	}
	in := &Incoming{Address: addr, Header: m.Header, Security: state, ScopedPDU: scoped}

	if !scoped.PDU.IsResponse() {
		if len(scoped.ContextEngineID) == 0 && state.Authoritative {
			scoped.ContextEngineID = e.engineID
		}
		return in, nil
	}

	req, ok := e.take(m.Header.MsgID)
	if !ok {
		log.Debug().Int32("msgID", m.Header.MsgID).Msg("no outstanding request")
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageID, m.Header.MsgID)
	}
	in.Request = req

	if scoped.PDU.Type == ber.TagReport || req.Discovery {
		if scoped.PDU.Type == ber.TagReport {
			in.ReportError = newReportError(scoped.PDU.VarBinds)
		}
		e.learnFromReport(addr, m, state, req, in.ReportError)
		return in, nil
	}

	if !bytes.Equal(state.EngineID, req.EngineID) || state.UserName != req.UserName || state.Level != req.Level {
		e.track(req)
		return nil, fmt.Errorf("%w: response security parameters differ from request %d", ErrInvalidMessage, req.MsgID)
	}
	if state.Level > NoAuthNoPriv {
		e.confirmEngine(addr, m)
	}
	return in, nil
}

func (e *Engine) confirmEngine(addr net.Addr, m *Message) {
	evicted := e.cache.Confirm(EngineInfo{
		Address:  addr.String(),
		EngineID: m.Params.AuthoritativeEngineID,
		Boots:    m.Params.AuthoritativeEngineBoots,
		Time:     m.Params.AuthoritativeEngineTime,
	})
	if evicted {
		e.log.Debug().Str("addr", addr.String()).Msg("engine cache full, evicted least recently confirmed")
	}
}

// learnFromReport updates the engine cache from discovery reports and from
// authenticated notInTimeWindow reports.
func (e *Engine) learnFromReport(addr net.Addr, m *Message, state *SecurityState, req *PendingRequest, re *ReportError) {
	switch {
	case req.Discovery || (re != nil && errors.Is(re, ErrUnknownEngineID)):
		if l := len(state.EngineID); l < MinEngineIDLength || l > MaxEngineIDLength {
			return
		}
		e.usm.SeedEngineTime(state.EngineID, m.Params.AuthoritativeEngineBoots, m.Params.AuthoritativeEngineTime)
		e.confirmEngine(addr, m)
		e.log.Debug().
			Str("addr", addr.String()).
			Hex("engineID", state.EngineID).
			Uint32("boots", m.Params.AuthoritativeEngineBoots).
			Uint32("time", m.Params.AuthoritativeEngineTime).
			Msg("discovered engine")
	case state.Level > NoAuthNoPriv:
		e.confirmEngine(addr, m)
	}
}

// reportLevel decides whether a USM failure is answered and at which
// security level. Failures found after the digest verified are reported
// authenticated.
func (e *Engine) reportLevel(m *Message, state *SecurityState, uerr *USMError) (SecurityLevel, bool) {
	if !m.Header.Reportable() || state == nil {
		return 0, false
	}
	switch {
	case state.Level == NoAuthNoPriv:
		return NoAuthNoPriv, true
	case uerr.Authenticated:
		return AuthNoPriv, true
	case e.strategy == ReportNoAuthNoPrivIfNeeded:
		return NoAuthNoPriv, true
	}
	return 0, false
}

func (e *Engine) reportFor(m *Message, state *SecurityState, uerr *USMError) ([]byte, error) {
	level, ok := e.reportLevel(m, state, uerr)
	if !ok {
		return nil, nil
	}
	return e.report(m.Header.MsgID, state, level, uerr.Counter, uerr.Value)
}

// report builds a REPORT with the single statistics varbind counter.
func (e *Engine) report(msgID int32, state *SecurityState, level SecurityLevel, counter ber.OID, value uint32) ([]byte, error) {
	scoped := &ScopedPDU{
		ContextEngineID: e.engineID,
		PDU: PDU{
			Type:     ber.TagReport,
			VarBinds: []VarBind{{Name: counter, Value: ber.Counter32(value)}},
		},
	}
	data, err := scoped.MarshalBER()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return e.usm.GenerateResponse(e.header(msgID, false), state, level, data)
}

// ReportUnknownPDUHandler answers a request no application accepted with
// a snmpUnknownPDUHandlers REPORT. It returns nil when the request was not
// reportable.
func (e *Engine) ReportUnknownPDUHandler(in *Incoming) ([]byte, error) {
	value := e.stats.Increment(OIDSnmpUnknownPDUHandlers)
	if !in.Header.Reportable() {
		return nil, nil
	}
	return e.report(in.Header.MsgID, in.Security, in.Security.Level, OIDSnmpUnknownPDUHandlers, value)
}

// PrepareResponse secures the answer to the request in. The response keeps
// the request-id, context and security level of the request. A response
// larger than either side's msgMaxSize becomes an empty tooBig response.
func (e *Engine) PrepareResponse(in *Incoming, pdu PDU) ([]byte, error) {
	if in.ScopedPDU == nil || !in.ScopedPDU.PDU.Confirmed() {
		return nil, fmt.Errorf("%w: nothing to respond to", ErrEncodeFailed)
	}
	pdu.Type = ber.TagResponse
	pdu.RequestID = in.ScopedPDU.PDU.RequestID

	limit := min(int(in.Header.MaxSize), int(e.maxSize))
	msg, err := e.response(in, pdu)
	if err != nil {
		return nil, err
	}
	if len(msg) <= limit {
		return msg, nil
	}
	e.log.Debug().Int("size", len(msg)).Int("limit", limit).Msg("response too big")
	return e.response(in, PDU{Type: ber.TagResponse, RequestID: pdu.RequestID, ErrorStatus: TooBig})
}

func (e *Engine) response(in *Incoming, pdu PDU) ([]byte, error) {
	scoped := &ScopedPDU{
		ContextEngineID: in.ScopedPDU.ContextEngineID,
		ContextName:     in.ScopedPDU.ContextName,
		PDU:             pdu,
	}
	data, err := scoped.MarshalBER()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return e.usm.GenerateResponse(e.header(in.Header.MsgID, false), in.Security, in.Security.Level, data)
}
