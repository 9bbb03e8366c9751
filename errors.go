// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"errors"
	"fmt"

	"github.com/OlegPowerC/powersnmpv3engine/ber"
)

// USM failure kinds (RFC 3414 §3.2). Match them with errors.Is.
var (
	ErrUnknownEngineID          = errors.New("unknown engine ID")
	ErrUnknownSecurityName      = errors.New("unknown security name")
	ErrUnsupportedSecurityLevel = errors.New("unsupported security level")
	ErrWrongDigest              = errors.New("wrong digest")
	ErrNotInTimeWindow          = errors.New("not in time window")
	ErrDecryption               = errors.New("decryption error")
)

// Message processing failures (RFC 3412 §7.2).
var (
	ErrBadVersion           = errors.New("unsupported SNMP version")
	ErrUnknownSecurityModel = errors.New("unknown security model")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrUnknownMessageID     = errors.New("no outstanding request for message ID")
	ErrUnknownPDUHandler    = errors.New("no handler for PDU")
	ErrEncodeFailed         = errors.New("cannot encode outgoing message")
)

// USMError is returned by the USM for a message it refused. Counter names
// the usmStats object that was incremented and Value its new value; both
// go into the REPORT when one is sent.
type USMError struct {
	Kind    error
	Counter ber.OID
	Value   uint32
	// Authenticated is set when the digest was verified before the failure,
	// so a report may be protected at the request's security level.
	Authenticated bool
	Err           error
}

func (e *USMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("usm: %v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("usm: %v", e.Kind)
}

func (e *USMError) Is(target error) bool { return target == e.Kind }

func (e *USMError) Unwrap() error { return e.Err }

// ResponseError is a Response PDU that carries a non-zero error-status.
type ResponseError struct {
	Status     ErrorStatus
	Index      int32
	FailedName ber.OID
}

func (e *ResponseError) Error() string {
	if e.FailedName != nil {
		return fmt.Sprintf("%s (status=%d, index=%d): %s", e.Status, int32(e.Status), e.Index, e.FailedName)
	}
	return fmt.Sprintf("%s (status=%d, index=%d)", e.Status, int32(e.Status), e.Index)
}

// ReportError is a REPORT received in answer to a request. Counter is the
// statistics object of its first varbind, Kind the matching USM failure
// when the counter is one of the usmStats objects.
type ReportError struct {
	Counter ber.OID
	Value   ber.Value
	Kind    error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report %s = %v", e.Counter, e.Value)
}

func (e *ReportError) Is(target error) bool { return e.Kind != nil && target == e.Kind }

// reportKinds maps usmStats objects to the USM failure they signal.
var reportKinds = []struct {
	oid  ber.OID
	kind error
}{
	{OIDUsmStatsUnsupportedSecLevels, ErrUnsupportedSecurityLevel},
	{OIDUsmStatsNotInTimeWindows, ErrNotInTimeWindow},
	{OIDUsmStatsUnknownUserNames, ErrUnknownSecurityName},
	{OIDUsmStatsUnknownEngineIDs, ErrUnknownEngineID},
	{OIDUsmStatsWrongDigests, ErrWrongDigest},
	{OIDUsmStatsDecryptionErrors, ErrDecryption},
	{OIDSnmpUnknownSecurityModels, ErrUnknownSecurityModel},
	{OIDSnmpInvalidMsgs, ErrInvalidMessage},
	{OIDSnmpUnknownPDUHandlers, ErrUnknownPDUHandler},
}

func newReportError(vbs []VarBind) *ReportError {
	if len(vbs) == 0 {
		return &ReportError{}
	}
	re := &ReportError{Counter: vbs[0].Name, Value: vbs[0].Value}
	for _, rk := range reportKinds {
		if rk.oid.Equal(vbs[0].Name) {
			re.Kind = rk.kind
			break
		}
	}
	return re
}
