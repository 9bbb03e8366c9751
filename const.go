// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"fmt"

	"github.com/OlegPowerC/powersnmpv3engine/ber"
)

const (
	// SNMPv3 Message Flags (msgFlags byte)
	msgFlagAuth       = 0x01
	msgFlagPriv       = 0x02
	msgFlagReportable = 0x04

	// SNMPv3 Security Models
	SecurityModelUSM = 3

	snmpVersion3 = 3
)

const (
	// Limits & Defaults
	MinEngineIDLength      = 5
	MaxEngineIDLength      = 32
	MinMessageSize         = 484
	DefaultMaxMessageSize  = 65507
	MaxEngineBoots         = 2147483647
	MaxEngineTime          = 2147483647
	TimeWindowSeconds      = 150
	DefaultEngineCacheSize = 256

	privParamsLength = 8
	maxInteger32     = 2147483647
)

// SecurityLevel is the RFC 3411 securityLevel.
type SecurityLevel int

const (
	NoAuthNoPriv SecurityLevel = 1
	AuthNoPriv   SecurityLevel = 2
	AuthPriv     SecurityLevel = 3
)

func (l SecurityLevel) String() string {
	switch l {
	case NoAuthNoPriv:
		return "noAuthNoPriv"
	case AuthNoPriv:
		return "authNoPriv"
	case AuthPriv:
		return "authPriv"
	}
	return fmt.Sprintf("securityLevel(%d)", int(l))
}

func (l SecurityLevel) flags() byte {
	switch l {
	case AuthNoPriv:
		return msgFlagAuth
	case AuthPriv:
		return msgFlagAuth | msgFlagPriv
	}
	return 0
}

// securityLevelFromFlags rejects priv without auth (RFC 3412 §7.2 step 5).
func securityLevelFromFlags(flags byte) (SecurityLevel, bool) {
	switch flags & (msgFlagAuth | msgFlagPriv) {
	case 0:
		return NoAuthNoPriv, true
	case msgFlagAuth:
		return AuthNoPriv, true
	case msgFlagAuth | msgFlagPriv:
		return AuthPriv, true
	}
	return 0, false
}

// ReportStrategy decides whether and at which security level a USM failure
// is answered with a REPORT.
type ReportStrategy int

const (
	// ReportStandard answers only when the report can be sent at the security
	// level of the offending request: noAuthNoPriv requests, or failures
	// detected after the request authenticated.
	ReportStandard ReportStrategy = iota
	// ReportNoAuthNoPrivIfNeeded also answers pre-authentication failures of
	// authenticated requests, downgrading the report to noAuthNoPriv.
	ReportNoAuthNoPrivIfNeeded
)

func (s ReportStrategy) String() string {
	switch s {
	case ReportStandard:
		return "standard"
	case ReportNoAuthNoPrivIfNeeded:
		return "noAuthNoPrivIfNeeded"
	}
	return fmt.Sprintf("reportStrategy(%d)", int(s))
}

// ParseReportStrategy accepts the names printed by ReportStrategy.String.
func ParseReportStrategy(s string) (ReportStrategy, error) {
	switch s {
	case "", "standard":
		return ReportStandard, nil
	case "noAuthNoPrivIfNeeded", "noauthnoprivifneeded":
		return ReportNoAuthNoPrivIfNeeded, nil
	}
	return 0, fmt.Errorf("unknown report strategy %q", s)
}

// ErrorStatus is the PDU error-status field (RFC 3416 §3).
type ErrorStatus int32

const (
	NoError             ErrorStatus = 0
	TooBig              ErrorStatus = 1
	NoSuchName          ErrorStatus = 2
	BadValue            ErrorStatus = 3
	ReadOnly            ErrorStatus = 4
	GenErr              ErrorStatus = 5
	NoAccess            ErrorStatus = 6
	WrongType           ErrorStatus = 7
	WrongLength         ErrorStatus = 8
	WrongEncoding       ErrorStatus = 9
	WrongValue          ErrorStatus = 10
	NoCreation          ErrorStatus = 11
	InconsistentValue   ErrorStatus = 12
	ResourceUnavailable ErrorStatus = 13
	CommitFailed        ErrorStatus = 14
	UndoFailed          ErrorStatus = 15
	AuthorizationError  ErrorStatus = 16
	NotWritable         ErrorStatus = 17
	InconsistentName    ErrorStatus = 18
)

// ErrorStatusNames maps error-status codes to their RFC 3416 names.
var ErrorStatusNames = map[ErrorStatus]string{
	NoError:             "noError",
	TooBig:              "tooBig",
	NoSuchName:          "noSuchName",
	BadValue:            "badValue",
	ReadOnly:            "readOnly",
	GenErr:              "genErr",
	NoAccess:            "noAccess",
	WrongType:           "wrongType",
	WrongLength:         "wrongLength",
	WrongEncoding:       "wrongEncoding",
	WrongValue:          "wrongValue",
	NoCreation:          "noCreation",
	InconsistentValue:   "inconsistentValue",
	ResourceUnavailable: "resourceUnavailable",
	CommitFailed:        "commitFailed",
	UndoFailed:          "undoFailed",
	AuthorizationError:  "authorizationError",
	NotWritable:         "notWritable",
	InconsistentName:    "inconsistentName",
}

func (e ErrorStatus) String() string {
	if name, ok := ErrorStatusNames[e]; ok {
		return name
	}
	return fmt.Sprintf("error-status: %d", int32(e))
}

// Statistics objects carried in REPORT PDUs.
var (
	// SNMP-USER-BASED-SM-MIB usmStats (RFC 3414)
	OIDUsmStatsUnsupportedSecLevels = ber.OID{1, 3, 6, 1, 6, 3, 15, 1, 1, 1, 0}
	OIDUsmStatsNotInTimeWindows     = ber.OID{1, 3, 6, 1, 6, 3, 15, 1, 1, 2, 0}
	OIDUsmStatsUnknownUserNames     = ber.OID{1, 3, 6, 1, 6, 3, 15, 1, 1, 3, 0}
	OIDUsmStatsUnknownEngineIDs     = ber.OID{1, 3, 6, 1, 6, 3, 15, 1, 1, 4, 0}
	OIDUsmStatsWrongDigests         = ber.OID{1, 3, 6, 1, 6, 3, 15, 1, 1, 5, 0}
	OIDUsmStatsDecryptionErrors     = ber.OID{1, 3, 6, 1, 6, 3, 15, 1, 1, 6, 0}

	// SNMP-MPD-MIB snmpMPDStats (RFC 3412)
	OIDSnmpUnknownSecurityModels = ber.OID{1, 3, 6, 1, 6, 3, 11, 2, 1, 1, 0}
	OIDSnmpInvalidMsgs           = ber.OID{1, 3, 6, 1, 6, 3, 11, 2, 1, 2, 0}
	OIDSnmpUnknownPDUHandlers    = ber.OID{1, 3, 6, 1, 6, 3, 11, 2, 1, 3, 0}

	// SNMPv2-MIB snmpInASNParseErrs
	OIDSnmpInASNParseErrs = ber.OID{1, 3, 6, 1, 2, 1, 11, 6, 0}
)

// Protocol identifiers (SNMP-FRAMEWORK-MIB, RFC 7860, vendor extensions).
var (
	OIDUsmNoAuthProtocol            = ber.OID{1, 3, 6, 1, 6, 3, 10, 1, 1, 1}
	OIDUsmHMACMD5AuthProtocol       = ber.OID{1, 3, 6, 1, 6, 3, 10, 1, 1, 2}
	OIDUsmHMACSHAAuthProtocol       = ber.OID{1, 3, 6, 1, 6, 3, 10, 1, 1, 3}
	OIDUsmHMAC128SHA224AuthProtocol = ber.OID{1, 3, 6, 1, 6, 3, 10, 1, 1, 4}
	OIDUsmHMAC192SHA256AuthProtocol = ber.OID{1, 3, 6, 1, 6, 3, 10, 1, 1, 5}
	OIDUsmHMAC256SHA384AuthProtocol = ber.OID{1, 3, 6, 1, 6, 3, 10, 1, 1, 6}
	OIDUsmHMAC384SHA512AuthProtocol = ber.OID{1, 3, 6, 1, 6, 3, 10, 1, 1, 7}

	OIDUsmNoPrivProtocol      = ber.OID{1, 3, 6, 1, 6, 3, 10, 1, 2, 1}
	OIDUsmDESPrivProtocol     = ber.OID{1, 3, 6, 1, 6, 3, 10, 1, 2, 2}
	OIDUsm3DESEDEPrivProtocol = ber.OID{1, 3, 6, 1, 6, 3, 10, 1, 2, 3}
	OIDUsmAesCfb128Protocol   = ber.OID{1, 3, 6, 1, 6, 3, 10, 1, 2, 4}

	// CISCO-SNMP-USM-OIDS-MIB, key extension per draft-reeder-snmpv3-usm-3desede
	OIDUsmAESCfb192Protocol = ber.OID{1, 3, 6, 1, 4, 1, 9, 12, 6, 1, 1}
	OIDUsmAESCfb256Protocol = ber.OID{1, 3, 6, 1, 4, 1, 9, 12, 6, 1, 2}

	// AGENTPP-MIB, key extension per draft-blumenthal-aes-usm
	OIDUsmAESCfb192AProtocol = ber.OID{1, 3, 6, 1, 4, 1, 4976, 2, 2, 1, 1, 1}
	OIDUsmAESCfb256AProtocol = ber.OID{1, 3, 6, 1, 4, 1, 4976, 2, 2, 1, 1, 2}
)
