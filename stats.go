// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/OlegPowerC/powersnmpv3engine/ber"
)

const metricsNamespace = "snmp_engine"

type statCounter struct {
	oid   ber.OID
	value atomic.Uint32
	desc  *prometheus.Desc
}

// Stats holds the engine's Counter32 statistics. Values wrap at 2^32 like
// the MIB objects they mirror. Stats is a prometheus.Collector.
type Stats struct {
	counters []*statCounter
	byOID    map[string]*statCounter
}

// NewStats returns zeroed counters for the usmStats, snmpMPDStats and
// snmpInASNParseErrs objects.
func NewStats() *Stats {
	defs := []struct {
		oid  ber.OID
		name string
		help string
	}{
		{OIDUsmStatsUnsupportedSecLevels, "usm_unsupported_sec_levels_total", "Packets dropped because they requested an unknown or unavailable security level."},
		{OIDUsmStatsNotInTimeWindows, "usm_not_in_time_windows_total", "Packets dropped because they appeared outside of the engine's window."},
		{OIDUsmStatsUnknownUserNames, "usm_unknown_user_names_total", "Packets dropped because they referenced an unknown user."},
		{OIDUsmStatsUnknownEngineIDs, "usm_unknown_engine_ids_total", "Packets dropped because they referenced an unknown snmpEngineID."},
		{OIDUsmStatsWrongDigests, "usm_wrong_digests_total", "Packets dropped because they did not contain the expected digest value."},
		{OIDUsmStatsDecryptionErrors, "usm_decryption_errors_total", "Packets dropped because they could not be decrypted."},
		{OIDSnmpUnknownSecurityModels, "mpd_unknown_security_models_total", "Packets dropped because they referenced an unsupported security model."},
		{OIDSnmpInvalidMsgs, "mpd_invalid_msgs_total", "Packets dropped because of invalid or inconsistent components."},
		{OIDSnmpUnknownPDUHandlers, "mpd_unknown_pdu_handlers_total", "Packets dropped because no application accepted the PDU."},
		{OIDSnmpInASNParseErrs, "in_asn_parse_errs_total", "ASN.1 or BER errors encountered when decoding received messages."},
	}
	s := &Stats{byOID: make(map[string]*statCounter, len(defs))}
	for _, d := range defs {
		c := &statCounter{
			oid: d.oid,
			desc: prometheus.NewDesc(
				prometheus.BuildFQName(metricsNamespace, "", d.name),
				d.help, nil, prometheus.Labels{"oid": d.oid.String()},
			),
		}
		s.counters = append(s.counters, c)
		s.byOID[d.oid.String()] = c
	}
	return s
}

// Increment adds one to the counter for oid and returns the new value.
// Unknown OIDs return 0.
func (s *Stats) Increment(oid ber.OID) uint32 {
	if c, ok := s.byOID[oid.String()]; ok {
		return c.value.Add(1)
	}
	return 0
}

// Value returns the current value of the counter for oid.
func (s *Stats) Value(oid ber.OID) (uint32, bool) {
	c, ok := s.byOID[oid.String()]
	if !ok {
		return 0, false
	}
	return c.value.Load(), true
}

// Snapshot returns all counters keyed by dotted OID.
func (s *Stats) Snapshot() map[string]uint32 {
	out := make(map[string]uint32, len(s.counters))
	for _, c := range s.counters {
		out[c.oid.String()] = c.value.Load()
	}
	return out
}

// Describe implements prometheus.Collector.
func (s *Stats) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range s.counters {
		ch <- c.desc
	}
}

// Collect implements prometheus.Collector. Every counter is exported as a
// Prometheus counter with its current value.
func (s *Stats) Collect(ch chan<- prometheus.Metric) {
	for _, c := range s.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.value.Load()))
	}
}
