// Package ntpd implements a stateless NTP responder: it answers
// client queries with syntactically valid stratum-8 packets derived
// from the local wall clock, without performing any synchronization.
package ntpd

const Version = "0.2.0"

func VersionInfo() string {
	return "kiss-ntpd v" + Version
}
