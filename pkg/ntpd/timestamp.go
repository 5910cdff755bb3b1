package ntpd

import (
	"encoding/binary"
	"time"
)

// Timestamp is the 64-bit NTP timestamp: 32 bits of seconds since the
// 1900 epoch, 32 bits of fractional second.
type Timestamp uint64

// Seconds between the NTP epoch (1900-01-01) and the Unix epoch.
const ntpEpochOffset = 2208988800

// FromTime converts a wall-clock reading to the NTP fixed-point form.
func FromTime(t time.Time) Timestamp {
	t = t.UTC()
	seconds := uint64(t.Unix() + ntpEpochOffset)
	fraction := uint64(t.Nanosecond()) << 32 / uint64(time.Second)
	return Timestamp(seconds<<32 | fraction&0xffffffff)
}

// ReadTimestamp reconstructs a timestamp from its 8-byte big-endian
// wire form. Callers pass slices cut from a length-checked header, so
// b is always exactly 8 bytes.
func ReadTimestamp(b []byte) Timestamp {
	return Timestamp(binary.BigEndian.Uint64(b))
}

// Write serializes the timestamp big-endian into an 8-byte region.
func (t Timestamp) Write(b []byte) {
	binary.BigEndian.PutUint64(b, uint64(t))
}

// Time converts back to wall-clock time, for display only.
func (t Timestamp) Time() time.Time {
	secs := int64(t>>32) - ntpEpochOffset
	nanos := (int64(t&0xffffffff) * int64(time.Second)) >> 32
	return time.Unix(secs, nanos).UTC()
}

// Seconds and Fraction expose the two fixed-point halves.
func (t Timestamp) Seconds() uint32  { return uint32(t >> 32) }
func (t Timestamp) Fraction() uint32 { return uint32(t) }

// IsZero reports whether t is the "unknown/unspecified" sentinel.
func (t Timestamp) IsZero() bool { return t == 0 }

// FracValue is the 32-bit fixed-point magnitude used for root delay
// and root dispersion. The server never computes with it; values are
// read for completeness and responses always carry zero.
type FracValue uint32

func ReadFrac(b []byte) FracValue {
	return FracValue(binary.BigEndian.Uint32(b))
}

func (v FracValue) Write(b []byte) {
	binary.BigEndian.PutUint32(b, uint32(v))
}
