package ntpd

import (
	"encoding/binary"
	"errors"
	"net"
)

const (
	// PacketSize is the fixed NTP header length. Trailing extension
	// fields and MACs are ignored on receive and never emitted.
	PacketSize = 48

	ntpPort = 123
)

// NTP mode values (RFC 5905).
const (
	ModeReserved         = 0
	ModeSymmetricActive  = 1
	ModeSymmetricPassive = 2
	ModeClient           = 3
	ModeServer           = 4
	ModeBroadcast        = 5
)

// Fixed response constants. This server never has a real reference
// source, so it answers at an intentionally non-authoritative stratum
// and claims no reference identity.
const (
	serverStratum   = 8
	serverPrecision = 0
	serverRefID     = 0
)

var (
	ErrPacketTooShort     = errors.New("ntpd: packet too short")
	ErrUnsupportedVersion = errors.New("ntpd: unsupported version")
)

// Packet is the decoded NTPv1-v4 header plus the receive metadata
// that never appears on the wire: the peer address and the local
// timestamp captured right after recv.
type Packet struct {
	RemoteAddr *net.UDPAddr
	LocalTime  Timestamp

	Leap      uint8
	Version   uint8
	Mode      uint8
	Stratum   uint8
	Poll      int8
	Precision int8

	Delay      FracValue
	Dispersion FracValue
	RefID      uint32

	RefTime  Timestamp
	OrigTime Timestamp
	RecvTime Timestamp
	XmitTime Timestamp
}

// DecodePacket parses a received datagram. raddr is the datagram's
// source address and localTime the receipt timestamp; both ride along
// as metadata. Datagrams under 48 bytes and versions outside 1-4 are
// rejected before any field extraction.
func DecodePacket(b []byte, raddr *net.UDPAddr, localTime Timestamp) (Packet, error) {
	if len(b) < PacketSize {
		return Packet{}, ErrPacketTooShort
	}

	version := (b[0] >> 3) & 0x7
	if version < 1 || version > 4 {
		return Packet{}, ErrUnsupportedVersion
	}

	return Packet{
		RemoteAddr: raddr,
		LocalTime:  localTime,

		Leap:      b[0] >> 6,
		Version:   version,
		Mode:      b[0] & 0x7,
		Stratum:   b[1],
		Poll:      int8(b[2]),
		Precision: int8(b[3]),

		Delay:      ReadFrac(b[4:8]),
		Dispersion: ReadFrac(b[8:12]),
		RefID:      binary.BigEndian.Uint32(b[12:16]),

		RefTime:  ReadTimestamp(b[16:24]),
		OrigTime: ReadTimestamp(b[24:32]),
		RecvTime: ReadTimestamp(b[32:40]),
		XmitTime: ReadTimestamp(b[40:48]),
	}, nil
}

// Encode serializes the header into its 48-byte wire form.
func (p Packet) Encode() []byte {
	b := make([]byte, PacketSize)
	b[0] = p.Leap<<6 | (p.Version&0x7)<<3 | p.Mode&0x7
	b[1] = p.Stratum
	b[2] = byte(p.Poll)
	b[3] = byte(p.Precision)
	p.Delay.Write(b[4:8])
	p.Dispersion.Write(b[8:12])
	binary.BigEndian.PutUint32(b[12:16], p.RefID)
	p.RefTime.Write(b[16:24])
	p.OrigTime.Write(b[24:32])
	p.RecvTime.Write(b[32:40])
	p.XmitTime.Write(b[40:48])
	return b
}

// IsRequest reports whether the packet is a client request worth
// answering: symmetric-active, client mode, or the NTPv1 legacy case
// where mode 0 from a non-123 source port is a disguised client.
func (p Packet) IsRequest() bool {
	switch p.Mode {
	case ModeSymmetricActive, ModeClient:
		return true
	case ModeReserved:
		return p.Version == 1 && p.RemoteAddr != nil && p.RemoteAddr.Port != ntpPort
	}
	return false
}

// MakeResponse builds the reply for a request packet. It returns
// ok=false for non-request traffic, which the caller must silently
// drop. The transmit timestamp is stamped here; callers that want it
// closer to the socket write may re-stamp it before encoding.
func (p Packet) MakeResponse(clock Clock) (Packet, bool) {
	if !p.IsRequest() {
		return Packet{}, false
	}

	mode := uint8(ModeServer)
	if p.Mode == ModeSymmetricActive {
		mode = ModeSymmetricPassive
	}

	return Packet{
		RemoteAddr: p.RemoteAddr,

		Leap:      0,
		Version:   p.Version,
		Mode:      mode,
		Stratum:   serverStratum,
		Poll:      p.Poll,
		Precision: serverPrecision,

		Delay:      0,
		Dispersion: 0,
		RefID:      serverRefID,

		RefTime:  FromTime(clock.Now()),
		OrigTime: p.XmitTime,
		RecvTime: p.LocalTime,
		XmitTime: FromTime(clock.Now()),
	}, true
}
