package ntpd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(192, 0, 2, 1), Port: port}
}

func TestDecodePacket_EncodeRoundTrip(t *testing.T) {
	p := Packet{
		Leap:      0,
		Version:   4,
		Mode:      ModeClient,
		Stratum:   2,
		Poll:      6,
		Precision: -20,

		Delay:      FracValue(0x01020304),
		Dispersion: FracValue(0x05060708),
		RefID:      0x4c4f434c, // "LOCL"

		RefTime:  Timestamp(0x1111111122222222),
		OrigTime: Timestamp(0x3333333344444444),
		RecvTime: Timestamp(0x5555555566666666),
		XmitTime: Timestamp(0x7777777788888888),
	}

	b := p.Encode()
	require.Len(t, b, PacketSize)

	raddr := clientAddr(40000)
	local := Timestamp(42)
	p2, err := DecodePacket(b, raddr, local)
	require.NoError(t, err)

	assert.Equal(t, raddr, p2.RemoteAddr)
	assert.Equal(t, local, p2.LocalTime)

	// The metadata is not on the wire; compare the header fields.
	p2.RemoteAddr = nil
	p2.LocalTime = 0
	assert.Equal(t, p, p2)

	assert.Equal(t, b, p2.Encode())
}

func TestDecodePacket_TooShort(t *testing.T) {
	for _, n := range []int{0, 1, 12, 47} {
		_, err := DecodePacket(make([]byte, n), clientAddr(40000), 0)
		assert.ErrorIs(t, err, ErrPacketTooShort, "len=%d", n)
	}
}

func TestDecodePacket_UnsupportedVersion(t *testing.T) {
	for _, vn := range []uint8{0, 5, 6, 7} {
		b := make([]byte, PacketSize)
		b[0] = vn<<3 | ModeClient
		_, err := DecodePacket(b, clientAddr(40000), 0)
		assert.ErrorIs(t, err, ErrUnsupportedVersion, "version=%d", vn)
	}
	for _, vn := range []uint8{1, 2, 3, 4} {
		b := make([]byte, PacketSize)
		b[0] = vn<<3 | ModeClient
		_, err := DecodePacket(b, clientAddr(40000), 0)
		assert.NoError(t, err, "version=%d", vn)
	}
}

func TestDecodePacket_IgnoresTrailingBytes(t *testing.T) {
	b := make([]byte, PacketSize+20)
	b[0] = 4<<3 | ModeClient
	for i := PacketSize; i < len(b); i++ {
		b[i] = 0xff
	}

	p, err := DecodePacket(b, clientAddr(40000), 0)
	require.NoError(t, err)
	assert.Len(t, p.Encode(), PacketSize)
}

func TestPacket_IsRequest_Table(t *testing.T) {
	cases := []struct {
		name    string
		mode    uint8
		version uint8
		port    int
		want    bool
	}{
		{"client v4", ModeClient, 4, 123, true},
		{"client v3 high port", ModeClient, 3, 40000, true},
		{"symmetric active", ModeSymmetricActive, 4, 123, true},
		{"server reply", ModeServer, 4, 40000, false},
		{"symmetric passive", ModeSymmetricPassive, 4, 40000, false},
		{"broadcast", ModeBroadcast, 4, 40000, false},
		{"mode 6", 6, 4, 40000, false},
		{"mode 7", 7, 4, 40000, false},
		{"legacy v1 high port", ModeReserved, 1, 4000, true},
		{"legacy v1 ntp port", ModeReserved, 1, 123, false},
		{"mode 0 v4", ModeReserved, 4, 4000, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Packet{
				RemoteAddr: clientAddr(tc.port),
				Mode:       tc.mode,
				Version:    tc.version,
			}
			assert.Equal(t, tc.want, p.IsRequest())
		})
	}
}

func TestPacket_MakeResponse_FieldMapping(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := fixedClock{t: now}

	reqXmit := Timestamp(0x1234567890abcdef)
	local := Timestamp(0x0fedcba987654321)
	req := Packet{
		RemoteAddr: clientAddr(40000),
		LocalTime:  local,

		Leap:       3,
		Version:    4,
		Mode:       ModeClient,
		Stratum:    2,
		Poll:       10,
		Precision:  -18,
		Delay:      FracValue(7),
		Dispersion: FracValue(9),
		RefID:      0x11223344,
		XmitTime:   reqXmit,
	}

	resp, ok := req.MakeResponse(clock)
	require.True(t, ok)

	assert.Equal(t, req.RemoteAddr, resp.RemoteAddr)
	assert.EqualValues(t, 0, resp.Leap)
	assert.EqualValues(t, 4, resp.Version)
	assert.EqualValues(t, ModeServer, resp.Mode)
	assert.EqualValues(t, 8, resp.Stratum)
	assert.EqualValues(t, 10, resp.Poll)
	assert.EqualValues(t, 0, resp.Precision)
	assert.EqualValues(t, 0, resp.Delay)
	assert.EqualValues(t, 0, resp.Dispersion)
	assert.EqualValues(t, 0, resp.RefID)

	assert.Equal(t, FromTime(now), resp.RefTime)
	assert.Equal(t, reqXmit, resp.OrigTime, "orig_ts must echo the request transmit timestamp")
	assert.Equal(t, local, resp.RecvTime, "rx_ts must be the receipt timestamp, not a fresh clock read")
	assert.Equal(t, FromTime(now), resp.XmitTime)
}

func TestPacket_MakeResponse_SymmetricActiveGetsPassive(t *testing.T) {
	req := Packet{
		RemoteAddr: clientAddr(123),
		Version:    3,
		Mode:       ModeSymmetricActive,
	}
	resp, ok := req.MakeResponse(fixedClock{t: time.Unix(1000, 0)})
	require.True(t, ok)
	assert.EqualValues(t, ModeSymmetricPassive, resp.Mode)
	assert.EqualValues(t, 3, resp.Version)
}

func TestPacket_MakeResponse_NonRequest(t *testing.T) {
	req := Packet{
		RemoteAddr: clientAddr(40000),
		Version:    4,
		Mode:       ModeServer,
	}
	_, ok := req.MakeResponse(fixedClock{t: time.Unix(1000, 0)})
	assert.False(t, ok)
}
