package ntpd

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPacket_MarshalLogObject(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	p := Packet{
		Version:  4,
		Mode:     ModeClient,
		Stratum:  8,
		XmitTime: Timestamp(0x0000000180000000),
	}
	logger.Debug("received", zap.Object("packet", p))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries: got=%d want=1", len(entries))
	}
	m := entries[0].ContextMap()
	pkt, ok := m["packet"].(map[string]interface{})
	if !ok {
		t.Fatalf("packet field missing: %v", m)
	}
	if pkt["version"] != uint8(4) {
		t.Fatalf("version: got=%v", pkt["version"])
	}
	if pkt["mode"] != uint8(ModeClient) {
		t.Fatalf("mode: got=%v", pkt["mode"])
	}
	tx, ok := pkt["tx_ts"].(map[string]interface{})
	if !ok {
		t.Fatalf("tx_ts field missing: %v", pkt)
	}
	if tx["seconds"] != uint32(1) || tx["fraction"] != uint32(0x80000000) {
		t.Fatalf("tx_ts halves: got=%v", tx)
	}
}
