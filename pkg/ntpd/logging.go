package ntpd

import (
	"go.uber.org/zap/zapcore"
)

// MarshalLogObject lets debug logging show the two fixed-point halves
// instead of an opaque 64-bit integer.
func (t Timestamp) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint32("seconds", t.Seconds())
	enc.AddUint32("fraction", t.Fraction())
	return nil
}

func (p Packet) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint8("leap", p.Leap)
	enc.AddUint8("version", p.Version)
	enc.AddUint8("mode", p.Mode)
	enc.AddUint8("stratum", p.Stratum)
	enc.AddInt8("poll", p.Poll)
	enc.AddInt8("precision", p.Precision)
	enc.AddUint32("delay", uint32(p.Delay))
	enc.AddUint32("dispersion", uint32(p.Dispersion))
	enc.AddUint32("ref_id", p.RefID)
	if err := enc.AddObject("ref_ts", p.RefTime); err != nil {
		return err
	}
	if err := enc.AddObject("orig_ts", p.OrigTime); err != nil {
		return err
	}
	if err := enc.AddObject("rx_ts", p.RecvTime); err != nil {
		return err
	}
	return enc.AddObject("tx_ts", p.XmitTime)
}
