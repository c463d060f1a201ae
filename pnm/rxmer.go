package pnm

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// RxMER wire encoding constants.
const (
	// NoMeasurement is the byte a modem reports for a subcarrier it could
	// not measure (an excluded or unused subcarrier).
	NoMeasurement byte = 0xFF

	// MaxReported is the largest representable RxMER value in dB. The
	// modem saturates at this value; a subcarrier at MaxReported may in
	// fact be better.
	MaxReported float64 = 63.5
)

// MerValue is the received modulation error ratio of one OFDM subcarrier
// in dB. The wire form is a single byte in quarter-dB steps, with 0xFF
// reserved for "no measurement"; that sentinel is preserved as the raw
// value 255 so it stays distinguishable from the saturated maximum.
type MerValue float64

// MerFromByte converts a wire byte to a MerValue.
func MerFromByte(b byte) MerValue {
	if b == NoMeasurement {
		return MerValue(float64(b))
	}
	return MerValue(float64(b) / 4.0)
}

// MerFromFloat builds a MerValue from a dB figure, clamped to the
// representable range.
func MerFromFloat(db float64) MerValue {
	if db < 0 {
		db = 0
	}
	if db > MaxReported {
		db = MaxReported
	}
	return MerValue(db)
}

// IsMeasurement reports whether the subcarrier was actually measured.
func (v MerValue) IsMeasurement() bool {
	return float64(v) != float64(NoMeasurement)
}

// IsMax reports whether the value sits at the saturation ceiling.
func (v MerValue) IsMax() bool {
	return float64(v) == MaxReported
}

// DB returns the value in dB. For an unmeasured subcarrier this is the
// raw sentinel, not a real measurement; check IsMeasurement first.
func (v MerValue) DB() float64 {
	return float64(v)
}

// Byte returns the wire form of the value.
func (v MerValue) Byte() byte {
	if !v.IsMeasurement() {
		return NoMeasurement
	}
	return byte(float64(v) * 4.0)
}

// MarshalJSON renders the value with its derived flags.
func (v MerValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value         float64 `json:"value"`
		IsMaxValue    bool    `json:"isMaxValue"`
		IsMeasurement bool    `json:"isMeasurement"`
	}{
		Value:         float64(v),
		IsMaxValue:    v.IsMax(),
		IsMeasurement: v.IsMeasurement(),
	})
}

// MerData is a decoded downstream RxMER capture: the capture header and
// one value per OFDM subcarrier, in subcarrier order.
type MerData struct {
	Header Header     `json:"header"`
	Values []MerValue `json:"values"`
}

// DecodeRxMER decodes a complete RxMER capture file: the 17-byte header
// followed by one byte per subcarrier.
func DecodeRxMER(data []byte) (*MerData, error) {
	header, payload, err := DecodeFile(data)
	if err != nil {
		return nil, errors.Wrap(err, "decoding RxMER capture")
	}

	values := make([]MerValue, len(payload))
	for i, b := range payload {
		values[i] = MerFromByte(b)
	}
	return &MerData{Header: header, Values: values}, nil
}

// Measured returns only the values carrying a real measurement.
func (d *MerData) Measured() []MerValue {
	out := make([]MerValue, 0, len(d.Values))
	for _, v := range d.Values {
		if v.IsMeasurement() {
			out = append(out, v)
		}
	}
	return out
}

// Mean returns the mean of the measured values in dB, and false when the
// capture holds no measurements at all.
func (d *MerData) Mean() (float64, bool) {
	var sum float64
	var n int
	for _, v := range d.Values {
		if v.IsMeasurement() {
			sum += v.DB()
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
