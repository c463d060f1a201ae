package pnm

import (
	"encoding/json"
	"testing"
)

func TestMerFromByte(t *testing.T) {
	cases := []struct {
		in            byte
		db            float64
		isMeasurement bool
		isMax         bool
	}{
		{0x00, 0.0, true, false},
		{0x02, 0.5, true, false},
		{0x80, 32.0, true, false},
		{0xFE, 63.5, true, true},
		{0xFF, 255.0, false, false},
	}

	for _, c := range cases {
		v := MerFromByte(c.in)
		if v.DB() != c.db {
			t.Errorf("MerFromByte(%#x).DB() = %v, want %v", c.in, v.DB(), c.db)
		}
		if v.IsMeasurement() != c.isMeasurement {
			t.Errorf("MerFromByte(%#x).IsMeasurement() = %v, want %v", c.in, v.IsMeasurement(), c.isMeasurement)
		}
		if v.IsMax() != c.isMax {
			t.Errorf("MerFromByte(%#x).IsMax() = %v, want %v", c.in, v.IsMax(), c.isMax)
		}
	}
}

func TestMerFromFloat_Clamps(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-1.0, 0.0},
		{0.0, 0.0},
		{31.25, 31.25},
		{63.5, 63.5},
		{100.0, 63.5},
	}
	for _, c := range cases {
		if got := MerFromFloat(c.in).DB(); got != c.want {
			t.Errorf("MerFromFloat(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestMerValue_ByteRoundTrip(t *testing.T) {
	for b := 0; b < 256; b++ {
		if got := MerFromByte(byte(b)).Byte(); got != byte(b) {
			t.Fatalf("byte %#x does not round-trip: got %#x", b, got)
		}
	}
}

func TestMerValue_JSON(t *testing.T) {
	doc, err := json.Marshal(MerFromByte(0xFE))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got struct {
		Value         float64 `json:"value"`
		IsMaxValue    bool    `json:"isMaxValue"`
		IsMeasurement bool    `json:"isMeasurement"`
	}
	if err := json.Unmarshal(doc, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Value != 63.5 || !got.IsMaxValue || !got.IsMeasurement {
		t.Errorf("unexpected JSON form: %s", doc)
	}
}

func TestDecodeRxMER(t *testing.T) {
	data := append(sampleHeaderBytes(), 0x80, 0xFF, 0xFE)

	d, err := DecodeRxMER(data)
	if err != nil {
		t.Fatalf("DecodeRxMER failed: %v", err)
	}
	if d.Header.DSChannelID != 33 {
		t.Errorf("expected channel 33, got %d", d.Header.DSChannelID)
	}
	if len(d.Values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(d.Values))
	}
	if d.Values[0].DB() != 32.0 {
		t.Errorf("expected 32.0 dB, got %v", d.Values[0].DB())
	}
	if d.Values[1].IsMeasurement() {
		t.Error("expected value 1 to be unmeasured")
	}
	if !d.Values[2].IsMax() {
		t.Error("expected value 2 to be saturated")
	}
}

func TestDecodeRxMER_TooShort(t *testing.T) {
	if _, err := DecodeRxMER([]byte{0x01, 0x02}); err == nil {
		t.Fatal("expected error for short capture, got nil")
	}
}

func TestMerData_MeasuredAndMean(t *testing.T) {
	data := append(sampleHeaderBytes(), 0x04, 0x08, 0xFF)
	d, err := DecodeRxMER(data)
	if err != nil {
		t.Fatalf("DecodeRxMER failed: %v", err)
	}

	measured := d.Measured()
	if len(measured) != 2 {
		t.Fatalf("expected 2 measured values, got %d", len(measured))
	}

	mean, ok := d.Mean()
	if !ok {
		t.Fatal("expected a mean over measured values")
	}
	if mean != 1.5 {
		t.Errorf("expected mean 1.5, got %v", mean)
	}
}

func TestMerData_MeanNoMeasurements(t *testing.T) {
	data := append(sampleHeaderBytes(), 0xFF, 0xFF)
	d, err := DecodeRxMER(data)
	if err != nil {
		t.Fatalf("DecodeRxMER failed: %v", err)
	}
	if _, ok := d.Mean(); ok {
		t.Fatal("expected no mean for an all-unmeasured capture")
	}
}
