package pnm

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"
)

func sampleHeaderBytes() []byte {
	return []byte{
		'P', 'N', 'N', 0x04, // file type
		0x01,                   // major version
		0x00,                   // minor version
		0x65, 0x12, 0x34, 0x56, // capture time
		0x21,                               // downstream channel 33
		0xAA, 0xBB, 0xCC, 0x00, 0x11, 0x22, // CM MAC
	}
}

func TestReadHeader_Fields(t *testing.T) {
	h, err := ReadHeader(bytes.NewReader(sampleHeaderBytes()))
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}

	if h.FileType != "PNN\x04" {
		t.Errorf("expected file type %q, got %q", "PNN\x04", h.FileType)
	}
	if h.Major != 1 || h.Minor != 0 {
		t.Errorf("expected version 1.0, got %d.%d", h.Major, h.Minor)
	}
	if h.CaptureTime != 0x65123456 {
		t.Errorf("expected capture time %#x, got %#x", uint32(0x65123456), h.CaptureTime)
	}
	if h.DSChannelID != 33 {
		t.Errorf("expected channel 33, got %d", h.DSChannelID)
	}
	if h.CMMAC != "AA:BB:CC:00:11:22" {
		t.Errorf("expected MAC %q, got %q", "AA:BB:CC:00:11:22", h.CMMAC)
	}
}

func TestReadHeader_EOFAtBoundary(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader(nil))
	if err != io.EOF {
		t.Fatalf("expected io.EOF on an exhausted reader, got %v", err)
	}
}

func TestReadHeader_Truncated(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader(sampleHeaderBytes()[:10]))
	if err == nil {
		t.Fatal("expected error for truncated header, got nil")
	}
	if err == io.EOF {
		t.Fatal("truncated header must not read as a clean EOF")
	}
}

func TestReadHeaders_Multiple(t *testing.T) {
	first := sampleHeaderBytes()
	second := sampleHeaderBytes()
	second[10] = 0x07 // different channel

	headers, err := ReadHeaders(bytes.NewReader(append(append([]byte{}, first...), second...)))
	if err != nil {
		t.Fatalf("ReadHeaders failed: %v", err)
	}
	if len(headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(headers))
	}
	if headers[0].DSChannelID != 33 || headers[1].DSChannelID != 7 {
		t.Errorf("headers decoded out of order: %d, %d", headers[0].DSChannelID, headers[1].DSChannelID)
	}
}

func TestReadHeaders_Empty(t *testing.T) {
	headers, err := ReadHeaders(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("ReadHeaders failed: %v", err)
	}
	if len(headers) != 0 {
		t.Fatalf("expected no headers, got %d", len(headers))
	}
}

func TestHeader_EncodeRoundTrip(t *testing.T) {
	raw := sampleHeaderBytes()
	h, err := ReadHeader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}

	enc, err := h.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(enc, raw) {
		t.Fatalf("expected % x, got % x", raw, enc)
	}
}

func TestHeader_EncodeValidation(t *testing.T) {
	h := Header{FileType: "PNN", CMMAC: "AA:BB:CC:00:11:22"}
	if _, err := h.Encode(); err == nil {
		t.Error("expected error for a 3-byte file type")
	}

	h = Header{FileType: "PNN\x04", CMMAC: "not-a-mac"}
	if _, err := h.Encode(); err == nil {
		t.Error("expected error for an unparseable MAC")
	}
}

func TestHeader_JSONFieldNames(t *testing.T) {
	h, err := ReadHeader(bytes.NewReader(sampleHeaderBytes()))
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}

	doc, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(doc, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{
		"File Type", "Major Version", "Minor Version",
		"Capture Time", "DS Channel Id", "CM MAC Address",
	} {
		if _, ok := fields[key]; !ok {
			t.Errorf("expected JSON field %q, got keys %v", key, fields)
		}
	}
}

func TestDecodeFile_SplitsPayload(t *testing.T) {
	payload := []byte{0x10, 0x20, 0x30}
	data := append(sampleHeaderBytes(), payload...)

	h, rest, err := DecodeFile(data)
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}
	if h.DSChannelID != 33 {
		t.Errorf("expected channel 33, got %d", h.DSChannelID)
	}
	if !bytes.Equal(rest, payload) {
		t.Errorf("expected payload % x, got % x", payload, rest)
	}
}

func TestDecodeFile_TooShort(t *testing.T) {
	if _, _, err := DecodeFile(sampleHeaderBytes()[:HeaderSize-1]); err == nil {
		t.Fatal("expected error for short capture file, got nil")
	}
}
