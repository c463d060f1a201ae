package tftp

import (
	"bytes"
	"testing"
)

func TestEncodeRequest_ExactBytes(t *testing.T) {
	expected := []byte{
		0x00, 0x01, // opcode: RRQ
		'f', 'i', 'l', 'e',
		0x00,
		'o', 'c', 't', 'e', 't',
		0x00,
	}

	got := encodeRequest(OpReadRequest, "file", "octet")
	if !bytes.Equal(got, expected) {
		t.Fatalf("expected % x, got % x", expected, got)
	}
}

func TestRequest_RoundTrip(t *testing.T) {
	pkt := encodeRequest(OpWriteRequest, "capture.pnm", DefaultMode)

	req, err := decodeRequest(pkt)
	if err != nil {
		t.Fatalf("decodeRequest failed: %v", err)
	}
	if req.op != OpWriteRequest {
		t.Errorf("expected opcode %d, got %d", OpWriteRequest, req.op)
	}
	if req.filename != "capture.pnm" {
		t.Errorf("expected filename %q, got %q", "capture.pnm", req.filename)
	}
	if req.mode != DefaultMode {
		t.Errorf("expected mode %q, got %q", DefaultMode, req.mode)
	}
}

func TestDecodeRequest_ModeOptional(t *testing.T) {
	// Filename terminated, no mode at all.
	pkt := []byte{0x00, 0x01, 'a', 0x00}

	req, err := decodeRequest(pkt)
	if err != nil {
		t.Fatalf("decodeRequest failed: %v", err)
	}
	if req.filename != "a" {
		t.Errorf("expected filename %q, got %q", "a", req.filename)
	}
	if req.mode != "" {
		t.Errorf("expected empty mode, got %q", req.mode)
	}
}

func TestDecodeRequest_NoTerminator(t *testing.T) {
	pkt := []byte{0x00, 0x01, 'f', 'i', 'l', 'e'}

	if _, err := decodeRequest(pkt); err == nil {
		t.Fatal("expected error for missing filename terminator, got nil")
	}
}

func TestDecodeRequest_EmptyFilename(t *testing.T) {
	pkt := []byte{0x00, 0x02, 0x00, 'o', 'c', 't', 'e', 't', 0x00}

	if _, err := decodeRequest(pkt); err == nil {
		t.Fatal("expected error for empty filename, got nil")
	}
}

func TestEncodeData_ExactBytes(t *testing.T) {
	expected := []byte{
		0x00, 0x03, // opcode: DATA
		0x01, 0x02, // block: 258
		'h', 'i',
	}

	got := encodeData(258, []byte("hi"))
	if !bytes.Equal(got, expected) {
		t.Fatalf("expected % x, got % x", expected, got)
	}
}

func TestData_RoundTrip(t *testing.T) {
	payload := make([]byte, BlockSize)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	pkt := encodeData(65535, payload)
	if len(pkt) != MaxPacketSize {
		t.Fatalf("full block packet should be %d bytes, got %d", MaxPacketSize, len(pkt))
	}

	dp, err := decodeData(pkt)
	if err != nil {
		t.Fatalf("decodeData failed: %v", err)
	}
	if dp.block != 65535 {
		t.Errorf("expected block 65535, got %d", dp.block)
	}
	if !bytes.Equal(dp.payload, payload) {
		t.Error("payload mismatch")
	}
}

func TestData_EmptyPayload(t *testing.T) {
	// A zero-length block is valid: it terminates a transfer whose size
	// is an exact multiple of the block size.
	pkt := encodeData(9, nil)
	if len(pkt) != 4 {
		t.Fatalf("empty data packet should be 4 bytes, got %d", len(pkt))
	}

	dp, err := decodeData(pkt)
	if err != nil {
		t.Fatalf("decodeData failed: %v", err)
	}
	if dp.block != 9 {
		t.Errorf("expected block 9, got %d", dp.block)
	}
	if len(dp.payload) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(dp.payload))
	}
}

func TestEncodeAck_ExactBytes(t *testing.T) {
	expected := []byte{0x00, 0x04, 0x00, 0x07}

	got := encodeAck(7)
	if !bytes.Equal(got, expected) {
		t.Fatalf("expected % x, got % x", expected, got)
	}
}

func TestAck_RoundTrip(t *testing.T) {
	pkt := encodeAck(513)
	if len(pkt) != 4 {
		t.Fatalf("ack packet should be 4 bytes, got %d", len(pkt))
	}

	ack, err := decodeAck(pkt)
	if err != nil {
		t.Fatalf("decodeAck failed: %v", err)
	}
	if ack.block != 513 {
		t.Errorf("expected block 513, got %d", ack.block)
	}
}

func TestEncodeError_ExactBytes(t *testing.T) {
	expected := []byte{
		0x00, 0x05, // opcode: ERROR
		0x00, 0x01, // code: file not found
		'F', 'i', 'l', 'e', ' ', 'n', 'o', 't', ' ', 'f', 'o', 'u', 'n', 'd',
		0x00,
	}

	got := encodeError(CodeFileNotFound, "File not found")
	if !bytes.Equal(got, expected) {
		t.Fatalf("expected % x, got % x", expected, got)
	}
}

func TestError_RoundTrip(t *testing.T) {
	pkt := encodeError(CodeAccessViolation, "Access violation")

	ep, err := decodeError(pkt)
	if err != nil {
		t.Fatalf("decodeError failed: %v", err)
	}
	if ep.code != CodeAccessViolation {
		t.Errorf("expected code %d, got %d", CodeAccessViolation, ep.code)
	}
	if ep.message != "Access violation" {
		t.Errorf("expected message %q, got %q", "Access violation", ep.message)
	}
}

func TestDecodeError_MissingTerminator(t *testing.T) {
	// Tolerated: the message runs to the end of the datagram.
	pkt := []byte{0x00, 0x05, 0x00, 0x02, 'h', 'i'}

	ep, err := decodeError(pkt)
	if err != nil {
		t.Fatalf("decodeError failed: %v", err)
	}
	if ep.message != "hi" {
		t.Errorf("expected message %q, got %q", "hi", ep.message)
	}
}

func TestDecode_TruncatedInputs(t *testing.T) {
	// Every decoder must reject truncated input with an error rather
	// than index past the buffer.
	truncated := [][]byte{nil, {}, {0x00}, {0x00, 0x03}, {0x00, 0x03, 0x00}}

	for _, in := range truncated {
		if len(in) < 2 {
			if _, err := decodeOpcode(in); err == nil {
				t.Errorf("decodeOpcode(% x): expected error, got nil", in)
			}
			if _, err := decodeRequest(in); err == nil {
				t.Errorf("decodeRequest(% x): expected error, got nil", in)
			}
		}
		if _, err := decodeData(in); err == nil {
			t.Errorf("decodeData(% x): expected error, got nil", in)
		}
		if _, err := decodeAck(in); err == nil {
			t.Errorf("decodeAck(% x): expected error, got nil", in)
		}
		if _, err := decodeError(in); err == nil {
			t.Errorf("decodeError(% x): expected error, got nil", in)
		}
	}
}

func TestOpcode_String(t *testing.T) {
	cases := []struct {
		op   Opcode
		want string
	}{
		{OpReadRequest, "RRQ"},
		{OpWriteRequest, "WRQ"},
		{OpData, "DATA"},
		{OpAck, "ACK"},
		{OpError, "ERROR"},
		{Opcode(42), "UNKNOWN"},
	}
	for _, c := range cases {
		if got := c.op.String(); got != c.want {
			t.Errorf("Opcode(%d).String() = %q, want %q", c.op, got, c.want)
		}
	}
}
