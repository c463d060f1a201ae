// Package pnm decodes DOCSIS Proactive Network Maintenance capture files
// produced by cable modems.
//
// Every capture starts with a fixed 17-byte header identifying the capture
// type, format version, capture time, downstream channel, and the modem's
// MAC address. The measurement payload follows the header; its layout
// depends on the capture type. Decoders are provided for downstream RxMER
// captures (one quarter-dB value per OFDM subcarrier) and spectrum bin
// amplitude captures. Multi-byte integers are big-endian throughout.
package pnm

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"strings"

	"github.com/pkg/errors"
)

// Header field lengths in bytes.
const (
	fileTypeLen    = 4
	majorLen       = 1
	minorLen       = 1
	captureTimeLen = 4
	dsChannelLen   = 1
	macLen         = 6

	// HeaderSize is the fixed length of a capture file header.
	HeaderSize = fileTypeLen + majorLen + minorLen + captureTimeLen + dsChannelLen + macLen
)

// Header is the fixed leading block of every capture file. The JSON field
// names match the document layout produced by the capture tooling.
type Header struct {
	// FileType is the 4-byte capture type tag, kept verbatim.
	FileType string `json:"File Type"`

	// Major and Minor identify the capture format version.
	Major uint8 `json:"Major Version"`
	Minor uint8 `json:"Minor Version"`

	// CaptureTime is the device timestamp of the capture, seconds since
	// the Unix epoch.
	CaptureTime uint32 `json:"Capture Time"`

	// DSChannelID is the downstream channel the capture was taken on.
	DSChannelID uint8 `json:"DS Channel Id"`

	// CMMAC is the modem MAC address, formatted AA:BB:CC:DD:EE:FF.
	CMMAC string `json:"CM MAC Address"`
}

// ReadHeader reads one capture header from r. It returns io.EOF when r is
// already exhausted, so callers can iterate concatenated captures; a header
// cut off partway is an error.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			return Header{}, io.EOF
		}
		return Header{}, errors.Wrap(err, "reading capture header")
	}
	return parseHeader(buf), nil
}

// ReadHeaders reads consecutive capture headers from r until it is
// exhausted. Payload length depends on the capture type and cannot be
// skipped at this layer, so this suits streams of headers back to back.
func ReadHeaders(r io.Reader) ([]Header, error) {
	var headers []Header
	for {
		h, err := ReadHeader(r)
		if err == io.EOF {
			return headers, nil
		}
		if err != nil {
			return headers, err
		}
		headers = append(headers, h)
	}
}

// DecodeFile splits a complete capture file into its header and the
// measurement payload that follows it.
func DecodeFile(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, errors.Errorf("capture file too short: %d bytes, header needs %d", len(data), HeaderSize)
	}
	return parseHeader(data[:HeaderSize]), data[HeaderSize:], nil
}

// parseHeader decodes exactly HeaderSize bytes.
func parseHeader(buf []byte) Header {
	return Header{
		FileType:    string(buf[0:4]),
		Major:       buf[4],
		Minor:       buf[5],
		CaptureTime: binary.BigEndian.Uint32(buf[6:10]),
		DSChannelID: buf[10],
		CMMAC:       formatMAC(buf[11:17]),
	}
}

// Encode produces the wire form of the header. The inverse of ReadHeader;
// useful for synthesizing capture files.
func (h Header) Encode() ([]byte, error) {
	if len(h.FileType) != fileTypeLen {
		return nil, errors.Errorf("file type must be %d bytes, got %d", fileTypeLen, len(h.FileType))
	}
	mac, err := net.ParseMAC(h.CMMAC)
	if err != nil {
		return nil, errors.Wrap(err, "parsing CM MAC address")
	}
	if len(mac) != macLen {
		return nil, errors.Errorf("CM MAC address must be %d bytes, got %d", macLen, len(mac))
	}

	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	buf.WriteString(h.FileType)
	buf.WriteByte(h.Major)
	buf.WriteByte(h.Minor)
	var ts [4]byte
	binary.BigEndian.PutUint32(ts[:], h.CaptureTime)
	buf.Write(ts[:])
	buf.WriteByte(h.DSChannelID)
	buf.Write(mac)
	return buf.Bytes(), nil
}

// formatMAC renders a hardware address the way the capture tooling does,
// uppercase hex with colons.
func formatMAC(mac []byte) string {
	return strings.ToUpper(net.HardwareAddr(mac).String())
}
