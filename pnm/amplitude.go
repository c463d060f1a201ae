package pnm

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// binAmplitudeFixedLen is the fixed portion of a spectrum capture payload:
// five big-endian 32-bit fields ahead of the amplitude array.
const binAmplitudeFixedLen = 20

// BinAmplitudeData is a decoded spectrum bin amplitude capture payload.
// Frequencies are in Hz, amplitudes in hundredths of a dBmV.
type BinAmplitudeData struct {
	ChCenterFreq uint32  `json:"ChCenterFreq"`
	FreqSpan     uint32  `json:"FreqSpan"`
	NumberOfBins uint32  `json:"NumberOfBins"`
	BinSpacing   uint32  `json:"BinSpacing"`
	ResolutionBW uint32  `json:"ResolutionBW"`
	Amplitude    []int16 `json:"Amplitude"`
}

// DecodeBinAmplitude decodes a spectrum capture payload: the fixed fields
// followed by one signed 16-bit amplitude per bin.
func DecodeBinAmplitude(data []byte) (*BinAmplitudeData, error) {
	if len(data) < binAmplitudeFixedLen {
		return nil, errors.Errorf("bin amplitude payload too short: %d bytes, fixed fields need %d", len(data), binAmplitudeFixedLen)
	}
	rest := data[binAmplitudeFixedLen:]
	if len(rest)%2 != 0 {
		return nil, errors.Errorf("bin amplitude payload has a trailing odd byte: %d amplitude bytes", len(rest))
	}

	b := &BinAmplitudeData{
		ChCenterFreq: binary.BigEndian.Uint32(data[0:4]),
		FreqSpan:     binary.BigEndian.Uint32(data[4:8]),
		NumberOfBins: binary.BigEndian.Uint32(data[8:12]),
		BinSpacing:   binary.BigEndian.Uint32(data[12:16]),
		ResolutionBW: binary.BigEndian.Uint32(data[16:20]),
		Amplitude:    make([]int16, len(rest)/2),
	}
	for i := range b.Amplitude {
		b.Amplitude[i] = int16(binary.BigEndian.Uint16(rest[i*2:]))
	}
	return b, nil
}

// Encode produces the wire form of the payload, the inverse of
// DecodeBinAmplitude.
func (b *BinAmplitudeData) Encode() []byte {
	out := make([]byte, binAmplitudeFixedLen+2*len(b.Amplitude))
	binary.BigEndian.PutUint32(out[0:4], b.ChCenterFreq)
	binary.BigEndian.PutUint32(out[4:8], b.FreqSpan)
	binary.BigEndian.PutUint32(out[8:12], b.NumberOfBins)
	binary.BigEndian.PutUint32(out[12:16], b.BinSpacing)
	binary.BigEndian.PutUint32(out[16:20], b.ResolutionBW)
	for i, amp := range b.Amplitude {
		binary.BigEndian.PutUint16(out[binAmplitudeFixedLen+i*2:], uint16(amp))
	}
	return out
}

func (b *BinAmplitudeData) String() string {
	return fmt.Sprintf("BinAmplitudeData: ChCenterFreq=%d, FreqSpan=%d, NumberOfBins=%d, BinSpacing=%d, ResolutionBW=%d",
		b.ChCenterFreq, b.FreqSpan, b.NumberOfBins, b.BinSpacing, b.ResolutionBW)
}
