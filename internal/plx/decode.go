package plx

import (
	"encoding/binary"
	"fmt"
)

// decodeBlockHeader interprets one fixed-size data block header. Pure
// function of its input bytes; fails with ErrMalformedRecord when the type
// code is not one of the known block types.
func decodeBlockHeader(b []byte) (DataBlockHeader, error) {
	var h DataBlockHeader
	if len(b) < blockHeaderSize {
		return h, fmt.Errorf("%w: short header (%d bytes)", ErrMalformedRecord, len(b))
	}
	h.Type = int16(binary.LittleEndian.Uint16(b[0:2]))
	h.UpperByteOf5ByteTimestamp = binary.LittleEndian.Uint16(b[2:4])
	h.TimeStamp = binary.LittleEndian.Uint32(b[4:8])
	h.Channel = int16(binary.LittleEndian.Uint16(b[8:10]))
	h.Unit = int16(binary.LittleEndian.Uint16(b[10:12]))
	h.NumberOfWaveforms = int16(binary.LittleEndian.Uint16(b[12:14]))
	h.NumberOfWordsInWaveform = int16(binary.LittleEndian.Uint16(b[14:16]))

	switch h.Type {
	case BlockTypeSpike, BlockTypeEvent, BlockTypeContinuous:
	default:
		return h, fmt.Errorf("%w: unknown block type %d", ErrMalformedRecord, h.Type)
	}
	if h.NumberOfWaveforms < 0 || h.NumberOfWordsInWaveform < 0 {
		return h, fmt.Errorf("%w: negative waveform counts (%d, %d)",
			ErrMalformedRecord, h.NumberOfWaveforms, h.NumberOfWordsInWaveform)
	}
	return h, nil
}

// decodeSamples widens a little-endian int16 payload into out. out must be
// at least len(b)/2 long.
func decodeSamples(b []byte, out []float64) {
	n := len(b) / 2
	for i := 0; i < n; i++ {
		out[i] = float64(int16(binary.LittleEndian.Uint16(b[2*i : 2*i+2])))
	}
}
