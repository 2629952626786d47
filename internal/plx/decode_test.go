package plx

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func encodeHeader(t *testing.T, h DataBlockHeader) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		t.Fatalf("encoding header: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeBlockHeader(t *testing.T) {
	in := DataBlockHeader{
		Type:                      BlockTypeSpike,
		UpperByteOf5ByteTimestamp: 0x01,
		TimeStamp:                 0xdeadbeef,
		Channel:                   17,
		Unit:                      2,
		NumberOfWaveforms:         1,
		NumberOfWordsInWaveform:   56,
	}
	got, err := decodeBlockHeader(encodeHeader(t, in))
	if err != nil {
		t.Fatalf("decodeBlockHeader returned %v", err)
	}
	if got != in {
		t.Errorf("decoded %+v, want %+v", got, in)
	}
	if want := uint64(0x1deadbeef); got.TS() != want {
		t.Errorf("TS() = %#x, want %#x", got.TS(), want)
	}
	if got.Samples() != 56 {
		t.Errorf("Samples() = %d, want 56", got.Samples())
	}
}

func TestDecodeBlockHeader40BitTimestamp(t *testing.T) {
	in := DataBlockHeader{
		Type:                      BlockTypeContinuous,
		UpperByteOf5ByteTimestamp: 0xff,
		TimeStamp:                 0xffffffff,
	}
	got, err := decodeBlockHeader(encodeHeader(t, in))
	if err != nil {
		t.Fatalf("decodeBlockHeader returned %v", err)
	}
	if want := uint64(1)<<40 - 1; got.TS() != want {
		t.Errorf("TS() = %d, want %d", got.TS(), want)
	}
}

func TestDecodeBlockHeaderRejectsUnknownType(t *testing.T) {
	for _, typ := range []int16{0, 2, 3, 6, 257, -1} {
		in := DataBlockHeader{Type: typ}
		_, err := decodeBlockHeader(encodeHeader(t, in))
		if !errors.Is(err, ErrMalformedRecord) {
			t.Errorf("type %d: got err %v, want ErrMalformedRecord", typ, err)
		}
	}
}

func TestDecodeBlockHeaderShortBuffer(t *testing.T) {
	_, err := decodeBlockHeader(make([]byte, 8))
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("got err %v, want ErrMalformedRecord", err)
	}
}
