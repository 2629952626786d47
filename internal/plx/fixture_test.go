package plx

import (
	"bytes"
	"encoding/binary"
	"testing"
)

const (
	testADFreq   = 40000
	testSlowFreq = 1000
)

// plxBuilder assembles a synthetic recording in memory: file header, slow
// channel descriptors, and a hand-placed data region.
type plxBuilder struct {
	version int32
	magic   uint32
	slow    []SlowChanHeader
	data    bytes.Buffer
}

func newBuilder() *plxBuilder {
	return &plxBuilder{version: 106, magic: MagicNumber}
}

func (b *plxBuilder) addSlowChan(channel, freq, enabled int32) {
	b.slow = append(b.slow, SlowChanHeader{
		Channel: channel,
		ADFreq:  freq,
		Gain:    1,
		Enabled: enabled,
	})
}

func (b *plxBuilder) block(typ int16, ts uint64, channel, unit int16, samples []int16) {
	hdr := DataBlockHeader{
		Type:                      typ,
		UpperByteOf5ByteTimestamp: uint16(ts >> 32),
		TimeStamp:                 uint32(ts),
		Channel:                   channel,
		Unit:                      unit,
	}
	if len(samples) > 0 {
		hdr.NumberOfWaveforms = 1
		hdr.NumberOfWordsInWaveform = int16(len(samples))
	}
	if err := binary.Write(&b.data, binary.LittleEndian, &hdr); err != nil {
		panic(err)
	}
	if err := binary.Write(&b.data, binary.LittleEndian, samples); err != nil {
		panic(err)
	}
}

// contChunk writes one block per channel, all at ts.
func (b *plxBuilder) contChunk(ts uint64, channels []int16, samples [][]int16) {
	for i, ch := range channels {
		b.block(BlockTypeContinuous, ts, ch, 0, samples[i])
	}
}

func (b *plxBuilder) spike(ts uint64, channel, unit int16, wf []int16) {
	b.block(BlockTypeSpike, ts, channel, unit, wf)
}

func (b *plxBuilder) event(ts uint64, channel int16) {
	b.block(BlockTypeEvent, ts, channel, 0, nil)
}

// raw injects arbitrary bytes into the data region.
func (b *plxBuilder) raw(p []byte) {
	b.data.Write(p)
}

func (b *plxBuilder) bytes() []byte {
	hdr := FileHeader{
		MagicNumber:     b.magic,
		Version:         b.version,
		ADFrequency:     testADFreq,
		NumSlowChannels: int32(len(b.slow)),
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		panic(err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, &CountHeaders{}); err != nil {
		panic(err)
	}
	for i := range b.slow {
		if err := binary.Write(&buf, binary.LittleEndian, &b.slow[i]); err != nil {
			panic(err)
		}
	}
	buf.Write(b.data.Bytes())
	return buf.Bytes()
}

func (b *plxBuilder) open(t *testing.T) *PlexFile {
	t.Helper()
	pf, err := Open(bytes.NewReader(b.bytes()), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return pf
}

// ramp builds n int16 samples starting at base.
func ramp(base, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(base + i)
	}
	return out
}
