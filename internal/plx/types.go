package plx

// Binary layout of the Plexon .plx recording format. All on-disk structs
// are read with encoding/binary in little-endian order, so field order and
// fixed array sizes here must match the file layout exactly.

const (
	// MagicNumber is the leading format identifier ("PLEX" little-endian).
	MagicNumber uint32 = 0x58454c50

	// LatestFileVersion is the highest format version this reader understands.
	LatestFileVersion int32 = 107
)

// Data block type codes.
const (
	BlockTypeSpike      int16 = 1
	BlockTypeEvent      int16 = 4
	BlockTypeContinuous int16 = 5
)

// ChanType tags one of the six channel classes in a recording.
type ChanType int

const (
	ChanTypeSpike ChanType = iota
	ChanTypeEvent
	ChanTypeWideband
	ChanTypeSpkc
	ChanTypeLfp
	ChanTypeAnalog
	ChanTypeMax
)

var chanTypeNames = [ChanTypeMax]string{
	"spikes",
	"events",
	"wideband",
	"spkc",
	"lfp",
	"analog",
}

func (t ChanType) String() string {
	if t < 0 || t >= ChanTypeMax {
		return "unknown"
	}
	return chanTypeNames[t]
}

// Continuous reports whether the class is sampled at a constant rate.
// Spike and event classes are timestamped at the master frequency only.
func (t ChanType) Continuous() bool {
	return t >= ChanTypeWideband && t <= ChanTypeAnalog
}

// ParseChanType maps a class name as used in URLs and CLI flags.
func ParseChanType(name string) (ChanType, bool) {
	for i, n := range chanTypeNames {
		if n == name {
			return ChanType(i), true
		}
	}
	return 0, false
}

// slowChannelBank is the width of a continuous channel-number bank. Slow
// channels 0-63 are wideband, 64-127 spkc, 128-191 lfp, 192-255 analog.
const slowChannelBank = 64

// contClassOf classifies a continuous data block by its channel number.
func contClassOf(channel int16) (ChanType, bool) {
	bank := int(channel) / slowChannelBank
	if channel < 0 || bank > 3 {
		return 0, false
	}
	return ChanTypeWideband + ChanType(bank), true
}

// FileHeader is the 256-byte fixed header at the start of every .plx file,
// followed on disk by the per-channel count arrays.
type FileHeader struct {
	MagicNumber      uint32
	Version          int32
	Comment          [128]byte
	ADFrequency      int32 // timestamp frequency in hertz
	NumDSPChannels   int32
	NumEventChannels int32
	NumSlowChannels  int32
	NumPointsWave    int32
	NumPointsPreThr  int32

	Year   int32
	Month  int32
	Day    int32
	Hour   int32
	Minute int32
	Second int32

	FastRead      int32
	WaveformFreq  int32   // waveform sampling rate; ADFrequency is timestamp freq
	LastTimestamp float64 // duration of the session in ticks

	Trodalness          byte
	DataTrodalness      byte
	BitsPerSpikeSample  byte
	BitsPerSlowSample   byte
	SpikeMaxMagnitudeMV uint16
	SlowMaxMagnitudeMV  uint16
	SpikePreAmpGain     uint16

	AcquiringSoftware  [18]byte
	ProcessingSoftware [18]byte
	Padding            [10]byte
}

// CommentString is the header comment trimmed at its first NUL.
func (h *FileHeader) CommentString() string {
	return cstring(h.Comment[:])
}

// CountHeaders are the timestamp/waveform/event count arrays that follow
// the fixed header. Channel and unit entries are 1-based; EVCounts doubles
// as the sample counter for continuous channels starting at index 300.
type CountHeaders struct {
	TSCounts [130][5]int32
	WFCounts [130][5]int32
	EVCounts [512]int32
}

// ChanHeader is the 1020-byte descriptor of one DSP (spike) channel.
type ChanHeader struct {
	Name      [32]byte
	SIGName   [32]byte
	Channel   int32 // DSP channel number, 1-based
	WFRate    int32
	SIG       int32
	Ref       int32
	Gain      int32
	Filter    int32
	Threshold int32
	Method    int32
	NUnits    int32
	Template  [5][64]int16
	Fit       [5]int32
	SortWidth int32
	Boxes     [5][2][4]int16
	SortBeg   int32
	Comment   [128]byte
	SrcID     byte
	Reserved  byte
	ChanID    uint16
	Padding   [10]int32
}

// EventHeader is the 296-byte descriptor of one event channel.
type EventHeader struct {
	Name     [32]byte
	Channel  int32 // event number, 1-based
	Comment  [128]byte
	SrcID    byte
	Reserved byte
	ChanID   uint16
	Padding  [32]int32
}

// SlowChanHeader is the 296-byte descriptor of one continuous (A/D) channel.
type SlowChanHeader struct {
	Name         [32]byte
	Channel      int32 // channel number, 0-based
	ADFreq       int32 // digitization frequency
	Gain         int32
	Enabled      int32
	PreAmpGain   int32
	SpikeChannel int32
	Comment      [128]byte
	SrcID        byte
	Reserved     byte
	ChanID       uint16
	Padding      [27]int32
}

// DataBlockHeader is the fixed 16-byte unit decoded from the data region.
// It is followed by NumberOfWaveforms*NumberOfWordsInWaveform int16 samples.
type DataBlockHeader struct {
	Type                      int16
	UpperByteOf5ByteTimestamp uint16
	TimeStamp                 uint32
	Channel                   int16
	Unit                      int16
	NumberOfWaveforms         int16
	NumberOfWordsInWaveform   int16
}

// blockHeaderSize is the on-disk size of DataBlockHeader.
const blockHeaderSize = 16

// TS reconstructs the unsigned 40-bit tick count split across the header's
// upper-byte and lower-32-bit fields.
func (h *DataBlockHeader) TS() uint64 {
	return uint64(h.UpperByteOf5ByteTimestamp)<<32 | uint64(h.TimeStamp)
}

// Samples is the number of int16 payload words following the header.
func (h *DataBlockHeader) Samples() int {
	return int(h.NumberOfWaveforms) * int(h.NumberOfWordsInWaveform)
}

// cstring trims a fixed-size header text field at its first NUL.
func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
