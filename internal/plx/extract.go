package plx

import (
	"fmt"
	"math"
)

// ContInfo is the computed plan for one continuous extraction: the result
// shape, the snapped window start, and the frames the window intersects.
// It is consumed immediately by ReadContinuous and not retained.
type ContInfo struct {
	Class    ChanType
	TStart   float64 // window start snapped to the class sample grid, seconds
	Len      int     // samples per channel
	NChans   int
	Channels []int16
	Frames   []*DataFrame

	pf          *PlexFile
	freq        float64
	startSample int64 // first output sample index on the class grid
}

// Plan validates an extraction request and computes which frames intersect
// the window [tstart, tend) and the shape of the result.
func (pf *PlexFile) Plan(class ChanType, tstart, tend float64, channels []int16) (*ContInfo, error) {
	if !class.Continuous() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidChanType, class)
	}
	if tend <= tstart {
		return nil, fmt.Errorf("%w: [%v, %v)", ErrInvalidTimeRange, tstart, tend)
	}
	freq := pf.Frequency(class)
	if freq <= 0 {
		return nil, fmt.Errorf("%w: %s has no digitization frequency", ErrInvalidChanType, class)
	}
	for _, ch := range channels {
		hdr, ok := pf.slowByChan[ch]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, ch)
		}
		if got, _ := contClassOf(int16(hdr.Channel)); got != class {
			return nil, fmt.Errorf("%w: %d belongs to %s, not %s", ErrUnknownChannel, ch, got, class)
		}
		// Disabled channels stay valid: they simply have no recorded data
		// and read back as a zero column.
	}

	adfreq := pf.MasterFrequency()
	startSample := int64(math.Round(tstart * freq))
	info := &ContInfo{
		Class:       class,
		TStart:      float64(startSample) / freq,
		Len:         int(math.Round((tend - tstart) * freq)),
		NChans:      len(channels),
		Channels:    append([]int16(nil), channels...),
		pf:          pf,
		freq:        freq,
		startSample: startSample,
	}

	// Frames are ordered by timestamp; one linear scan collects the
	// intersecting run so the reader never re-scans.
	winEnd := startSample + int64(info.Len)
	set := &pf.Data[class]
	for i := 0; i < set.Len(); i++ {
		frame := set.At(i)
		fs := frameStartSample(frame, freq, adfreq)
		fe := fs + int64(frame.Samples)
		if fe <= startSample {
			continue
		}
		if fs >= winEnd {
			break
		}
		info.Frames = append(info.Frames, frame)
	}
	return info, nil
}

// frameStartSample places a frame's start tick on the class sample grid.
func frameStartSample(f *DataFrame, freq, adfreq float64) int64 {
	return int64(math.Round(float64(f.TS) * freq / adfreq))
}

// ReadContinuous executes a plan into a caller-supplied buffer of at least
// Len*NChans float64s, row-major by sample then channel. The reader never
// allocates the result; cells with no recorded data (gaps between frames,
// disabled or unrecorded channels) are zero-filled. Frames and chunks are
// walked with a monotone cursor, one pass over the output.
func (pf *PlexFile) ReadContinuous(info *ContInfo, out []float64) error {
	need := info.Len * info.NChans
	if len(out) < need {
		return fmt.Errorf("%w: need %d values, have %d", ErrBufferTooSmall, need, len(out))
	}
	out = out[:need]
	for i := range out {
		out[i] = 0
	}
	if info.NChans == 0 || info.Len == 0 {
		return nil
	}

	adfreq := pf.MasterFrequency()
	winLo := info.startSample
	winHi := info.startSample + int64(info.Len)

	for _, frame := range info.Frames {
		if err := pf.readFrameWindow(info, frame, adfreq, winLo, winHi, out); err != nil {
			return err
		}
	}
	return nil
}

// readFrameWindow copies the overlap of one frame with the output window.
func (pf *PlexFile) readFrameWindow(info *ContInfo, frame *DataFrame, adfreq float64, winLo, winHi int64, out []float64) error {
	fs := frameStartSample(frame, info.freq, adfreq)
	lo := maxI64(winLo, fs)
	hi := minI64(winHi, fs+int64(frame.Samples))
	if lo >= hi {
		return nil
	}

	// Positions of the requested channels inside the frame's record layout;
	// -1 marks channels absent from this frame.
	pos := make([]int, info.NChans)
	for j, ch := range info.Channels {
		pos[j] = -1
		for p, fc := range frame.Channels {
			if fc == ch {
				pos[j] = p
				break
			}
		}
	}

	nchans := len(frame.Channels)
	chunks := frame.numChunks()
	cs := frame.ChunkSamples
	if nchans == 0 || chunks == 0 || cs <= 0 {
		return nil
	}
	fullStride := int64(nchans) * int64(blockHeaderSize+2*cs)
	lastSamples := int(frame.Samples) - (chunks-1)*cs
	scratch := make([]float64, cs)

	firstChunk := int((lo - fs)) / cs
	if firstChunk > chunks-1 {
		firstChunk = chunks - 1
	}
	for ci := firstChunk; ci < chunks; ci++ {
		c0 := fs + int64(ci)*int64(cs) // first sample index of this chunk
		n := cs
		if ci == chunks-1 {
			n = lastSamples
		}
		s0 := maxI64(lo, c0)
		s1 := minI64(hi, c0+int64(n))
		if s0 >= s1 {
			if c0 >= hi {
				break
			}
			continue
		}

		chunkOff := frame.FPos[0] + int64(ci)*fullStride
		recLen := int64(blockHeaderSize + 2*n)
		for j, p := range pos {
			if p < 0 {
				continue
			}
			payload := chunkOff + int64(p)*recLen + blockHeaderSize
			raw, err := pf.readBytes(payload+2*(s0-c0), int(2*(s1-s0)))
			if err != nil {
				return fmt.Errorf("reading %s frame payload: %w", frame.Type, err)
			}
			decodeSamples(raw, scratch)
			for s := s0; s < s1; s++ {
				out[int(s-info.startSample)*info.NChans+j] = scratch[s-s0]
			}
		}
	}
	return nil
}

// ExtractContinuous combines Plan and ReadContinuous for callers that do
// not manage their own buffers.
func (pf *PlexFile) ExtractContinuous(class ChanType, tstart, tend float64, channels []int16) (*ContInfo, []float64, error) {
	info, err := pf.Plan(class, tstart, tend, channels)
	if err != nil {
		return nil, nil, err
	}
	out := make([]float64, info.Len*info.NChans)
	if err := pf.ReadContinuous(info, out); err != nil {
		return nil, nil, err
	}
	return info, out, nil
}

// SpikeEvent is one discrete row extracted from a spike or event class.
type SpikeEvent struct {
	TS   float64 `json:"ts"` // seconds
	Chan int16   `json:"chan"`
	Unit int16   `json:"unit"`
}

// ExtractDiscrete returns the spike or event rows with timestamps inside
// [tstart, tend), in time order.
func (pf *PlexFile) ExtractDiscrete(class ChanType, tstart, tend float64) ([]SpikeEvent, error) {
	if class.Continuous() {
		return nil, fmt.Errorf("%w: %s is not a discrete class", ErrInvalidChanType, class)
	}
	if tend <= tstart {
		return nil, fmt.Errorf("%w: [%v, %v)", ErrInvalidTimeRange, tstart, tend)
	}

	adfreq := pf.MasterFrequency()
	loTick := uint64(math.Max(0, math.Round(tstart*adfreq)))
	hiTick := uint64(math.Max(0, math.Round(tend*adfreq)))

	var rows []SpikeEvent
	set := &pf.Data[class]
	for i := 0; i < set.Len(); i++ {
		frame := set.At(i)
		if frame.TS >= hiTick {
			break
		}
		if frame.TS < loTick {
			continue
		}
		raw, err := pf.readBytes(frame.FPos[0], int(frame.FPos[1]-frame.FPos[0]))
		if err != nil {
			return nil, fmt.Errorf("reading %s frame: %w", class, err)
		}
		off := 0
		for b := uint64(0); b < frame.NBlocks; b++ {
			h, err := decodeBlockHeader(raw[off:])
			if err != nil {
				return nil, err
			}
			rows = append(rows, SpikeEvent{
				TS:   float64(h.TS()) / adfreq,
				Chan: h.Channel,
				Unit: h.Unit,
			})
			off += blockHeaderSize + 2*h.Samples()
		}
	}
	return rows, nil
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
