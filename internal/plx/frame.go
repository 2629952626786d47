package plx

import (
	"bufio"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// DataFrame is one maximal contiguous run of same-class, same-channel-group
// data blocks: an uninterrupted acquisition segment. Frames are synthesized
// by the index build; they are never stored in the file itself.
//
// For continuous classes the frame's blocks are laid out in chunks, one
// block per member channel at a shared timestamp, chunk after chunk.
// Samples counts per-channel samples; NBlocks counts raw blocks.
type DataFrame struct {
	Type         ChanType
	TS           uint64   // 40-bit start tick at the master frequency
	FPos         [2]int64 // [start, end) byte range in the source file
	Samples      uint64
	NBlocks      uint64
	Channels     []int16 // ordered channel membership (continuous classes)
	ChunkSamples int     // per-block sample count of a full chunk
}

func (f *DataFrame) String() string {
	return fmt.Sprintf("%s at ts=%d, fpos=[%d, %d], samples=%d, len=%d",
		f.Type, f.TS, f.FPos[0], f.FPos[1], f.Samples, f.NBlocks)
}

// numChunks is NBlocks divided over the channel membership.
func (f *DataFrame) numChunks() int {
	if len(f.Channels) == 0 {
		return 0
	}
	return int(f.NBlocks) / len(f.Channels)
}

// FrameSet is the ordered frame sequence for one channel class. It is
// append-only during an index build and read-only afterwards.
type FrameSet struct {
	frames []DataFrame
}

func (s *FrameSet) Len() int            { return len(s.frames) }
func (s *FrameSet) Cap() int            { return cap(s.frames) }
func (s *FrameSet) At(i int) *DataFrame { return &s.frames[i] }

// append enforces the non-decreasing timestamp invariant that every
// downstream consumer relies on.
func (s *FrameSet) append(f DataFrame) error {
	if n := len(s.frames); n > 0 && f.TS < s.frames[n-1].TS {
		return fmt.Errorf("%w: frame ts %d after %d", ErrIndexInvariant, f.TS, s.frames[n-1].TS)
	}
	s.frames = append(s.frames, f)
	return nil
}

// tsTolerance is the slack, in master-frequency ticks, allowed between a
// chunk timestamp and the position predicted from the previous chunk's
// sample count.
const tsTolerance = 1.0

// frameAccum is the open frame being grown for one channel class during
// the indexing pass.
type frameAccum struct {
	open  bool
	frame DataFrame

	chunkTS       uint64
	chunkPos      int   // blocks seen in the current chunk
	chunkSamples  int   // per-block samples of the current chunk
	chunkStartOff int64 // byte offset where the current chunk began
	firstChunk    bool
}

// indexer drives the single left-to-right pass over the data region.
type indexer struct {
	pf      *PlexFile
	log     *zap.Logger
	accums  [ChanTypeMax]frameAccum
	skipped int
}

// maxConsecutiveBad is how many unparseable block headers in a row the
// indexer tolerates before declaring the stream unparseable.
const maxConsecutiveBad = 512

func (ix *indexer) run(r io.ReadSeeker, start int64) error {
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to data region: %w", err)
	}
	br := bufio.NewReaderSize(r, 1<<20)

	var hdr [blockHeaderSize]byte
	off := start
	bad := 0
	for {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				ix.log.Warn("truncated block header at end of file", zap.Int64("offset", off))
				break
			}
			return fmt.Errorf("reading block header at %d: %w", off, err)
		}

		h, err := decodeBlockHeader(hdr[:])
		if err != nil {
			// Local recovery: skip this header-sized slot and resync. The
			// junk breaks byte contiguity, so open frames must close here.
			if ferr := ix.flush(); ferr != nil {
				return ferr
			}
			ix.skipped++
			bad++
			if bad >= maxConsecutiveBad {
				return fmt.Errorf("stream unparseable at offset %d: %w", off, err)
			}
			if bad <= 8 {
				ix.log.Warn("skipping malformed record", zap.Int64("offset", off), zap.Error(err))
			}
			off += blockHeaderSize
			continue
		}
		bad = 0

		payload := int64(h.Samples()) * 2
		if err := ix.consume(&h, off, off+blockHeaderSize+payload); err != nil {
			return err
		}
		if _, err := br.Discard(int(payload)); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				ix.log.Warn("truncated block payload at end of file", zap.Int64("offset", off))
				break
			}
			return fmt.Errorf("skipping payload at %d: %w", off, err)
		}
		off += blockHeaderSize + payload
	}

	return ix.flush()
}

// consume routes one decoded block to its class accumulator.
func (ix *indexer) consume(h *DataBlockHeader, start, end int64) error {
	var class ChanType
	switch h.Type {
	case BlockTypeSpike:
		class = ChanTypeSpike
	case BlockTypeEvent:
		class = ChanTypeEvent
	case BlockTypeContinuous:
		c, ok := contClassOf(h.Channel)
		if !ok {
			// The skipped bytes still break contiguity for every open frame.
			ix.skipped++
			ix.log.Warn("continuous block outside channel banks",
				zap.Int16("channel", h.Channel), zap.Int64("offset", start))
			return ix.flush()
		}
		class = c
	}

	// A frame is a run of consecutive records, so a block of any other
	// class ends every other open frame. This also keeps a frame's byte
	// range free of foreign blocks, which the window reader relies on.
	for other := ChanType(0); other < ChanTypeMax; other++ {
		if other == class {
			continue
		}
		if err := ix.close(other); err != nil {
			return err
		}
	}

	if class.Continuous() {
		return ix.consumeContinuous(class, h, start, end)
	}
	return ix.consumeDiscrete(class, h, start, end)
}

// consumeDiscrete groups spike/event blocks into frames of equal timestamp.
// These classes carry no sampling frequency, so equal-timestamp runs are the
// only continuity there is.
func (ix *indexer) consumeDiscrete(class ChanType, h *DataBlockHeader, start, end int64) error {
	a := &ix.accums[class]
	ts := h.TS()
	if a.open && ts == a.frame.TS {
		a.frame.Samples += uint64(h.Samples())
		a.frame.NBlocks++
		a.frame.FPos[1] = end
		return nil
	}
	if err := ix.close(class); err != nil {
		return err
	}
	a.open = true
	a.frame = DataFrame{
		Type:    class,
		TS:      ts,
		FPos:    [2]int64{start, end},
		Samples: uint64(h.Samples()),
		NBlocks: 1,
	}
	return nil
}

// consumeContinuous applies the continuity rule: a block extends the open
// frame when it lands on the current chunk's timestamp in channel order, or
// starts the next chunk exactly where the previous chunk's sample count
// predicts it.
func (ix *indexer) consumeContinuous(class ChanType, h *DataBlockHeader, start, end int64) error {
	a := &ix.accums[class]
	ts := h.TS()
	ns := h.Samples()

	if a.open {
		switch {
		case ts == a.chunkTS && a.firstChunk:
			// Still discovering the channel membership of the first chunk.
			if ns == a.chunkSamples && !containsChannel(a.frame.Channels, h.Channel) {
				a.frame.Channels = append(a.frame.Channels, h.Channel)
				a.frame.NBlocks++
				a.frame.FPos[1] = end
				a.chunkPos++
				return nil
			}
		case ts == a.chunkTS:
			// Later chunk: block must follow the established membership.
			if a.chunkPos < len(a.frame.Channels) &&
				h.Channel == a.frame.Channels[a.chunkPos] &&
				ns == a.chunkSamples {
				a.frame.NBlocks++
				a.frame.FPos[1] = end
				a.chunkPos++
				return nil
			}
		case ts > a.chunkTS:
			// A new chunk continues the frame only when the previous chunk
			// was complete, full-sized, and this one starts on the predicted
			// tick for the frame's head channel.
			if ix.chunkContinues(a, class, ts, h.Channel, ns) {
				a.frame.Samples += uint64(ns)
				a.frame.NBlocks++
				a.frame.FPos[1] = end
				a.chunkTS = ts
				a.chunkPos = 1
				a.chunkSamples = ns
				a.chunkStartOff = start
				a.firstChunk = false
				return nil
			}
		}
		if err := ix.close(class); err != nil {
			return err
		}
	}

	a.open = true
	a.frame = DataFrame{
		Type:         class,
		TS:           ts,
		FPos:         [2]int64{start, end},
		Samples:      uint64(ns),
		NBlocks:      1,
		Channels:     []int16{h.Channel},
		ChunkSamples: ns,
	}
	a.chunkTS = ts
	a.chunkPos = 1
	a.chunkSamples = ns
	a.chunkStartOff = start
	a.firstChunk = true
	return nil
}

func (ix *indexer) chunkContinues(a *frameAccum, class ChanType, ts uint64, channel int16, ns int) bool {
	if a.chunkPos != len(a.frame.Channels) || channel != a.frame.Channels[0] {
		return false
	}
	// Constant chunk size is what lets the reader compute block offsets
	// directly, so a chunk of any other size starts its own frame.
	if a.chunkSamples != a.frame.ChunkSamples || ns != a.frame.ChunkSamples {
		return false
	}
	freq := ix.pf.Frequency(class)
	if freq <= 0 {
		return false
	}
	predicted := float64(a.chunkTS) +
		float64(a.chunkSamples)*float64(ix.pf.Header.ADFrequency)/freq
	diff := float64(ts) - predicted
	return diff >= -tsTolerance && diff <= tsTolerance
}

// close finishes the open accumulator for class, if any, and appends it to
// the class's FrameSet in timestamp order. A continuous frame whose final
// chunk stopped short of the full channel membership is split: the partial
// chunk becomes its own frame, keeping block offsets computable from
// (Channels, ChunkSamples) alone.
func (ix *indexer) close(class ChanType) error {
	a := &ix.accums[class]
	if !a.open {
		return nil
	}
	a.open = false

	if class.Continuous() && !a.firstChunk && a.chunkPos != len(a.frame.Channels) {
		partial := DataFrame{
			Type:         class,
			TS:           a.chunkTS,
			FPos:         [2]int64{a.chunkStartOff, a.frame.FPos[1]},
			Samples:      uint64(a.chunkSamples),
			NBlocks:      uint64(a.chunkPos),
			Channels:     append([]int16(nil), a.frame.Channels[:a.chunkPos]...),
			ChunkSamples: a.chunkSamples,
		}
		a.frame.Samples -= uint64(a.chunkSamples)
		a.frame.NBlocks -= uint64(a.chunkPos)
		a.frame.FPos[1] = a.chunkStartOff
		if err := ix.pf.Data[class].append(a.frame); err != nil {
			return err
		}
		return ix.pf.Data[class].append(partial)
	}
	return ix.pf.Data[class].append(a.frame)
}

// flush closes every accumulator at end of input.
func (ix *indexer) flush() error {
	for class := ChanType(0); class < ChanTypeMax; class++ {
		if err := ix.close(class); err != nil {
			return err
		}
	}
	return nil
}

func containsChannel(chans []int16, c int16) bool {
	for _, x := range chans {
		if x == c {
			return true
		}
	}
	return false
}
