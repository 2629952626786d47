package plx

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

// analogChans is the standard three-channel analog bank used by the tests:
// two enabled channels and one disabled.
func analogBuilder() *plxBuilder {
	b := newBuilder()
	b.addSlowChan(192, testSlowFreq, 1)
	b.addSlowChan(193, testSlowFreq, 1)
	b.addSlowChan(195, testSlowFreq, 0)
	return b
}

// chunkTicks is the master-tick duration of n samples at the slow rate.
func chunkTicks(n int) uint64 {
	return uint64(n) * testADFreq / testSlowFreq
}

func TestBuildIndexMergesContiguousChunks(t *testing.T) {
	b := analogBuilder()
	chans := []int16{192, 193}
	b.contChunk(0, chans, [][]int16{ramp(0, 500), ramp(1000, 500)})
	b.contChunk(chunkTicks(500), chans, [][]int16{ramp(500, 500), ramp(1500, 500)})
	pf := b.open(t)

	set := &pf.Data[ChanTypeAnalog]
	if set.Len() != 1 {
		t.Fatalf("got %d frames, want 1 merged frame", set.Len())
	}
	frame := set.At(0)
	if frame.Samples != 1000 {
		t.Errorf("frame.Samples = %d, want 1000", frame.Samples)
	}
	if frame.NBlocks != 4 {
		t.Errorf("frame.NBlocks = %d, want 4", frame.NBlocks)
	}
	if !reflect.DeepEqual(frame.Channels, chans) {
		t.Errorf("frame.Channels = %v, want %v", frame.Channels, chans)
	}
	if frame.ChunkSamples != 500 {
		t.Errorf("frame.ChunkSamples = %d, want 500", frame.ChunkSamples)
	}
	if frame.TS != 0 {
		t.Errorf("frame.TS = %d, want 0", frame.TS)
	}
}

func TestBuildIndexSplitsOnGap(t *testing.T) {
	b := analogBuilder()
	chans := []int16{192, 193}
	b.contChunk(0, chans, [][]int16{ramp(0, 500), ramp(0, 500)})
	// Half a second late: a genuine recording gap.
	gapTS := chunkTicks(500) + testADFreq/2
	b.contChunk(gapTS, chans, [][]int16{ramp(0, 500), ramp(0, 500)})
	pf := b.open(t)

	set := &pf.Data[ChanTypeAnalog]
	if set.Len() != 2 {
		t.Fatalf("got %d frames, want 2", set.Len())
	}
	if set.At(1).TS != gapTS {
		t.Errorf("second frame TS = %d, want %d", set.At(1).TS, gapTS)
	}
}

func TestBuildIndexSplitsOnInterleavedClass(t *testing.T) {
	b := analogBuilder()
	chans := []int16{192, 193}
	b.contChunk(0, chans, [][]int16{ramp(0, 500), ramp(0, 500)})
	// A spike record between two otherwise-continuous chunks breaks the
	// run, even though the next chunk lands on the predicted tick.
	b.spike(chunkTicks(500), 1, 1, ramp(0, 32))
	b.contChunk(chunkTicks(500), chans, [][]int16{ramp(0, 500), ramp(0, 500)})
	pf := b.open(t)

	set := &pf.Data[ChanTypeAnalog]
	if set.Len() != 2 {
		t.Fatalf("got %d analog frames, want 2", set.Len())
	}
	if pf.Data[ChanTypeSpike].Len() != 1 {
		t.Fatalf("got %d spike frames, want 1", pf.Data[ChanTypeSpike].Len())
	}
	// The spike bytes must not fall inside either analog frame's range.
	spikeFrame := pf.Data[ChanTypeSpike].At(0)
	if set.At(0).FPos[1] != spikeFrame.FPos[0] {
		t.Errorf("first analog frame ends at %d, spike starts at %d",
			set.At(0).FPos[1], spikeFrame.FPos[0])
	}
	if set.At(1).FPos[0] != spikeFrame.FPos[1] {
		t.Errorf("second analog frame starts at %d, spike ends at %d",
			set.At(1).FPos[0], spikeFrame.FPos[1])
	}
}

func TestBuildIndexSplitsOnChunkSizeChange(t *testing.T) {
	b := analogBuilder()
	chans := []int16{192}
	b.contChunk(0, chans, [][]int16{ramp(0, 500)})
	// Lands on the predicted tick but carries a larger chunk. Merging it
	// would break the constant-stride layout the window reader assumes.
	b.contChunk(chunkTicks(500), chans, [][]int16{ramp(500, 600)})
	pf := b.open(t)

	set := &pf.Data[ChanTypeAnalog]
	if set.Len() != 2 {
		t.Fatalf("got %d frames, want 2", set.Len())
	}
	if set.At(0).Samples != 500 || set.At(0).ChunkSamples != 500 {
		t.Errorf("first frame = %+v, want 500 samples in 500-sample chunks", set.At(0))
	}
	if set.At(1).Samples != 600 || set.At(1).ChunkSamples != 600 {
		t.Errorf("second frame = %+v, want 600 samples in 600-sample chunks", set.At(1))
	}
}

func TestBuildIndexSplitsOnMembershipChange(t *testing.T) {
	b := analogBuilder()
	b.contChunk(0, []int16{192, 193}, [][]int16{ramp(0, 500), ramp(0, 500)})
	// Continues on the predicted tick but with a different channel group.
	b.contChunk(chunkTicks(500), []int16{192}, [][]int16{ramp(0, 500)})
	pf := b.open(t)

	set := &pf.Data[ChanTypeAnalog]
	if set.Len() != 2 {
		t.Fatalf("got %d frames, want 2", set.Len())
	}
	if got := set.At(1).Channels; len(got) != 1 || got[0] != 192 {
		t.Errorf("second frame channels = %v, want [192]", got)
	}
}

func TestBuildIndexFrameOrderNonDecreasing(t *testing.T) {
	b := analogBuilder()
	chans := []int16{192}
	for i := 0; i < 5; i++ {
		// Every other chunk leaves a gap so each becomes its own frame.
		ts := uint64(i) * 2 * chunkTicks(100)
		b.contChunk(ts, chans, [][]int16{ramp(0, 100)})
	}
	pf := b.open(t)

	set := &pf.Data[ChanTypeAnalog]
	if set.Len() != 5 {
		t.Fatalf("got %d frames, want 5", set.Len())
	}
	for i := 0; i+1 < set.Len(); i++ {
		if set.At(i).TS > set.At(i+1).TS {
			t.Fatalf("frames out of order at %d: %d > %d", i, set.At(i).TS, set.At(i+1).TS)
		}
	}
}

func TestBuildIndexDiscreteFrames(t *testing.T) {
	b := analogBuilder()
	b.spike(100, 1, 0, ramp(0, 32))
	b.spike(100, 2, 1, ramp(0, 32))
	b.spike(900, 1, 0, ramp(0, 32))
	b.event(400, 258)
	pf := b.open(t)

	spikes := &pf.Data[ChanTypeSpike]
	if spikes.Len() != 2 {
		t.Fatalf("got %d spike frames, want 2", spikes.Len())
	}
	if spikes.At(0).NBlocks != 2 || spikes.At(0).Samples != 64 {
		t.Errorf("first spike frame = %+v, want 2 blocks / 64 samples", spikes.At(0))
	}
	if pf.Data[ChanTypeEvent].Len() != 1 {
		t.Errorf("got %d event frames, want 1", pf.Data[ChanTypeEvent].Len())
	}
}

func TestBuildIndexSkipsMalformedRecords(t *testing.T) {
	b := analogBuilder()
	b.contChunk(0, []int16{192}, [][]int16{ramp(0, 500)})
	// A header-sized slot with a bogus type code.
	junk := make([]byte, blockHeaderSize)
	junk[0] = 9
	b.raw(junk)
	b.contChunk(chunkTicks(500), []int16{192}, [][]int16{ramp(500, 500)})
	pf := b.open(t)

	if pf.SkippedRecords() != 1 {
		t.Errorf("SkippedRecords = %d, want 1", pf.SkippedRecords())
	}
	// The junk slot breaks byte contiguity, so the two chunks cannot share
	// a frame even though their timestamps line up.
	if got := pf.Data[ChanTypeAnalog].Len(); got != 2 {
		t.Errorf("got %d analog frames, want 2", got)
	}
}

func TestBuildIndexDeterministic(t *testing.T) {
	b := analogBuilder()
	chans := []int16{192, 193}
	b.contChunk(0, chans, [][]int16{ramp(0, 500), ramp(0, 500)})
	b.contChunk(chunkTicks(500), chans, [][]int16{ramp(0, 500), ramp(0, 500)})
	b.spike(100, 1, 0, ramp(0, 32))
	raw := b.bytes()

	first, err := Open(bytes.NewReader(raw), nil)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	second, err := Open(bytes.NewReader(raw), nil)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	for class := ChanType(0); class < ChanTypeMax; class++ {
		if !reflect.DeepEqual(first.Data[class].frames, second.Data[class].frames) {
			t.Errorf("%s framesets differ between identical indexing runs", class)
		}
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	b := analogBuilder()
	b.magic = 0x12345678
	_, err := Open(bytes.NewReader(b.bytes()), nil)
	if !errors.Is(err, ErrBadMagic) {
		t.Errorf("got err %v, want ErrBadMagic", err)
	}
}

func TestOpenRejectsUnsupportedVersion(t *testing.T) {
	b := analogBuilder()
	b.version = LatestFileVersion + 1
	_, err := Open(bytes.NewReader(b.bytes()), nil)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("got err %v, want ErrUnsupportedVersion", err)
	}
}

func TestSummaryShape(t *testing.T) {
	b := analogBuilder()
	b.contChunk(0, []int16{192}, [][]int16{ramp(0, 100)})
	pf := b.open(t)

	sum := pf.Summary()
	if len(sum) != int(ChanTypeMax) {
		t.Fatalf("got %d summary rows, want %d", len(sum), ChanTypeMax)
	}
	if sum[ChanTypeAnalog].Name != "analog" || sum[ChanTypeAnalog].Frames != 1 {
		t.Errorf("analog summary = %+v, want one frame", sum[ChanTypeAnalog])
	}
	if sum[ChanTypeAnalog].Capacity < sum[ChanTypeAnalog].Frames {
		t.Errorf("capacity %d below frame count %d", sum[ChanTypeAnalog].Capacity, sum[ChanTypeAnalog].Frames)
	}
}
