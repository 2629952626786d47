package plx

import "testing"

func TestCheckFramesSingleGap(t *testing.T) {
	b := analogBuilder()
	chans := []int16{192}
	// One second of samples, then the next frame starts half a second late:
	// the sample-implied duration is 1.0s but the observed gap is 1.5s.
	b.contChunk(0, chans, [][]int16{ramp(0, 1000)})
	b.contChunk(uint64(1.5*testADFreq), chans, [][]int16{ramp(0, 1000)})
	pf := b.open(t)

	count, diags := pf.CheckFrames(ChanTypeAnalog)
	if count != 1 {
		t.Fatalf("CheckFrames count = %d, want 1", count)
	}
	d := diags[0]
	if d.FrameIndex != 0 {
		t.Errorf("diag frame index = %d, want 0", d.FrameIndex)
	}
	if d.ObservedGap != 1.5 {
		t.Errorf("observed gap = %v, want 1.5", d.ObservedGap)
	}
	if d.ExpectedDuration != 1.0 {
		t.Errorf("expected duration = %v, want 1.0", d.ExpectedDuration)
	}
	if d.Samples != 1000 {
		t.Errorf("diag samples = %d, want 1000", d.Samples)
	}
}

func TestCheckFramesCleanRecording(t *testing.T) {
	b := analogBuilder()
	chans := []int16{192, 193}
	b.contChunk(0, chans, [][]int16{ramp(0, 500), ramp(0, 500)})
	b.contChunk(chunkTicks(500), chans, [][]int16{ramp(0, 500), ramp(0, 500)})
	pf := b.open(t)

	// Contiguous chunks merge into a single frame: nothing to compare.
	count, diags := pf.CheckFrames(ChanTypeAnalog)
	if count != 0 || len(diags) != 0 {
		t.Errorf("CheckFrames = (%d, %v), want (0, none)", count, diags)
	}
}

func TestCheckFramesDiscreteClassesNotApplicable(t *testing.T) {
	b := analogBuilder()
	b.spike(100, 1, 0, ramp(0, 32))
	b.event(200, 258)
	pf := b.open(t)

	for _, class := range []ChanType{ChanTypeSpike, ChanTypeEvent} {
		if count, _ := pf.CheckFrames(class); count != -1 {
			t.Errorf("CheckFrames(%s) = %d, want -1", class, count)
		}
	}
}

func TestCheckFramesTolerance(t *testing.T) {
	b := analogBuilder()
	chans := []int16{192}
	b.contChunk(0, chans, [][]int16{ramp(0, 1000)})
	// Two ticks late: invisible under indexing tolerance is impossible
	// (the chunk starts a new frame), and the exact check flags it.
	b.contChunk(chunkTicks(1000)+2, chans, [][]int16{ramp(0, 1000)})
	pf := b.open(t)

	if count, _ := pf.CheckFrames(ChanTypeAnalog); count != 1 {
		t.Fatalf("exact CheckFrames count = %d, want 1", count)
	}
	// A 1ms tolerance swallows the 50us drift.
	if count, _ := pf.CheckFramesTol(ChanTypeAnalog, 1e-3); count != 0 {
		t.Errorf("tolerant CheckFrames count = %d, want 0", count)
	}
}
