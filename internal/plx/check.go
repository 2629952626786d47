package plx

import (
	"fmt"

	"go.uber.org/zap"
)

// FrameGapDiag describes one adjacent frame pair whose timestamp gap does
// not match the duration implied by the first frame's sample count.
type FrameGapDiag struct {
	FrameIndex       int     `json:"frame_index"`
	ObservedGap      float64 `json:"observed_gap"`      // seconds
	ExpectedDuration float64 `json:"expected_duration"` // seconds
	Samples          uint64  `json:"samples"`
}

// CheckFrames walks a class's frame sequence and counts adjacent pairs
// whose timestamp gap disagrees with the duration implied by the frame's
// sample count and the class frequency. Mismatches are data-quality
// diagnostics, not errors; the recording stays fully readable.
//
// The count is -1 for classes without a sampling frequency (spike, event).
//
// The comparison is exact float64 equality, which is deliberately strict:
// it matches the behavior of the original inspection tool, where a frame
// either lands on the predicted tick or is reported. CheckFramesTol relaxes
// the comparison for recordings with accumulated floating-point drift.
//
// CheckFrames panics when adjacent frames share a start timestamp, for
// example when two different-shaped chunks land on the same tick and split
// the frame in place. The checker requires strictly increasing frame
// timestamps within a class and treats an equal pair as a violated
// indexing invariant rather than a reportable gap.
func (pf *PlexFile) CheckFrames(class ChanType) (int, []FrameGapDiag) {
	return pf.checkFrames(class, 0)
}

// CheckFramesTol is CheckFrames with an absolute tolerance, in seconds, on
// the gap comparison. A tolerance of 0 preserves exact-equality semantics.
func (pf *PlexFile) CheckFramesTol(class ChanType, tol float64) (int, []FrameGapDiag) {
	return pf.checkFrames(class, tol)
}

func (pf *PlexFile) checkFrames(class ChanType, tol float64) (int, []FrameGapDiag) {
	freq := pf.Frequency(class)
	if freq <= 0 {
		return -1, nil
	}
	adfreq := pf.MasterFrequency()

	set := &pf.Data[class]
	var diags []FrameGapDiag
	for i := 0; i+1 < set.Len(); i++ {
		frame := set.At(i)
		next := set.At(i + 1)
		gap := (float64(next.TS) - float64(frame.TS)) / adfreq
		if gap <= 0 {
			// Frame order is non-decreasing by construction, but a same-tick
			// split can leave two frames on one timestamp. The checker's math
			// needs strictly increasing starts, so an equal pair is fatal.
			panic(fmt.Sprintf("plx: non-positive frame gap %v at frame %d", gap, i))
		}
		expected := float64(frame.Samples) / freq
		if !gapMatches(gap, expected, tol) {
			pf.log.Debug("invalid frame gap",
				zap.Int("frame", i),
				zap.Float64("ts", float64(frame.TS)/adfreq),
				zap.Float64("next", float64(next.TS)/adfreq),
				zap.Float64("diff", gap),
				zap.Uint64("samples", frame.Samples),
				zap.Float64("expect", expected),
			)
			diags = append(diags, FrameGapDiag{
				FrameIndex:       i,
				ObservedGap:      gap,
				ExpectedDuration: expected,
				Samples:          frame.Samples,
			})
		}
	}
	return len(diags), diags
}

func gapMatches(gap, expected, tol float64) bool {
	if tol <= 0 {
		return gap == expected
	}
	d := gap - expected
	return d >= -tol && d <= tol
}
