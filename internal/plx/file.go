package plx

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
)

// PlexFile is the aggregate root for one open recording: the parsed file
// header, the per-class channel descriptor tables, and one FrameSet per
// channel class. Construction subsumes open + header parse + index build;
// Close releases the underlying handle.
//
// Once construction returns, all contained state is read-only, so
// concurrent extraction and consistency-check calls need no locking.
type PlexFile struct {
	Header     FileHeader
	Counts     CountHeaders
	SpikeChans []ChanHeader
	EventChans []EventHeader
	SlowChans  []SlowChanHeader
	Data       [ChanTypeMax]FrameSet
	DataOffset int64

	r      io.ReadSeeker
	closer io.Closer
	ioMu   sync.Mutex // serializes seek+read pairs across goroutines

	contFreq   [4]float64
	slowByChan map[int16]*SlowChanHeader
	skipped    int
	log        *zap.Logger
}

// Open parses the headers from r and builds the full frame index. The
// reader stays owned by the caller; use OpenFile to have the PlexFile own
// the handle.
func Open(r io.ReadSeeker, logger *zap.Logger) (*PlexFile, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pf := &PlexFile{r: r, log: logger}
	if err := pf.readHeaders(r); err != nil {
		return nil, err
	}
	if err := pf.buildIndex(); err != nil {
		return nil, err
	}
	return pf, nil
}

// OpenFile opens path and builds the index. The returned PlexFile owns the
// file handle.
func OpenFile(path string, logger *zap.Logger) (*PlexFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	pf, err := Open(f, logger)
	if err != nil {
		f.Close()
		return nil, err
	}
	pf.closer = f
	return pf, nil
}

// buildIndex rebuilds every FrameSet with a single pass over the data
// region. Not safe to call concurrently with readers of the FrameSets.
func (pf *PlexFile) buildIndex() error {
	for class := range pf.Data {
		pf.Data[class] = FrameSet{}
	}
	ix := &indexer{pf: pf, log: pf.log}
	if err := ix.run(pf.r, pf.DataOffset); err != nil {
		return err
	}
	pf.skipped = ix.skipped
	pf.log.Info("frame index built",
		zap.Int("spike_frames", pf.Data[ChanTypeSpike].Len()),
		zap.Int("event_frames", pf.Data[ChanTypeEvent].Len()),
		zap.Int("wideband_frames", pf.Data[ChanTypeWideband].Len()),
		zap.Int("spkc_frames", pf.Data[ChanTypeSpkc].Len()),
		zap.Int("lfp_frames", pf.Data[ChanTypeLfp].Len()),
		zap.Int("analog_frames", pf.Data[ChanTypeAnalog].Len()),
		zap.Int("skipped_records", pf.skipped),
	)
	return nil
}

// Frequency is the nominal digitization frequency of a continuous class,
// or 0 for spike/event classes, which have no sampling frequency of their own.
func (pf *PlexFile) Frequency(class ChanType) float64 {
	if !class.Continuous() {
		return 0
	}
	return pf.contFreq[class-ChanTypeWideband]
}

// MasterFrequency is the timestamp tick rate in hertz.
func (pf *PlexFile) MasterFrequency() float64 {
	return float64(pf.Header.ADFrequency)
}

// SkippedRecords is how many malformed records indexing stepped over.
func (pf *PlexFile) SkippedRecords() int { return pf.skipped }

// readBytes fetches one byte range from the source. Seek and read are done
// under a lock so concurrent extractions can share the reader.
func (pf *PlexFile) readBytes(off int64, n int) ([]byte, error) {
	out := make([]byte, n)
	pf.ioMu.Lock()
	defer pf.ioMu.Unlock()
	if _, err := pf.r.Seek(off, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to %d: %w", off, err)
	}
	if _, err := io.ReadFull(pf.r, out); err != nil {
		return nil, fmt.Errorf("reading %d bytes at %d: %w", n, off, err)
	}
	return out, nil
}

// Close releases the underlying handle when this PlexFile owns one. Safe to
// call more than once.
func (pf *PlexFile) Close() error {
	if pf.closer == nil {
		return nil
	}
	c := pf.closer
	pf.closer = nil
	return c.Close()
}

// FrameSetSummary is the read-only projection of one class's index used by
// the report layer.
type FrameSetSummary struct {
	Name     string `json:"name"`
	Frames   int    `json:"frames"`
	Capacity int    `json:"capacity"`
}

// Summary reports frame count and capacity per channel class.
func (pf *PlexFile) Summary() []FrameSetSummary {
	out := make([]FrameSetSummary, 0, int(ChanTypeMax))
	for class := ChanType(0); class < ChanTypeMax; class++ {
		out = append(out, FrameSetSummary{
			Name:     class.String(),
			Frames:   pf.Data[class].Len(),
			Capacity: pf.Data[class].Cap(),
		})
	}
	return out
}
