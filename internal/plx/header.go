package plx

import (
	"encoding/binary"
	"fmt"
	"io"
)

// readHeaders parses the file header, count arrays, and the per-class
// channel descriptor tables, leaving the reader positioned at the start of
// the data region.
func (pf *PlexFile) readHeaders(r io.ReadSeeker) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to file header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &pf.Header); err != nil {
		return fmt.Errorf("reading file header: %w", err)
	}
	if pf.Header.MagicNumber != MagicNumber {
		return fmt.Errorf("%w: got 0x%08x", ErrBadMagic, pf.Header.MagicNumber)
	}
	if pf.Header.Version > LatestFileVersion {
		return fmt.Errorf("%w: version %d, newest understood is %d",
			ErrUnsupportedVersion, pf.Header.Version, LatestFileVersion)
	}
	if err := binary.Read(r, binary.LittleEndian, &pf.Counts); err != nil {
		return fmt.Errorf("reading count headers: %w", err)
	}

	pf.SpikeChans = make([]ChanHeader, pf.Header.NumDSPChannels)
	for i := range pf.SpikeChans {
		if err := binary.Read(r, binary.LittleEndian, &pf.SpikeChans[i]); err != nil {
			return fmt.Errorf("reading spike channel header %d: %w", i, err)
		}
	}
	pf.EventChans = make([]EventHeader, pf.Header.NumEventChannels)
	for i := range pf.EventChans {
		if err := binary.Read(r, binary.LittleEndian, &pf.EventChans[i]); err != nil {
			return fmt.Errorf("reading event channel header %d: %w", i, err)
		}
	}
	pf.SlowChans = make([]SlowChanHeader, pf.Header.NumSlowChannels)
	for i := range pf.SlowChans {
		if err := binary.Read(r, binary.LittleEndian, &pf.SlowChans[i]); err != nil {
			return fmt.Errorf("reading slow channel header %d: %w", i, err)
		}
	}

	pf.DataOffset = headerSize(&pf.Header)
	pf.indexSlowChannels()
	return nil
}

// headerSize is the byte offset of the first data block.
func headerSize(h *FileHeader) int64 {
	fixed := int64(binary.Size(FileHeader{})) + int64(binary.Size(CountHeaders{}))
	return fixed +
		int64(h.NumDSPChannels)*int64(binary.Size(ChanHeader{})) +
		int64(h.NumEventChannels)*int64(binary.Size(EventHeader{})) +
		int64(h.NumSlowChannels)*int64(binary.Size(SlowChanHeader{}))
}

// indexSlowChannels derives the per-class digitization frequencies and the
// channel-number lookup used by the extraction planner. The class frequency
// is taken from the first enabled channel of the class's bank, falling back
// to the first present channel when the whole bank is disabled.
func (pf *PlexFile) indexSlowChannels() {
	pf.slowByChan = make(map[int16]*SlowChanHeader, len(pf.SlowChans))
	var fallback [4]float64
	for i := range pf.SlowChans {
		ch := &pf.SlowChans[i]
		class, ok := contClassOf(int16(ch.Channel))
		if !ok {
			continue
		}
		pf.slowByChan[int16(ch.Channel)] = ch
		bank := int(class - ChanTypeWideband)
		if fallback[bank] == 0 {
			fallback[bank] = float64(ch.ADFreq)
		}
		if pf.contFreq[bank] == 0 && ch.Enabled != 0 {
			pf.contFreq[bank] = float64(ch.ADFreq)
		}
	}
	for bank := range pf.contFreq {
		if pf.contFreq[bank] == 0 {
			pf.contFreq[bank] = fallback[bank]
		}
	}
}
