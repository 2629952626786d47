package plx

import "errors"

// Error kinds surfaced by the package. Callers match with errors.Is; the
// returned errors wrap these sentinels with position/context detail.
var (
	// ErrBadMagic means the leading format identifier was not "PLEX".
	ErrBadMagic = errors.New("plx: bad magic number")

	// ErrUnsupportedVersion means the file version exceeds LatestFileVersion.
	ErrUnsupportedVersion = errors.New("plx: unsupported file version")

	// ErrMalformedRecord means a data block header carried an unknown type
	// code. Indexing skips and logs these; it is fatal only when the stream
	// stops being parseable at all.
	ErrMalformedRecord = errors.New("plx: malformed record")

	// ErrIndexInvariant means a non-monotonic frame timestamp was detected
	// while indexing. Every downstream component assumes ordered frames, so
	// this aborts the index build.
	ErrIndexInvariant = errors.New("plx: frame index invariant violated")

	// ErrInvalidChanType means the channel class cannot serve the requested
	// operation (e.g. continuous extraction from a spike class).
	ErrInvalidChanType = errors.New("plx: invalid channel class")

	// ErrInvalidTimeRange means t_end <= t_start.
	ErrInvalidTimeRange = errors.New("plx: invalid time range")

	// ErrUnknownChannel means a requested channel id has no header in the class.
	ErrUnknownChannel = errors.New("plx: unknown channel")

	// ErrBufferTooSmall means the caller-supplied output buffer cannot hold
	// the plan's computed shape.
	ErrBufferTooSmall = errors.New("plx: output buffer too small")
)
