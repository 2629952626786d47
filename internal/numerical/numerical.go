package numerical

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func SuppressNaN(num float64) float64 {
	if math.IsNaN(num) {
		return 0
	}
	return num
}

// Reduce collapses a sample slice to a single value. Unknown reductions
// return 0.
func Reduce(dataIn []float64, reduction string) float64 {
	if len(dataIn) == 0 {
		return 0
	}
	switch reduction {
	case "mean":
		return SuppressNaN(stat.Mean(dataIn, nil))
	case "max":
		return SuppressNaN(floats.Max(dataIn))
	case "min":
		return SuppressNaN(floats.Min(dataIn))
	case "stddev":
		return SuppressNaN(stat.StdDev(dataIn, nil))
	case "first":
		return SuppressNaN(dataIn[0])
	default:
		return 0
	}
}

// ChannelStats summarizes one channel column of an extracted window.
type ChannelStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// WindowStats computes per-channel statistics over a row-major
// sample-by-channel buffer, plus the global min and max across all
// channels.
func WindowStats(data []float64, nchans int) ([]ChannelStats, float64, float64) {
	stats := make([]ChannelStats, nchans)
	zmin := math.Inf(1)
	zmax := math.Inf(-1)
	if nchans == 0 || len(data) == 0 {
		return stats, 0, 0
	}
	nsamples := len(data) / nchans
	col := make([]float64, nsamples)
	for c := 0; c < nchans; c++ {
		for s := 0; s < nsamples; s++ {
			col[s] = data[s*nchans+c]
		}
		stats[c] = ChannelStats{
			Min:    Reduce(col, "min"),
			Max:    Reduce(col, "max"),
			Mean:   Reduce(col, "mean"),
			StdDev: Reduce(col, "stddev"),
		}
		if stats[c].Min < zmin {
			zmin = stats[c].Min
		}
		if stats[c].Max > zmax {
			zmax = stats[c].Max
		}
	}
	return stats, zmin, zmax
}

// DecimateWindow resizes every channel column of a row-major
// sample-by-channel buffer to outSize samples, returning a new row-major
// buffer of outSize*nchans values.
func DecimateWindow(data []float64, nchans, outSize int, reduction string) []float64 {
	if nchans <= 0 {
		return nil
	}
	nsamples := len(data) / nchans
	out := make([]float64, outSize*nchans)
	col := make([]float64, nsamples)
	for c := 0; c < nchans; c++ {
		for s := 0; s < nsamples; s++ {
			col[s] = data[s*nchans+c]
		}
		red := Decimate(col, outSize, reduction)
		for s := 0; s < outSize; s++ {
			out[s*nchans+c] = red[s]
		}
	}
	return out
}

// Decimate thins a single-channel sample slice down to outSize values,
// reducing each bin with the given reduction. Inputs shorter than
// outSize are repeated rather than interpolated.
func Decimate(dataIn []float64, outSize int, reduction string) []float64 {
	out := make([]float64, outSize)
	if len(dataIn) == 0 || outSize == 0 {
		return out
	}
	perBin := float64(len(dataIn)) / float64(outSize)
	if perBin > 1 {
		binCeil := int(math.Ceil(perBin))
		for x := 0; x < outSize; x++ {
			var start, end int
			if x != outSize-1 {
				start = int(math.Round(float64(x) * perBin))
				end = start + binCeil
				if end > len(dataIn) {
					end = len(dataIn)
				}
			} else {
				end = len(dataIn)
				start = end - binCeil
			}
			out[x] = Reduce(dataIn[start:end], reduction)
		}
	} else {
		for x := 0; x < outSize; x++ {
			out[x] = dataIn[int(math.Floor(float64(x)*perBin))]
		}
	}
	return out
}
