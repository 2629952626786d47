package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/plxtools/plx-data-service/internal/plx"
)

// PlxHeaderShortenedFields carries the fields of a recording header that
// clients actually use, with fixed byte arrays flattened to strings.
type PlxHeaderShortenedFields struct {
	Version          int32   `json:"version"`
	Comment          string  `json:"comment"`
	ADFrequency      int32   `json:"ad_frequency"`
	WaveformFreq     int32   `json:"waveform_freq"`
	NumDSPChannels   int32   `json:"num_dsp_channels"`
	NumEventChannels int32   `json:"num_event_channels"`
	NumSlowChannels  int32   `json:"num_slow_channels"`
	NumPointsWave    int32   `json:"num_points_wave"`
	NumPointsPreThr  int32   `json:"num_points_pre_thr"`
	Date             string  `json:"date"`
	DurationSeconds  float64 `json:"duration_seconds"`

	WidebandFreq float64 `json:"wideband_freq"`
	SpkcFreq     float64 `json:"spkc_freq"`
	LfpFreq      float64 `json:"lfp_freq"`
	AnalogFreq   float64 `json:"analog_freq"`

	DataOffset     int64 `json:"data_offset"`
	SkippedRecords int   `json:"skipped_records"`
}

func (a *API) GetPlxHeader(c echo.Context) error {
	locationName := c.Param("location")
	filePath := c.Param("*")

	pf, err := a.recording(locationName, filePath)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusBadRequest, err.Error())
	}

	h := &pf.Header
	short := PlxHeaderShortenedFields{
		Version:          h.Version,
		Comment:          h.CommentString(),
		ADFrequency:      h.ADFrequency,
		WaveformFreq:     h.WaveformFreq,
		NumDSPChannels:   h.NumDSPChannels,
		NumEventChannels: h.NumEventChannels,
		NumSlowChannels:  h.NumSlowChannels,
		NumPointsWave:    h.NumPointsWave,
		NumPointsPreThr:  h.NumPointsPreThr,
		Date: fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
			h.Year, h.Month, h.Day, h.Hour, h.Minute, h.Second),
		WidebandFreq:   pf.Frequency(plx.ChanTypeWideband),
		SpkcFreq:       pf.Frequency(plx.ChanTypeSpkc),
		LfpFreq:        pf.Frequency(plx.ChanTypeLfp),
		AnalogFreq:     pf.Frequency(plx.ChanTypeAnalog),
		DataOffset:     pf.DataOffset,
		SkippedRecords: pf.SkippedRecords(),
	}
	if h.ADFrequency > 0 {
		short.DurationSeconds = h.LastTimestamp / float64(h.ADFrequency)
	}

	return c.JSON(http.StatusOK, short)
}

// GetSummary reports per-class frame counts, mirroring what plxinspect
// prints.
func (a *API) GetSummary(c echo.Context) error {
	pf, err := a.recording(c.Param("location"), c.Param("*"))
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pf.Summary())
}
