package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/plxtools/plx-data-service/internal/plx"
)

// FrameInfo is the JSON projection of one indexed frame.
type FrameInfo struct {
	Type         string  `json:"type"`
	TS           uint64  `json:"ts"`
	FposStart    int64   `json:"fpos_start"`
	FposEnd      int64   `json:"fpos_end"`
	Samples      uint64  `json:"samples"`
	NBlocks      uint64  `json:"nblocks"`
	Channels     []int16 `json:"channels,omitempty"`
	ChunkSamples int     `json:"chunk_samples,omitempty"`
}

const defaultFrameCount = 100

// GetFrames returns up to count=N frames of one class, from the start of
// the recording.
func (a *API) GetFrames(c echo.Context) error {
	class, ok := plx.ParseChanType(c.Param("type"))
	if !ok {
		return c.String(http.StatusBadRequest, fmt.Sprintf("unknown channel type %q", c.Param("type")))
	}
	count := defaultFrameCount
	if q := c.QueryParam("count"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			return c.String(http.StatusBadRequest, fmt.Sprintf("bad count %q", q))
		}
		count = n
	}

	pf, err := a.recording(c.Param("location"), c.Param("*"))
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusBadRequest, err.Error())
	}

	set := &pf.Data[class]
	if count > set.Len() {
		count = set.Len()
	}
	frames := make([]FrameInfo, count)
	for i := 0; i < count; i++ {
		f := set.At(i)
		frames[i] = FrameInfo{
			Type:         f.Type.String(),
			TS:           f.TS,
			FposStart:    f.FPos[0],
			FposEnd:      f.FPos[1],
			Samples:      f.Samples,
			NBlocks:      f.NBlocks,
			Channels:     f.Channels,
			ChunkSamples: f.ChunkSamples,
		}
	}
	return c.JSON(http.StatusOK, frames)
}

// CheckResult reports frame-gap validation for one class.
type CheckResult struct {
	Type        string             `json:"type"`
	InvalidGaps int                `json:"invalid_gaps"`
	Frames      int                `json:"frames"`
	Diags       []plx.FrameGapDiag `json:"diags,omitempty"`
}

const maxCheckDiags = 50

// GetCheckFrames validates inter-frame timing for one class, or for all
// classes when the type parameter is "all". Continuous classes use the
// expected sample-period gap; spike and event classes have no expected
// gap and report -1.
func (a *API) GetCheckFrames(c echo.Context) error {
	typeName := c.Param("type")

	pf, err := a.recording(c.Param("location"), c.Param("*"))
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusBadRequest, err.Error())
	}

	var tol float64
	if q := c.QueryParam("tol"); q != "" {
		tol, err = strconv.ParseFloat(q, 64)
		if err != nil || tol < 0 {
			return c.String(http.StatusBadRequest, fmt.Sprintf("bad tol %q", q))
		}
	}

	if typeName == "all" {
		results := make([]CheckResult, 0, int(plx.ChanTypeMax))
		for class := plx.ChanType(0); class < plx.ChanTypeMax; class++ {
			results = append(results, a.checkOne(pf, class, tol))
		}
		return c.JSON(http.StatusOK, results)
	}

	class, ok := plx.ParseChanType(typeName)
	if !ok {
		return c.String(http.StatusBadRequest, fmt.Sprintf("unknown channel type %q", typeName))
	}
	return c.JSON(http.StatusOK, a.checkOne(pf, class, tol))
}

func (a *API) checkOne(pf *plx.PlexFile, class plx.ChanType, tol float64) CheckResult {
	count, diags := pf.CheckFramesTol(class, tol)
	if len(diags) > maxCheckDiags {
		diags = diags[:maxCheckDiags]
	}
	return CheckResult{
		Type:        class.String(),
		InvalidGaps: count,
		Frames:      pf.Data[class].Len(),
		Diags:       diags,
	}
}
