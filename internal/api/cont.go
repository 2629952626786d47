package api

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/plxtools/plx-data-service/internal/cache"
	"github.com/plxtools/plx-data-service/internal/numerical"
	"github.com/plxtools/plx-data-service/internal/plx"
)

// windowMetaData is cached alongside an extracted window so repeat
// requests can rebuild the response headers without re-reading the
// recording.
type windowMetaData struct {
	TStart  float64 `json:"t_start"`
	Len     int     `json:"len"`
	NChans  int     `json:"nchans"`
	Freq    float64 `json:"freq"`
	Zmin    float64 `json:"zmin"`
	Zmax    float64 `json:"zmax"`
	Class   string  `json:"class"`
	StatsOn bool    `json:"stats_on"`

	Stats []numerical.ChannelStats `json:"stats,omitempty"`
}

func parseChanList(s string) ([]int16, error) {
	if s == "" {
		return nil, fmt.Errorf("chans query parameter is required")
	}
	parts := strings.Split(s, ",")
	chans := make([]int16, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("bad channel %q", p)
		}
		chans = append(chans, int16(n))
	}
	return chans, nil
}

// parseDecimation reads the optional outsize and reduction query
// parameters. An outsize of 0 means no resampling.
func parseDecimation(c echo.Context) (int, string, error) {
	outSize := 0
	if s := c.QueryParam("outsize"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return 0, "", fmt.Errorf("bad outsize %q", s)
		}
		outSize = n
	}
	reduction := c.QueryParam("reduction")
	if reduction == "" {
		reduction = "mean"
	}
	switch reduction {
	case "mean", "max", "min", "stddev", "first":
	default:
		return 0, "", fmt.Errorf("bad reduction %q", reduction)
	}
	return outSize, reduction, nil
}

func parseTimeBounds(c echo.Context) (float64, float64, error) {
	tstart, err := strconv.ParseFloat(c.Param("tstart"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad tstart %q", c.Param("tstart"))
	}
	tend, err := strconv.ParseFloat(c.Param("tend"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad tend %q", c.Param("tend"))
	}
	return tstart, tend, nil
}

// GetContinuous extracts a window of continuous data and returns it as
// little-endian float64, row-major sample by channel, with the window
// geometry in response headers. An outsize query parameter resamples each
// channel to a fixed number of values before serialization. Results are
// cached by request URL.
func (a *API) GetContinuous(c echo.Context) error {
	class, ok := plx.ParseChanType(c.Param("type"))
	if !ok || !class.Continuous() {
		return c.String(http.StatusBadRequest, fmt.Sprintf("not a continuous channel type %q", c.Param("type")))
	}
	tstart, tend, err := parseTimeBounds(c)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	chans, err := parseChanList(c.QueryParam("chans"))
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	wantStats := c.QueryParam("stats") == "true"
	outSize, reduction, err := parseDecimation(c)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	begin := time.Now()
	key := cache.KeyFromURL(c.Request().URL.String())

	var body []byte
	var meta windowMetaData
	inCache := false
	if a.Cfg.UseCache {
		if data, cacheErr := a.Cache.GetData(key, cache.WindowsDir); cacheErr == nil {
			if metaJSON, metaErr := a.Cache.GetData(key+"meta", cache.WindowsDir); metaErr == nil {
				if json.Unmarshal(metaJSON, &meta) == nil {
					body = data
					inCache = true
				}
			}
		}
	}

	if !inCache {
		pf, err := a.recording(c.Param("location"), c.Param("*"))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusBadRequest, err.Error())
		}

		info, data, err := pf.ExtractContinuous(class, tstart, tend, chans)
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		nsamples := info.Len
		if outSize > 0 && outSize != nsamples {
			data = numerical.DecimateWindow(data, info.NChans, outSize, reduction)
			nsamples = outSize
		}

		meta = windowMetaData{
			TStart:  info.TStart,
			Len:     nsamples,
			NChans:  info.NChans,
			Freq:    pf.Frequency(class),
			Class:   class.String(),
			StatsOn: wantStats,
		}
		if wantStats {
			stats, zmin, zmax := numerical.WindowStats(data, info.NChans)
			meta.Stats = stats
			meta.Zmin = zmin
			meta.Zmax = zmax
		} else {
			meta.Zmin = math.Inf(1)
			meta.Zmax = math.Inf(-1)
			for _, v := range data {
				if v < meta.Zmin {
					meta.Zmin = v
				}
				if v > meta.Zmax {
					meta.Zmax = v
				}
			}
		}

		var buf bytes.Buffer
		buf.Grow(len(data) * 8)
		if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
			return err
		}
		body = buf.Bytes()

		if a.Cfg.UseCache {
			metaJSON, marshalErr := json.Marshal(meta)
			if marshalErr != nil {
				return marshalErr
			}
			go a.Cache.PutItem(key, cache.WindowsDir, body)
			a.Cache.PutItem(key+"meta", cache.WindowsDir, metaJSON)
		}
	} else {
		c.Logger().Info("window in cache, returning cached data")
	}

	c.Logger().Infof("window of %d bytes served in %s", len(body), time.Since(begin).String())

	hdr := c.Response().Header()
	hdr.Set(echo.HeaderAccessControlExposeHeaders, "samples,nchans,tstart,freq,zmin,zmax,class")
	hdr.Set("samples", strconv.Itoa(meta.Len))
	hdr.Set("nchans", strconv.Itoa(meta.NChans))
	hdr.Set("tstart", fmt.Sprintf("%f", meta.TStart))
	hdr.Set("freq", fmt.Sprintf("%f", meta.Freq))
	hdr.Set("zmin", fmt.Sprintf("%f", meta.Zmin))
	hdr.Set("zmax", fmt.Sprintf("%f", meta.Zmax))
	hdr.Set("class", meta.Class)
	if meta.StatsOn && meta.Stats != nil {
		statsJSON, marshalErr := json.Marshal(meta.Stats)
		if marshalErr != nil {
			return marshalErr
		}
		hdr.Set("channel-stats", string(statsJSON))
	}

	return c.Blob(http.StatusOK, "application/binary", body)
}

// GetDiscrete returns the spike or event timestamps inside a time window
// as JSON rows.
func (a *API) GetDiscrete(c echo.Context) error {
	class, ok := plx.ParseChanType(c.Param("type"))
	if !ok || class.Continuous() {
		return c.String(http.StatusBadRequest, fmt.Sprintf("not a discrete channel type %q", c.Param("type")))
	}
	tstart, tend, err := parseTimeBounds(c)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	pf, err := a.recording(c.Param("location"), c.Param("*"))
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusBadRequest, err.Error())
	}

	rows, err := pf.ExtractDiscrete(class, tstart, tend)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rows)
}
