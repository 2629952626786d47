package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/tkanos/gonfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/plxtools/plx-data-service/internal/plx"
)

// inspectConfig holds defaults that can be preloaded from a JSON config
// file and overridden by flags.
type inspectConfig struct {
	Frames   int     `json:"frames"`
	Channels string  `json:"channels"`
	Tol      float64 `json:"tol"`
}

func setupLogger(debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	logger, err := zap.Config{
		Encoding:    "json",
		Level:       zap.NewAtomicLevelAt(level),
		OutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:  "message",
			LevelKey:    "level",
			EncodeLevel: zapcore.CapitalLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.ISO8601TimeEncoder,
		},
	}.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "couldn't setup logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func parseChannels(s string) ([]int16, error) {
	if s == "" {
		return nil, nil
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

func printSummary(pf *plx.PlexFile) {
	for _, s := range pf.Summary() {
		fmt.Printf("%8s: %d / %d\n", s.Name, s.Frames, s.Capacity)
	}
	if n := pf.SkippedRecords(); n > 0 {
		fmt.Printf("skipped %d malformed records\n", n)
	}
}

func printFrames(pf *plx.PlexFile, class plx.ChanType, count int) {
	set := &pf.Data[class]
	if count > set.Len() {
		count = set.Len()
	}
	for i := 0; i < count; i++ {
		fmt.Println(set.At(i).String())
	}
}

// checkAll validates frame gaps for every class in parallel.
func checkAll(pf *plx.PlexFile, tol float64) []int {
	results := make([]int, plx.ChanTypeMax)
	var g errgroup.Group
	for class := plx.ChanType(0); class < plx.ChanTypeMax; class++ {
		class := class
		g.Go(func() error {
			count, _ := pf.CheckFramesTol(class, tol)
			results[class] = count
			return nil
		})
	}
	g.Wait()
	return results
}

func extract(pf *plx.PlexFile, class plx.ChanType, tstart, tend float64, chans []int16, outPath string) error {
	info, data, err := pf.ExtractContinuous(class, tstart, tend, chans)
	if err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, data); err != nil {
		return err
	}
	fmt.Printf("wrote %d samples x %d channels starting at t=%f to %s\n",
		info.Len, info.NChans, info.TStart, outPath)
	return nil
}

func main() {
	configFile := flag.String("config", "", "Optional JSON config file with inspection defaults")
	debugFlag := flag.Bool("debug", false, "Whether or not to enable debug logging")
	framesFlag := flag.IntP("frames", "n", 10, "How many frames to print per continuous class")
	classFlag := flag.StringP("class", "t", "analog", "Channel class to print and extract (wideband, spkc, lfp, analog)")
	checkFlag := flag.Bool("check", false, "Validate frame gaps for all classes")
	tolFlag := flag.Float64("tol", 0, "Gap tolerance in seconds for --check")
	extractFlag := flag.String("extract", "", "Window to extract, as tstart:tend in seconds")
	chansFlag := flag.String("chans", "", "Comma-separated channel numbers for --extract")
	outFlag := flag.StringP("out", "o", "window.f64", "Output file for --extract (raw little-endian float64)")
	flag.Parse()

	logger := setupLogger(*debugFlag)
	defer logger.Sync()

	cfg := inspectConfig{Frames: *framesFlag, Channels: *chansFlag, Tol: *tolFlag}
	if *configFile != "" {
		if err := gonfig.GetConf(*configFile, &cfg); err != nil {
			logger.Fatal("error reading config file",
				zap.String("config_file", *configFile),
				zap.Error(err),
			)
		}
	}
	if flag.CommandLine.Changed("frames") {
		cfg.Frames = *framesFlag
	}
	if flag.CommandLine.Changed("chans") {
		cfg.Channels = *chansFlag
	}
	if flag.CommandLine.Changed("tol") {
		cfg.Tol = *tolFlag
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: plxinspect [flags] <recording.plx>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	class, ok := plx.ParseChanType(*classFlag)
	if !ok {
		logger.Fatal("unknown channel class", zap.String("class", *classFlag))
	}

	pf, err := plx.OpenFile(path, logger)
	if err != nil {
		logger.Fatal("error opening recording", zap.String("path", path), zap.Error(err))
	}
	defer pf.Close()

	printSummary(pf)
	if class.Continuous() {
		printFrames(pf, class, cfg.Frames)
	}

	if *checkFlag {
		results := checkAll(pf, cfg.Tol)
		for cls := plx.ChanType(0); cls < plx.ChanTypeMax; cls++ {
			fmt.Printf("%8s: %d invalid gaps\n", cls, results[cls])
		}
	}

	if *extractFlag != "" {
		bounds := strings.SplitN(*extractFlag, ":", 2)
		if len(bounds) != 2 {
			logger.Fatal("bad extract window, want tstart:tend", zap.String("extract", *extractFlag))
		}
		tstart, err1 := strconv.ParseFloat(bounds[0], 64)
		tend, err2 := strconv.ParseFloat(bounds[1], 64)
		if err1 != nil || err2 != nil {
			logger.Fatal("bad extract bounds", zap.String("extract", *extractFlag))
		}
		chans, err := parseChannels(cfg.Channels)
		if err != nil {
			logger.Fatal("bad channel list", zap.Error(err))
		}
		if len(chans) == 0 {
			logger.Fatal("--extract requires --chans")
		}
		if err := extract(pf, class, tstart, tend, chans, *outFlag); err != nil {
			logger.Fatal("extraction failed", zap.Error(err))
		}
	}
}
