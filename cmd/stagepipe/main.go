package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fogfactory/stagepipe"
	"github.com/fogfactory/stagepipe/benchmark"
	"github.com/fogfactory/stagepipe/config"
	"github.com/fogfactory/stagepipe/examples/capture"
	"github.com/fogfactory/stagepipe/log"
)

var (
	successExitCode = 0
	errorExitCode   = 1
)

type params struct {
	configPath string
	frames     int
	outputDir  string
	profile    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	flags := flag.NewFlagSet("stagepipe", flag.ContinueOnError)
	flags.SetOutput(stdout)
	var p params
	flags.StringVar(&p.configPath, "config", os.Getenv("STAGEPIPE_CONFIG_PATH"), "path to a YAML config file")
	flags.IntVar(&p.frames, "frames", -1, "number of frames to capture, overrides capture.frames")
	flags.StringVar(&p.outputDir, "out", "", "output directory, overrides capture.output_dir")
	flags.BoolVar(&p.profile, "profile", false, "write a CPU profile of a sleeping chain instead of capturing")
	if err := flags.Parse(args); err != nil {
		return errorExitCode
	}

	if err := p.run(stdout); err != nil {
		fmt.Fprintf(stdout, "stagepipe failed: %v\n", err)
		return errorExitCode
	}
	return successExitCode
}

func (p params) run(stdout io.Writer) error {
	cfg, err := config.Load(p.configPath)
	if err != nil {
		return err
	}
	if p.frames >= 0 {
		cfg.Capture.Frames = p.frames
	}
	if p.outputDir != "" {
		cfg.Capture.OutputDir = p.outputDir
	}
	if err := os.MkdirAll(cfg.Capture.OutputDir, 0o755); err != nil {
		return err
	}

	if p.profile {
		_, err := benchmark.Profile(cfg.Capture.OutputDir, 4, max(cfg.Capture.Frames, 1))
		return err
	}

	logger, err := log.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	logger.SetOutput(stdout)

	pool, err := stagepipe.NewPool(cfg.Pool.Size, cfg.Pool.Options()...)
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.ReleaseTimeout(5 * time.Second); err != nil {
			logger.WithError(err).Warn("pool release")
		}
	}()

	pipeline, err := capture.NewPipeline(pool, logger, cfg.Capture.Quality, cfg.Capture.OutputDir)
	if err != nil {
		return err
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		written int
	)
	wg.Add(cfg.Capture.Frames)
	pipeline.Next().OnCompletion(func(s capture.WriteStatus) {
		mu.Lock()
		if s == capture.Written {
			written++
		}
		mu.Unlock()
		wg.Done()
	})

	source := &capture.Source{Width: cfg.Capture.Width, Height: cfg.Capture.Height}
	start := time.Now()
	for i := 0; i < cfg.Capture.Frames; i++ {
		pipeline.Enqueue(source.Next())
	}
	wg.Wait()

	for _, s := range pipeline.Snapshots() {
		logger.WithField("avg_ms", s.AverageMillis).WithField("samples", s.Samples).Infof("%s done", s.Name)
	}
	logger.Infof("%d/%d frames written to %s in %s", written, cfg.Capture.Frames, cfg.Capture.OutputDir, time.Since(start))
	return nil
}
