// Command streamfilter runs the real-time image filter pipeline: it parses the
// stream header from its input, builds the calculator graph from the pipeline
// manifest, and pumps raw frames through the scheduler at the stream's frame
// rate.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/calcflow/calcflow/config"
	"github.com/calcflow/calcflow/errs"
	"github.com/calcflow/calcflow/internal/calculators"
	"github.com/calcflow/calcflow/internal/graph"
	"github.com/calcflow/calcflow/internal/image"
	"github.com/calcflow/calcflow/internal/observability"
	"github.com/calcflow/calcflow/internal/stream"
	"github.com/calcflow/calcflow/internal/telemetry"
)

const (
	defaultBannerPath        = "assets/banner.bmp"
	frameChannelDepth        = 4
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	pipelinePath := flag.String("pipeline", "", "pipeline manifest path")
	inputPath := flag.String("input", "-", "stream source path, - for stdin")
	outputPath := flag.String("output", "-", "frame sink path, - for stdout")
	bannerPath := flag.String("banner", defaultBannerPath, "banner asset used when no manifest exists")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(os.Stderr, "streamfilter ", log.LstdFlags|log.Lmicroseconds)
	cfg := config.FromEnv()
	observability.SetLogger(observability.NewStdLogger(logger, cfg.Debug))

	manifest, err := config.LoadManifest(*pipelinePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load pipeline manifest: %v", err)
		}
		logger.Print("pipeline manifest not found, using the stock filter chain")
		manifest = config.DefaultManifest(*bannerPath)
	}
	if manifest.FrameRate <= 0 {
		manifest.FrameRate = cfg.FrameRate
	}
	if manifest.PortCapacity <= 0 {
		manifest.PortCapacity = cfg.PortCapacity
	}
	if manifest.Telemetry.OTLPEndpoint == "" {
		manifest.Telemetry = cfg.Telemetry
	}

	var runtimeMetrics *observability.RuntimeMetrics
	providers, telemetryShutdown, err := telemetry.Init(ctx, manifest.Telemetry)
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}
	if cfg.Debug {
		runtimeMetrics = observability.NewRuntimeMetrics()
		observability.SetMetrics(runtimeMetrics)
	} else {
		observability.SetMetrics(telemetry.NewMeterMetrics(providers.MeterProvider))
	}

	source, err := stream.OpenSource(ctx, *inputPath)
	if err != nil {
		logger.Fatalf("open stream source: %v", err)
	}
	defer func() { _ = source.Close() }()

	reader, err := stream.NewFrameReader(source)
	if err != nil {
		logger.Fatalf("parse stream header: %v", err)
	}
	header := reader.Header()
	logger.Printf("stream header: %dx%d %s fps=%d duration=%.2fs",
		header.Width, header.Height, header.Format, header.FPS, header.Duration)

	sink := os.Stdout
	if *outputPath != "" && *outputPath != "-" {
		file, err := os.Create(*outputPath)
		if err != nil {
			logger.Fatalf("open frame sink: %v", err)
		}
		defer func() { _ = file.Close() }()
		sink = file
	}
	writer := stream.NewFrameWriter(sink)

	scheduler, calcCount, err := buildPipeline(manifest)
	if err != nil {
		logger.Fatalf("build pipeline: %v", err)
	}
	logger.Printf("pipeline connected: scheduler=%s calculators=%d", scheduler.ID(), calcCount)

	frames := make(chan image.Image, frameChannelDepth)
	var sourceDone atomic.Bool

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() {
		defer close(frames)
		for {
			frame, err := reader.ReadFrame()
			if err != nil {
				if !errs.HasCode(err, errs.CodeUnavailable) {
					logger.Printf("read frame: %v", err)
				}
				sourceDone.Store(true)
				return
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				sourceDone.Store(true)
				return
			}
		}
	})

	scheduler.RegisterInputCallback(func(any) graph.Packet {
		select {
		case frame, ok := <-frames:
			if !ok {
				return graph.EmptyPacket()
			}
			return graph.NewPacket(frame)
		default:
			return graph.EmptyPacket()
		}
	}, nil)

	scheduler.RegisterOutputCallback(func(packet graph.Packet) {
		if !packet.Valid() {
			return
		}
		frame, err := graph.Value[image.Image](packet)
		if err != nil {
			logger.Printf("drain output: %v", err)
			return
		}
		if err := writer.WriteFrame(frame.Data()); err != nil {
			logger.Printf("%v", err)
			cancel()
		}
	})

	frameRate := header.FPS
	if frameRate <= 0 {
		frameRate = manifest.FrameRate
	}
	limiter := rate.NewLimiter(rate.Limit(frameRate), 1)

	// After the source dries up, run enough extra frames to flush packets
	// still queued inside the pipeline.
	drainFrames := calcCount + 1

	for {
		if err := limiter.Wait(ctx); err != nil {
			scheduler.Stop()
			break
		}
		if err := scheduler.Run(); err != nil {
			logger.Printf("scheduler frame: %v", err)
			scheduler.Stop()
			break
		}
		if sourceDone.Load() && len(frames) == 0 {
			if drainFrames == 0 {
				scheduler.Stop()
				break
			}
			drainFrames--
		}
	}

	cancel()
	lifecycle.Wait()

	if runtimeMetrics != nil {
		if dump, err := runtimeMetrics.DumpJSON(); err == nil {
			logger.Printf("metrics %s", dump)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer shutdownCancel()
	if err := telemetryShutdown(shutdownCtx); err != nil {
		logger.Printf("telemetry shutdown: %v", err)
	}
	logger.Printf("stream finished after %.2fs", scheduler.Elapsed())
}

func buildPipeline(manifest config.Manifest) (*graph.Scheduler, int, error) {
	side, err := manifest.BuildSideParameters()
	if err != nil {
		return nil, 0, err
	}

	registry := calculators.NewRegistry()
	scheduler := graph.NewScheduler(
		graph.WithFrameRate(manifest.FrameRate),
		graph.WithPortCapacity(manifest.PortCapacity),
	)

	for _, spec := range manifest.Calculators {
		calc, err := registry.New(spec.Kind, spec.Name, spec.Params)
		if err != nil {
			return nil, 0, err
		}
		if err := scheduler.RegisterCalculator(calc, side); err != nil {
			return nil, 0, err
		}
	}
	if err := scheduler.ConnectCalculators(); err != nil {
		return nil, 0, err
	}
	return scheduler, len(manifest.Calculators), nil
}
