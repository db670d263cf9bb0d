package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/featnet/backend/cpu"
	"github.com/born-ml/featnet/backend/webgpu"
	"github.com/born-ml/featnet/features"
	"github.com/born-ml/featnet/internal/config"
	"github.com/born-ml/featnet/internal/logger"
	"github.com/born-ml/featnet/tensor"
)

// runRequest describes the synthetic input of a run.
type runRequest struct {
	Batch    int
	Height   int
	Width    int
	Training bool
}

func runCmd() *cli.Command {
	var req runRequest

	return &cli.Command{
		Name:  "run",
		Usage: "Extract a feature pyramid from a synthetic image batch",
		Flags: append(append(commonFlags(), loggingFlags()...),
			&cli.IntFlag{Name: "batch", Aliases: []string{"n"}, Usage: "batch size", Value: 1, Destination: &req.Batch},
			&cli.IntFlag{Name: "height", Usage: "input height", Value: 96, Destination: &req.Height},
			&cli.IntFlag{Name: "width", Usage: "input width", Value: 96, Destination: &req.Width},
			&cli.BoolFlag{Name: "training", Usage: "normalize with batch statistics", Destination: &req.Training},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			report, err := execute(logger.WithContext(ctx, log), cfg, req)
			if err != nil {
				return err
			}
			if jsonOutput {
				return report.WriteJSON(os.Stdout)
			}
			return report.WriteText(os.Stdout)
		},
	}
}

// execute selects the backend from cfg and runs the extractor once.
// An unavailable WebGPU adapter falls back to the CPU backend.
func execute(ctx context.Context, cfg *config.Config, req runRequest) (*Report, error) {
	if req.Batch < 1 || req.Height < 1 || req.Width < 1 {
		return nil, fmt.Errorf("invalid input size %dx%dx%d", req.Batch, req.Height, req.Width)
	}

	log := logger.FromContext(ctx)
	if cfg.Backend == config.BackendWebGPU {
		gpu, err := webgpu.New()
		if err == nil {
			defer gpu.Release()
			return runOn(ctx, gpu, cfg, req)
		}
		log.Warn("webgpu unavailable, falling back to cpu", "error", err)
	}
	return runOn(ctx, cpu.New(cpu.WithWorkers(cfg.Workers)), cfg, req)
}

func runOn[B tensor.Backend](ctx context.Context, backend B, cfg *config.Config, req runRequest) (*Report, error) {
	runID := uuid.NewString()
	log := logger.FromContext(ctx).With("run", runID)

	start := time.Now()
	ex, err := features.Build(cfg.Model, rand.New(rand.NewSource(cfg.Seed)), backend, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build extractor: %w", err)
	}
	ex.SetTraining(req.Training)
	built := time.Since(start)
	log.Info("extractor built", "backend", backend.Name(), "parameters", countParameters(ex), "elapsed", built)

	shape := tensor.Shape{req.Batch, req.Height, req.Width, ex.Backbone().InChannels()}
	x := tensor.RandUniform[float32](shape, 0, 1, rand.New(rand.NewSource(cfg.Seed+1)), backend)

	start = time.Now()
	out, err := ex.Extract(ctx, x)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	forward := time.Since(start)
	log.Info("extraction finished", "input", fmt.Sprint(shape), "elapsed", forward)

	return &Report{
		RunID:      runID,
		Backend:    backend.Name(),
		Seed:       cfg.Seed,
		Training:   req.Training,
		Input:      append([]int(nil), shape...),
		Parameters: countParameters(ex),
		BuildMS:    millis(built),
		ForwardMS:  millis(forward),
		Features:   describeLevels(out.Features),
		Pyramid:    describeLevels(out.Pyramid.Levels()),
	}, nil
}
