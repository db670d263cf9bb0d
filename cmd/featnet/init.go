package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/featnet/internal/config"
	"github.com/born-ml/featnet/internal/resnet"
)

func initCmd() *cli.Command {
	var (
		force    bool
		explicit bool
	)

	return &cli.Command{
		Name:      "init",
		Usage:     "Write the default configuration to a YAML file",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "overwrite an existing file", Destination: &force},
			&cli.BoolFlag{Name: "stages", Usage: "write the default stages explicitly", Destination: &explicit},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				path = "featnet.yaml"
			}
			return writeDefaultConfig(path, force, explicit)
		},
	}
}

func writeDefaultConfig(path string, force, explicit bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	cfg := config.Default()
	if explicit {
		for _, s := range resnet.DefaultStages(cfg.Model.Backbone.InChannels) {
			cfg.Model.Backbone.Stages = append(cfg.Model.Backbone.Stages, config.Stage{
				Block:    s.Variant.String(),
				Channels: s.OutChannels,
				Blocks:   s.NumBlocks,
				Stride:   s.Stride,
				Dilate:   s.Dilate,
			})
		}
	}

	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
