package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/featnet/backend/cpu"
	"github.com/born-ml/featnet/features"
	"github.com/born-ml/featnet/internal/config"
	"github.com/born-ml/featnet/nn"
	"github.com/born-ml/featnet/tensor"
)

// parameterInfo describes one named parameter.
type parameterInfo struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
	Size  int    `json:"size"`
}

// modelInfo is the JSON form of the inspect output.
type modelInfo struct {
	Summary    string          `json:"summary"`
	Total      int             `json:"total_parameters"`
	Parameters []parameterInfo `json:"parameters,omitempty"`
}

func countParameters[B tensor.Backend](ex *features.Extractor[B]) int {
	return nn.CountParameters(ex.Parameters())
}

func inspectCmd() *cli.Command {
	var showParams bool

	return &cli.Command{
		Name:  "inspect",
		Usage: "Print the architecture and parameter layout of a configuration",
		Flags: append(commonFlags(),
			&cli.BoolFlag{Name: "params", Aliases: []string{"p"}, Usage: "list every parameter", Destination: &showParams},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			info, err := inspectModel(cfg, showParams)
			if err != nil {
				return err
			}
			if jsonOutput {
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal model info: %w", err)
				}
				_, err = fmt.Fprintln(os.Stdout, string(data))
				return err
			}
			return info.writeText(os.Stdout)
		},
	}
}

// inspectModel builds the model on the CPU backend. Weights are never read.
func inspectModel(cfg *config.Config, withParams bool) (*modelInfo, error) {
	ex, err := features.Build(cfg.Model, rand.New(rand.NewSource(cfg.Seed)), cpu.New(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build extractor: %w", err)
	}

	info := &modelInfo{Summary: ex.Summary(), Total: countParameters(ex)}
	if withParams {
		for _, p := range ex.Parameters() {
			t := p.Tensor()
			info.Parameters = append(info.Parameters, parameterInfo{
				Name:  p.Name(),
				Shape: append([]int(nil), t.Shape()...),
				Size:  t.NumElements(),
			})
		}
	}
	return info, nil
}

func (m *modelInfo) writeText(w io.Writer) error {
	if _, err := fmt.Fprintln(w, m.Summary); err != nil {
		return err
	}
	for _, p := range m.Parameters {
		if _, err := fmt.Fprintf(w, "  %-40s %-16v %d\n", p.Name, p.Shape, p.Size); err != nil {
			return err
		}
	}
	return nil
}
