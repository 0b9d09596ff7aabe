package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
	"github.com/on-the-ground/effect_ive_feedbacks/feedbacks"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

type ReplayOptions struct {
	*RootOptions
}

// recordedAction is one entry of an actions file.
type recordedAction struct {
	Type    string `yaml:"type"`
	Payload any    `yaml:"payload"`
}

func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <actions.yaml>",
		Short: "Dispatch recorded actions against the todo blueprint",
		Long: `Replay mounts the todo blueprint, dispatches every action of the file in
order and prints the result.

With --format text every write is printed as it was applied. With
--format json the final state is printed.

Example:
  feedbacks replay ./actions.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, args[0], cmd.OutOrStdout())
		},
	}
	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, path string, out io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	actions, err := readActions(path)
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	// Every write of the run must fit the commit buffer.
	cfg.Commits.BufferSize = max(cfg.Commits.BufferSize, 4*len(actions)+16)

	e, err := feedbacks.NewStore(ctx, TodoBlueprint(), feedbacks.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer func() { err = multierr.Append(err, e.Close()) }()

	for i, a := range actions {
		if err := e.Dispatch(model.Action{Type: a.Type, Payload: a.Payload}); err != nil {
			return fmt.Errorf("action %d (%s): %w", i, a.Type, err)
		}
	}
	if err := e.Flush(); err != nil {
		return err
	}

	if opts.Format == "json" {
		data, err := json.MarshalIndent(e.State(), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	for len(e.Source()) > 0 {
		c := <-e.Source()
		at := c.Path.String()
		if at == "" {
			at = "."
		}
		if _, err := fmt.Fprintf(out, "%s <- %v (%s)\n", at, c.Value, c.Cause); err != nil {
			return err
		}
	}
	return nil
}

func readActions(path string) ([]recordedAction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read actions: %w", err)
	}
	var actions []recordedAction
	if err := yaml.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("failed to parse actions: %w", err)
	}
	return actions, nil
}
