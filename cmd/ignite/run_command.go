package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ignite/internal/bootstrap"
	"ignite/internal/faults"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var retries int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Initialize native libraries, runtime environment and extraction engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := ctx.buildComponents()
			if err != nil {
				return err
			}
			defer set.Close()

			limit := set.cfg.Bootstrap.MaxRetries
			if cmd.Flags().Changed("retries") {
				limit = retries
			}
			runCtx, cancel := withRunTimeout(cmd.Context(), timeout, set.cfg.BootstrapTimeout())
			defer cancel()

			runErr := drive(runCtx, set, limit)
			if err := renderOutcome(cmd, ctx, set, runErr); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("bootstrap failed: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&retries, "retries", 0, "Automatic retries after the first attempt (default bootstrap.max_retries)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall time limit (default bootstrap.timeout_seconds)")
	return cmd
}

func newReinitCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "reinit",
		Short: "Discard bootstrap state and history, then initialize again",
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := ctx.buildComponents()
			if err != nil {
				return err
			}
			defer set.Close()

			runCtx, cancel := withRunTimeout(cmd.Context(), timeout, set.cfg.BootstrapTimeout())
			defer cancel()

			runErr := set.orchestrator.ForceReinitialization(runCtx)
			if err := renderOutcome(cmd, ctx, set, runErr); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("reinitialization failed: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall time limit (default bootstrap.timeout_seconds)")
	return cmd
}

func withRunTimeout(parent context.Context, flag, fallback time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	timeout := flag
	if timeout <= 0 {
		timeout = fallback
	}
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// drive initializes and then retries while the failure stays recoverable
// and the limit allows.
func drive(ctx context.Context, set *components, limit int) error {
	err := set.orchestrator.Initialize(ctx)
	for attempt := 0; err != nil && attempt < limit; attempt++ {
		ferr := faults.As(err)
		if !set.classifier.IsRecoverable(ferr) || ctx.Err() != nil {
			break
		}
		err = set.orchestrator.RetryInitialization(ctx)
	}
	return err
}

type outcomeReport struct {
	SessionID string             `json:"session_id" yaml:"session_id"`
	Bootstrap bootstrap.Snapshot `json:"bootstrap" yaml:"bootstrap"`
}

func renderOutcome(cmd *cobra.Command, ctx *commandContext, set *components, runErr error) error {
	snap := set.orchestrator.Snapshot()
	handled, err := writeStructured(cmd, ctx.outputFlag, outcomeReport{SessionID: ctx.sessionID, Bootstrap: snap})
	if handled || err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	fmt.Fprintln(out, bootstrapLine(set.orchestrator.Status(), colorize))
	for _, health := range set.orchestrator.Health(cmd.Context()) {
		fmt.Fprintln(out, healthLine(health, colorize))
	}
	if runErr != nil && snap.LastError != nil {
		fmt.Fprintf(out, "%s%-*s %s (%s)\n", statusIndent, statusLabelWidth, "Suggested action:", snap.LastError.Action, snap.LastError.Category)
	}
	fmt.Fprintf(out, "%s%-*s %d of %d\n", statusIndent, statusLabelWidth, "Retries used:", snap.Retries, snap.MaxRetries)
	return nil
}
