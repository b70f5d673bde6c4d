package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"ignite/internal/stage"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Initialize if needed and check the extraction engine version",
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := ctx.buildComponents()
			if err != nil {
				return err
			}
			defer set.Close()

			runCtx, cancel := withRunTimeout(cmd.Context(), timeout, set.cfg.BootstrapTimeout())
			defer cancel()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if err := set.orchestrator.Initialize(runCtx); err != nil {
				fmt.Fprintln(out, bootstrapLine(set.orchestrator.Status(), colorize))
				return fmt.Errorf("bootstrap failed: %w", err)
			}

			native := set.native.Verify(runCtx)
			fmt.Fprintln(out, verificationLine("Native libraries", native, colorize))
			runtime := set.runtime.Verify(runCtx)
			fmt.Fprintln(out, verificationLine("Runtime files", runtime, colorize))

			version, err := set.engine.Version(runCtx)
			if err != nil || !set.engine.Verify(runCtx) {
				fmt.Fprintln(out, renderStatusLine("Engine", statusError, "version check failed", colorize))
				if err == nil {
					err = fmt.Errorf("unexpected version output %q", version)
				}
				return fmt.Errorf("engine verification failed: %w", err)
			}
			fmt.Fprintln(out, renderStatusLine("Engine", statusOK, fmt.Sprintf("%s via %s", version, set.engine.Method()), colorize))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall time limit (default bootstrap.timeout_seconds)")
	return cmd
}

func verificationLine(label string, res stage.VerificationResult, colorize bool) string {
	if !res.Success {
		detail := fmt.Sprintf("missing %v", res.FailedItems)
		if res.Err != nil {
			detail = res.Err.Message
		}
		return renderStatusLine(label, statusError, detail, colorize)
	}
	detail := fmt.Sprintf("%d verified", len(res.VerifiedItems))
	if len(res.Details) > 0 {
		keys := make([]string, 0, len(res.Details))
		for k := range res.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		detail += fmt.Sprintf(" (%s → %s)", keys[0], res.Details[keys[0]])
	}
	return renderStatusLine(label, statusOK, detail, colorize)
}
