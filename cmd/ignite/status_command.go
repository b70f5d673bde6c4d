package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ignite/internal/journal"
	"ignite/internal/preflight"
	"ignite/internal/stage"
)

type directoryUsage struct {
	Name  string `json:"name" yaml:"name"`
	Path  string `json:"path" yaml:"path"`
	Files int    `json:"files" yaml:"files"`
	Bytes uint64 `json:"bytes" yaml:"bytes"`
}

type statusReport struct {
	SessionID   string             `json:"session_id" yaml:"session_id"`
	Bundle      string             `json:"bundle" yaml:"bundle"`
	ABI         string             `json:"abi" yaml:"abi"`
	Preflight   []preflight.Result `json:"preflight" yaml:"preflight"`
	Components  []stage.Health     `json:"components" yaml:"components"`
	Directories []directoryUsage   `json:"directories" yaml:"directories"`
	LastAttempt *journal.Entry     `json:"last_attempt,omitempty" yaml:"last_attempt,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show preflight checks, extracted components and the last attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := ctx.buildComponents()
			if err != nil {
				return err
			}
			defer set.Close()

			report := collectStatus(cmd.Context(), ctx, set)
			handled, err := writeStructured(cmd, ctx.outputFlag, report)
			if handled || err != nil {
				return err
			}
			renderStatus(cmd, report)
			return nil
		},
	}
}

func collectStatus(ctx context.Context, cmdCtx *commandContext, set *components) statusReport {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := set.cfg
	report := statusReport{
		SessionID: cmdCtx.sessionID,
		Bundle:    cfg.Paths.Bundle,
		ABI:       string(set.native.ABI()),
		Preflight: preflight.RunAll(cfg),
		Components: []stage.Health{
			set.native.HealthCheck(ctx),
			set.runtime.HealthCheck(ctx),
		},
		Directories: []directoryUsage{
			measureDirectory(cfg.Native.DirName, cfg.NativeDir()),
			measureDirectory(cfg.Runtime.DirName, cfg.RuntimeDir()),
		},
	}
	if set.journal != nil {
		if entries, err := set.journal.List(ctx, 1); err == nil && len(entries) > 0 {
			report.LastAttempt = &entries[0]
		}
	}
	return report
}

func renderStatus(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	write := func(lines ...string) {
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
	}

	write(renderSectionHeader("Preflight", colorize)...)
	for _, result := range report.Preflight {
		write(preflightLine(result, colorize))
	}
	write("")

	write(renderSectionHeader("Components", colorize)...)
	write(renderStatusLine("ABI", statusInfo, report.ABI, colorize))
	for _, health := range report.Components {
		write(healthLine(health, colorize))
	}
	for _, usage := range report.Directories {
		kind := statusInfo
		detail := "empty"
		if usage.Files > 0 {
			kind = statusOK
			detail = fmt.Sprintf("%d files, %s", usage.Files, humanize.Bytes(usage.Bytes))
		}
		write(renderStatusLine(usage.Name+"/", kind, detail, colorize))
	}
	write("")

	write(renderSectionHeader("Last Attempt", colorize)...)
	if report.LastAttempt == nil {
		write(renderStatusLine("Journal", statusInfo, "No attempts recorded", colorize))
		return
	}
	last := report.LastAttempt
	kind := statusOK
	switch last.Outcome {
	case journal.OutcomeFailure, journal.OutcomeRejected:
		kind = statusError
	case journal.OutcomeRollback:
		kind = statusInfo
	}
	detail := fmt.Sprintf("%s (%s, %s)", last.Outcome, last.Trigger, humanize.Time(last.FinishedAt))
	write(renderStatusLine("Outcome", kind, detail, colorize))
	if last.Message != "" {
		write(renderStatusLine("Error", statusError, last.Message, colorize))
	}
	if last.Action != "" {
		write(renderStatusLine("Suggested action", statusInfo, last.Action, colorize))
	}
}

func measureDirectory(name, dir string) directoryUsage {
	usage := directoryUsage{Name: name, Path: dir}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		usage.Files++
		usage.Bytes += uint64(info.Size())
		return nil
	})
	return usage
}
