// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"code.hybscloud.com/flux"
	"code.hybscloud.com/flux/internal/logging"
	"code.hybscloud.com/flux/internal/telemetry"
)

// app carries what every command needs once flags are parsed.
type app struct {
	cfg      config
	flux     flux.Config
	logger   *slog.Logger
	backend  backend
	shutdown func(context.Context) error
	out      io.Writer
}

func newRootCommand() *cobra.Command {
	a := &app{out: os.Stdout}
	root := &cobra.Command{
		Use:   "fluxctl",
		Short: "Inspect and edit persisted shared cells",
		Long: `fluxctl reads, writes and watches the values that flux shared cells
persist through the file and sqlite backends.

Configuration sources, in order of precedence:
  1. command-line flags
  2. FLUXCTL_* environment variables (FLUXCTL_BACKEND, FLUXCTL_LOG_LEVEL, ...)
  3. the config file ($HOME/.config/fluxctl/config.yaml or --config)

Examples:
  fluxctl set settings '{"theme":"dark"}'
  fluxctl --backend sqlite get settings counters
  fluxctl watch settings`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}
	root.SetOut(os.Stdout)
	registerFlags(root.PersistentFlags())

	root.AddCommand(
		a.getCommand(),
		a.setCommand(),
		a.rmCommand(),
		a.listCommand(),
		a.watchCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "fluxctl", version)
			},
		},
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	fcfg, err := flux.LoadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.flux = fcfg
	a.out = cmd.OutOrStdout()
	a.logger = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(a.logger)

	a.shutdown, err = telemetry.Setup(cmd.Context(), "fluxctl", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	a.backend, err = openBackend(cfg, a.logger)
	if err != nil {
		return err
	}
	a.logger.Debug("fluxctl: configured", "backend", cfg.Backend, "codec", cfg.Codec)
	return nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.backend != nil {
		errs = append(errs, a.backend.Close())
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		errs = append(errs, a.shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (a *app) cellOptions() []flux.SharedOption {
	return []flux.SharedOption{
		flux.WithCellLogger(a.logger),
		flux.WithCellIssueHandler(a.flux.IssuePolicy.Handler(a.logger)),
	}
}

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY...",
		Short: "Print stored values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, names []string) error {
			values := make([]any, len(names))
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, name := range names {
				g.Go(func() error {
					v, ok, err := a.backend.key(name).Load(ctx)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("%q: not found", name)
					}
					values[i] = v
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			for i, name := range names {
				if err := a.print(name, values[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) setCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a value",
		Long:  "Store VALUE under KEY. VALUE is parsed as JSON; anything else is stored as a string.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cell, err := flux.Persistent[any](cmd.Context(), flux.NewReferences(), a.backend.key(args[0]), nil, a.cellOptions()...)
			if err != nil {
				return err
			}
			defer cell.Release()
			return cell.Set(parseValue(args[1]))
		},
	}
}

func (a *app) rmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm KEY...",
		Short: "Delete stored values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, names []string) error {
			for _, name := range names {
				if err := a.backend.remove(cmd.Context(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.backend.list(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}
}

func (a *app) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch KEY...",
		Short: "Print every change until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, names []string) error {
			return a.watch(cmd.Context(), names)
		},
	}
}

func (a *app) print(name string, v any) error {
	if v == nil {
		_, err := fmt.Fprintf(a.out, "%s\t<unset>\n", name)
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%q: %w", name, err)
	}
	_, err = fmt.Fprintf(a.out, "%s\t%s\n", name, data)
	return err
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
