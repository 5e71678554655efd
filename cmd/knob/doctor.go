package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tunez/knob/internal/artwork"
	"github.com/tunez/knob/internal/logging"
	"github.com/tunez/knob/internal/ui"
)

type doctorParams struct {
	Config string `short:"c" optional:"true" help:"Path to config file." default:""`
	Debug  bool   `optional:"true" help:"Log at debug level."`
}

func doctorCmd() *cobra.Command {
	return boa.CmdT[doctorParams]{
		Use:         "doctor",
		Short:       "Check configuration and saved state",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *doctorParams, cmd *cobra.Command, args []string) {
			if err := runDoctor(params, os.Stdout); err != nil {
				log.Fatal(err)
			}
		},
	}.ToCobra()
}

func runDoctor(params *doctorParams, out io.Writer) error {
	e, err := openEnv(&Params{Config: params.Config, Debug: params.Debug})
	if err != nil {
		fmt.Fprintf(out, "Config: ERROR - %v\n", err)
		return err
	}
	defer e.Close()
	ctx, cancel := e.cfg.DeadlineContext()
	defer cancel()

	fmt.Fprintln(out, "knob doctor")
	fmt.Fprintf(out, "Config: OK (%s)\n", e.cfgPath)
	fmt.Fprintf(out, "Service: %s (accounts %s)\n", e.cfg.API.APIURL, e.cfg.API.AccountsURL)
	if !ui.ValidTheme(e.cfg.UI.Theme) {
		fmt.Fprintf(out, "Theme %q: unknown, using rainbow\n", e.cfg.UI.Theme)
	}

	if info, err := os.Stat(e.store.Path()); err == nil {
		fmt.Fprintf(out, "State: OK (%s, %s)\n", e.store.Path(), humanize.Bytes(uint64(info.Size())))
	}
	records, err := e.store.LoadAccounts(ctx)
	if err != nil {
		fmt.Fprintf(out, "Accounts: ERROR - %v\n", err)
	} else {
		fmt.Fprintf(out, "Accounts: %d saved\n", len(records))
	}

	if u, err := e.firmwareURL(ctx); err == nil && u != "" {
		fmt.Fprintf(out, "Firmware URL: %s\n", u)
	}

	if e.cfg.ArtworkEnabled() {
		if cache, err := artwork.NewCache("", 0); err == nil {
			fmt.Fprintf(out, "Artwork cache: %s (%s)\n", cache.Dir(), cache.SizeString())
		}
	}
	if dir, err := logging.StateDir(); err == nil {
		fmt.Fprintf(out, "Logs: %s\n", dir)
	}

	e.logger.Info("doctor complete", slog.Int("accounts", len(records)))
	return nil
}
