package main

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"

	"github.com/tunez/knob/internal/store"
)

type firmwareParams struct {
	Config string `short:"c" optional:"true" help:"Path to config file." default:""`
	Debug  bool   `optional:"true" help:"Log at debug level."`
	Set    string `short:"s" optional:"true" help:"Store a firmware update URL that overrides the config file." default:""`
	Clear  bool   `optional:"true" help:"Remove the stored override."`
}

func firmwareCmd() *cobra.Command {
	return boa.CmdT[firmwareParams]{
		Use:         "firmware-url",
		Short:       "Show or override the firmware update location",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *firmwareParams, cmd *cobra.Command, args []string) {
			if err := runFirmware(params); err != nil {
				log.Fatal(err)
			}
		},
	}.ToCobra()
}

func runFirmware(params *firmwareParams) error {
	e, err := openEnv(&Params{Config: params.Config, Debug: params.Debug})
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := context.Background()

	switch {
	case params.Clear:
		if err := e.store.SetSetting(ctx, store.SettingFirmwareURL, ""); err != nil {
			return err
		}
	case params.Set != "":
		u, err := url.Parse(params.Set)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%q is not an absolute URL", params.Set)
		}
		if err := e.store.SetSetting(ctx, store.SettingFirmwareURL, params.Set); err != nil {
			return err
		}
	}

	current, err := e.firmwareURL(ctx)
	if err != nil {
		return err
	}
	if current == "" {
		current = "(not configured)"
	}
	fmt.Println("Firmware update URL:", current)
	return nil
}
