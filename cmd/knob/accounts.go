package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/tunez/knob/internal/registry"
)

type accountsParams struct {
	Config string `short:"c" optional:"true" help:"Path to config file." default:""`
	Debug  bool   `optional:"true" help:"Log at debug level."`
	Remove string `short:"r" optional:"true" help:"Forget the account with this id." default:""`
}

func accountsCmd() *cobra.Command {
	return boa.CmdT[accountsParams]{
		Use:         "accounts",
		Short:       "List saved accounts, or forget one",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *accountsParams, cmd *cobra.Command, args []string) {
			if err := runAccounts(params, os.Stdout); err != nil {
				log.Fatal(err)
			}
		},
	}.ToCobra()
}

func runAccounts(params *accountsParams, out io.Writer) error {
	e, err := openEnv(&Params{Config: params.Config, Debug: params.Debug})
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := context.Background()
	records, err := e.store.LoadAccounts(ctx)
	if err != nil {
		return err
	}

	if params.Remove != "" {
		reg := registry.New()
		reg.Restore(records)
		if !reg.RemoveUser(params.Remove) {
			return fmt.Errorf("no account with id %q", params.Remove)
		}
		if err := e.store.SaveAccounts(ctx, reg.Records()); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %s\n", params.Remove)
		return nil
	}

	renderAccounts(out, records)
	return nil
}

func renderAccounts(out io.Writer, records []registry.Record) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No accounts. Run `knob login` to add one.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "Name", "ID", "Device"})
	for _, r := range records {
		t.AppendRow(table.Row{lo.Ternary(r.Selected, "●", ""), r.Name, r.ID, r.SelectedDeviceID})
	}
	t.Render()
}
