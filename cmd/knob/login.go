package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"

	"github.com/tunez/knob/internal/auth"
	"github.com/tunez/knob/internal/engine"
)

type loginParams struct {
	Config    string `short:"c" optional:"true" help:"Path to config file." default:""`
	Debug     bool   `optional:"true" help:"Log at debug level."`
	NoBrowser bool   `optional:"true" help:"Print the authorization link instead of opening a browser."`
	Timeout   int    `short:"t" optional:"true" help:"Seconds to wait for the browser redirect." default:"300"`
}

func loginCmd() *cobra.Command {
	return boa.CmdT[loginParams]{
		Use:         "login",
		Short:       "Authorize an account in the browser and add it",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *loginParams, cmd *cobra.Command, args []string) {
			if err := runLogin(params); err != nil {
				log.Fatal(err)
			}
		},
	}.ToCobra()
}

func runLogin(params *loginParams) error {
	e, err := openEnv(&Params{Config: params.Config, Debug: params.Debug})
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(params.Timeout)*time.Second)
	defer cancel()

	eng, err := e.newEngine(ctx)
	if err != nil {
		return err
	}

	srv, err := auth.StartCallbackServer(e.cfg.API.RedirectURI)
	if err != nil {
		return err
	}
	defer srv.Shutdown()

	authURL := eng.AuthorizeURL()
	u, err := url.Parse(authURL)
	if err != nil {
		return err
	}
	wantState := u.Query().Get("state")

	fmt.Println("Open this link to authorize knob:")
	fmt.Println(authURL)
	if !params.NoBrowser {
		if err := auth.OpenBrowser(authURL); err != nil {
			e.logger.Warn("open browser", slog.Any("err", err))
		}
	}

	res, err := srv.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for authorization: %w", err)
	}
	switch {
	case res.Error != "":
		return fmt.Errorf("authorization denied: %s", res.Error)
	case res.State != wantState:
		return errors.New("authorization state mismatch, try again")
	case res.Code == "":
		return errors.New("no authorization code received")
	}

	eng.Authorize(res.Code)
	name, err := awaitAccount(ctx, eng)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", name)
	return nil
}

// awaitAccount drives the engine until the new account has been added and
// its profile has replaced the provisional id.
func awaitAccount(ctx context.Context, eng *engine.Engine) (string, error) {
	added := false
	for {
		u, ok := eng.Registry().ActiveUser()
		if ok && u.Provisional() {
			added = true
		}
		if added && ok && !u.Provisional() {
			if u.DisplayName != "" {
				return u.DisplayName, nil
			}
			return u.ID, nil
		}
		if s, ok := eng.Status(); ok && s.Err {
			return "", errors.New(s.Text)
		}
		if eng.Step(ctx) {
			continue
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("login: %w", ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
}
