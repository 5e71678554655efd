package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tunez/knob/internal/app"
	"github.com/tunez/knob/internal/artwork"
	"github.com/tunez/knob/internal/auth"
	"github.com/tunez/knob/internal/config"
	"github.com/tunez/knob/internal/engine"
	"github.com/tunez/knob/internal/logging"
	"github.com/tunez/knob/internal/remote"
	"github.com/tunez/knob/internal/store"
	"github.com/tunez/knob/internal/ui"
)

// Params are shared by every command.
type Params struct {
	Config string `short:"c" optional:"true" help:"Path to config file (default: <user config dir>/knob/config.toml)." default:""`
	Debug  bool   `optional:"true" help:"Log at debug level."`
}

func main() {
	boa.CmdT[Params]{
		Use:         "knob",
		Short:       "Remote playback control for the terminal",
		ParamEnrich: paramEnricher(),
		Version:     appVersion(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := runTUI(params); err != nil {
				log.Fatal(err)
			}
		},
		SubCmds: []*cobra.Command{
			loginCmd(),
			accountsCmd(),
			doctorCmd(),
			firmwareCmd(),
		},
	}.Run()
}

func paramEnricher() boa.ParamEnricher {
	return boa.ParamEnricherCombine(
		boa.ParamEnricherBool,
		boa.ParamEnricherName,
		boa.ParamEnricherShort,
	)
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "unknown"
	}
	return bi.Main.Version
}

// env is what every command needs: configuration, a logger and the state
// database.
type env struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	logFile *os.File
	store   *store.Store
}

func openEnv(params *Params) (*env, error) {
	cfg, cfgPath, err := config.Load(params.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, logFile, err := logging.Setup(params.Debug)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	st, err := store.Open(cfg.State.DBPath)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("open state: %w", err)
	}
	logger.Info("starting knob", slog.String("config", cfgPath), slog.String("state", st.Path()))
	return &env{cfg: cfg, cfgPath: cfgPath, logger: logger, logFile: logFile, store: st}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("close state", slog.Any("err", err))
	}
	e.logFile.Close()
}

// newEngine wires the sync engine to the configured service and restores
// the saved accounts.
func (e *env) newEngine(ctx context.Context) (*engine.Engine, error) {
	api, err := remote.NewAPI(e.cfg.API.APIURL, e.cfg.API.Market)
	if err != nil {
		return nil, fmt.Errorf("api url: %w", err)
	}
	transport := remote.NewHTTPTransport(remote.HTTPOptions{Timeout: e.cfg.NetworkTimeout(), Logger: e.logger})
	eng := engine.New(engine.Options{
		API:           api,
		Transport:     transport,
		Exchanger:     auth.NewExchanger(transport, e.cfg.API.AccountsURL, e.cfg.API.ClientID, e.cfg.API.RedirectURI, e.cfg.API.Scopes),
		Persister:     e.store,
		Logger:        e.logger,
		PollInterval:  e.cfg.PollInterval(),
		Timeout:       e.cfg.NetworkTimeout(),
		TokenCooldown: e.cfg.TokenCooldown(),
		StatusTTL:     e.cfg.StatusTTL(),
		Artwork:       e.cfg.ArtworkEnabled(),
	})
	records, err := e.store.LoadAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	eng.Restore(records)
	return eng, nil
}

func runTUI(params *Params) error {
	e, err := openEnv(params)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := e.newEngine(ctx)
	if err != nil {
		return err
	}

	var renderer *artwork.Renderer
	if e.cfg.ArtworkEnabled() {
		cache, err := artwork.NewCache("", 0)
		if err != nil {
			e.logger.Warn("artwork cache unavailable", slog.Any("err", err))
		}
		renderer = artwork.NewRenderer(cache, e.cfg.UI.ArtworkWidth, e.cfg.UI.ArtworkHeight, e.logger)
	}

	noColor := os.Getenv("NO_COLOR") != "" || e.cfg.UI.NoColor
	model := app.New(app.Options{
		Engine:      eng,
		Theme:       ui.GetTheme(e.cfg.UI.Theme, noColor),
		Artwork:     renderer,
		SeekStep:    time.Duration(e.cfg.UI.SeekStepSeconds) * time.Second,
		VolumeStep:  e.cfg.UI.VolumeStep,
		Maintenance: e.checkFirmware,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(ctx) })
	g.Go(func() error {
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		_, err := p.Run()
		stop()
		if err != nil && ctx.Err() == nil {
			e.logger.Error("run tui", slog.Any("err", err))
			return fmt.Errorf("tui: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// firmwareURL prefers the stored override over the config file.
func (e *env) firmwareURL(ctx context.Context) (string, error) {
	v, err := e.store.Setting(ctx, store.SettingFirmwareURL)
	if err != nil {
		return "", err
	}
	if v != "" {
		return v, nil
	}
	return e.cfg.Firmware.UpdateURL, nil
}

// checkFirmware fetches the update manifest. It runs while syncing is
// suspended, so the network is all ours.
func (e *env) checkFirmware(ctx context.Context) (string, error) {
	u, err := e.firmwareURL(ctx)
	if err != nil {
		return "", err
	}
	if u == "" {
		return "No firmware update server configured", nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("firmware url: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("firmware check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("firmware check: HTTP %d", resp.StatusCode)
	}
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return "", fmt.Errorf("firmware check: %w", err)
	}
	e.logger.Info("firmware manifest fetched", slog.String("url", u), slog.Int64("bytes", n))
	return "Firmware manifest available (" + humanize.Bytes(uint64(n)) + ")", nil
}
