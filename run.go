package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"
	"golang.org/x/sync/errgroup"

	"go-perform/api"
	"go-perform/config"
	"go-perform/debug"
	"go-perform/midi"
	"go-perform/protocol"
	"go-perform/sequencer"
	"go-perform/theme"
	"go-perform/tui"
)

var (
	portName  string
	apiAddr   string
	logLevel  string
	lookAhead int
	monitor   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the player and listen for instructions",
	RunE:  runPerform,
}

func init() {
	runCmd.Flags().StringVarP(&portName, "port", "p", "", "MIDI output port (substring match; empty = dry run)")
	runCmd.Flags().StringVarP(&apiAddr, "addr", "a", "", "Listen address for instructions")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	runCmd.Flags().IntVar(&lookAhead, "look-ahead", 0, "Scheduling margin in ms")
	runCmd.Flags().BoolVarP(&monitor, "monitor", "m", false, "Show the terminal monitor (logs go to the debug log)")
}

// loadRunConfig loads the config file and applies the flags that were set
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Output.Port = portName
	}
	if flags.Changed("addr") {
		cfg.API.Addr = apiAddr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("look-ahead") {
		cfg.Scheduler.LookAheadMs = lookAhead
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runPerform(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	// the monitor owns the terminal, so logs go to a file
	if monitor {
		if err := debug.Enable(cfg.Log.File); err != nil {
			return fmt.Errorf("debug log: %w", err)
		}
		defer debug.Disable()
	}
	if err := debug.SetLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := debug.New("go-perform")

	var send func(gomidi.Message) error
	if cfg.Output.Port != "" {
		s, port, err := midi.OpenOutput(cfg.Output.Port, cfg.PortScanTimeout())
		if err != nil {
			return err
		}
		defer midi.CloseDriver()
		logger.Info("output", "port", port.String())
		send = s
	} else {
		logger.Warn("no output port configured, dry run")
	}

	transport := midi.NewTransport(send, debug.New("transport"))
	player := sequencer.NewPlayer(transport, protocol.Parser{}, sequencer.Options{
		LookAhead: cfg.LookAhead(),
		QueueSize: cfg.Scheduler.QueueSize,
		Logger:    debug.New("player"),
	})
	server := api.NewServer(player, debug.New("api"))

	var th *theme.Theme
	if monitor {
		var palette *theme.Palette
		if cfg.UI.Palette != "" {
			if palette, err = theme.LoadGPL(cfg.UI.Palette); err != nil {
				return err
			}
		}
		th = theme.New(palette)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		transport.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return player.Run(ctx)
	})
	g.Go(func() error {
		return server.ListenAndServe(ctx, cfg.API.Addr)
	})

	if monitor {
		m := tui.NewModel(player, th, cfg.API.Addr)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
		g.Go(func() error {
			defer stop()
			_, err := p.Run()
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	} else {
		fmt.Printf("go-perform listening on %s (ctrl+c to quit)\n", cfg.API.Addr)
	}

	err = g.Wait()
	transport.Stop()
	logger.Info("shutdown")
	return err
}
