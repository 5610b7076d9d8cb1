package main

import (
	"github.com/spf13/cobra"

	"termbridge/internal/app"
)

type connectOptions struct {
	configPath string
	renderer   string
	logPath    string
	debug      bool
	fps        int
	scrollback int
	headers    []string
}

func newConnectCmd() *cobra.Command {
	var opts connectOptions
	cmd := &cobra.Command{
		Use:   "connect [endpoint]",
		Short: "Open a terminal session against a remote shell endpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVar(&opts.renderer, "renderer", "auto", "renderer: auto, screen or canvas")
	cmd.Flags().StringVar(&opts.logPath, "log", "", "write JSON logs to this file")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	cmd.Flags().IntVar(&opts.fps, "fps", 0, "maximum frames per second")
	cmd.Flags().IntVar(&opts.scrollback, "scrollback", 0, "scrollback lines kept locally")
	cmd.Flags().StringArrayVar(&opts.headers, "header", nil, `extra dial header "Key: Value" (repeatable)`)
	return cmd
}

// loadConfig layers defaults, the config file, the environment and the
// flags that were set explicitly, in that order.
func loadConfig(cmd *cobra.Command, opts connectOptions, args []string) (app.Config, error) {
	cfg := app.DefaultConfig()
	if opts.configPath != "" {
		if err := cfg.LoadFile(opts.configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if len(args) == 1 {
		cfg.Endpoint = args[0]
	}
	if flags.Changed("renderer") {
		cfg.Render.Mode = opts.renderer
	}
	if flags.Changed("log") {
		cfg.LogPath = opts.logPath
	}
	if flags.Changed("debug") {
		cfg.Debug = opts.debug
	}
	if flags.Changed("fps") {
		cfg.Render.FPS = opts.fps
	}
	if flags.Changed("scrollback") {
		cfg.Screen.Scrollback = opts.scrollback
	}
	for _, h := range opts.headers {
		if err := cfg.AddHeader(h); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}
