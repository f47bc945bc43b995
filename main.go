package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rm-hull/deep-fry-editor/cmd"
	"github.com/rm-hull/deep-fry-editor/internal/config"
	"github.com/rm-hull/deep-fry-editor/internal/diag"
	"github.com/rm-hull/deep-fry-editor/internal/imaging"
	"github.com/rm-hull/deep-fry-editor/internal/imaging/stage"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := diag.ConfigureLogging(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	return cfg
}

func main() {
	var configPath string
	var port int
	var debug bool
	var renderOpts cmd.RenderOptions

	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found")
	}

	rootCmd := &cobra.Command{
		Use:  "deep-fry-editor",
		Long: `Deep-fry photo editor: resample and over-saturate images`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	apiServerCmd := &cobra.Command{
		Use:   "api-server [--config <path>] [--port <port>] [--debug]",
		Short: "Start HTTP API server",
		Run: func(c *cobra.Command, _ []string) {
			cfg := loadConfig(configPath)
			if c.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if c.Flags().Changed("debug") {
				cfg.Server.Debug = debug
			}
			cmd.ApiServer(cfg)
		},
	}

	apiServerCmd.Flags().IntVar(&port, "port", 8080, "Port to run HTTP server on")
	apiServerCmd.Flags().BoolVar(&debug, "debug", false, "Enable debugging (pprof) - WARNING: do not enable in production")

	renderCmd := &cobra.Command{
		Use:   "render --input <file> [--input <file>...] --output <path>",
		Short: "Deep-fry image files from the command line",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := loadConfig(configPath)
			return cmd.Render(cfg, renderOpts)
		},
	}

	renderCmd.Flags().StringArrayVar(&renderOpts.Inputs, "input", nil, "Image file to render (repeatable)")
	renderCmd.Flags().StringVar(&renderOpts.Output, "output", "", "Output file, or directory when several inputs are given")
	renderCmd.Flags().StringVar(&renderOpts.Width, "width", "", "Target width in pixels (default: natural width)")
	renderCmd.Flags().StringVar(&renderOpts.Height, "height", "", "Target height in pixels (default: natural height)")
	renderCmd.Flags().StringVar(&renderOpts.Intensity, "intensity", "", "Deep-fry effect intensity, 0 disables")
	renderCmd.Flags().StringVar(&renderOpts.Format, "format", "", "Output format: png, jpeg or webp (default: from output extension, else png)")
	renderCmd.Flags().Float64Var(&renderOpts.Quality, "quality", imaging.DefaultQuality, "JPEG quality in [0,1]")
	renderCmd.Flags().StringVar(&renderOpts.Filter, "filter", "", fmt.Sprintf("Resample filter, one of %v", stage.Filters()))
	renderCmd.Flags().BoolVar(&renderOpts.RemoveBackground, "remove-background", false, "Strip the background before rendering")
	renderCmd.Flags().IntVar(&renderOpts.Workers, "workers", 1, "Number of files to render concurrently")
	_ = renderCmd.MarkFlagRequired("input")
	_ = renderCmd.MarkFlagRequired("output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(diag.Version())
		},
	}

	rootCmd.AddCommand(apiServerCmd, renderCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
