package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientcmd "github.com/Ovyl/zmod/internal/cmd/client"
	serverrun "github.com/Ovyl/zmod/internal/cmd/server"
	cfgpkg "github.com/Ovyl/zmod/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "zmod",
		Short: "zmod log store CLI",
		Long:  "zmod is a single-binary circular log store over a sectored partition. This CLI manages the server and basic operations.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start zmod server (HTTP API)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(cfgPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)

			// Flags override file and environment when set.
			flags := cmd.Flags()
			if v, _ := flags.GetString("partition"); v != "" {
				cfg.Partition = v
			}
			if flags.Changed("sector-size") {
				cfg.SectorSize, _ = flags.GetInt("sector-size")
			}
			if flags.Changed("sectors") {
				cfg.Sectors, _ = flags.GetInt("sectors")
			}
			if flags.Changed("max-sectors") {
				cfg.MaxSectors, _ = flags.GetInt("max-sectors")
			}
			if v, _ := flags.GetString("data-dir"); v != "" {
				cfg.DataDir = v
			}
			if flags.Changed("http") {
				cfg.HTTPAddr, _ = flags.GetString("http")
			}
			if v, _ := flags.GetString("log-level"); v != "" {
				cfg.LogLevel = v
			}
			if v, _ := flags.GetString("floor"); v != "" {
				cfg.LogFloor = v
			}
			if v, _ := flags.GetString("log-format"); v != "" {
				cfg.LogFormat = v
			}
			if flags.Changed("lock-wait-ms") {
				cfg.LockWaitMs, _ = flags.GetInt("lock-wait-ms")
			}
			if flags.Changed("fsync") {
				cfg.Fsync, _ = flags.GetString("fsync")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Path to a JSON config file")
	serverStartCmd.Flags().String("partition", "", "Partition file backing the log store (default <data-dir>/log.partition)")
	serverStartCmd.Flags().Int("sector-size", cfgpkg.Default().SectorSize, "Sector size in bytes")
	serverStartCmd.Flags().Int("sectors", cfgpkg.Default().Sectors, "Number of sectors in the partition")
	serverStartCmd.Flags().Int("max-sectors", cfgpkg.Default().MaxSectors, "Upper bound on sectors the store accepts")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("http", ":8080", "HTTP listen address")
	serverStartCmd.Flags().String("log-level", "", "Default log level: off|err|wrn|inf|dbg")
	serverStartCmd.Flags().String("floor", "", "Lowest level the runtime policy may apply (default err)")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json (default text)")
	serverStartCmd.Flags().Int("lock-wait-ms", 200, "How long appends wait for the store guard, in ms")
	serverStartCmd.Flags().String("fsync", "always", "Settings fsync mode: always|interval|never")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// log store and settings commands (in internal/cmd/client)
	rootCmd.AddCommand(clientcmd.NewLogsCommand(apiURL))
	rootCmd.AddCommand(clientcmd.NewSettingsCommand(apiURL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("ZMOD_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
