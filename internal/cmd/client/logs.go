// Package client contains Cobra CLI commands for zmod.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/DataDog/zstd"
	"github.com/spf13/cobra"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// NewLogsCommand constructs the `logs` command group and subcommands.
func NewLogsCommand(baseURL BaseURLFunc) *cobra.Command {
	logsCmd := &cobra.Command{Use: "logs", Short: "Log store operations"}

	logsCmd.AddCommand(
		newLogsStatusCommand(baseURL),
		newLogsClearCommand(baseURL),
		newLogsExportCommand(baseURL),
		newLogsLevelsCommand(baseURL),
		newLogsSetLevelCommand(baseURL),
	)

	return logsCmd
}

// newLogsStatusCommand constructs the `logs status` subcommand.
func newLogsStatusCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store status and sink counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return getJSON(cmd, baseURL()+"/v1/logs/status")
		},
	}
}

// newLogsClearCommand constructs the `logs clear` subcommand.
func newLogsClearCommand(baseURL BaseURLFunc) *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Erase every stored record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			confirm, _ := cmd.Flags().GetBool("confirm")
			if !confirm {
				return fmt.Errorf("use --confirm to erase every stored record")
			}
			return postStatus(cmd, baseURL()+"/v1/logs/clear")
		},
	}
	clearCmd.Flags().Bool("confirm", false, "Confirm the destructive clear")
	return clearCmd
}

// newLogsExportCommand constructs the `logs export` subcommand.
func newLogsExportCommand(baseURL BaseURLFunc) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Stream every stored record to stdout or a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("output")
			useZstd, _ := cmd.Flags().GetBool("zstd")

			url := baseURL() + "/v1/logs/export"
			if useZstd {
				url += "?compress=zstd"
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode >= 300 {
				return httpError(resp)
			}
			if sid := resp.Header.Get("X-Export-Session"); sid != "" {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "session:", sid)
			}

			var body io.Reader = resp.Body
			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				// A file keeps whatever encoding was requested.
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				w = f
			} else if useZstd {
				// Terminals get the decompressed text.
				zr := zstd.NewReader(resp.Body)
				defer func() { _ = zr.Close() }()
				body = zr
			}
			_, err = io.Copy(w, body)
			return err
		},
	}
	exportCmd.Flags().StringP("output", "o", "", "Write the export to a file instead of stdout")
	exportCmd.Flags().Bool("zstd", false, "Request a zstd-compressed stream")
	return exportCmd
}

// newLogsLevelsCommand constructs the `logs levels` subcommand.
func newLogsLevelsCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "List severity names and per-source levels",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return getJSON(cmd, baseURL()+"/v1/logs/levels")
		},
	}
}

// newLogsSetLevelCommand constructs the `logs set-level` subcommand.
func newLogsSetLevelCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "set-level <level>",
		Short: "Change the runtime log level on every source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _ := json.Marshal(map[string]string{"level": args[0]})
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPut, baseURL()+"/v1/logs/level", bytes.NewReader(b))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode >= 300 {
				return httpError(resp)
			}
			var out struct {
				Level string `json:"level"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return err
			}
			// The server reports the effective level after floor clamping.
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "level:", out.Level)
			return nil
		},
	}
}
