package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinytelemetry/vigil/internal/session"
	"github.com/tinytelemetry/vigil/internal/socketrpc"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the running service's frame log to frame-logs-<date>.csv",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(func(c *socketrpc.Client) error {
			csv, err := c.ExportCSV()
			if err != nil {
				return err
			}
			path := filepath.Join(exportDir, session.ExportFileName(time.Now()))
			if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		})
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <stream-id>",
	Short: "Flip one stream between active and stopped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *socketrpc.Client) error {
			if err := c.Toggle(args[0]); err != nil {
				return err
			}
			return printStreams(cmd, c)
		})
	},
}

var startAllCmd = &cobra.Command{
	Use:   "start-all",
	Short: "Activate every stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return setAll(cmd, true)
	},
}

var stopAllCmd = &cobra.Command{
	Use:   "stop-all",
	Short: "Deactivate every stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return setAll(cmd, false)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "dir", "d", ".", "directory to write the CSV into")
	rootCmd.AddCommand(exportCmd, toggleCmd, startAllCmd, stopAllCmd)
}

func setAll(cmd *cobra.Command, active bool) error {
	return withClient(func(c *socketrpc.Client) error {
		if err := c.SetAll(active); err != nil {
			return err
		}
		return printStreams(cmd, c)
	})
}

func printStreams(cmd *cobra.Command, c *socketrpc.Client) error {
	streams, err := c.Streams()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, s := range streams {
		if !s.Active {
			fmt.Fprintf(out, "%-24s %s\n", s.ID, "stopped")
			continue
		}
		fmt.Fprintf(out, "%-24s %-8s %3d fps %3d ms %6d frames\n", s.ID, "active",
			s.Metrics.FrameRate, s.Metrics.InferenceTimeMs, s.Metrics.ProcessedFrames)
	}
	return nil
}

// withClient dials the running service and closes the connection after fn.
func withClient(fn func(*socketrpc.Client) error) error {
	path := socketPath
	if path == "" {
		cfg, err := loadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		path = cfg.SocketPath
	}
	client, err := socketrpc.Dial(path)
	if err != nil {
		return fmt.Errorf("cannot connect to vigil at %s: %w\nIs the service running? Start it with: vigil serve", path, err)
	}
	defer client.Close()
	return fn(client)
}
