package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/misu-units/misu/internal/daemon"
)

const startTimeout = 10 * time.Second

var errNotRunning = errors.New("misud is not running")

func newDaemonCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the misud background service",
	}

	var foreground bool
	start := &cobra.Command{
		Use:   "start",
		Short: "Start misud unless it is already running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if foreground {
				return runForeground(ctx, a)
			}
			if pid, ok := daemon.NewPIDFile(a.cfg.PIDPath()).Running(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "misud already running (pid %d)\n", pid)
				return nil
			}
			pid, err := spawnDaemon(a.configPath)
			if err != nil {
				return err
			}

			wctx, cancel := context.WithTimeout(ctx, startTimeout)
			defer cancel()
			if err := daemon.NewSocketConnector(a.cfg.SocketPath, time.Second).WaitReady(wctx, 100*time.Millisecond); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "misud started (pid %d)\n", pid)
			return nil
		},
	}
	start.Flags().BoolVar(&foreground, "foreground", false, "run in this process until interrupted")

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running misud",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pid, ok := daemon.NewPIDFile(a.cfg.PIDPath()).Running()
			if !ok {
				return errNotRunning
			}
			killDaemon(pid)
			fmt.Fprintf(cmd.OutOrStdout(), "misud stopped (pid %d)\n", pid)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Report whether misud is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := daemon.Connect(ctx, a.cfg.SocketPath, a.cfg.RequestTimeout)
			if err != nil {
				return fmt.Errorf("%w: %v", errNotRunning, err)
			}
			defer c.Close()

			h, err := c.Health(ctx)
			if err != nil {
				return err
			}
			text := fmt.Sprintf("misud %s at %s: %d units, %d categories, %d display rules, up %s",
				h.Status, a.cfg.SocketPath, h.Units, h.Categories, h.Rules,
				time.Duration(h.Uptime)*time.Second)
			return a.print(cmd, h, text)
		},
	}

	cmd.AddCommand(start, stop, status)
	return cmd
}

func runForeground(ctx context.Context, a *app) error {
	d, err := daemon.NewDaemon(a.cfg)
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		return err
	}
	d.Wait()
	return nil
}

// spawnDaemon starts misud from the directory holding this executable,
// falling back to $PATH, and detaches it from the terminal.
func spawnDaemon(configPath string) (int, error) {
	path, err := daemonBinary()
	if err != nil {
		return 0, err
	}

	var args []string
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command(path, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, err
	}
	return pid, nil
}

func daemonBinary() (string, error) {
	name := "misud"
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), name+exeSuffix)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("misud binary not found next to misu or in $PATH: %w", err)
	}
	return path, nil
}
