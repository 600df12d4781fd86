package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/codelanx/plugintemplate/internal/chat"
	"github.com/codelanx/plugintemplate/internal/config"
	"github.com/codelanx/plugintemplate/internal/journal"
	"github.com/codelanx/plugintemplate/internal/plugin"
	"github.com/codelanx/plugintemplate/internal/server"
	"github.com/codelanx/plugintemplate/internal/update"
)

var (
	version    = "1.4.2"
	cfgFile    string
	dataDir    string
	pluginFile string
	color      bool
	force      bool
)

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:          "plugintemplate",
	Short:        "PluginTemplate standalone host",
	Long:         `PluginTemplate - a plugin template with update checking, commands and listeners, runnable from a terminal`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load and enable the plugin and read commands from stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), cmd.InOrStdin())
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the update check once and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the configuration summary and any staged update",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage config.yml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the lifecycle journal",
}

var journalVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the journal hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		return verifyJournal()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("PluginTemplate v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <data>/config.yml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", filepath.Join("plugins", "PluginTemplate"), "plugin data folder")
	rootCmd.PersistentFlags().StringVar(&pluginFile, "plugin-file", "PluginTemplate.jar", "file name downloaded releases are staged under")
	runCmd.Flags().BoolVar(&color, "color", true, "print chat colours as ANSI escapes")
	configInitCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	journalCmd.AddCommand(journalVerifyCmd)
	rootCmd.AddCommand(runCmd, checkCmd, statusCmd, configCmd, journalCmd, versionCmd)
}

func main() {
	plugin.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.Path(dataDir)
}

func newHost() *server.Server {
	return server.New(server.Options{
		DataDir:    dataDir,
		PluginFile: pluginFile,
		Color:      color,
	})
}

func shutdown(srv *server.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	srv.Shutdown(ctx)
}

func runServer(parent context.Context, in io.Reader) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := newHost()
	defer shutdown(srv)

	p := plugin.New(srv, nil).WithConfigPath(configPath())
	if err := p.Load(); err != nil {
		return fmt.Errorf("load plugin: %w", err)
	}
	if err := p.Enable(ctx); err != nil {
		return fmt.Errorf("enable plugin: %w", err)
	}

	fmt.Printf("%s enabled. Commands: %v. Type \"stop\" to exit.\n", p.Descriptor().FullName(), srv.Labels())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		err := server.NewConsole(srv).WithReader(in).Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	// A signal, "stop" or a console failure all end here.
	g.Go(func() error {
		<-gctx.Done()
		fmt.Println("Shutting down...")
		if err := p.Disable(); err != nil {
			return fmt.Errorf("disable plugin: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func runCheck(ctx context.Context) error {
	srv := newHost()
	defer shutdown(srv)

	p := plugin.New(srv, nil).WithConfigPath(configPath())
	if err := p.Load(); err != nil {
		return fmt.Errorf("load plugin: %w", err)
	}

	res, err := p.CheckNow(ctx)
	if err != nil {
		return err
	}
	fmt.Println(chat.Strip(res.Message()))
	if res.Failed() {
		return fmt.Errorf("update check failed: %s", res)
	}
	return nil
}

func showStatus() error {
	path := configPath()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("Status: not configured (%s missing, run 'plugintemplate config init')\n", path)
		return nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	res := cfg.ValidateTiered()

	choice := update.ChoiceFor(cfg.Update.Check, cfg.Update.Download)
	fmt.Printf("Config:         %s\n", path)
	fmt.Printf("Update choice:  %s\n", choice)
	fmt.Printf("Project ID:     %d\n", cfg.Update.ProjectID)
	fmt.Printf("Version source: %s\n", cfg.Update.VersionSource)
	fmt.Printf("Metrics:        %s\n", metricsState(cfg.Metrics))
	fmt.Printf("Debug level:    %d\n", cfg.DebugLevel)
	for _, e := range res.Fatals {
		fmt.Printf("Error:          %v\n", e)
	}
	for _, e := range res.Warnings {
		fmt.Printf("Warning:        %v\n", e)
	}

	staged := filepath.Join(dataDir, server.UpdateFolderName, pluginFile)
	if info, err := os.Stat(staged); err == nil {
		fmt.Printf("Staged update:  %s (%d bytes, %s)\n", staged, info.Size(), info.ModTime().Format(time.RFC3339))
	} else {
		fmt.Println("Staged update:  none")
	}
	return nil
}

func metricsState(m config.MetricsConfig) string {
	if m.OptOut {
		return "opted out"
	}
	if m.GUID == "" {
		return "enabled (guid assigned on first run)"
	}
	return "enabled, guid " + m.GUID
}

func initConfig() error {
	path := configPath()
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := config.SaveTo(config.Default(), path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}

func verifyJournal() error {
	path := filepath.Join(dataDir, journal.FileName)
	if err := journal.Verify(path); err != nil {
		return fmt.Errorf("journal %s: %w", path, err)
	}
	entries, err := journal.Read(path)
	if err != nil {
		return err
	}
	fmt.Printf("Journal %s: %d entries, chain intact\n", path, len(entries))
	return nil
}
