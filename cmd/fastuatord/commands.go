package main

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/fastuator/internal/config"
	"github.com/jonwraymond/fastuator/internal/server"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "fastuatord",
		Short:         "Health and metrics endpoints for a service's dependencies",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default ./fastuator.yaml or /etc/fastuator/fastuator.yaml)")

	load := func() (*config.Config, error) {
		return config.Load(cfgFile)
	}

	root.AddCommand(newServeCmd(load))
	root.AddCommand(newConfigCmd(load))
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		addr   string
		router string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the actuator endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("router") {
				cfg.Server.Router = router
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			srv, err := server.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Close(closeCtx)
			}()
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	cmd.Flags().StringVar(&router, "router", "", "router: std, gin or mux (overrides server.router)")
	return cmd
}

func newConfigCmd(load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML, secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	})
	return cmd
}

const masked = "****"

func printConfig(w io.Writer, cfg *config.Config) error {
	out := *cfg
	out.Auth.APIKeys = make([]config.APIKey, len(cfg.Auth.APIKeys))
	for i, k := range cfg.Auth.APIKeys {
		out.Auth.APIKeys[i] = config.APIKey{Key: masked, Principal: k.Principal}
	}
	for _, s := range []*string{
		&out.Auth.JWT.Secret,
		&out.Dependencies.Redis.Password,
		&out.Dependencies.Postgres.DSN,
		&out.Dependencies.Elasticsearch.APIKey,
	} {
		if *s != "" {
			*s = masked
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	version, commit := "unknown", ""
	if bi, ok := debug.ReadBuildInfo(); ok {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			version = v
		}
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				commit = s.Value
			}
		}
	}

	fmt.Fprintf(w, "fastuatord %s\n", version)
	if commit != "" {
		fmt.Fprintf(w, "commit: %s\n", commit)
	}
	fmt.Fprintf(w, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
