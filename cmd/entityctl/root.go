/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suparena/entitymap"
	"github.com/suparena/entitymap/config"
	"github.com/suparena/entitymap/registry"
	"github.com/suparena/entitymap/testmodels"
)

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:   "entityctl",
		Short: "entitymap administration",
		Long: fmt.Sprintf(`entityctl (v%s)

Inspects the resolved entitymap configuration, verifies that the configured
backend can hold the demo model, and runs a demo workload against it.
Settings come from the --config YAML file, a .env file and ENTITYMAP_*
environment variables.`, entitymap.Version),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path of the YAML configuration file")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}
	root.AddCommand(
		newVersionCmd(),
		newConfigCmd(load),
		newVerifyCmd(load),
		newDemoCmd(load),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := entitymap.GetVersionInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entityctl version %s\n", info.Version)
			fmt.Fprintf(out, "Git commit: %s\n", info.GitCommit)
			fmt.Fprintf(out, "Build date: %s\n", info.BuildDate)
			fmt.Fprintf(out, "Go version: %s\n", info.GoVersion)
		},
	}
}

func newConfigCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newVerifyCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the backend can hold every demo type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openDemoStore(cmd.Context(), load)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Setup(cmd.Context()); err != nil {
				return err
			}

			errs := store.VerifySetup(cmd.Context())
			for _, e := range errs {
				fmt.Fprintf(cmd.OutOrStdout(), "FAIL %v\n", e)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d of %d types cannot be stored", len(errs), len(store.Catalog().Types()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK %d types\n", len(store.Catalog().Types()))
			return nil
		},
	}
}

// openDemoStore opens a store over the demo model.
func openDemoStore(ctx context.Context, load func() (*config.Config, error)) (*entitymap.Store, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	reg := registry.New()
	testmodels.Register(reg)
	return entitymap.Open(ctx, cfg, reg)
}
