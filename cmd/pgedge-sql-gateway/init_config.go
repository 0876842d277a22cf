/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pgedge-sql-gateway/internal/config"
)

func initConfigCmd() *cobra.Command {
	var output, dsn string
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a configuration file populated with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if output == "" {
				execPath, err := executablePath()
				if err != nil {
					return err
				}
				output = config.GetDefaultConfigPath(execPath)
			}
			return initConfig(cmd.OutOrStdout(), output, dsn, force)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the file (default: next to the binary)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string to record")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

// initConfig writes the default configuration to path
func initConfig(w io.Writer, path, dsn string, force bool) error {
	if config.ConfigFileExists(path) && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	cfg := config.Default()
	cfg.Database.DSN = dsn
	if err := config.SaveConfig(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "Configuration written to %s\n", path)
	if dsn != "" && config.MaskDSN(dsn) != dsn {
		fmt.Fprintln(w, "The DSN password was masked; supply it with PGEDGE_GATEWAY_DSN or a .env file.")
	}
	return nil
}
