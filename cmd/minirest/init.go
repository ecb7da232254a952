package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vango-dev/minirest/internal/config"
	clierrors "github.com/vango-dev/minirest/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a " + config.ConfigFileName + " with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(path); err == nil && !force {
				return clierrors.Newf(clierrors.CategoryCLI, "%s already exists", path).
					WithSuggestion("Use --force to overwrite it")
			}
			if err := config.New().SaveTo(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "output", "o", config.ConfigFileName, "file to write")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
