// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"context"
	_ "embed"
	"io"
	"os"

	"github.com/z5labs/loam"
	"github.com/z5labs/loam/config"
	"github.com/z5labs/loam/example/bookstore/app"

	"github.com/spf13/cobra"
)

//go:embed config.yaml
var configBytes []byte

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:   "bookstore",
		Short: "Serve the bookstore resources",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			embedded := config.ReaderOf[io.Reader](bytes.NewReader(configBytes))
			if configPath == "" {
				loam.Run(cmd.Context(), app.Build(embedded))
				return
			}

			file := config.Map(config.ReadFile(configPath), func(_ context.Context, f *os.File) (io.Reader, error) {
				return f, nil
			})
			loam.Run(cmd.Context(), app.Build(config.Or(file, embedded)))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file, defaults to the embedded config")

	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}
