// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := cobra.Command{
		Use:   "rm IMAGE PATH",
		Short: "Remove a file (directories cannot be removed)",
		Args:  cobra.ExactArgs(2),
	}

	subcommands = append(subcommands, subcommand{
		Command: cmd,
		RunE: func(ctx context.Context, cmd *cobra.Command, args []string) error {
			fs, closeFn, err := mountDevice(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			e, parentStart, err := resolvePath(fs, args[1])
			if err != nil {
				return err
			}
			if e.IsDirectory() {
				return fmt.Errorf("%s: is a directory", args[1])
			}
			return fs.DeleteFile(parentStart, e)
		},
	})
}
