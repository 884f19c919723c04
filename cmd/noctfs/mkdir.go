// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"path"

	"github.com/spf13/cobra"
)

func init() {
	cmd := cobra.Command{
		Use:   "mkdir IMAGE PATH",
		Short: "Create a new subdirectory",
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

			parent, _, err := resolvePath(fs, path.Dir(args[1]))
			if err != nil {
				return err
			}
			_, err = fs.CreateDirectory(parent.StartBlock, path.Base(args[1]))
			return err
		},
	})
}
