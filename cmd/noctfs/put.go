// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"
	"path"

	"github.com/spf13/cobra"
)

func init() {
	cmd := cobra.Command{
		Use:   "put IMAGE LOCAL-FILE PATH",
		Short: "Copy a local file into the filesystem",
		Args:  cobra.ExactArgs(3),
	}

	subcommands = append(subcommands, subcommand{
		Command: cmd,
		RunE: func(ctx context.Context, cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			fs, closeFn, err := mountDevice(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			parent, _, err := resolvePath(fs, path.Dir(args[2]))
			if err != nil {
				return err
			}
			e, err := fs.CreateFile(parent.StartBlock, path.Base(args[2]))
			if err != nil {
				return err
			}
			_, err = fs.WriteFile(parent.StartBlock, e, data, 0)
			return err
		},
	})
}
