// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"

	"github.com/spf13/cobra"
)

func init() {
	cmd := cobra.Command{
		Use:   "cat IMAGE PATH",
		Short: "Print a file's contents",
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

			e, _, err := resolvePath(fs, args[1])
			if err != nil {
				return err
			}

			buf := make([]byte, e.Size)
			if _, err := fs.ReadFile(e, buf, 0); err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(buf)
			return err
		},
	})
}
