// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"git.lukeshu.com/noctfs/lib/entity"
	"git.lukeshu.com/noctfs/lib/noctvol"
	"git.lukeshu.com/noctfs/lib/textui"
)

func init() {
	var recursive bool

	cmd := cobra.Command{
		Use:   "ls IMAGE [PATH]",
		Short: "List a directory's entries",
		Args:  cobra.RangeArgs(1, 2),
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "R", false, "recurse into subdirectories, tree-style")

	subcommands = append(subcommands, subcommand{
		Command: cmd,
		RunE: func(ctx context.Context, cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) > 1 {
				path = args[1]
			}

			fs, closeFn, err := mountDevice(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			dir, _, err := resolvePath(fs, path)
			if err != nil {
				return err
			}

			if recursive {
				prefix := "/" + strings.Trim(path, "/")
				return fs.Walk(func(walkPath string, parent noctvol.BlockAddr, e entity.Entity) error {
					if e.Name == "." || e.Name == ".." {
						return nil
					}
					if prefix != "/" && walkPath != prefix && !strings.HasPrefix(walkPath, prefix+"/") {
						return nil
					}
					textui.Fprintf(cmd.OutOrStdout(), "%s\n", walkPath)
					return nil
				})
			}

			entries, err := fs.ListDirectory(dir.StartBlock)
			if err != nil {
				return err
			}
			for _, e := range entries {
				kind := "FILE"
				if e.IsDirectory() {
					kind = "DIR "
				}
				textui.Fprintf(cmd.OutOrStdout(), "%s %8v  %s\n", kind, textui.IEC(e.Size, "B"), e.Name)
			}
			return nil
		},
	})
}
