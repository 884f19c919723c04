// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"git.lukeshu.com/noctfs/lib/textui"
)

func init() {
	var scan bool

	cmd := cobra.Command{
		Use:   "fsck IMAGE",
		Short: "Walk the filesystem tree and report corrupt directory streams",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().BoolVar(&scan, "scan", false, "also walk every block in the chainmap, not just the directory tree, reporting progress")

	subcommands = append(subcommands, subcommand{
		Command: cmd,
		RunE: func(ctx context.Context, cmd *cobra.Command, args []string) error {
			fs, closeFn, err := mountDevice(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := fs.Fsck()
			if err != nil {
				return err
			}
			for _, problem := range report.Problems {
				fmt.Fprintln(cmd.OutOrStdout(), problem)
			}

			problems := len(report.Problems)
			if scan {
				scanReport, err := fs.ScanBlocks(ctx)
				if err != nil {
					return err
				}
				textui.Fprintf(cmd.OutOrStdout(), "scanned %v/%v blocks allocated\n", scanReport.Allocated, scanReport.TotalBlocks)
				for _, b := range scanReport.Leaked {
					fmt.Fprintf(cmd.OutOrStdout(), "leaked block: %v\n", b)
				}
				for _, b := range scanReport.CrossLinked {
					fmt.Fprintf(cmd.OutOrStdout(), "cross-linked block: %v\n", b)
				}
				problems += len(scanReport.Leaked) + len(scanReport.CrossLinked)
			}

			if problems > 0 {
				return fmt.Errorf("fsck: found %d problem(s)", problems)
			}
			return nil
		},
	})
}
