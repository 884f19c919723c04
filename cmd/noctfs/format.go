// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"

	"github.com/datawire/dlib/dlog"
	"github.com/spf13/cobra"

	"git.lukeshu.com/noctfs"
)

func init() {
	var sectorSize uint16
	var blockSize uint32

	cmd := cobra.Command{
		Use:   "format IMAGE",
		Short: "Format a new NoctFS filesystem image",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().Uint16Var(&sectorSize, "sector-size", noctfs.DefaultSectorSize, "device sector size")
	cmd.Flags().Uint32Var(&blockSize, "block-size", noctfs.DefaultBlockSize, "filesystem block size")

	subcommands = append(subcommands, subcommand{
		Command: cmd,
		RunE: func(ctx context.Context, cmd *cobra.Command, args []string) error {
			dev, closeFn, err := openDevice(args[0], os.O_RDWR)
			if err != nil {
				return err
			}
			defer closeFn()

			dlog.Infof(ctx, "formatting %s (sector_size=%d block_size=%d)", args[0], sectorSize, blockSize)
			_, err = noctfs.Format(dev, noctfs.FormatOptions{SectorSize: sectorSize, BlockSize: blockSize})
			return err
		},
	})
}
