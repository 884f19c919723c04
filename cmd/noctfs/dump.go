// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"context"
	"io"

	"git.lukeshu.com/go/lowmemjson"
	"github.com/spf13/cobra"

	"git.lukeshu.com/noctfs/lib/entity"
	"git.lukeshu.com/noctfs/lib/jsonutil"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

// dumpSuperblock is the JSON-facing view of a mounted volume's
// geometry.
type dumpSuperblock struct {
	SectorSize      uint16
	BlockSize       uint32
	BlockMapCount   uint32
	FirstRootEntity uint64
}

// dumpEntity is the JSON-facing view of one directory record: the
// decoded fields for readability, plus the raw encoded record as a hex
// string for anyone cross-checking against the on-disk bytes.
type dumpEntity struct {
	Path       string
	StartBlock uint64
	Parent     uint64
	Directory  bool
	Raw        jsonutil.Binary[entity.Entity]
}

func writeJSONFile(w io.Writer, obj any, cfg lowmemjson.ReEncoder) (err error) {
	buffer := bufio.NewWriter(w)
	defer func() {
		if _err := buffer.Flush(); err == nil && _err != nil {
			err = _err
		}
	}()
	cfg.Out = buffer
	return lowmemjson.Encode(&cfg, obj)
}

func init() {
	cmd := cobra.Command{
		Use:   "dump IMAGE",
		Short: "Dump the superblock and every directory record as JSON",
		Args:  cobra.ExactArgs(1),
	}

	subcommands = append(subcommands, subcommand{
		Command: cmd,
		RunE: func(ctx context.Context, cmd *cobra.Command, args []string) error {
			fs, closeFn, err := mountDevice(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			sb := fs.Superblock()
			out := struct {
				Superblock dumpSuperblock
				Entities   []dumpEntity
			}{
				Superblock: dumpSuperblock{
					SectorSize:      sb.SectorSize,
					BlockSize:       sb.BlockSize,
					BlockMapCount:   sb.BlockMapCount,
					FirstRootEntity: uint64(sb.FirstRootEntity),
				},
			}

			walkErr := fs.Walk(func(path string, parent noctvol.BlockAddr, e entity.Entity) error {
				out.Entities = append(out.Entities, dumpEntity{
					Path:       path,
					StartBlock: uint64(e.StartBlock),
					Parent:     uint64(parent),
					Directory:  e.IsDirectory(),
					Raw:        jsonutil.Binary[entity.Entity]{Val: e},
				})
				return nil
			})
			if walkErr != nil {
				return walkErr
			}

			return writeJSONFile(cmd.OutOrStdout(), out, lowmemjson.ReEncoderConfig{
				Indent:                "\t",
				ForceTrailingNewlines: true,
			})
		},
	})
}
