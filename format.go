// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package noctfs

import (
	"git.lukeshu.com/noctfs/lib/diskio"
	"git.lukeshu.com/noctfs/lib/nocterr"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

// FormatOptions overrides the default geometry passed to Format.
// Zero values fall back to DefaultSectorSize / DefaultBlockSize.
type FormatOptions struct {
	SectorSize uint16
	BlockSize  uint32
}

// Format lays down a fresh NoctFS volume on dev: seeks to the end to
// learn the device size, writes a superblock and mounts it, zeroes
// the chainmap, reserves block 0, allocates the root directory at
// block 1, and seeds its "." and ".." records, returning the mounted
// Filesystem. A block size other than 512, 1024, 2048, 4096, 8192 or
// 16384 fails with InvalidArgument.
func Format(dev diskio.Device, opts FormatOptions) (*Filesystem, error) {
	sectorSize := opts.SectorSize
	if sectorSize == 0 {
		sectorSize = DefaultSectorSize
	}
	blockSize := opts.BlockSize
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	switch blockSize {
	case 512, 1024, 2048, 4096, 8192, 16384:
	default:
		return nil, nocterr.New(nocterr.InvalidArgument, "noctfs.Format", nil)
	}

	deviceSize, err := dev.Seek(0, diskio.SeekEnd)
	if err != nil {
		return nil, nocterr.New(nocterr.IO, "noctfs.Format", err)
	}

	sb := formatSuperblock(deviceSize, sectorSize, blockSize)

	bootSector, err := encodeBootSector(sb, bootCodeTemplate)
	if err != nil {
		return nil, err
	}
	if _, err := dev.Seek(0, diskio.SeekStart); err != nil {
		return nil, nocterr.New(nocterr.IO, "noctfs.Format", err)
	}
	if _, err := dev.Write(bootSector[:]); err != nil {
		return nil, nocterr.New(nocterr.IO, "noctfs.Format", err)
	}

	fs, err := Mount(dev)
	if err != nil {
		return nil, err
	}

	zero := make([]byte, 8)
	for i := uint32(0); i < sb.BlockMapCount; i++ {
		if _, err := dev.Seek(sb.ChainmapOffset()+int64(i)*8, diskio.SeekStart); err != nil {
			return nil, nocterr.New(nocterr.IO, "noctfs.Format", err)
		}
		if _, err := dev.Write(zero); err != nil {
			return nil, nocterr.New(nocterr.IO, "noctfs.Format", err)
		}
	}
	if err := fs.chainmap.SetNext(0, noctvol.End); err != nil {
		return nil, err
	}

	root, ok, err := fs.chainmap.Allocate(1)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nocterr.New(nocterr.OutOfSpace, "noctfs.Format", nil)
	}
	if root != 1 {
		return nil, nocterr.New(nocterr.IO, "noctfs.Format", nil)
	}

	if err := fs.dir.SeedSelfEntries(root, root); err != nil {
		return nil, err
	}

	if err := dev.Flush(); err != nil {
		return nil, nocterr.New(nocterr.IO, "noctfs.Format", err)
	}

	return fs, nil
}
