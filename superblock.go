// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package noctfs

import (
	"bytes"
	"fmt"

	"git.lukeshu.com/noctfs/lib/binstruct"
	"git.lukeshu.com/noctfs/lib/nocterr"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

// magic is the filesystem_codename that every valid superblock
// carries, the way btrfs superblocks carry "_BHRfS_M".
var magic = [8]byte{'N', 'o', 'c', 't', 'F', 'S', '_', '_'}

// bootSectorSize is the fixed size of the boot sector at LBA 0: a
// 3-byte jump prologue, the packed header, and whatever boot code the
// template carries in the remaining bytes.
const bootSectorSize = 512

// headerOffset is where the packed header begins within the boot
// sector, leaving room for a short jump instruction from embedded
// boot code.
const headerOffset = 3

// superblockHeader is the on-disk geometry header, binstruct-tagged
// the way lib/btrfs's Superblock is: a flat struct whose field offsets
// are checked against a trailing binstruct.End the first time the
// struct is marshaled or unmarshaled.
type superblockHeader struct {
	FilesystemCodename [8]byte           `bin:"off=0x0,  siz=8"`
	SectorSize         uint16            `bin:"off=0x8,  siz=2"`
	BlockSize          uint32            `bin:"off=0xa,  siz=4"`
	BlockMapCount      uint32            `bin:"off=0xe,  siz=4"`
	FirstRootEntity    noctvol.BlockAddr `bin:"off=0x12, siz=8"`
	binstruct.End      `bin:"off=0x1a"`
}

const headerSize = 0x1a // 26 bytes

// Superblock is the in-memory, decoded form of a mounted filesystem's
// geometry.
type Superblock struct {
	SectorSize      uint16
	BlockSize       uint32
	BlockMapCount   uint32
	FirstRootEntity noctvol.BlockAddr
}

// ChainmapOffset is the device byte offset where the chainmap begins:
// immediately after the boot sector, which is exactly sectorSize bytes
// (the default boot sector is padded out to one sector).
func (sb Superblock) ChainmapOffset() int64 {
	return int64(sb.SectorSize)
}

// DataZoneOffset is the device byte offset where block 0 begins.
func (sb Superblock) DataZoneOffset() int64 {
	return sb.ChainmapOffset() + int64(sb.BlockMapCount)*8
}

// formatSuperblock computes a fresh Superblock for a device of the
// given size at the given geometry.
func formatSuperblock(deviceSize int64, sectorSize uint16, blockSize uint32) Superblock {
	return Superblock{
		SectorSize:      sectorSize,
		BlockSize:       blockSize,
		BlockMapCount:   uint32(deviceSize / int64(blockSize)),
		FirstRootEntity: 1,
	}
}

// encodeBootSector produces a full 512-byte boot sector image:
// template's boot code verbatim, with the header spliced in at
// headerOffset.
func encodeBootSector(sb Superblock, template [bootSectorSize]byte) ([bootSectorSize]byte, error) {
	header := superblockHeader{
		FilesystemCodename: magic,
		SectorSize:         sb.SectorSize,
		BlockSize:          sb.BlockSize,
		BlockMapCount:      sb.BlockMapCount,
		FirstRootEntity:    sb.FirstRootEntity,
	}
	dat, err := binstruct.MarshalWithoutInterface(header)
	if err != nil {
		return template, nocterr.New(nocterr.IO, "noctfs.encodeBootSector", err)
	}
	if len(dat) != headerSize {
		return template, nocterr.New(nocterr.IO, "noctfs.encodeBootSector", fmt.Errorf("encoded header is %d bytes, expected %d", len(dat), headerSize))
	}
	out := template
	copy(out[headerOffset:headerOffset+headerSize], dat)
	return out, nil
}

// decodeBootSector reads the header out of a 512-byte boot sector,
// rejecting anything whose filesystem_codename doesn't match.
func decodeBootSector(raw [bootSectorSize]byte) (Superblock, error) {
	var header superblockHeader
	if _, err := binstruct.UnmarshalWithoutInterface(raw[headerOffset:headerOffset+headerSize], &header); err != nil {
		return Superblock{}, nocterr.New(nocterr.IO, "noctfs.decodeBootSector", err)
	}
	if !bytes.Equal(header.FilesystemCodename[:], magic[:]) {
		return Superblock{}, nocterr.New(nocterr.BadSignature, "noctfs.decodeBootSector", nil)
	}
	return Superblock{
		SectorSize:      header.SectorSize,
		BlockSize:       header.BlockSize,
		BlockMapCount:   header.BlockMapCount,
		FirstRootEntity: header.FirstRootEntity,
	}, nil
}
