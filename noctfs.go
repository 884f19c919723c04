// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package noctfs implements the filesystem facade: format, mount, and
// root access, orchestrating the chainmap allocator, chain I/O, the
// entity codec, and the directory engine the way lib/btrfs's io4_fs.go
// layers a POSIX-ish filesystem view over the lower btrfs I/O layers.
package noctfs

import (
	"git.lukeshu.com/noctfs/lib/chainio"
	"git.lukeshu.com/noctfs/lib/chainmap"
	"git.lukeshu.com/noctfs/lib/diskio"
	"git.lukeshu.com/noctfs/lib/entity"
	"git.lukeshu.com/noctfs/lib/noctdir"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

// DefaultSectorSize and DefaultBlockSize are the geometry used by
// Format when the caller doesn't override them.
const (
	DefaultSectorSize uint16 = 512
	DefaultBlockSize  uint32 = 8192
)

// bootCodeTemplate is the boot-code blob preserved verbatim around the
// header on every format. NoctFS ships no real bootloader, just a
// 3-byte infinite-loop relative jump (`EB FE 90`) so the sector is at
// least inert if a BIOS ever tries to execute it.
var bootCodeTemplate = func() [bootSectorSize]byte {
	var t [bootSectorSize]byte
	t[0], t[1], t[2] = 0xEB, 0xFE, 0x90
	return t
}()

// Filesystem is a single mounted NoctFS volume: one owned Device
// handle, single-threaded and non-reentrant, with no metadata cache of
// its own. Callers must not share a Filesystem across goroutines
// without external serialization.
type Filesystem struct {
	dev diskio.Device
	sb  Superblock

	chainmap *chainmap.Chainmap
	chainio  *chainio.ChainIO
	dir      *noctdir.Dir
}

// Superblock returns the filesystem's decoded geometry.
func (fs *Filesystem) Superblock() Superblock {
	return fs.sb
}

func newFilesystem(dev diskio.Device, sb Superblock) *Filesystem {
	cm := &chainmap.Chainmap{
		Dev:   dev,
		Base:  sb.ChainmapOffset(),
		Count: sb.BlockMapCount,
	}
	cio := &chainio.ChainIO{
		Dev:       dev,
		Map:       cm,
		DataZone:  sb.DataZoneOffset(),
		BlockSize: sb.BlockSize,
	}
	return &Filesystem{
		dev:      dev,
		sb:       sb,
		chainmap: cm,
		chainio:  cio,
		dir:      &noctdir.Dir{IO: cio},
	}
}

// GetRootEntity returns a synthetic directory entity describing the
// filesystem root: name "/", start_block = first_root_entity, no
// parent directory of its own.
func (fs *Filesystem) GetRootEntity() entity.Entity {
	return entity.Entity{
		Name:       "/",
		Size:       0,
		StartBlock: fs.sb.FirstRootEntity,
		Flags:      entity.FlagDirectory,
	}
}

// ListDirectory lists the entities stored in the directory whose
// chain starts at dirStart.
func (fs *Filesystem) ListDirectory(dirStart noctvol.BlockAddr) ([]entity.Entity, error) {
	return fs.dir.List(dirStart)
}

// CreateDirectory creates a subdirectory named name inside the
// directory at dirStart.
func (fs *Filesystem) CreateDirectory(dirStart noctvol.BlockAddr, name string) (entity.Entity, error) {
	return fs.dir.CreateDirectory(dirStart, name)
}

// CreateFile creates an empty file named name inside the directory at
// dirStart.
func (fs *Filesystem) CreateFile(dirStart noctvol.BlockAddr, name string) (entity.Entity, error) {
	return fs.dir.CreateFile(dirStart, name)
}

// DeleteFile removes a file entity from the directory at dirStart. A
// no-op if e is a directory.
func (fs *Filesystem) DeleteFile(dirStart noctvol.BlockAddr, e entity.Entity) error {
	return fs.dir.DeleteFile(dirStart, e)
}

// FindEntityByStartBlock looks up the entity in dirStart whose chain
// starts at block.
func (fs *Filesystem) FindEntityByStartBlock(dirStart noctvol.BlockAddr, block noctvol.BlockAddr) (entity.Entity, bool, error) {
	e, _, found, err := fs.dir.FindEntityByStartBlock(dirStart, block)
	return e, found, err
}
