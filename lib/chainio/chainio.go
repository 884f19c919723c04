// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package chainio translates a (start_block, user_offset, buffer)
// triple into scattered reads and writes against the data zone of a
// NoctFS device, the way lib/btrfs/btrfsvol translates a logical
// address into a physical one before ever touching a device — except
// here the translation walks a chainmap-encoded chain instead of a
// chunk tree.
package chainio

import (
	"git.lukeshu.com/noctfs/lib/chainmap"
	"git.lukeshu.com/noctfs/lib/diskio"
	"git.lukeshu.com/noctfs/lib/nocterr"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

// ChainIO reads and writes byte ranges over chains tracked by a
// Chainmap, all backed by the same Device.
type ChainIO struct {
	Dev       diskio.Device
	Map       *chainmap.Chainmap
	DataZone  int64
	BlockSize uint32
}

func (c *ChainIO) blockOffset(b noctvol.BlockAddr) int64 {
	return c.DataZone + int64(b)*int64(c.BlockSize)
}

// tail walks the chain from start, returning only the blocks at or
// past position skip (skip counted in whole blocks).
func (c *ChainIO) tail(start noctvol.BlockAddr, skip int) ([]noctvol.BlockAddr, error) {
	blocks, err := c.Map.Chain(start)
	if err != nil {
		return nil, err
	}
	if skip > len(blocks) {
		return nil, nil
	}
	return blocks[skip:], nil
}

// Read fills buf from start's chain beginning at userOffset. A
// request range that runs past the end of the chain is silently
// truncated; Read reports how many bytes it actually copied.
func (c *ChainIO) Read(start noctvol.BlockAddr, buf []byte, userOffset uint64) (int, error) {
	skip := int(userOffset / uint64(c.BlockSize))
	intra := int(userOffset % uint64(c.BlockSize))

	blocks, err := c.tail(start, skip)
	if err != nil {
		return 0, err
	}

	var n int
	for i, b := range blocks {
		if n >= len(buf) {
			break
		}
		off := c.blockOffset(b)
		length := int(c.BlockSize)
		if i == 0 {
			off += int64(intra)
			length -= intra
		}
		remaining := len(buf) - n
		if length > remaining {
			length = remaining
		}
		if length <= 0 {
			continue
		}
		if _, err := c.Dev.Seek(off, diskio.SeekStart); err != nil {
			return n, nocterr.New(nocterr.IO, "chainio.Read", err)
		}
		m, err := c.Dev.Read(buf[n : n+length])
		n += m
		if err != nil {
			return n, nocterr.New(nocterr.IO, "chainio.Read", err)
		}
	}
	return n, nil
}

// Write writes buf into start's chain beginning at userOffset. A
// request range that runs past the end of the chain is silently
// truncated, the same as Read; callers that need the chain to grow
// must Resize it first.
func (c *ChainIO) Write(start noctvol.BlockAddr, buf []byte, userOffset uint64) (int, error) {
	skip := int(userOffset / uint64(c.BlockSize))
	intra := int(userOffset % uint64(c.BlockSize))

	blocks, err := c.tail(start, skip)
	if err != nil {
		return 0, err
	}

	var n int
	for i, b := range blocks {
		if n >= len(buf) {
			break
		}
		off := c.blockOffset(b)
		length := int(c.BlockSize)
		if i == 0 {
			off += int64(intra)
			length -= intra
		}
		remaining := len(buf) - n
		if length > remaining {
			length = remaining
		}
		if length <= 0 {
			continue
		}
		if _, err := c.Dev.Seek(off, diskio.SeekStart); err != nil {
			return n, nocterr.New(nocterr.IO, "chainio.Write", err)
		}
		m, err := c.Dev.Write(buf[n : n+length])
		n += m
		if err != nil {
			return n, nocterr.New(nocterr.IO, "chainio.Write", err)
		}
	}
	return n, nil
}

// ReadFull reads the entirety of start's chain into a freshly
// allocated slice, the way the directory engine needs the whole byte
// stream in memory to scan records.
func (c *ChainIO) ReadFull(start noctvol.BlockAddr) ([]byte, error) {
	n, err := c.Map.Len(start)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n*int(c.BlockSize))
	if _, err := c.Read(start, buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteFull writes buf back over the entirety of start's chain. The
// caller is responsible for having already resized the chain to fit
// len(buf).
func (c *ChainIO) WriteFull(start noctvol.BlockAddr, buf []byte) error {
	_, err := c.Write(start, buf, 0)
	return err
}

// Resize grows or shrinks start's chain to hold exactly size bytes,
// rounding up to a whole number of blocks. A chain is never shrunk
// below one block: a size of 0 keeps a single block.
func (c *ChainIO) Resize(start noctvol.BlockAddr, size uint64) error {
	target := int((size + uint64(c.BlockSize) - 1) / uint64(c.BlockSize))
	if target == 0 {
		target = 1
	}
	return c.Map.Resize(start, target)
}
