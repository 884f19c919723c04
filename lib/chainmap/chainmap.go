// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package chainmap implements the chainmap allocator: the flat array
// of 64-bit block-successor entries that doubles as NoctFS's free map.
// Each entry is read and written directly on the device as it is
// touched — there is no in-memory mirror — the way a FAT-style
// allocator gets crash-atomicity for free at the granularity of a
// single link update.
package chainmap

import (
	"encoding/binary"

	"git.lukeshu.com/noctfs/lib/diskio"
	"git.lukeshu.com/noctfs/lib/nocterr"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

const entrySize = 8

// Chainmap is a view over the block-successor array stored on a
// Device starting at Base, with Count entries.
type Chainmap struct {
	Dev   diskio.Device
	Base  int64
	Count uint32
}

func entryOffset(base int64, b noctvol.BlockAddr) int64 {
	return base + int64(b)*entrySize
}

// GetNext returns the stored successor of b, or InvalidArgument if b
// is out of range.
func (m *Chainmap) GetNext(b noctvol.BlockAddr) (noctvol.BlockAddr, error) {
	if uint64(b) >= uint64(m.Count) {
		return 0, nocterr.New(nocterr.InvalidArgument, "chainmap.GetNext", nil)
	}
	if _, err := m.Dev.Seek(entryOffset(m.Base, b), diskio.SeekStart); err != nil {
		return 0, nocterr.New(nocterr.IO, "chainmap.GetNext", err)
	}
	var buf [entrySize]byte
	if _, err := m.Dev.Read(buf[:]); err != nil {
		return 0, nocterr.New(nocterr.IO, "chainmap.GetNext", err)
	}
	return noctvol.BlockAddr(binary.LittleEndian.Uint64(buf[:])), nil
}

// SetNext writes the successor of b as v. Out-of-range b is a silent
// no-op.
func (m *Chainmap) SetNext(b, v noctvol.BlockAddr) error {
	if uint64(b) >= uint64(m.Count) {
		return nil
	}
	if _, err := m.Dev.Seek(entryOffset(m.Base, b), diskio.SeekStart); err != nil {
		return nocterr.New(nocterr.IO, "chainmap.SetNext", err)
	}
	var buf [entrySize]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	if _, err := m.Dev.Write(buf[:]); err != nil {
		return nocterr.New(nocterr.IO, "chainmap.SetNext", err)
	}
	return nil
}

// FindFree does a deterministic linear first-fit scan from index 0
// and returns the lowest-indexed free block. There is no persistent
// scan cursor.
func (m *Chainmap) FindFree() (noctvol.BlockAddr, bool, error) {
	for i := uint32(0); i < m.Count; i++ {
		next, err := m.GetNext(noctvol.BlockAddr(i))
		if err != nil {
			return 0, false, err
		}
		if next == noctvol.Free {
			return noctvol.BlockAddr(i), true, nil
		}
	}
	return 0, false, nil
}

// Allocate claims a fresh chain of exactly count blocks and returns
// its head, or OutOfSpace if fewer than count blocks are free.
// count == 0 returns (0, false, nil).
func (m *Chainmap) Allocate(count int) (noctvol.BlockAddr, bool, error) {
	if count <= 0 {
		return 0, false, nil
	}
	head, ok, err := m.FindFree()
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nocterr.New(nocterr.OutOfSpace, "chainmap.Allocate", nil)
	}
	if err := m.SetNext(head, noctvol.End); err != nil {
		return 0, false, err
	}
	tail := head
	for i := 1; i < count; i++ {
		next, ok, err := m.FindFree()
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return 0, false, nocterr.New(nocterr.OutOfSpace, "chainmap.Allocate", nil)
		}
		if err := m.SetNext(tail, next); err != nil {
			return 0, false, err
		}
		if err := m.SetNext(next, noctvol.End); err != nil {
			return 0, false, err
		}
		tail = next
	}
	return head, true, nil
}

// AllocateBytes allocates ceil(n / blockSize) blocks.
func (m *Chainmap) AllocateBytes(n uint64, blockSize uint32) (noctvol.BlockAddr, bool, error) {
	count := (n + uint64(blockSize) - 1) / uint64(blockSize)
	return m.Allocate(int(count))
}

// Chain walks start's successor chain, collecting visited block
// indices until the next lookup is out of range (which includes the
// End sentinel, since it exceeds Count). End itself is never
// returned; the sequence contains only real block indices, including
// the last one.
func (m *Chainmap) Chain(start noctvol.BlockAddr) ([]noctvol.BlockAddr, error) {
	var ret []noctvol.BlockAddr
	cur := start
	for {
		next, err := m.GetNext(cur)
		if err != nil {
			return ret, nil
		}
		ret = append(ret, cur)
		cur = next
	}
}

// Free walks the chain from start, writing 0 at each block, stopping
// after the block whose successor was End. start == 0 is a no-op.
func (m *Chainmap) Free(start noctvol.BlockAddr) error {
	if start == noctvol.Free {
		return nil
	}
	blocks, err := m.Chain(start)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if err := m.SetNext(b, noctvol.Free); err != nil {
			return err
		}
	}
	return nil
}

// Extend allocates a fresh k-block chain and links it after the last
// block of start's existing chain.
func (m *Chainmap) Extend(start noctvol.BlockAddr, k int) error {
	if k <= 0 {
		return nil
	}
	blocks, err := m.Chain(start)
	if err != nil {
		return err
	}
	head, ok, err := m.Allocate(k)
	if err != nil {
		return err
	}
	if !ok {
		return nocterr.New(nocterr.OutOfSpace, "chainmap.Extend", nil)
	}
	last := blocks[len(blocks)-1]
	return m.SetNext(last, head)
}

// Shrink removes the last k blocks of start's chain, zeroing them and
// setting the new last block's successor to End. Requests with k == 0
// or k > the chain's current length are ignored. k equal to the full
// chain length frees the whole chain.
func (m *Chainmap) Shrink(start noctvol.BlockAddr, k int) error {
	if k <= 0 {
		return nil
	}
	blocks, err := m.Chain(start)
	if err != nil {
		return err
	}
	if k > len(blocks) {
		return nil
	}
	if k == len(blocks) {
		return m.Free(start)
	}
	keep := blocks[:len(blocks)-k]
	drop := blocks[len(blocks)-k:]
	if err := m.SetNext(keep[len(keep)-1], noctvol.End); err != nil {
		return err
	}
	for _, b := range drop {
		if err := m.SetNext(b, noctvol.Free); err != nil {
			return err
		}
	}
	return nil
}

// Resize extends or shrinks start's chain to exactly target blocks.
func (m *Chainmap) Resize(start noctvol.BlockAddr, target int) error {
	blocks, err := m.Chain(start)
	if err != nil {
		return err
	}
	cur := len(blocks)
	switch {
	case target > cur:
		return m.Extend(start, target-cur)
	case target < cur:
		return m.Shrink(start, cur-target)
	default:
		return nil
	}
}

// Len reports the length of start's chain.
func (m *Chainmap) Len(start noctvol.BlockAddr) (int, error) {
	blocks, err := m.Chain(start)
	if err != nil {
		return 0, err
	}
	return len(blocks), nil
}
