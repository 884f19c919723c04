// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package noctdir implements the directory engine: creation, lookup,
// listing, and removal of entities inside a directory's byte stream,
// the way lib/btrfs/btrfstree walks a btrfs tree node's item array —
// except here the "node" is a flat, variably-sized record stream
// rather than a B-tree leaf.
package noctdir

import (
	"bytes"

	"git.lukeshu.com/noctfs/lib/chainio"
	"git.lukeshu.com/noctfs/lib/entity"
	"git.lukeshu.com/noctfs/lib/nocterr"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

// Dir operates on directories backed by a ChainIO.
type Dir struct {
	IO *chainio.ChainIO
}

// List reads dirStart's full byte stream and decodes every record up
// to the first header_size==0 slot.
func (d *Dir) List(dirStart noctvol.BlockAddr) ([]entity.Entity, error) {
	buf, err := d.IO.ReadFull(dirStart)
	if err != nil {
		return nil, err
	}
	var ret []entity.Entity
	idx := 0
	for idx+4 <= len(buf) {
		headerSize := peekHeaderSize(buf, idx)
		if headerSize == 0 {
			break
		}
		e, n, err := entity.Decode(buf[idx:])
		if err != nil {
			return nil, err
		}
		ret = append(ret, e)
		idx += n
	}
	return ret, nil
}

func peekHeaderSize(buf []byte, idx int) uint32 {
	return uint32(buf[idx]) | uint32(buf[idx+1])<<8 | uint32(buf[idx+2])<<16 | uint32(buf[idx+3])<<24
}

// FindFreeSlot walks dirStart's byte stream looking for the first
// header_size==0 slot big enough to hold e. If the directory's
// current byte stream runs out before such a slot is found, it grows
// the chain by one block and keeps looking.
func (d *Dir) FindFreeSlot(dirStart noctvol.BlockAddr, e entity.Entity) (int, error) {
	needed := e.TotalSize()
	for {
		buf, err := d.IO.ReadFull(dirStart)
		if err != nil {
			return 0, err
		}
		offset, short := scanForFreeSlot(buf, needed)
		if !short {
			return offset, nil
		}
		if err := d.IO.Map.Extend(dirStart, 1); err != nil {
			return 0, err
		}
	}
}

// scanForFreeSlot walks buf's records, returning the offset of the
// first slot with at least needed bytes of remaining room. short is
// true when the scan ran off the end of buf without finding one,
// meaning the directory's chain needs to grow by a block before
// trying again; this check runs after every skipped record, not just
// at the final header_size==0 slot, so a slot partway through the
// stream that's too small still triggers a grow.
func scanForFreeSlot(buf []byte, needed int) (offset int, short bool) {
	idx := 0
	for idx+4 <= len(buf) {
		headerSize := peekHeaderSize(buf, idx)
		if headerSize == 0 {
			break
		}
		idx += int(headerSize) + 4
		if len(buf)-idx < needed {
			return 0, true
		}
	}
	if len(buf)-idx < needed {
		return 0, true
	}
	return idx, false
}

// FindEntityByRawEquality walks dirStart's records comparing each
// one's exact serialized bytes against e's serialized form. It is
// provided for completeness; internally every lookup in this package
// uses FindEntityByStartBlock instead, because a raw-bytes comparison
// stops matching as soon as a field (such as size) is updated in
// place.
func (d *Dir) FindEntityByRawEquality(dirStart noctvol.BlockAddr, e entity.Entity) (int, bool, error) {
	want, err := entity.Encode(e)
	if err != nil {
		return 0, false, err
	}
	buf, err := d.IO.ReadFull(dirStart)
	if err != nil {
		return 0, false, err
	}
	idx := 0
	for idx+4 <= len(buf) {
		headerSize := peekHeaderSize(buf, idx)
		if headerSize == 0 {
			break
		}
		recLen := int(headerSize) + 4
		if bytes.Equal(buf[idx:idx+recLen], want) {
			return idx, true, nil
		}
		idx += recLen
	}
	return 0, false, nil
}

// FindEntityByStartBlock walks dirStart's records looking for the one
// whose start_block equals block.
func (d *Dir) FindEntityByStartBlock(dirStart noctvol.BlockAddr, block noctvol.BlockAddr) (entity.Entity, int, bool, error) {
	buf, err := d.IO.ReadFull(dirStart)
	if err != nil {
		return entity.Entity{}, 0, false, err
	}
	idx := 0
	for idx+4 <= len(buf) {
		headerSize := peekHeaderSize(buf, idx)
		if headerSize == 0 {
			break
		}
		e, n, err := entity.Decode(buf[idx:])
		if err != nil {
			return entity.Entity{}, 0, false, err
		}
		if e.StartBlock == block {
			return e, idx, true, nil
		}
		idx += n
	}
	return entity.Entity{}, 0, false, nil
}

// WriteEntity locates a free slot (growing the chain if needed) and
// writes e's record there.
func (d *Dir) WriteEntity(dirStart noctvol.BlockAddr, e entity.Entity) error {
	offset, err := d.FindFreeSlot(dirStart, e)
	if err != nil {
		return err
	}
	buf, err := d.IO.ReadFull(dirStart)
	if err != nil {
		return err
	}
	rec, err := entity.Encode(e)
	if err != nil {
		return err
	}
	copy(buf[offset:offset+len(rec)], rec)
	return d.IO.WriteFull(dirStart, buf)
}

// OverwriteEntityHeader rewrites old's record bytes in place with
// new's encoding. new.TotalSize() must equal old.TotalSize(); callers
// use this only to bump a size field, never to rename or resize
// vendor data: a name or vendor_data_size change requires
// delete-then-reinsert to keep header_size consistent.
func (d *Dir) OverwriteEntityHeader(dirStart noctvol.BlockAddr, old, newE entity.Entity) error {
	if old.TotalSize() != newE.TotalSize() {
		return nocterr.New(nocterr.InvalidArgument, "noctdir.OverwriteEntityHeader", nil)
	}
	_, offset, found, err := d.FindEntityByStartBlock(dirStart, old.StartBlock)
	if err != nil {
		return err
	}
	if !found {
		return nocterr.New(nocterr.NotFound, "noctdir.OverwriteEntityHeader", nil)
	}
	buf, err := d.IO.ReadFull(dirStart)
	if err != nil {
		return err
	}
	rec, err := entity.Encode(newE)
	if err != nil {
		return err
	}
	copy(buf[offset:offset+len(rec)], rec)
	return d.IO.WriteFull(dirStart, buf)
}

// CreateFile allocates one block for a new empty file and writes its
// record into dirStart.
func (d *Dir) CreateFile(dirStart noctvol.BlockAddr, name string) (entity.Entity, error) {
	head, ok, err := d.IO.Map.Allocate(1)
	if err != nil {
		return entity.Entity{}, err
	}
	if !ok {
		return entity.Entity{}, nocterr.New(nocterr.OutOfSpace, "noctdir.CreateFile", nil)
	}
	e := entity.Entity{Name: name, Size: 0, StartBlock: head}
	if err := d.WriteEntity(dirStart, e); err != nil {
		return entity.Entity{}, err
	}
	return e, nil
}

// CreateDirectory allocates one block for a new subdirectory, writes
// its record into dirStart, then seeds the child's own block with the
// synthetic "." and ".." records.
func (d *Dir) CreateDirectory(dirStart noctvol.BlockAddr, name string) (entity.Entity, error) {
	head, ok, err := d.IO.Map.Allocate(1)
	if err != nil {
		return entity.Entity{}, err
	}
	if !ok {
		return entity.Entity{}, nocterr.New(nocterr.OutOfSpace, "noctdir.CreateDirectory", nil)
	}
	e := entity.Entity{Name: name, Size: 0, StartBlock: head, Flags: entity.FlagDirectory}
	if err := d.WriteEntity(dirStart, e); err != nil {
		return entity.Entity{}, err
	}
	if err := d.SeedSelfEntries(head, dirStart); err != nil {
		return entity.Entity{}, err
	}
	return e, nil
}

// SeedSelfEntries writes the synthetic "." (self) and ".." (parent)
// records into a freshly allocated directory block. For the root
// directory, parent == self.
func (d *Dir) SeedSelfEntries(self, parent noctvol.BlockAddr) error {
	dot := entity.Entity{Name: ".", StartBlock: self, Flags: entity.FlagDirectory}
	dotdot := entity.Entity{Name: "..", StartBlock: parent, Flags: entity.FlagDirectory}
	if err := d.WriteEntity(self, dot); err != nil {
		return err
	}
	return d.WriteEntity(self, dotdot)
}

// DeleteFile removes e's record from dirStart and frees its data
// chain. It is a no-op if e is a directory (directory deletion is out
// of scope).
func (d *Dir) DeleteFile(dirStart noctvol.BlockAddr, e entity.Entity) error {
	if e.IsDirectory() {
		return nil
	}
	_, offset, found, err := d.FindEntityByStartBlock(dirStart, e.StartBlock)
	if err != nil {
		return err
	}
	if !found {
		return nocterr.New(nocterr.NotFound, "noctdir.DeleteFile", nil)
	}
	buf, err := d.IO.ReadFull(dirStart)
	if err != nil {
		return err
	}
	recLen := e.TotalSize()
	copy(buf[offset:], buf[offset+recLen:])
	for i := len(buf) - recLen; i < len(buf); i++ {
		buf[i] = 0
	}
	if err := d.IO.WriteFull(dirStart, buf); err != nil {
		return err
	}
	return d.IO.Map.Free(e.StartBlock)
}
