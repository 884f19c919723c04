// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"sync/atomic"
	"syscall"
	"time"

	"git.lukeshu.com/go/typedsync"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"git.lukeshu.com/noctfs"
	"git.lukeshu.com/noctfs/lib/entity"
	"git.lukeshu.com/noctfs/lib/linux"
	"git.lukeshu.com/noctfs/lib/nocterr"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

// inodeEntry is what noctFS remembers about an inode between FUSE
// calls: the entity as last observed, and the directory it lives in
// (NoctFS has no inode table of its own; every entity's only record of
// its own existence is the directory record naming it, so the mount
// layer has to keep this association alive itself).
type inodeEntry struct {
	Entity entity.Entity
	Parent noctvol.BlockAddr
}

// noctFS is the FUSE-facing view of a mounted *noctfs.Filesystem. A
// NoctFS entity's start_block is already a stable, dense, per-volume
// identifier, and the root directory is always allocated at block 1
// (Format asserts this), which happens to coincide with
// fuseops.RootInodeID, so start_block doubles as the FUSE inode
// number with no translation table needed.
type noctFS struct {
	fuseutil.NotImplementedFileSystem

	FS         *noctfs.Filesystem
	DeviceName string
	Mountpoint string

	lastHandle  uint64
	inodes      typedsync.Map[noctvol.BlockAddr, inodeEntry]
	dirHandles  typedsync.Map[fuseops.HandleID, []entity.Entity]
	fileHandles typedsync.Map[fuseops.HandleID, noctvol.BlockAddr]
}

func (nfs *noctFS) Run(ctx context.Context) error {
	cfg := &fuse.MountConfig{
		FSName:  nfs.DeviceName,
		Subtype: "noctfs",

		Options: map[string]string{
			"allow_other": "",
		},
	}
	return fuseMount(ctx, nfs.Mountpoint, fuseutil.NewFileSystemServer(nfs), cfg)
}

func (nfs *noctFS) newHandle() fuseops.HandleID {
	return fuseops.HandleID(atomic.AddUint64(&nfs.lastHandle, 1))
}

func (nfs *noctFS) remember(parent noctvol.BlockAddr, e entity.Entity) {
	nfs.inodes.Store(e.StartBlock, inodeEntry{Entity: e, Parent: parent})
}

func (nfs *noctFS) lookupInode(inode fuseops.InodeID) (inodeEntry, error) {
	if inode == fuseops.RootInodeID {
		root := nfs.FS.GetRootEntity()
		return inodeEntry{Entity: root, Parent: root.StartBlock}, nil
	}
	entry, ok := nfs.inodes.Load(noctvol.BlockAddr(inode))
	if !ok {
		return inodeEntry{}, syscall.ESTALE
	}
	return entry, nil
}

// attrsFor synthesizes fuseops.InodeAttributes for e. NoctFS carries
// no permission bits or timestamps on disk, so the mount layer fakes a
// constant, read-write mode and a zero time for every entity.
func attrsFor(e entity.Entity) fuseops.InodeAttributes {
	mode := linux.ModeFmtRegular | 0o644
	nlink := uint32(1)
	if e.IsDirectory() {
		mode = linux.ModeFmtDir | 0o755
		nlink = 2
	}
	return fuseops.InodeAttributes{
		Size:  e.Size,
		Nlink: nlink,
		Mode:  uint32(mode),
		Atime: time.Time{},
		Mtime: time.Time{},
		Ctime: time.Time{},
	}
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case nocterr.Is(err, nocterr.NotFound):
		return syscall.ENOENT
	case nocterr.Is(err, nocterr.OutOfSpace):
		return syscall.ENOSPC
	case nocterr.Is(err, nocterr.InvalidArgument):
		return syscall.EINVAL
	case nocterr.Is(err, nocterr.Corrupt):
		return syscall.EIO
	case nocterr.Is(err, nocterr.IO):
		return syscall.EIO
	default:
		return err
	}
}

func (nfs *noctFS) StatFS(_ context.Context, op *fuseops.StatFSOp) error {
	sb := nfs.FS.Superblock()
	op.BlockSize = sb.BlockSize
	op.IoSize = sb.BlockSize
	op.Blocks = uint64(sb.BlockMapCount)
	op.Inodes = 0
	op.InodesFree = 0
	return nil
}

func (nfs *noctFS) LookUpInode(_ context.Context, op *fuseops.LookUpInodeOp) error {
	parent, err := nfs.lookupInode(op.Parent)
	if err != nil {
		return err
	}
	entries, err := nfs.FS.ListDirectory(parent.Entity.StartBlock)
	if err != nil {
		return translateErr(err)
	}
	for _, child := range entries {
		if child.Name != op.Name {
			continue
		}
		nfs.remember(parent.Entity.StartBlock, child)
		op.Entry = fuseops.ChildInodeEntry{
			Child:      fuseops.InodeID(child.StartBlock),
			Attributes: attrsFor(child),
		}
		return nil
	}
	return syscall.ENOENT
}

func (nfs *noctFS) GetInodeAttributes(_ context.Context, op *fuseops.GetInodeAttributesOp) error {
	entry, err := nfs.lookupInode(op.Inode)
	if err != nil {
		return err
	}
	op.Attributes = attrsFor(entry.Entity)
	return nil
}

// SetInodeAttributes only honors Size, the one attribute NoctFS can
// actually persist; a truncating or extending write of zero bytes at
// the target offset drives the same chain-resize path a real write
// would.
func (nfs *noctFS) SetInodeAttributes(_ context.Context, op *fuseops.SetInodeAttributesOp) error {
	entry, err := nfs.lookupInode(op.Inode)
	if err != nil {
		return err
	}
	op.Attributes = attrsFor(entry.Entity)
	if op.Size == nil {
		return nil
	}
	updated, werr := nfs.FS.WriteFile(entry.Parent, entry.Entity, nil, *op.Size)
	if werr != nil {
		return translateErr(werr)
	}
	nfs.remember(entry.Parent, updated)
	op.Attributes = attrsFor(updated)
	return nil
}

func (nfs *noctFS) OpenDir(_ context.Context, op *fuseops.OpenDirOp) error {
	entry, err := nfs.lookupInode(op.Inode)
	if err != nil {
		return err
	}
	entries, err := nfs.FS.ListDirectory(entry.Entity.StartBlock)
	if err != nil {
		return translateErr(err)
	}
	handle := nfs.newHandle()
	nfs.dirHandles.Store(handle, entries)
	op.Handle = handle
	return nil
}

func (nfs *noctFS) ReadDir(_ context.Context, op *fuseops.ReadDirOp) error {
	entries, ok := nfs.dirHandles.Load(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	for i := int(op.Offset); i < len(entries); i++ {
		child := entries[i]
		typ := fuseutil.DT_File
		if child.IsDirectory() {
			typ = fuseutil.DT_Directory
		}
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  fuseops.InodeID(child.StartBlock),
			Name:   child.Name,
			Type:   typ,
		})
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (nfs *noctFS) ReleaseDirHandle(_ context.Context, op *fuseops.ReleaseDirHandleOp) error {
	_, ok := nfs.dirHandles.LoadAndDelete(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	return nil
}

func (nfs *noctFS) MkDir(_ context.Context, op *fuseops.MkDirOp) error {
	parent, err := nfs.lookupInode(op.Parent)
	if err != nil {
		return err
	}
	child, err := nfs.FS.CreateDirectory(parent.Entity.StartBlock, op.Name)
	if err != nil {
		return translateErr(err)
	}
	nfs.remember(parent.Entity.StartBlock, child)
	op.Entry = fuseops.ChildInodeEntry{
		Child:      fuseops.InodeID(child.StartBlock),
		Attributes: attrsFor(child),
	}
	return nil
}

func (nfs *noctFS) CreateFile(_ context.Context, op *fuseops.CreateFileOp) error {
	parent, err := nfs.lookupInode(op.Parent)
	if err != nil {
		return err
	}
	child, err := nfs.FS.CreateFile(parent.Entity.StartBlock, op.Name)
	if err != nil {
		return translateErr(err)
	}
	nfs.remember(parent.Entity.StartBlock, child)
	op.Entry = fuseops.ChildInodeEntry{
		Child:      fuseops.InodeID(child.StartBlock),
		Attributes: attrsFor(child),
	}
	return nil
}

func (nfs *noctFS) Unlink(_ context.Context, op *fuseops.UnlinkOp) error {
	parent, err := nfs.lookupInode(op.Parent)
	if err != nil {
		return err
	}
	entries, err := nfs.FS.ListDirectory(parent.Entity.StartBlock)
	if err != nil {
		return translateErr(err)
	}
	for _, child := range entries {
		if child.Name != op.Name {
			continue
		}
		if child.IsDirectory() {
			return syscall.EISDIR
		}
		if err := nfs.FS.DeleteFile(parent.Entity.StartBlock, child); err != nil {
			return translateErr(err)
		}
		return nil
	}
	return syscall.ENOENT
}

// RmDir is unimplemented: directory removal has no algorithm in
// NoctFS, the same way delete_file is documented as a no-op on
// directories.
func (nfs *noctFS) RmDir(_ context.Context, _ *fuseops.RmDirOp) error {
	return syscall.ENOSYS
}

// Rename is unimplemented: NoctFS has no move/rename operation.
func (nfs *noctFS) Rename(_ context.Context, _ *fuseops.RenameOp) error {
	return syscall.ENOSYS
}

func (nfs *noctFS) OpenFile(_ context.Context, op *fuseops.OpenFileOp) error {
	entry, err := nfs.lookupInode(op.Inode)
	if err != nil {
		return err
	}
	handle := nfs.newHandle()
	nfs.fileHandles.Store(handle, entry.Entity.StartBlock)
	op.Handle = handle
	op.KeepPageCache = false
	return nil
}

func (nfs *noctFS) ReadFile(_ context.Context, op *fuseops.ReadFileOp) error {
	block, ok := nfs.fileHandles.Load(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	inode, err := nfs.lookupInode(fuseops.InodeID(block))
	if err != nil {
		return err
	}

	n, rerr := nfs.FS.ReadFile(inode.Entity, op.Dst, uint64(op.Offset))
	op.BytesRead = n
	if rerr != nil {
		return translateErr(rerr)
	}
	return nil
}

func (nfs *noctFS) WriteFile(_ context.Context, op *fuseops.WriteFileOp) error {
	block, ok := nfs.fileHandles.Load(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	inode, err := nfs.lookupInode(fuseops.InodeID(block))
	if err != nil {
		return err
	}
	updated, werr := nfs.FS.WriteFile(inode.Parent, inode.Entity, op.Data, uint64(op.Offset))
	if werr != nil {
		return translateErr(werr)
	}
	nfs.remember(inode.Parent, updated)
	return nil
}

func (nfs *noctFS) ReleaseFileHandle(_ context.Context, op *fuseops.ReleaseFileHandleOp) error {
	_, ok := nfs.fileHandles.LoadAndDelete(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	return nil
}

func (*noctFS) Destroy() {}
