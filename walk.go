// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package noctfs

import (
	"context"
	"time"

	"github.com/datawire/dlib/dlog"

	"git.lukeshu.com/noctfs/lib/entity"
	"git.lukeshu.com/noctfs/lib/nocterr"
	"git.lukeshu.com/noctfs/lib/noctvol"
	"git.lukeshu.com/noctfs/lib/textui"
)

// WalkFunc is called once per entity visited by Walk, including the
// two synthetic self-records of every directory. Returning a non-nil
// error aborts the walk and is returned from Walk unchanged.
type WalkFunc func(path string, parent noctvol.BlockAddr, e entity.Entity) error

// Walk recursively visits every entity reachable from the root,
// depth-first, the way a recursive `tree`/`fsck` pass walks a
// filesystem. It does not follow "." or ".." back up or down; each
// directory's own self-records are reported but not recursed into.
func (fs *Filesystem) Walk(fn WalkFunc) error {
	root := fs.GetRootEntity()
	return fs.walk("/", root.StartBlock, root, fn)
}

func (fs *Filesystem) walk(path string, parent noctvol.BlockAddr, e entity.Entity, fn WalkFunc) error {
	if err := fn(path, parent, e); err != nil {
		return err
	}
	if !e.IsDirectory() {
		return nil
	}
	entries, err := fs.ListDirectory(e.StartBlock)
	if err != nil {
		return err
	}
	for _, child := range entries {
		childPath := path
		if childPath != "/" {
			childPath += "/"
		}
		childPath += child.Name
		if child.Name == "." || child.Name == ".." {
			if err := fn(childPath, e.StartBlock, child); err != nil {
				return err
			}
			continue
		}
		if err := fs.walk(childPath, e.StartBlock, child, fn); err != nil {
			return err
		}
	}
	return nil
}

// FsckReport collects the Corrupt-kind problems Fsck found.
type FsckReport struct {
	Problems []string
}

// Fsck walks the whole tree from the root, recording (rather than
// failing on) any Corrupt directory stream it encounters, so one bad
// directory doesn't abort a scan of the rest of the tree.
func (fs *Filesystem) Fsck() (FsckReport, error) {
	var report FsckReport
	root := fs.GetRootEntity()
	if err := fs.fsck(&report, "/", root); err != nil {
		return report, err
	}
	return report, nil
}

func (fs *Filesystem) fsck(report *FsckReport, path string, e entity.Entity) error {
	if !e.IsDirectory() {
		return nil
	}
	entries, err := fs.ListDirectory(e.StartBlock)
	if err != nil {
		if nocterr.Is(err, nocterr.Corrupt) {
			report.Problems = append(report.Problems, path+": "+err.Error())
			return nil
		}
		return err
	}
	for _, child := range entries {
		if child.Name == "." || child.Name == ".." {
			continue
		}
		childPath := path
		if childPath != "/" {
			childPath += "/"
		}
		childPath += child.Name
		if err := fs.fsck(report, childPath, child); err != nil {
			return err
		}
	}
	return nil
}

// scanProgress is the periodic status line ScanBlocks reports through
// a textui.Progress, alongside live memory use the way a
// multi-gigabyte tree rebuild would want to keep an eye on its own
// footprint during a long pass.
type scanProgress struct {
	textui.Portion[int]
	Mem *textui.LiveMemUse
}

func (s scanProgress) String() string {
	return textui.Sprintf("%v (mem: %v)", s.Portion, s.Mem)
}

// ScanReport collects what a whole-block-map ScanBlocks pass found:
// every block the chainmap marks allocated, which of those are
// actually reachable by walking the directory tree, and which blocks
// turned up in more than one entity's chain.
type ScanReport struct {
	TotalBlocks int
	Allocated   int
	Leaked      []noctvol.BlockAddr
	CrossLinked []noctvol.BlockAddr
}

// ScanBlocks walks every block in the chainmap, not just the
// directory tree, cross-referencing the two: a "fsck --scan" pass, as
// opposed to Fsck's tree-only walk. It reports progress periodically
// via ctx's logger, the way the teacher's multi-pass tree rebuilds
// report their own progress during a long scan.
func (fs *Filesystem) ScanBlocks(ctx context.Context) (ScanReport, error) {
	mem := &textui.LiveMemUse{}
	total := int(fs.sb.BlockMapCount)
	progress := textui.NewProgress[scanProgress](ctx, dlog.LogLevelInfo, textui.Tunable(1*time.Second))
	defer progress.Done()

	refcount := make(map[noctvol.BlockAddr]int)
	walkErr := fs.Walk(func(_ string, _ noctvol.BlockAddr, e entity.Entity) error {
		if e.Name == "." || e.Name == ".." || !e.StartBlock.IsReal() {
			return nil
		}
		blocks, err := fs.chainmap.Chain(e.StartBlock)
		if err != nil {
			return err
		}
		for _, b := range blocks {
			refcount[b]++
		}
		return nil
	})
	if walkErr != nil {
		return ScanReport{}, walkErr
	}

	var report ScanReport
	report.TotalBlocks = total
	var stats scanProgress
	stats.D = total
	stats.Mem = mem
	for i := 0; i < total; i++ {
		b := noctvol.BlockAddr(i)
		next, err := fs.chainmap.GetNext(b)
		if err != nil {
			return report, err
		}
		if next != noctvol.Free {
			report.Allocated++
			if refcount[b] == 0 && b.IsReal() {
				report.Leaked = append(report.Leaked, b)
			}
		}
		if refcount[b] > 1 {
			report.CrossLinked = append(report.CrossLinked, b)
		}
		stats.N++
		progress.Set(stats)
	}
	return report, nil
}
