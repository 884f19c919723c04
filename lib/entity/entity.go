// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package entity implements the serialization of directory records,
// the way lib/btrfs/btrfsitem.DirEntry implements serialization of a
// btrfs DIR_ITEM: a fixed-layout header via binstruct struct tags,
// followed by a variable-length name the codec splices on by hand.
package entity

import (
	"fmt"
	"unicode/utf8"

	"git.lukeshu.com/noctfs/lib/binstruct"
	"git.lukeshu.com/noctfs/lib/binstruct/binutil"
	"git.lukeshu.com/noctfs/lib/nocterr"
	"git.lukeshu.com/noctfs/lib/noctvol"
)

// Flags holds the single-bit flag field of an Entity record.
type Flags uint32

const (
	// FlagDirectory marks the entity as a directory rather than a
	// plain file.
	FlagDirectory Flags = 1 << 0

	knownFlags = FlagDirectory
)

// fixedHeader is the binstruct-tagged portion of an Entity record
// that follows name_length and the name bytes: everything but the
// variable-length name and vendor_data.
type fixedHeader struct {
	Size            uint64        `bin:"off=0x0,  siz=8"`
	StartBlock      noctvol.BlockAddr `bin:"off=0x8,  siz=8"`
	Flags           Flags         `bin:"off=0x10, siz=4"`
	VendorDataSize  uint32        `bin:"off=0x14, siz=4"`
	binstruct.End   `bin:"off=0x18"`
}

const fixedHeaderLen = 0x18

// Entity is an in-memory directory record: a file or subdirectory,
// named, sized, and pointing at its own chain.
type Entity struct {
	Name       string
	Size       uint64
	StartBlock noctvol.BlockAddr
	Flags      Flags
	VendorData []byte
}

// IsDirectory reports whether the entity is a directory.
func (e Entity) IsDirectory() bool {
	return e.Flags&FlagDirectory != 0
}

// TotalSize is the number of bytes the record occupies on the wire,
// including its own 4-byte header_size field.
func (e Entity) TotalSize() int {
	return 4 + HeaderSize(e)
}

// HeaderSize computes the header_size field: the byte length of
// everything in the record after header_size itself.
func HeaderSize(e Entity) int {
	return 4 + len(e.Name) + fixedHeaderLen + len(e.VendorData)
}

// Encode serializes e as a directory record: header_size, name_len,
// name, size, start_block, flags, vendor_data_size, vendor_data.
func Encode(e Entity) ([]byte, error) {
	headerSize := HeaderSize(e)

	fixed, err := binstruct.MarshalWithoutInterface(fixedHeader{
		Size:           e.Size,
		StartBlock:     e.StartBlock,
		Flags:          e.Flags,
		VendorDataSize: uint32(len(e.VendorData)),
	})
	if err != nil {
		return nil, nocterr.New(nocterr.IO, "entity.Encode", err)
	}

	buf := make([]byte, 0, 4+headerSize)
	buf = appendU32(buf, uint32(headerSize))
	buf = appendU32(buf, uint32(len(e.Name)))
	buf = append(buf, e.Name...)
	buf = append(buf, fixed...)
	buf = append(buf, e.VendorData...)
	return buf, nil
}

// Decode parses a single record starting at dat[0], returning the
// entity and the number of bytes consumed (header_size + 4). A
// header_size of 0 means "end of records"; callers check for that
// before calling Decode.
func Decode(dat []byte) (Entity, int, error) {
	if err := binutil.NeedNBytes(dat, 8); err != nil {
		return Entity{}, 0, nocterr.New(nocterr.Corrupt, "entity.Decode", err)
	}
	headerSize := readU32(dat[0:4])
	nameLen := readU32(dat[4:8])

	if err := binutil.NeedNBytes(dat, 4+int(headerSize)); err != nil {
		return Entity{}, 0, nocterr.New(nocterr.Corrupt, "entity.Decode", err)
	}
	if int(headerSize) < int(nameLen)+fixedHeaderLen {
		return Entity{}, 0, nocterr.New(nocterr.Corrupt, "entity.Decode", fmt.Errorf("header_size %d too small for name_len %d", headerSize, nameLen))
	}

	pos := 8
	nameBytes := dat[pos : pos+int(nameLen)]
	name := string(nameBytes)
	if !utf8.ValidString(name) {
		name = toValidUTF8(nameBytes)
	}
	pos += int(nameLen)

	var fixed fixedHeader
	if _, err := binstruct.UnmarshalWithoutInterface(dat[pos:], &fixed); err != nil {
		return Entity{}, 0, nocterr.New(nocterr.Corrupt, "entity.Decode", err)
	}
	if fixed.Flags&^knownFlags != 0 {
		return Entity{}, 0, nocterr.New(nocterr.Corrupt, "entity.Decode", fmt.Errorf("invalid flag bits %#x", uint32(fixed.Flags)))
	}
	pos += fixedHeaderLen

	vendorEnd := pos + int(fixed.VendorDataSize)
	if err := binutil.NeedNBytes(dat, vendorEnd); err != nil {
		return Entity{}, 0, nocterr.New(nocterr.Corrupt, "entity.Decode", err)
	}
	vendorData := dat[pos:vendorEnd]

	return Entity{
		Name:       name,
		Size:       fixed.Size,
		StartBlock: fixed.StartBlock,
		Flags:      fixed.Flags,
		VendorData: vendorData,
	}, 4 + int(headerSize), nil
}

// MarshalBinary implements encoding.BinaryMarshaler so that Entity
// satisfies binstruct.Marshaler, letting callers like jsonutil.Binary
// serialize a whole record without needing fixed-offset struct tags
// for the variable-length name and vendor_data.
func (e Entity) MarshalBinary() ([]byte, error) {
	return Encode(e)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler, the
// counterpart to MarshalBinary.
func (e *Entity) UnmarshalBinary(dat []byte) error {
	decoded, _, err := Decode(dat)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

func toValidUTF8(b []byte) string {
	out := make([]rune, 0, len(b))
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		out = append(out, r)
		i += size
	}
	return string(out)
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func readU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
