// Package fdt reads just enough of a Flattened Device Tree blob to
// discover the platform's RAM extent at boot: the memory node's "reg"
// property, two big-endian 64-bit words (start, size). Grounded on
// original_source's src/main.rs boot sequence
// (fdt::Fdt::from_ptr(fdt).find("memory")["reg"]), reworked into a
// standalone scanner since this kernel has no flattened-tree walker of
// its own to call into.
package fdt

import (
	"encoding/binary"

	"vanadinite/kernerr"
)

const (
	magic       = 0xD00DFEED
	tokenBeginNode = 0x00000001
	tokenEndNode   = 0x00000002
	tokenProp      = 0x00000003
	tokenNop       = 0x00000004
	tokenEnd       = 0x00000009
)

type header struct {
	totalSize    uint32
	offDtStruct  uint32
	offDtStrings uint32
}

func readHeader(blob []byte) (header, error) {
	if len(blob) < 40 {
		return header{}, kernerr.New(kernerr.InvalidArgument, "fdt: blob too short for header")
	}
	if binary.BigEndian.Uint32(blob[0:4]) != magic {
		return header{}, kernerr.New(kernerr.InvalidArgument, "fdt: bad magic")
	}
	return header{
		totalSize:    binary.BigEndian.Uint32(blob[4:8]),
		offDtStruct:  binary.BigEndian.Uint32(blob[8:12]),
		offDtStrings: binary.BigEndian.Uint32(blob[12:16]),
	}, nil
}

func align4(n uint32) uint32 { return (n + 3) &^ 3 }

// MemoryReg is the (start, size) pair read from the memory node's "reg"
// property.
type MemoryReg struct {
	Start uint64
	Size  uint64
}

// FindMemoryReg scans blob's structure block for a node named "memory"
// (or "memory@..." as device trees commonly name it) and returns its
// "reg" property decoded as two big-endian 64-bit words.
func FindMemoryReg(blob []byte) (MemoryReg, error) {
	hdr, err := readHeader(blob)
	if err != nil {
		return MemoryReg{}, err
	}
	if uint32(len(blob)) < hdr.totalSize {
		return MemoryReg{}, kernerr.New(kernerr.InvalidArgument, "fdt: blob shorter than header.totalsize")
	}

	strings := blob[hdr.offDtStrings:]
	off := hdr.offDtStruct
	depth := 0
	memoryNodeDepth := -1 // depth of the "memory" node while inside it, else -1

	for off+4 <= hdr.totalSize {
		tok := binary.BigEndian.Uint32(blob[off : off+4])
		off += 4
		switch tok {
		case tokenNop:
		case tokenBeginNode:
			name := cstr(blob[off:])
			off = align4(off + uint32(len(name)) + 1)
			depth++
			if memoryNodeDepth < 0 && isMemoryNodeName(name) {
				memoryNodeDepth = depth
			}
		case tokenEndNode:
			if depth == memoryNodeDepth {
				memoryNodeDepth = -1
			}
			depth--
		case tokenProp:
			if off+8 > hdr.totalSize {
				return MemoryReg{}, kernerr.New(kernerr.InvalidArgument, "fdt: truncated prop header")
			}
			propLen := binary.BigEndian.Uint32(blob[off : off+4])
			nameOff := binary.BigEndian.Uint32(blob[off+4 : off+8])
			off += 8
			name := cstr(strings[nameOff:])
			val := blob[off : off+propLen]
			if memoryNodeDepth == depth && name == "reg" {
				return decodeReg(val)
			}
			off = align4(off + propLen)
		case tokenEnd:
			return MemoryReg{}, kernerr.New(kernerr.InvalidArgument, "fdt: no memory/reg property found")
		default:
			return MemoryReg{}, kernerr.New(kernerr.InvalidArgument, "fdt: unknown structure token %#x", tok)
		}
	}
	return MemoryReg{}, kernerr.New(kernerr.InvalidArgument, "fdt: no memory/reg property found")
}

func decodeReg(val []byte) (MemoryReg, error) {
	if len(val) < 16 {
		return MemoryReg{}, kernerr.New(kernerr.InvalidArgument, "fdt: reg property shorter than two 64-bit words")
	}
	return MemoryReg{
		Start: binary.BigEndian.Uint64(val[0:8]),
		Size:  binary.BigEndian.Uint64(val[8:16]),
	}, nil
}

func isMemoryNodeName(name string) bool {
	if name == "memory" {
		return true
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '@' {
			return name[:i] == "memory"
		}
	}
	return false
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
