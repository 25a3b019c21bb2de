// Package wasmtest assembles tiny cracker plugins for tests.
package wasmtest

import (
	"os"
	"path/filepath"
)

// HeapBase is where the plugin's bump allocator starts handing out memory.
const HeapBase = 1024

// Plugin describes a hand-assembled plugin module. Its decrypt routine accepts candidates
// of length AcceptLen whose first byte is AcceptFirst, which proves the host wrote the
// candidate into plugin memory.
type Plugin struct {
	InitResult     int32
	AcceptLen      int32
	AcceptFirst    byte
	FinalizeResult int32
	Omit           string // export left out of the module
	BadDecrypt     bool   // declare decrypt as (i32) -> i32
	NullAlloc      bool   // allocator always returns 0
}

const (
	opEnd       = 0x0b
	opLocalGet  = 0x20
	opGlobalGet = 0x23
	opGlobalSet = 0x24
	opI32Load8  = 0x2d
	opI32Const  = 0x41
	opI32Eq     = 0x46
	opI32Add    = 0x6a
	opI32And    = 0x71
	valI32      = 0x7f
	funcType    = 0x60
)

// Bytes returns the binary module.
func (p Plugin) Bytes() []byte {
	out := []byte{
		0x00, 0x61, 0x73, 0x6d, // WASM_BINARY_MAGIC
		0x01, 0x00, 0x00, 0x00, // WASM_BINARY_VERSION
	}

	// Type section: 0 (i32 i32)->i32, 1 (i32 i32 i32)->i32, 2 (i32)->i32
	types := vec(3,
		[]byte{funcType, 2, valI32, valI32, 1, valI32},
		[]byte{funcType, 3, valI32, valI32, valI32, 1, valI32},
		[]byte{funcType, 1, valI32, 1, valI32},
	)
	out = append(out, section(1, types)...)

	// Function section: init, decrypt, finalize, alloc
	decryptType := byte(1)
	if p.BadDecrypt {
		decryptType = 2
	}
	out = append(out, section(3, vec(4, []byte{0}, []byte{decryptType}, []byte{2}, []byte{2}))...)

	// Memory section: one memory, min 1 page
	out = append(out, section(5, vec(1, []byte{0x00, 0x01}))...)

	// Global section: mutable i32 heap pointer
	heap := append(append([]byte{valI32, 0x01, opI32Const}, sleb(HeapBase)...), opEnd)
	out = append(out, section(6, vec(1, heap))...)

	// Export section
	var exports [][]byte
	add := func(name string, kind, index byte) {
		if name == p.Omit {
			return
		}
		exports = append(exports, append(str(name), kind, index))
	}
	add("memory", 0x02, 0)
	add("crackerPluginInit", 0x00, 0)
	add("crackerPluginDecrypt", 0x00, 1)
	add("crackerPluginFinalize", 0x00, 2)
	add("crackerPluginAlloc", 0x00, 3)
	out = append(out, section(7, vec(len(exports), exports...))...)

	// Code section
	initBody := append(append([]byte{0x00, opI32Const}, sleb(int64(p.InitResult))...), opEnd)
	var decryptBody []byte
	if p.BadDecrypt {
		decryptBody = []byte{0x00, opI32Const, 0x00, opEnd}
	} else {
		decryptBody = []byte{0x00, opLocalGet, 0x01, opI32Const}
		decryptBody = append(decryptBody, sleb(int64(p.AcceptLen))...)
		decryptBody = append(decryptBody, opI32Eq, opLocalGet, 0x00, opI32Load8, 0x00, 0x00, opI32Const)
		decryptBody = append(decryptBody, sleb(int64(p.AcceptFirst))...)
		decryptBody = append(decryptBody, opI32Eq, opI32And, opEnd)
	}
	finalizeBody := append(append([]byte{0x00, opI32Const}, sleb(int64(p.FinalizeResult))...), opEnd)
	// alloc returns the heap pointer and bumps it by size
	allocBody := []byte{0x00, opGlobalGet, 0x00, opGlobalGet, 0x00, opLocalGet, 0x00, opI32Add, opGlobalSet, 0x00, opEnd}
	if p.NullAlloc {
		allocBody = []byte{0x00, opI32Const, 0x00, opEnd}
	}
	code := vec(4,
		append(uleb(uint64(len(initBody))), initBody...),
		append(uleb(uint64(len(decryptBody))), decryptBody...),
		append(uleb(uint64(len(finalizeBody))), finalizeBody...),
		append(uleb(uint64(len(allocBody))), allocBody...),
	)
	return append(out, section(10, code)...)
}

// WriteFile stores the module as plugin.wasm in dir and returns its path.
func (p Plugin) WriteFile(dir string) (string, error) {
	path := filepath.Join(dir, "plugin.wasm")
	if err := os.WriteFile(path, p.Bytes(), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func section(id byte, contents []byte) []byte {
	return append(append([]byte{id}, uleb(uint64(len(contents)))...), contents...)
}

func vec(n int, items ...[]byte) []byte {
	out := uleb(uint64(n))
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func str(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
