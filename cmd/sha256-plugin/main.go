//go:build wasip1

// Command sha256-plugin is a cracker plugin accepting the password whose SHA-256 digest
// is passed, hex encoded, as the plugin argument string.
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o sha256.wasm ./cmd/sha256-plugin
//	SEED_PWD='passw0rd' cracker --plugin sha256.wasm --checker "$(printf password | sha256sum | cut -d' ' -f1)"
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"unsafe"
)

// state is the only state this plugin hands out.
const state = 1

var (
	want [sha256.Size]byte

	// allocations handed to the host stay reachable for the life of the module
	allocations [][]byte
)

func main() {}

//go:wasmexport crackerPluginAlloc
func alloc(size uint32) uint32 {
	buf := make([]byte, size)
	allocations = append(allocations, buf)
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
}

//go:wasmexport crackerPluginInit
func initPlugin(ptr, n uint32) uint32 {
	digest, err := hex.DecodeString(bytesAt(ptr, n))
	if err != nil || len(digest) != sha256.Size {
		return 0
	}
	copy(want[:], digest)
	return state
}

//go:wasmexport crackerPluginDecrypt
func decrypt(ptr, n, s uint32) uint32 {
	if s != state || sha256.Sum256([]byte(bytesAt(ptr, n))) != want {
		return 0
	}
	return 1
}

//go:wasmexport crackerPluginFinalize
func finalize(s uint32) uint32 {
	clear(want[:])
	allocations = nil
	if s != state {
		return 0
	}
	return 1
}

func bytesAt(ptr, n uint32) string {
	if n == 0 {
		return ""
	}
	return unsafe.String((*byte)(unsafe.Pointer(uintptr(ptr))), n)
}
