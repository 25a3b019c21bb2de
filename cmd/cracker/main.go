// Command cracker recovers a mistyped password by testing every variant of a seed
// guess within a growing edit distance.
//
//	SEED_PWD='passw0rd' cracker --checker "unzip -P PWD -t secret.zip" --match "No errors"
//	SEED_PWD='passw0rd' cracker --checker "secret.kdbx" --plugin ./kdbx.wasm
package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/awnumar/memguard"
	"github.com/snow-ghost/cracker/core"
)

func main() {
	// An interrupted run wipes the seed and exits without saving progress.
	memguard.CatchSignal(func(sig os.Signal) {
		fmt.Fprintln(os.Stderr, "interrupted:", sig)
		memguard.Purge()
		os.Exit(interruptStatus(sig))
	}, os.Interrupt, syscall.SIGTERM)

	code := execute(os.Args[1:], os.Stdout, os.Stderr)
	memguard.Purge()
	os.Exit(code)
}

// interruptStatus is 128 plus the signal number, so wrappers can tell an interrupt from
// an exhausted search.
func interruptStatus(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return core.ExitInterrupted
}
