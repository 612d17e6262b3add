package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/vvka-141/mssqlretry/internal/cli"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(mssqlretry.ExitPanic)
		}
	}()

	if os.Getenv("MSSQLRETRY_TEST_PANIC") == "1" {
		panic("intentional test panic")
	}

	if err := cli.Execute(); err != nil {
		os.Exit(mssqlretry.ExitCodeForError(err))
	}
}
