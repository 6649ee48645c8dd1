// Package main provides the entry point for psxrec.
// psxrec is a PlayStation R3000A dynamic recompiler targeting MIPS32 hosts.
//
// For the full CLI, use: go run ./cmd/psxrec
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("psxrec - R3000A to MIPS32 dynamic recompiler")
	fmt.Println("")
	fmt.Println("Usage: psxrec [options] <program.exe>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -run            Run the program instead of printing translated blocks")
	fmt.Println("  -raw            Treat the input as a headerless binary")
	fmt.Println("  -config         Path to recompiler configuration JSON file")
	fmt.Println("  -timing-config  Path to host timing configuration JSON file")
	fmt.Println("  -v              Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/psxrec' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/psxrec' instead.")
	}
}
