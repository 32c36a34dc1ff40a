// Command demo is a terminal client for conversa: it loads or creates a
// session from a sessionstore.Store, drives it through a configurable
// model provider and policy stack, and prints the assistant's response as
// it streams in.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "demo:", err)
		os.Exit(1)
	}
}
