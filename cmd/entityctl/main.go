/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Command entityctl inspects an entitymap configuration and runs a demo
// workload against the configured backend.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
