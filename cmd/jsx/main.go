package main

import (
	"fmt"
	"os"

	"jobstream/internal/jsx"
)

func main() {
	if err := jsx.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
