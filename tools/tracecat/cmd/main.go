package main

import (
	"fmt"
	"os"

	"ddscore/tools/tracecat"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: tracecat <trace-directory>")
		os.Exit(2)
	}
	entries, err := tracecat.List(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "tracecat:", err)
		os.Exit(1)
	}
	data, err := tracecat.MarshalEntries(entries)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tracecat:", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
