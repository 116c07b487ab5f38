package main

import (
	"fmt"
	"os"

	"ddscore/internal/trace"
	"ddscore/tools/traceplay"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: traceplay <bundle-path>")
		os.Exit(2)
	}
	summary, err := traceplay.Inspect(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "traceplay:", err)
		os.Exit(1)
	}
	fmt.Printf("%s: %d discovery events, %d wire captures\n", summary.Path, summary.DiscoveryEvents, summary.WireCaptures)
	for _, e := range summary.Entries {
		if e.Kind == trace.EntryDiscovery {
			fmt.Printf("  %s discovery %s %s\n", e.Discovery.CapturedAt.Format("15:04:05.000"), e.Discovery.Kind, e.Discovery.Subject)
			continue
		}
		fmt.Printf("  %s wire %s %s seq=%d\n", e.Wire.CapturedAt.Format("15:04:05.000"), e.Wire.Direction, e.Wire.Entity, e.Wire.SeqNum)
	}
}
