// Command hembs benchmarks the HEM-AFBS classifier on a ClassBench rule set.
//
//	hembs -r acl1 -p acl1_trace -l 2 -u
//	hembs -r s3://bench/acl1.zst --packets 1000000 --workers 8
//	hembs gen -r acl1 -o acl1_trace.pcap --packets 100000
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
