// Command runledger is the reference CLI over the harness core: it loads a
// suite manifest, drives every case, writes the run directory, and
// optionally gates on a regression diff against a stored baseline.
package main

import (
	"flag"
	"fmt"
	"os"
)

const runledgerVersion = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(os.Args[2:])
	case "bless":
		err = blessCmd(os.Args[2:])
	case "-h", "-help", "--help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: runledger <run|bless> [flags]")
	flag.CommandLine.SetOutput(os.Stderr)
}
