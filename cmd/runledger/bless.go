package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// blessCmd copies a run's summary.json to a baseline path, making the
// current run the new reference point for future regression diffs.
func blessCmd(args []string) error {
	fs := flag.NewFlagSet("bless", flag.ExitOnError)
	var (
		fromF = fs.String("from", "", "path to the summary.json to promote (required)")
		toF   = fs.String("to", "", "baseline path to write (required)")
	)
	fs.Parse(args) // #nosec G104 -- ExitOnError handles parse failures

	if *fromF == "" || *toF == "" {
		return fmt.Errorf("bless: -from and -to are both required")
	}

	src, err := os.Open(*fromF) // #nosec G304 -- operator-supplied CLI path
	if err != nil {
		return fmt.Errorf("bless: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(*toF, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- operator-supplied CLI path
	if err != nil {
		return fmt.Errorf("bless: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("bless: %w", err)
	}
	fmt.Printf("blessed %s -> %s\n", *fromF, *toF)
	return nil
}
