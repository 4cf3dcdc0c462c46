// Command editlog-check validates a serialized animation edit log. Every
// malformed line is reported with its line number; the exit code is non-zero
// when any line fails to parse.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"animcore/pkg/animation/encoding"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func cli(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("editlog-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	quiet := fs.Bool("q", false, "suppress per-line errors and the summary; exit code only")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: editlog-check [-q] [file]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return 2
	}

	input := stdin
	name := "<stdin>"
	if fs.NArg() == 1 {
		name = fs.Arg(0)
		file, err := os.Open(name)
		if err != nil {
			fmt.Fprintf(stderr, "editlog-check: %v\n", err)
			return 2
		}
		defer func() { _ = file.Close() }()
		input = file
	}

	bad := 0
	edits, err := encoding.ReadEditLog(input, func(perr *encoding.ParseError) bool {
		bad++
		if !*quiet {
			fmt.Fprintf(stderr, "%s: line %d: %v\n", name, perr.Line, perr.Err)
		}
		return true
	})
	if err != nil {
		fmt.Fprintf(stderr, "editlog-check: %v\n", err)
		return 2
	}
	if bad > 0 {
		if !*quiet {
			fmt.Fprintf(stderr, "%s: %d malformed line(s), %d edit(s) parsed\n", name, bad, len(edits))
		}
		return 1
	}
	if !*quiet {
		fmt.Fprintf(stdout, "%s: %d edit(s) ok\n", name, len(edits))
	}
	return 0
}
