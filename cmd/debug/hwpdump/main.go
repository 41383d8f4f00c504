// hwpdump reads HWP 5 documents (templates or generated exam sheets) and
// produces human readable dumps of their compound file streams and records.
//
// Record streams are inflated when document header says so. Paragraph
// listings resolve style references against the document style table, which
// is the quickest way to check what the style rewrite did to a sheet.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"exgen/cmd/debug/internal/dumputil"
	"exgen/hwp"
	"exgen/styles"
)

func main() {
	all := flag.Bool("all", false, "enable all dump flags (-dump, -streams, -styles, -paras, -sqlite)")
	dump := flag.Bool("dump", false, "dump storages, streams and record trees into <file>-dump.txt")
	streams := flag.Bool("streams", false, "write inflated streams into <file>-streams.zip")
	styleDump := flag.Bool("styles", false, "dump style directory into <file>-styles.txt")
	paras := flag.Bool("paras", false, "dump paragraphs with their styles into <file>-paras.txt")
	writeSqlite := flag.Bool("sqlite", false, "write all records into <file>.sqlite")
	overwrite := flag.Bool("overwrite", false, "overwrite existing output")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: hwpdump [-all] [-dump] [-streams] [-styles] [-paras] [-sqlite] [-overwrite] <file.hwp> [outdir]\n\n")
		fmt.Fprintf(os.Stderr, "Reads HWP 5 documents and dumps their content for troubleshooting.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(2)
	}

	if *all {
		*dump = true
		*streams = true
		*styleDump = true
		*paras = true
		*writeSqlite = true
	}

	if !*dump && !*streams && !*styleDump && !*paras && !*writeSqlite {
		flag.Usage()
		os.Exit(2)
	}

	defer func(startedAt time.Time) {
		fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", time.Since(startedAt))
	}(time.Now())

	inPath := flag.Arg(0)
	outDir := ""
	if flag.NArg() == 2 {
		outDir = flag.Arg(1)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "create outdir: %v\n", err)
			os.Exit(1)
		}
	}

	ok, err := hwp.Sniff(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "%s is not a compound document\n", filepath.Base(inPath))
		os.Exit(1)
	}

	doc, err := hwp.Open(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}

	failed := false
	report := func(what string, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
			failed = true
		}
	}

	if *dump {
		text, err := dumputil.DumpRecords(doc)
		if err == nil {
			err = dumputil.WriteOutput(inPath, outDir, "-dump.txt", []byte(text), *overwrite)
		}
		report("dump", err)
	}
	if *streams {
		report("streams", dumputil.DumpStreams(doc, inPath, outDir, *overwrite))
	}
	if *styleDump {
		d, err := styles.ReadStylesFrom(inPath, doc)
		if err == nil {
			err = dumputil.WriteOutput(inPath, outDir, "-styles.txt", []byte(d.Dump()), *overwrite)
		}
		report("styles", err)
	}
	if *paras {
		text, err := dumputil.DumpParagraphs(doc)
		if err == nil {
			err = dumputil.WriteOutput(inPath, outDir, "-paras.txt", []byte(text), *overwrite)
		}
		report("paras", err)
	}
	if *writeSqlite {
		report("write sqlite", dumputil.WriteDatabase(doc, inPath, outDir, *overwrite))
	}

	if failed {
		os.Exit(1)
	}
}
