// Command csvprobe samples the head of a CSV extract and prints its shape:
// column names, inferred types, and a header fingerprint. Default output is
// one "name,normalized,type" line per column; -json emits the full result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"unicode/utf8"

	"nyc311/internal/datasource"
	"nyc311/internal/probe"
)

var (
	flagFile      = flag.String("file", "data/data_311_Jan_2025.csv", "path or http(s) URL of the CSV file to sample")
	flagRows      = flag.Int("rows", 100, "number of data rows to sample for type inference")
	flagDelimiter = flag.String("delimiter", ",", "CSV field delimiter (single character)")
	flagJSON      = flag.Bool("json", false, "emit the full probe result as JSON")
)

func main() {
	flag.Parse()

	delim := ','
	if *flagDelimiter != "" {
		if r, _ := utf8.DecodeRuneInString(*flagDelimiter); r != utf8.RuneError {
			delim = r
		}
	}

	res, err := sampleSource(context.Background(), *flagFile, delim, *flagRows)
	if err != nil {
		fatalf("probe %s: %v", *flagFile, err)
	}

	if *flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fatalf("encode result: %v", err)
		}
		return
	}

	for _, c := range res.Columns {
		fmt.Printf("%s,%s,%s\n", c.Name, c.Normalized, c.Type)
	}
	fmt.Printf("fingerprint,%s\n", res.Fingerprint)
}

// sampleSource opens ref (a local path or an http(s) URL, same dispatch as
// the loader) and probes up to maxRows data rows.
func sampleSource(ctx context.Context, ref string, delim rune, maxRows int) (probe.Result, error) {
	f, err := datasource.Open(ctx, ref)
	if err != nil {
		return probe.Result{}, err
	}
	defer f.Close()

	return probe.Sample(f, probe.Options{
		Delimiter: delim,
		MaxRows:   maxRows,
	})
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
