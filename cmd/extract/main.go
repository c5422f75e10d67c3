package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joseph-ayodele/form-extractor/internal/app"
	"github.com/joseph-ayodele/form-extractor/internal/common"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		file   = flag.String("file", "", "path to the form image (required)")
		out    = flag.String("out", "", "write the result JSON here instead of stdout")
		pretty = flag.Bool("pretty", true, "indent the result JSON")
	)
	flag.Parse()

	if *file == "" {
		printError("Error: --file is required\n")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	// Logs go to stderr so stdout stays parseable.
	cfg.Log.Format = "text"
	cfg.Log.Output = os.Stderr
	logger := common.NewLogger(cfg.Log)
	if err := cfg.ValidateExtraction(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	data, err := os.ReadFile(*file)
	if err != nil {
		printError("Error: read %s: %v\n", *file, err)
		os.Exit(1)
	}

	pipe, closeGen, err := app.NewPipeline(ctx, cfg, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	defer closeGen()

	res := pipe.Process(ctx, data, filepath.Base(*file))

	var body []byte
	if *pretty {
		body, err = json.MarshalIndent(res, "", "  ")
	} else {
		body, err = json.Marshal(res)
	}
	if err != nil {
		printError("Error: encode result: %v\n", err)
		os.Exit(1)
	}
	body = append(body, '\n')

	if *out != "" {
		if err := os.WriteFile(*out, body, 0o644); err != nil {
			printError("Error: write %s: %v\n", *out, err)
			os.Exit(1)
		}
	} else {
		os.Stdout.Write(body)
	}
	if !res.OK() {
		os.Exit(1)
	}
}
