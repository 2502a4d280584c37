//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package main

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/gvallee/go_util/pkg/util"

	"github.com/hpctools/otf2_translate/internal/pkg/archive"
	"github.com/hpctools/otf2_translate/internal/pkg/report"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose mode")
	input := flag.String("input", "", "Path of the trace archive to summarize")
	outputDir := flag.String("output-dir", "", "Where the markdown and HTML summaries will be saved (default: print to stdout)")
	help := flag.Bool("h", false, "Help message")

	flag.Parse()

	cmdName := filepath.Base(os.Args[0])
	if *help {
		fmt.Printf("%s reads a trace archive back and summarizes its contents", cmdName)
		fmt.Printf("\nUsage: %s -input <archive> [-output-dir <directory>]\n", cmdName)
		flag.PrintDefaults()
		os.Exit(0)
	}

	logFile := util.OpenLogFile("otf2_translate", cmdName)
	defer logFile.Close()
	if *verbose {
		multiWriters := io.MultiWriter(os.Stdout, logFile)
		log.SetOutput(multiWriters)
	} else {
		log.SetOutput(ioutil.Discard)
	}

	if *input == "" {
		fmt.Printf("[ERROR] the archive path is required; use -input\n")
		os.Exit(1)
	}
	if !util.FileExists(*input) {
		fmt.Printf("[ERROR] %s does not exist\n", *input)
		os.Exit(1)
	}

	r, err := archive.NewReader(*input)
	if err != nil {
		fmt.Printf("[ERROR] unable to open %s: %s\n", *input, err)
		os.Exit(1)
	}
	defer r.Close()

	if *outputDir != "" {
		if err := report.Write(r, *outputDir); err != nil {
			fmt.Printf("[ERROR] unable to write the summary: %s\n", err)
			os.Exit(1)
		}
		fmt.Printf("Summary saved in %s\n", *outputDir)
		return
	}

	md, err := report.Generate(r)
	if err != nil {
		fmt.Printf("[ERROR] unable to summarize %s: %s\n", *input, err)
		os.Exit(1)
	}
	fmt.Print(md)
}
