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
	"github.com/hpctools/otf2_translate/internal/pkg/replay"
	"github.com/hpctools/otf2_translate/internal/pkg/timer"
	"github.com/hpctools/otf2_translate/internal/pkg/trace"
	"github.com/hpctools/otf2_translate/internal/pkg/writer"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose mode")
	inputDir := flag.String("input-dir", "", "Directory with the per-rank call capture files")
	output := flag.String("output", "", "Path of the trace archive to create, without extension (default: generated name)")
	worldSize := flag.Int("world-size", 0, "Number of ranks in the capture (default: number of capture files)")
	clockResolution := flag.Uint64("clock-resolution", 1000000000, "Capture clock ticks per second")
	dryRun := flag.Bool("dry-run", false, "Replay the capture without writing an archive")
	quiet := flag.Bool("quiet", false, "Do not display progress bars")
	help := flag.Bool("h", false, "Help message")

	flag.Parse()

	cmdName := filepath.Base(os.Args[0])
	if *help {
		fmt.Printf("%s translates a directory of per-rank MPI call captures into a trace archive", cmdName)
		fmt.Printf("\nUsage: %s -input-dir <directory> [-output <path>]\n", cmdName)
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

	if *inputDir == "" {
		fmt.Printf("[ERROR] the input directory is required; use -input-dir\n")
		os.Exit(1)
	}

	streams, err := replay.Load(*inputDir)
	if err != nil {
		fmt.Printf("[ERROR] unable to load the capture: %s\n", err)
		os.Exit(1)
	}
	size := *worldSize
	if size == 0 {
		size = len(streams.Ranks())
	}

	var sink trace.Sink
	var archiveFile string
	if *dryRun {
		sink = trace.NewRecorder()
	} else {
		w := archive.NewWriter(*output)
		archiveFile = w.Filename()
		sink = w
	}

	t := timer.Start()
	run := writer.NewRun(sink, size, *clockResolution)
	if err := streams.Pass(run, writer.ModeStructure, !*quiet); err != nil {
		run.Abort()
		fmt.Printf("[ERROR] structure pass failed: %s\n", err)
		os.Exit(1)
	}
	if err := run.AgreeGlobalIDs(); err != nil {
		run.Abort()
		fmt.Printf("[ERROR] global identifier agreement failed: %s\n", err)
		os.Exit(1)
	}
	if err := streams.Pass(run, writer.ModeTrace, !*quiet); err != nil {
		run.Abort()
		fmt.Printf("[ERROR] trace pass failed: %s\n", err)
		os.Exit(1)
	}
	if err := run.Finalize(); err != nil {
		fmt.Printf("[ERROR] unable to finalize the archive: %s\n", err)
		os.Exit(1)
	}

	if *dryRun {
		recorder := sink.(*trace.Recorder)
		fmt.Printf("Replayed %d records from %d ranks (%d events) in %s\n",
			streams.NumRecords(), len(streams.Ranks()), len(recorder.Events), t.Stop())
		return
	}
	fmt.Printf("Translated %d records from %d ranks into %s in %s\n",
		streams.NumRecords(), len(streams.Ranks()), archiveFile, t.Stop())
}
