//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

// Package replay drives a translation run: it loads the per-rank capture
// files, feeds every record through the structure pass, runs the global
// identifier agreement, then feeds the records through the trace pass.
package replay

import (
	"fmt"
	"log"
	"sort"

	"github.com/hpctools/otf2_translate/internal/pkg/callstream"
	"github.com/hpctools/otf2_translate/internal/pkg/progress"
	"github.com/hpctools/otf2_translate/internal/pkg/writer"
	"github.com/hpctools/otf2_translate/pkg/errors"
)

// Streams holds the loaded capture, one record list per rank.
type Streams struct {
	records map[int][]callstream.Record
	ranks   []int
	total   int
}

// Load reads every rank's capture file from dir.
func Load(dir string) (*Streams, error) {
	files, err := callstream.DiscoverRankFiles(dir)
	if err != nil {
		return nil, err
	}

	s := &Streams{records: make(map[int][]callstream.Record)}
	for rank, path := range files {
		records, err := callstream.ReadFile(path)
		if err != nil {
			return nil, err
		}
		s.records[rank] = records
		s.ranks = append(s.ranks, rank)
		s.total += len(records)
	}
	sort.Ints(s.ranks)
	return s, nil
}

// Ranks returns the ranks the capture covers, ascending.
func (s *Streams) Ranks() []int {
	return s.ranks
}

// NumRecords returns the total record count across all ranks.
func (s *Streams) NumRecords() int {
	return s.total
}

// Pass replays every rank's records through one translation pass. Calls the
// engine declares unimplemented are skipped with a warning; any other
// failure stops the run.
func (s *Streams) Pass(run *writer.Run, mode writer.Mode, showProgress bool) error {
	run.SetMode(mode)

	label := "Structure pass"
	if mode == writer.ModeTrace {
		label = "Trace pass"
	}
	bar := progress.NewBar(s.total, label, showProgress)
	defer bar.End()

	for _, rank := range s.ranks {
		w := run.Writer(rank)
		for i, rec := range s.records[rank] {
			err := Dispatch(w, rec)
			if err != nil {
				te, ok := err.(*errors.TranslationError)
				if ok && te.Is(errors.ErrUnimplemented) {
					log.Printf("[WARN] rank %d record %d: skipping %s: %s", rank, i, rec.Name, err)
					continue
				}
				return fmt.Errorf("rank %d record %d (%s): %w", rank, i, rec.Name, err)
			}
		}
		bar.Increment(len(s.records[rank]))
	}
	return nil
}

// Translate performs the full conversion of the capture in dir: structure
// pass, identifier agreement, trace pass, finalization. The run's sink is
// closed when Translate returns, whether it succeeded or not, but the global
// definition section is only written when every pass completed; a run that
// failed must not present itself as a well-formed trace.
func Translate(run *writer.Run, dir string, showProgress bool) error {
	streams, err := Load(dir)
	if err != nil {
		run.Abort()
		return err
	}

	if err := streams.Pass(run, writer.ModeStructure, showProgress); err != nil {
		run.Abort()
		return err
	}
	if err := run.AgreeGlobalIDs(); err != nil {
		run.Abort()
		return err
	}
	if err := streams.Pass(run, writer.ModeTrace, showProgress); err != nil {
		run.Abort()
		return err
	}
	return run.Finalize()
}
