//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

// Package callstream parses captured MPI call streams. A capture directory
// holds one text file per rank, calls.rank<N>.txt, with one call per line:
//
//	<name> <start> <stop> [key=value ...]
//
// Timestamps are clock ticks. List-valued arguments are comma separated.
// Lines starting with '#' and blank lines are skipped.
package callstream

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gvallee/go_util/pkg/util"
)

const (
	// FilePrefix is the beginning of a per-rank capture file name.
	FilePrefix = "calls.rank"

	// FileSuffix is the end of a per-rank capture file name.
	FileSuffix = ".txt"

	commentPrefix = "#"
)

// Record is one captured MPI call.
type Record struct {
	Name  string
	Start uint64
	Stop  uint64
	Args  map[string]string
}

// Has reports whether the record carries the named argument.
func (r *Record) Has(key string) bool {
	_, ok := r.Args[key]
	return ok
}

func (r *Record) arg(key string) (string, error) {
	v, ok := r.Args[key]
	if !ok {
		return "", fmt.Errorf("%s record has no %q argument", r.Name, key)
	}
	return v, nil
}

// Int returns the named argument as an int.
func (r *Record) Int(key string) (int, error) {
	v, err := r.arg(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s argument %s=%q is not an integer", r.Name, key, v)
	}
	return n, nil
}

// Uint64 returns the named argument as a uint64.
func (r *Record) Uint64(key string) (uint64, error) {
	v, err := r.arg(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s argument %s=%q is not an unsigned integer", r.Name, key, v)
	}
	return n, nil
}

// Bool returns the named argument as a flag; any non-zero value is true.
func (r *Record) Bool(key string) (bool, error) {
	n, err := r.Int(key)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

// Ints returns the named comma-separated argument as an int slice.
func (r *Record) Ints(key string) ([]int, error) {
	v, err := r.arg(key)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(v, ",")
	values := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%s argument %s=%q is not a list of integers", r.Name, key, v)
		}
		values[i] = n
	}
	return values, nil
}

// Uints returns the named comma-separated argument as a uint64 slice.
func (r *Record) Uints(key string) ([]uint64, error) {
	v, err := r.arg(key)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(v, ",")
	values := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s argument %s=%q is not a list of unsigned integers", r.Name, key, v)
		}
		values[i] = n
	}
	return values, nil
}

func parseLine(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Record{}, fmt.Errorf("a call record needs a name and two timestamps, got %q", line)
	}

	start, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid start timestamp %q", fields[1])
	}
	stop, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid stop timestamp %q", fields[2])
	}
	if stop < start {
		return Record{}, fmt.Errorf("call %s stops at %d before it starts at %d", fields[0], stop, start)
	}

	rec := Record{
		Name:  fields[0],
		Start: start,
		Stop:  stop,
		Args:  make(map[string]string),
	}
	for _, f := range fields[3:] {
		key, value, found := strings.Cut(f, "=")
		if !found || key == "" {
			return Record{}, fmt.Errorf("call %s has malformed argument %q", rec.Name, f)
		}
		rec.Args[key] = value
	}
	return rec, nil
}

// ReadFile parses one rank's capture file.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	lineNum := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		rec, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	return records, nil
}

// RankFileName returns the capture file name for a rank.
func RankFileName(rank int) string {
	return fmt.Sprintf("%s%d%s", FilePrefix, rank, FileSuffix)
}

// DiscoverRankFiles finds the per-rank capture files in dir, keyed by rank.
func DiscoverRankFiles(dir string) (map[int]string, error) {
	if !util.PathExists(dir) {
		return nil, fmt.Errorf("capture directory %s does not exist", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to list %s: %w", dir, err)
	}

	files := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileSuffix) {
			continue
		}
		rankStr := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), FileSuffix)
		rank, err := strconv.Atoi(rankStr)
		if err != nil || rank < 0 {
			continue
		}
		files[rank] = filepath.Join(dir, name)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s<N>%s files in %s", FilePrefix, FileSuffix, dir)
	}
	return files, nil
}
