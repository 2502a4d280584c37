//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

// Package report renders a human-readable summary of a translated archive,
// as markdown and as HTML.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"

	"github.com/hpctools/otf2_translate/internal/pkg/archive"
	"github.com/hpctools/otf2_translate/internal/pkg/trace"
)

const (
	// MarkdownFileName is the name of the generated markdown summary.
	MarkdownFileName = "summary.md"

	// HTMLFileName is the name of the generated HTML summary.
	HTMLFileName = "summary.html"
)

func addRange(str string, start int, end int) string {
	if str == "" {
		return fmt.Sprintf("%d-%d", start, end)
	}
	return fmt.Sprintf("%s,%d-%d", str, start, end)
}

func addSingleton(str string, n int) string {
	if str == "" {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%d", str, n)
}

// compressRanks renders a rank list in compressed range notation, e.g.
// [0 1 2 5] as "0-2,5".
func compressRanks(ranks []int) string {
	compressed := ""
	for i := 0; i < len(ranks); i++ {
		start := i
		for i+1 < len(ranks) && ranks[i]+1 == ranks[i+1] {
			i++
		}
		if i != start {
			compressed = addRange(compressed, ranks[start], ranks[i])
		} else {
			compressed = addSingleton(compressed, ranks[i])
		}
	}
	return compressed
}

// Generate builds the markdown summary of an archive.
func Generate(r *archive.Reader) (string, error) {
	clock, err := r.Clock()
	if err != nil {
		return "", fmt.Errorf("unable to read clock properties: %w", err)
	}
	locations, err := r.Locations()
	if err != nil {
		return "", fmt.Errorf("unable to read locations: %w", err)
	}
	counts, err := r.EventCounts()
	if err != nil {
		return "", fmt.Errorf("unable to count events: %w", err)
	}
	comms, err := r.Comms()
	if err != nil {
		return "", fmt.Errorf("unable to read communicators: %w", err)
	}
	groups, err := r.Groups()
	if err != nil {
		return "", fmt.Errorf("unable to read groups: %w", err)
	}
	volumes, err := r.CollectiveVolumes()
	if err != nil {
		return "", fmt.Errorf("unable to aggregate collective volumes: %w", err)
	}
	p2p, err := r.PointToPointVolume()
	if err != nil {
		return "", fmt.Errorf("unable to aggregate point-to-point volume: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# Trace summary\n\n")

	sb.WriteString(fmt.Sprintf("- Ranks: %d\n", len(locations)))
	sb.WriteString(fmt.Sprintf("- Clock resolution: %d ticks/s\n", clock.Resolution))
	sb.WriteString(fmt.Sprintf("- Trace extent: %d ticks starting at %d\n", clock.Duration, clock.GlobalStart))
	sb.WriteString(fmt.Sprintf("- Point-to-point payload: %d bytes\n\n", p2p))

	sb.WriteString("## Events per rank\n\n")
	sb.WriteString("| Rank | Events |\n")
	sb.WriteString("| ---- | ------ |\n")
	for _, loc := range locations {
		sb.WriteString(fmt.Sprintf("| %d | %d |\n", loc.ID, counts[loc.ID]))
	}
	sb.WriteString("\n")

	sb.WriteString("## Communicators\n\n")
	sb.WriteString("| ID | Name | Parent | Members |\n")
	sb.WriteString("| -- | ---- | ------ | ------- |\n")
	for _, c := range comms {
		parent := "-"
		if c.ParentID != trace.UndefinedParent {
			parent = fmt.Sprintf("%d", c.ParentID)
		}
		members := "-"
		if g, ok := groups[c.GroupID]; ok {
			ranks, err := g.MemberRanks()
			if err != nil {
				return "", err
			}
			if len(ranks) > 0 {
				sort.Ints(ranks)
				members = compressRanks(ranks)
			}
		}
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("(unnamed comm %d)", c.ID)
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n", c.ID, name, parent, members))
	}
	sb.WriteString("\n")

	if len(volumes) > 0 {
		sb.WriteString("## Collective volumes\n\n")
		sb.WriteString("| Operation | Sent (bytes) | Received (bytes) |\n")
		sb.WriteString("| --------- | ------------ | ---------------- |\n")
		for _, v := range volumes {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d |\n", v.Op, v.Sent, v.Received))
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// Write renders the summary into dir as both summary.md and summary.html.
func Write(r *archive.Reader, dir string) error {
	md, err := Generate(r)
	if err != nil {
		return err
	}

	mdPath := filepath.Join(dir, MarkdownFileName)
	if err := os.WriteFile(mdPath, []byte(md), 0644); err != nil {
		return fmt.Errorf("unable to write %s: %w", mdPath, err)
	}

	htmlContent := string(markdown.ToHTML([]byte(md), nil, nil))
	htmlPath := filepath.Join(dir, HTMLFileName)
	if err := os.WriteFile(htmlPath, []byte(htmlContent), 0644); err != nil {
		return fmt.Errorf("unable to write %s: %w", htmlPath, err)
	}
	return nil
}
