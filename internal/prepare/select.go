// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

package prepare

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/rhpak/rhpak/internal/model"
)

// ScoringWeights tunes container entry selection. The ordering behavior
// is the contract (shallow paths over deep, primary extension over
// secondary, bigger over smaller, penalized keywords last); the exact
// numbers are operator-tunable.
type ScoringWeights struct {
	Depth        int `mapstructure:"depth"`
	PrimaryExt   int `mapstructure:"primary_ext"`
	SecondaryExt int `mapstructure:"secondary_ext"`
	SizeKiB      int `mapstructure:"size_kib"`
	Keyword      int `mapstructure:"keyword"`
}

// DefaultWeights reproduce the long-standing selection order.
func DefaultWeights() ScoringWeights {
	return ScoringWeights{
		Depth:        40,
		PrimaryExt:   100,
		SecondaryExt: 60,
		SizeKiB:      1,
		Keyword:      80,
	}
}

// penaltyTerms mark entries that are almost never the main patch.
var penaltyTerms = []string{
	"readme", "optional", "alternate", "extra",
	"bonus", "music", "sound", "sample", "test",
}

const (
	primaryPatchExt   = ".bps"
	secondaryPatchExt = ".ips"
)

type candidate struct {
	name  string
	data  []byte
	score int
	order int
}

// score rates one patch-format entry; selectPatch filters out
// everything else before scoring.
func (w ScoringWeights) score(name string, size int64) int {
	lower := strings.ToLower(name)
	s := 0
	if path.Ext(lower) == primaryPatchExt {
		s += w.PrimaryExt
	} else {
		s += w.SecondaryExt
	}
	s -= strings.Count(lower, "/") * w.Depth
	s += int(size/1024) * w.SizeKiB
	for _, term := range penaltyTerms {
		if strings.Contains(lower, term) {
			s -= w.Keyword
		}
	}
	return s
}

// selectPatch picks the best patch entry out of a ZIP container. The
// sort is stable over archive order, so ties resolve to the first entry
// and selection is deterministic for identical archive contents.
func selectPatch(archive []byte, w ScoringWeights) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return "", nil, &model.ValidationError{Field: "patch.source", Reason: "unreadable container archive"}
	}
	var cands []candidate
	for i, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(entry.Name))
		if ext != primaryPatchExt && ext != secondaryPatchExt {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return "", nil, &model.ValidationError{Field: "patch.source", Reason: "unreadable container member " + entry.Name}
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", nil, &model.ValidationError{Field: "patch.source", Reason: "unreadable container member " + entry.Name}
		}
		cands = append(cands, candidate{
			name:  entry.Name,
			data:  data,
			score: w.score(entry.Name, int64(len(data))),
			order: i,
		})
	}
	if len(cands) == 0 {
		return "", nil, &model.ValidationError{Field: "patch.source", Reason: "container holds no patch-format entries"}
	}
	sort.SliceStable(cands, func(a, b int) bool { return cands[a].score > cands[b].score })
	return cands[0].name, cands[0].data, nil
}
