package build

import (
	"encoding/json"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/telnet2/h5runner/pkg/chain"
)

// DiffOp marks a line of a configuration diff.
type DiffOp int

const (
	DiffEqual DiffOp = iota
	DiffDelete
	DiffInsert
)

// DiffLine is one line of a configuration diff.
type DiffLine struct {
	Op   DiffOp
	Text string
}

// Marshal renders a finalized configuration as indented JSON.
func Marshal(f *chain.Finalized) (string, error) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// Diff compares two finalized configurations line by line.
func Diff(a, b *chain.Finalized) ([]DiffLine, error) {
	left, err := Marshal(a)
	if err != nil {
		return nil, err
	}
	right, err := Marshal(b)
	if err != nil {
		return nil, err
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(left, right)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		op := DiffEqual
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = DiffDelete
		case diffmatchpatch.DiffInsert:
			op = DiffInsert
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out = append(out, DiffLine{Op: op, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return out, nil
}
