// Package header splits a raw measurement CSV into its four regions: the
// procedure label, the parameters block, the metadata block, and the line
// offset at which the numeric data table begins.
package header

import (
	"bufio"
	"io"
	"strings"

	"github.com/joaquim-mph/optostage/internal/xerrors"
)

const (
	procedureMarker  = "# Procedure:"
	parametersMarker = "# Parameters:"
	metadataMarker   = "# Metadata:"
	dataMarker       = "# Data:"
)

// Blocks is the parsed, untyped result of scanning a file's header region.
type Blocks struct {
	ProcedureLabel string
	Parameters     map[string]string
	Metadata       map[string]string
	// DataStartLine is the zero-based index, within the file, of the first
	// line after the "# Data:" marker — i.e. the CSV column header row.
	DataStartLine int
}

type section int

const (
	sectionNone section = iota
	sectionParameters
	sectionMetadata
)

// Parse scans r line by line, classifying each line into one of the four
// regions described in the package doc. Lines inside a block that are not
// "key: value" are ignored. Fails with a MissingProcedureHeader xerrors.Error
// if no "# Procedure:" line is ever seen.
func Parse(path string, r io.Reader) (Blocks, error) {
	blocks := Blocks{
		Parameters: make(map[string]string),
		Metadata:   make(map[string]string),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	cur := sectionNone
	lineNo := 0
	sawProcedure := false

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, procedureMarker):
			blocks.ProcedureLabel = strings.TrimSpace(strings.TrimPrefix(trimmed, procedureMarker))
			sawProcedure = true
			cur = sectionNone

		case strings.HasPrefix(trimmed, parametersMarker):
			cur = sectionParameters

		case strings.HasPrefix(trimmed, metadataMarker):
			cur = sectionMetadata

		case strings.HasPrefix(trimmed, dataMarker):
			blocks.DataStartLine = lineNo + 1
			lineNo++
			if err := scanner.Err(); err != nil {
				return blocks, xerrors.New(xerrors.IOFailure, "header.Parse", path, err)
			}
			if !sawProcedure {
				return blocks, xerrors.New(xerrors.MissingProcedureHeader, "header.Parse", path, nil)
			}
			return blocks, nil

		case trimmed == "":
			cur = sectionNone

		default:
			key, value, ok := splitKeyValue(trimmed)
			if !ok {
				break
			}
			switch cur {
			case sectionParameters:
				blocks.Parameters[key] = value
			case sectionMetadata:
				blocks.Metadata[key] = value
			}
		}

		lineNo++
	}

	if err := scanner.Err(); err != nil {
		return blocks, xerrors.New(xerrors.IOFailure, "header.Parse", path, err)
	}
	if !sawProcedure {
		return blocks, xerrors.New(xerrors.MissingProcedureHeader, "header.Parse", path, nil)
	}
	// A procedure marker was found but no "# Data:" marker ever appeared;
	// the data section is simply empty from this line onward.
	blocks.DataStartLine = lineNo
	return blocks, nil
}

// splitKeyValue parses "key: value" on the first colon. Duplicate keys in a
// block resolve last-wins because callers assign directly into the map.
func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}
