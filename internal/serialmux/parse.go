package serialmux

import (
	"strings"
	"unicode"
)

const (
	LineTypeSample  = "sample"
	LineTypeComment = "comment"
	LineTypeHeader  = "header"
	LineTypeUnknown = "unknown"
)

// ClassifyLine inspects a line from the device and returns a simple type
// token. Loggers interleave "#" status lines and repeat the CSV header on
// reset; only sample lines carry data. Columns past z are allowed.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return LineTypeUnknown
	case strings.HasPrefix(line, "#"):
		return LineTypeComment
	case strings.Count(line, ",") < 2:
		return LineTypeUnknown
	}
	first := rune(line[0])
	if unicode.IsDigit(first) || first == '-' || first == '+' || first == '.' {
		return LineTypeSample
	}
	return LineTypeHeader
}
