package storagecheck

import (
	"bufio"
	"bytes"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*`)

// IdentifierLocator locates variables by the first identifier token of the
// source matching their label. Comments are skipped; no parsing is done.
type IdentifierLocator struct {
	first map[string]SourceRange
}

// NewIdentifierLocator scans source for identifier tokens.
func NewIdentifierLocator(source []byte) *IdentifierLocator {
	l := &IdentifierLocator{first: make(map[string]SourceRange)}

	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), len(source)+1)

	inBlockComment := false
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Bytes()
		for _, span := range codeSpans(text, &inBlockComment) {
			for _, m := range identifierPattern.FindAllIndex(text[span[0]:span[1]], -1) {
				name := string(text[span[0]+m[0] : span[0]+m[1]])
				if _, seen := l.first[name]; seen {
					continue
				}
				l.first[name] = SourceRange{
					Start: SourcePosition{Line: line, Column: span[0] + m[0]},
					End:   SourcePosition{Line: line, Column: span[0] + m[1]},
				}
			}
		}
	}

	return l
}

// Locate returns the range of the first identifier equal to label.
func (l *IdentifierLocator) Locate(label string) (SourceRange, bool) {
	r, ok := l.first[label]
	return r, ok
}

// codeSpans returns the [start, end) spans of line lying outside comments.
// inBlock carries an unterminated /* comment across lines.
func codeSpans(line []byte, inBlock *bool) [][2]int {
	var spans [][2]int
	start := 0
	for i := 0; i < len(line); i++ {
		if *inBlock {
			if line[i] == '*' && i+1 < len(line) && line[i+1] == '/' {
				*inBlock = false
				i++
				start = i + 1
			}
			continue
		}
		if line[i] != '/' || i+1 >= len(line) {
			continue
		}
		switch line[i+1] {
		case '/':
			if i > start {
				spans = append(spans, [2]int{start, i})
			}
			return spans
		case '*':
			if i > start {
				spans = append(spans, [2]int{start, i})
			}
			*inBlock = true
			i++
		}
	}
	if !*inBlock && start < len(line) {
		spans = append(spans, [2]int{start, len(line)})
	}
	return spans
}
