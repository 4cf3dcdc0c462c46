package encoding

import (
	"bufio"
	"fmt"
	"io"

	"animcore/pkg/animation"
)

// ParseError reports a malformed edit log line along with its 1-based line
// number and raw input.
type ParseError struct {
	Line  int
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ReadEditLog parses one edit per line from r. Empty lines are skipped.
// Malformed lines are passed to onError with their 1-based line number; if
// onError returns true the line is skipped and reading continues, otherwise
// reading stops and the parse error is returned. A nil onError aborts on the
// first malformed line.
func ReadEditLog(r io.Reader, onError func(*ParseError) bool) ([]animation.AnimationEdit, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var edits []animation.AnimationEdit
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		edit, err := UnmarshalEdit(text)
		if err != nil {
			parseErr := &ParseError{Line: line, Input: text, Err: err}
			if onError != nil && onError(parseErr) {
				continue
			}
			return edits, parseErr
		}
		edits = append(edits, edit)
	}
	if err := scanner.Err(); err != nil {
		return edits, fmt.Errorf("read edit log: %w", err)
	}
	return edits, nil
}
