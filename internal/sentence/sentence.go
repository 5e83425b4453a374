// Package sentence implements the default filter program: it counts the
// lines of its input that are well-formed sentences containing a character.
package sentence

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	// Starts upper-case, only letters, digits, spaces, commas and end marks,
	// ends with ., ! or ?
	reSentence = regexp.MustCompile(`^[A-Z][A-Za-z0-9 ,.!?]*[.!?]$`)

	// A comma directly before the conjunction "si" is not allowed
	reCommaBeforeSi = regexp.MustCompile(`,\s*si\b`)
)

// IsCorrect reports whether line is a well-formed sentence.
func IsCorrect(line string) bool {
	return reSentence.MatchString(line) && !reCommaBeforeSi.MatchString(line)
}

// Count returns the number of lines read from r that are correct sentences
// containing c.
func Count(r io.Reader, c rune) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	count := 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.ContainsRune(line, c) && IsCorrect(line) {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to read input: %w", err)
	}
	return count, nil
}

// Run is the filter program body: it counts from stdin and prints the count
// followed by a newline. pattern must be a single character.
func Run(pattern string, stdin io.Reader, stdout io.Writer) error {
	runes := []rune(pattern)
	if len(runes) != 1 {
		return fmt.Errorf("pattern must be a single character, got %q", pattern)
	}

	n, err := Count(stdin, runes[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%d\n", n)
	return err
}
