package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/harrison/dirstat/internal/bmp"
	"github.com/harrison/dirstat/internal/fileutil"
	"github.com/harrison/dirstat/internal/report"
	"github.com/harrison/dirstat/internal/sentence"
)

// Worker verbs understood by RunWorker
const (
	VerbProduce   = "produce"
	VerbConvert   = "convert"
	VerbSentences = "sentences"
)

// ProducerFailed is the producer exit code when the record or the content
// stream could not be written. Successful producers exit with the record's
// line count, clamped to MaxReportExit.
const (
	ProducerFailed = 255
	MaxReportExit  = 254
)

func clampExit(lines int) int {
	if lines > MaxReportExit {
		return MaxReportExit
	}
	if lines < 0 {
		return 0
	}
	return lines
}

// RunWorker executes one worker verb and returns the process exit code.
//
//	produce <path> <report>   write the record for path, stream path to stdout
//	convert <path>            grayscale a bitmap in place
//	sentences <char>          count sentences on stdin containing char
func RunWorker(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "worker: missing verb")
		return 2
	}

	verb, rest := args[0], args[1:]
	switch verb {
	case VerbProduce:
		if len(rest) != 2 {
			fmt.Fprintln(stderr, "usage: worker produce <path> <report>")
			return 2
		}
		return Produce(rest[0], rest[1], stdout, stderr)
	case VerbConvert:
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "usage: worker convert <path>")
			return 2
		}
		if err := bmp.ConvertFile(rest[0]); err != nil {
			fmt.Fprintf(stderr, "convert: %v\n", err)
			return 1
		}
		return 0
	case VerbSentences:
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "usage: worker sentences <char>")
			return 2
		}
		if err := sentence.Run(rest[0], stdin, stdout); err != nil {
			fmt.Fprintf(stderr, "sentences: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "worker: unknown verb %q\n", verb)
		return 2
	}
}

// Produce writes the metadata record of path to reportPath, copies the
// content of path to out, and returns the record's line count as an exit
// code. Producers only run for plain files, so no image extensions apply.
func Produce(path, reportPath string, out, stderr io.Writer) int {
	entry, err := fileutil.StatEntry(filepath.Dir(path), filepath.Base(path))
	if err != nil {
		fmt.Fprintf(stderr, "produce: %v\n", err)
		return ProducerFailed
	}

	data, err := (&report.Reporter{}).Render(entry)
	if err != nil {
		fmt.Fprintf(stderr, "produce: %v\n", err)
		return ProducerFailed
	}
	if err := os.WriteFile(reportPath, data, 0644); err != nil {
		fmt.Fprintf(stderr, "produce: write report: %v\n", err)
		return ProducerFailed
	}

	lines, err := fileutil.CountLines(reportPath)
	if err != nil {
		fmt.Fprintf(stderr, "produce: %v\n", err)
		return ProducerFailed
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(stderr, "produce: %v\n", err)
		return ProducerFailed
	}
	defer f.Close()

	if _, err := io.Copy(out, f); err != nil {
		fmt.Fprintf(stderr, "produce: stream %s: %v\n", path, err)
		return ProducerFailed
	}
	return clampExit(lines)
}
