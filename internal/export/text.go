// Package export writes and reads recorded spikes.
//
// The text format is one line per spike, "<time ms>\t<neuron>\n", with all
// spikes of neuron 0 first, then neuron 1 and so on. Time is the spike step
// multiplied by the step size. The Arrow format carries the same records
// plus the raw step as an IPC stream.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/brunel/internal/network"
)

// Format selects a spike file encoding.
type Format string

const (
	FormatText  Format = "text"
	FormatArrow Format = "arrow"
)

// ErrMalformed is wrapped by every parse failure.
var ErrMalformed = errors.New("malformed spike record")

// ParseFormat maps a configuration value to a Format. The empty string
// selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatArrow:
		return FormatArrow, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want text or arrow)", s)
	}
}

// Extension returns the conventional file suffix of f.
func (f Format) Extension() string {
	if f == FormatArrow {
		return ".arrow"
	}
	return ".txt"
}

// Record is one decoded spike.
type Record struct {
	TimeMS float64
	Neuron int
	Step   int
}

// StepOf recovers the step of a spike time written with the given step size.
func StepOf(timeMS, stepSize float64) int {
	return int(math.Round(timeMS / stepSize))
}

// FormatTime renders a spike time the way the text format stores it.
func FormatTime(step int, stepSize float64) string {
	return strconv.FormatFloat(float64(step)*stepSize, 'g', 12, 64)
}

// WriteText writes spikes in the text format and returns how many lines
// were written.
func WriteText(w io.Writer, spikes iter.Seq[network.Spike], stepSize float64) (int, error) {
	bw := bufio.NewWriter(w)
	count := 0
	for s := range spikes {
		bw.WriteString(FormatTime(s.Step, stepSize))
		bw.WriteByte('\t')
		bw.WriteString(strconv.Itoa(s.Neuron))
		if err := bw.WriteByte('\n'); err != nil {
			return count, fmt.Errorf("failed to write spike record: %w", err)
		}
		count++
	}
	if err := bw.Flush(); err != nil {
		return count, fmt.Errorf("failed to flush spike records: %w", err)
	}
	return count, nil
}

// ReadText parses a text spike file. Blank lines are skipped.
func ReadText(r io.Reader, stepSize float64) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		timeField, neuronField, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: expected two tab-separated fields", ErrMalformed, line)
		}
		timeMS, err := strconv.ParseFloat(timeField, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: time %q: %v", ErrMalformed, line, timeField, err)
		}
		neuron, err := strconv.Atoi(neuronField)
		if err != nil || neuron < 0 {
			return nil, fmt.Errorf("%w: line %d: neuron %q", ErrMalformed, line, neuronField)
		}
		records = append(records, Record{TimeMS: timeMS, Neuron: neuron, Step: StepOf(timeMS, stepSize)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read spike file: %w", err)
	}
	return records, nil
}

// Write encodes spikes in the given format.
func Write(w io.Writer, f Format, spikes iter.Seq[network.Spike], stepSize float64) (int, error) {
	switch f {
	case FormatArrow:
		return WriteArrow(w, spikes, stepSize)
	default:
		return WriteText(w, spikes, stepSize)
	}
}

// Read decodes a spike stream in the given format.
func Read(r io.Reader, f Format, stepSize float64) ([]Record, error) {
	switch f {
	case FormatArrow:
		return ReadArrow(r)
	default:
		return ReadText(r, stepSize)
	}
}

// WriteFile creates path, including missing parent directories, and writes
// spikes into it.
func WriteFile(path string, f Format, spikes iter.Seq[network.Spike], stepSize float64) (int, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create spike file: %w", err)
	}
	count, err := Write(file, f, spikes, stepSize)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close spike file: %w", cerr)
	}
	return count, err
}

// ReadFile decodes the spike file at path. The format is taken from f, or
// from the file extension when f is empty.
func ReadFile(path string, f Format, stepSize float64) ([]Record, error) {
	if f == "" {
		f = FormatText
		if strings.EqualFold(filepath.Ext(path), FormatArrow.Extension()) {
			f = FormatArrow
		}
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spike file: %w", err)
	}
	defer file.Close()
	return Read(file, f, stepSize)
}

// CountInWindow returns how many records fall inside w.
func CountInWindow(records []Record, w network.Window) int {
	count := 0
	for _, r := range records {
		if w.Contains(r.Step) {
			count++
		}
	}
	return count
}
