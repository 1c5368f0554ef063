package sessionlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/roach88/rtn/internal/ir"
)

// ParseLine parses one "tag\tvalue\tseconds" line. A value column that is
// not an integer is kept verbatim as a raw record.
func ParseLine(line string) (ir.LogRecord, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, "\t")
	if len(fields) != 3 {
		return ir.LogRecord{}, fmt.Errorf("expected 3 tab-separated fields, got %d", len(fields))
	}
	if fields[0] == "" {
		return ir.LogRecord{}, fmt.Errorf("empty tag")
	}

	rec := ir.LogRecord{Tag: fields[0]}
	if v, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
		rec.Value = v
	} else {
		rec.Raw = fields[1]
		rec.IsRaw = true
	}

	elapsed, err := ir.ParseElapsed(fields[2])
	if err != nil {
		return ir.LogRecord{}, fmt.Errorf("elapsed %q: %w", fields[2], err)
	}
	rec.Elapsed = elapsed
	return rec, nil
}

// Read parses every record from r. Seq is assigned from the line order.
// Blank lines are skipped.
func Read(r io.Reader) ([]ir.LogRecord, error) {
	var records []ir.LogRecord
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rec.Seq = int64(len(records) + 1)
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read session log: %w", err)
	}
	return records, nil
}

// ReadFile parses the session log at path.
func ReadFile(path string) ([]ir.LogRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Validate checks that elapsed stamps are strictly increasing.
func Validate(records []ir.LogRecord) error {
	for i := 1; i < len(records); i++ {
		if records[i].Elapsed <= records[i-1].Elapsed {
			return fmt.Errorf("record %d (%s) at %s does not follow record %d at %s",
				i+1, records[i].Tag, ir.FormatElapsed(records[i].Elapsed),
				i, ir.FormatElapsed(records[i-1].Elapsed))
		}
	}
	return nil
}
