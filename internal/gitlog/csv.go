package gitlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/seanblong/timemachine/pkg/models"
)

// csvDateLayouts are tried in order when parsing the date column.
var csvDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ReadCSV reads an exported commit history with columns
// id,author,date,commit,summary,details (no header row). The id column is
// ignored; chunk IDs are derived from the commit date instead.
func ReadCSV(path string) ([]models.CommitRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]models.CommitRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6

	var records []models.CommitRecord
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		date, err := parseCSVDate(row[2])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		records = append(records, models.CommitRecord{
			Author:  row[1],
			Date:    date,
			Hash:    row[3],
			Subject: row[4],
			Body:    row[5],
		})
	}
	return records, nil
}

func parseCSVDate(s string) (time.Time, error) {
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
