// Package journal persists completed trades to an append-only CSV log.
package journal

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	"momentum-trader/internal/errors"
	"momentum-trader/internal/models"
)

// CSVJournal appends trade records to a CSV file, writing the header on first
// use. Appends are serialized; monitors from many goroutines share one journal.
type CSVJournal struct {
	path string
	mu   sync.Mutex
}

// NewCSVJournal creates a journal writing to the given path, creating parent
// directories as needed.
func NewCSVJournal(path string) (*CSVJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "creating journal directory")
	}
	return &CSVJournal{path: path}, nil
}

// Path returns the journal file location.
func (j *CSVJournal) Path() string { return j.path }

// Append durably writes one trade record.
func (j *CSVJournal) Append(record models.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "opening journal")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "stat journal")
	}

	rows := []models.TradeRecord{record}
	if info.Size() == 0 {
		err = gocsv.MarshalFile(&rows, f)
	} else {
		err = gocsv.MarshalWithoutHeaders(&rows, f)
	}
	if err != nil {
		return errors.Wrap(err, "writing journal row")
	}
	return f.Sync()
}

// ReadAll loads every record in the journal. A missing file yields an empty
// slice.
func (j *CSVJournal) ReadAll() ([]models.TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "opening journal")
	}
	defer f.Close()

	var rows []models.TradeRecord
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, errors.Wrap(err, "parsing journal")
	}
	return rows, nil
}
