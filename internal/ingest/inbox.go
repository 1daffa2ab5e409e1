package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/petsync/pkg/models"
)

// Archive name prefixes used by the feed
const (
	InitialPrefix = "pets_"
	NewPrefix     = "new"
	UpdatedPrefix = "updated"
)

// Inbox is the directory the feed's archives are delivered to
type Inbox struct {
	Dir    string
	Logger *logrus.Logger
}

// NewInbox creates a new inbox reader
func NewInbox(dir string, logger *logrus.Logger) *Inbox {
	return &Inbox{
		Dir:    dir,
		Logger: logger,
	}
}

// InitialRecords reads the full export used by the initial load
func (in *Inbox) InitialRecords() ([]models.RawRecord, error) {
	return in.Records(InitialPrefix)
}

// NewRecords reads the newly listed animals
func (in *Inbox) NewRecords() ([]models.RawRecord, error) {
	return in.Records(NewPrefix)
}

// UpdateRecords reads changed listings together with new ones
func (in *Inbox) UpdateRecords() ([]models.RawRecord, error) {
	return in.Records(UpdatedPrefix, NewPrefix)
}

// Archives returns the archives whose names start with any prefix, in lexical order
func (in *Inbox) Archives(prefixes ...string) ([]string, error) {
	entries, err := os.ReadDir(in.Dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox %s: %w", in.Dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, p := range prefixes {
			if strings.HasPrefix(e.Name(), p) {
				paths = append(paths, filepath.Join(in.Dir, e.Name()))
				break
			}
		}
	}
	return paths, nil
}

// Records concatenates the records of every archive matching the prefixes
func (in *Inbox) Records(prefixes ...string) ([]models.RawRecord, error) {
	paths, err := in.Archives(prefixes...)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		in.Logger.Warningf("No archives matching %v in %s", prefixes, in.Dir)
	}

	var records []models.RawRecord
	for _, path := range paths {
		recs, err := ReadArchive(path)
		if err != nil {
			return nil, err
		}
		in.Logger.Infof("%s has been extracted (%d records)", filepath.Base(path), len(recs))
		records = append(records, recs...)
	}
	return records, nil
}
