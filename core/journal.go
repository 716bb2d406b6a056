package core

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
)

// Journal appends one line per routing table change, so that a reader tailing the file sees every transition.
type Journal struct {
	Path string
	file *os.File
	w    *bufio.Writer
	once sync.Once
}

func JournalPath(dir string, id state.NodeId) string {
	return filepath.Join(dir, fmt.Sprintf(state.JournalName, id))
}

// OpenJournal truncates or creates the journal of node id in dir.
func OpenJournal(dir string, id state.NodeId) (*Journal, error) {
	p := JournalPath(dir, id)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{
		Path: p,
		file: f,
		w:    bufio.NewWriter(f),
	}, nil
}

func (j *Journal) Record(rs *state.RouterState) error {
	_, err := j.w.WriteString(rs.StringRoutes() + "\n")
	if err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *Journal) Close() error {
	var err error
	j.once.Do(func() {
		err = j.w.Flush()
		if cerr := j.file.Close(); err == nil {
			err = cerr
		}
	})
	return err
}
