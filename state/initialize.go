package state

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"exgen/journal"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{start: time.Now()}
}

// OpenJournal opens run journal when configuration enables it. Journal is
// opened once and shared by all requests of the program run.
func (e *LocalEnv) OpenJournal() (*journal.Journal, error) {
	if e.Journal != nil || e.Cfg == nil || !e.Cfg.Journal.Enable {
		return e.Journal, nil
	}
	j, err := journal.Open(e.Cfg.Journal.Path, e.logger())
	if err != nil {
		return nil, fmt.Errorf("unable to open journal: %w", err)
	}
	e.Journal = j
	return j, nil
}

// CloseJournal closes journal if it was opened.
func (e *LocalEnv) CloseJournal() error {
	if e.Journal == nil {
		return nil
	}
	err := e.Journal.Close()
	e.Journal = nil
	return err
}

func (e *LocalEnv) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}
