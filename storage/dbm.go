package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/estraier/tkrzw-go"
	"github.com/zond/textmud"
)

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// hash wraps one tkrzw hash DBM file. tkrzw handles its own file
// locking, but the mutex keeps the Go-side call pattern simple and
// lets Close wait out in-flight operations.
type hash struct {
	mutex sync.RWMutex
	dbm   *tkrzw.DBM
}

func (h *hash) get(key string) ([]byte, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	b, stat := h.dbm.Get(key)
	if stat.GetCode() == tkrzw.StatusNotFoundError {
		return nil, textmud.WithStack(os.ErrNotExist)
	} else if !stat.IsOK() {
		return nil, textmud.WithStack(stat)
	}
	return b, nil
}

func (h *hash) set(key string, value []byte) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if stat := h.dbm.Set(key, value, true); !stat.IsOK() {
		return textmud.WithStack(stat)
	}
	return nil
}

func (h *hash) each(f func(key string, value []byte) (bool, error)) error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	iter := h.dbm.MakeIterator()
	defer iter.Destruct()
	var key, value []byte
	for stat := iter.First(); stat.IsOK(); stat = iter.Next() {
		key, value, stat = iter.Get()
		if !stat.IsOK() {
			break
		}
		cont, err := f(string(key), value)
		if err != nil {
			return textmud.WithStack(err)
		}
		if !cont {
			break
		}
	}
	return nil
}

func (h *hash) close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.dbm.Close()
}

type opener struct {
	dir string
	err error
}

func (o *opener) openHash(name string) *hash {
	if o.err != nil {
		return nil
	}
	dbm := tkrzw.NewDBM()
	stat := dbm.Open(filepath.Join(o.dir, fmt.Sprintf("%s.tkh", name)), true, map[string]string{
		"update_mode":      "UPDATE_APPENDING",
		"record_comp_mode": "RECORD_COMP_NONE",
		"restore_mode":     "RESTORE_SYNC|RESTORE_NO_SHORTCUTS|RESTORE_WITH_HARDSYNC",
	})
	if !stat.IsOK() {
		o.err = textmud.WithStack(stat)
	}
	return &hash{dbm: dbm}
}
