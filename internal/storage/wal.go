package storage

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// WAL is the append-only root-pointer log for one table: a sequence of
// PtrSize-byte big-endian offsets, the last of which is the current root.
type WAL struct {
	file *os.File
	log  zerolog.Logger
}

// OpenWAL opens (creating if absent) the WAL file at path.
func OpenWAL(path string, log zerolog.Logger) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, &IOError{Op: "open wal file", Err: err}
	}
	return &WAL{file: f, log: log.With().Str("component", "wal").Logger()}, nil
}

// GetRoot reads the last PtrSize bytes of the WAL. An empty file returns 0,
// meaning "uninitialized"; a length not a multiple of PtrSize is a fatal
// corruption.
func (w *WAL) GetRoot() (int64, error) {
	info, err := w.file.Stat()
	if err != nil {
		return 0, &IOError{Op: "stat wal file", Err: err}
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}
	if size%PtrSize != 0 {
		return 0, &CorruptionError{Detail: "wal: length is not a multiple of PtrSize"}
	}
	buf := make([]byte, PtrSize)
	if _, err := w.file.ReadAt(buf, size-PtrSize); err != nil && err != io.EOF {
		return 0, &IOError{Op: "read wal tail", Err: err}
	}
	return int64(binary.BigEndian.Uint64(buf)), nil
}

// SetRoot appends offset to the end of the WAL. The core discipline is
// that this is always the last write of a root-affecting statement: a
// crash before it leaves the previous root observable, a crash after it
// atomically advances the observable root.
func (w *WAL) SetRoot(offset int64) error {
	info, err := w.file.Stat()
	if err != nil {
		return &IOError{Op: "stat wal file", Err: err}
	}
	buf := make([]byte, PtrSize)
	binary.BigEndian.PutUint64(buf, uint64(offset))
	if _, err := w.file.WriteAt(buf, info.Size()); err != nil {
		return &IOError{Op: "append wal entry", Err: err}
	}
	return w.file.Sync()
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	if err := w.file.Close(); err != nil {
		return &IOError{Op: "close wal file", Err: err}
	}
	return nil
}
