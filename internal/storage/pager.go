package storage

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Pager wraps one table file, performing page-addressed reads and writes
// and owning the monotonically increasing append cursor used by
// WriteNewPage.
type Pager struct {
	file   *os.File
	cursor int64
	log    zerolog.Logger
}

// OpenPager opens (creating if absent) the table file at path and
// recomputes the append cursor from the file's current length, rather than
// hardcoding it to FirstTreePageOffset on every open (see §9 of the design
// notes: the naive fixed-256 behavior would let a second statement
// overwrite the first tree page).
func OpenPager(path string, log zerolog.Logger) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, &IOError{Op: "open pager file", Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &IOError{Op: "stat pager file", Err: err}
	}
	p := &Pager{file: f, log: log.With().Str("component", "pager").Logger()}
	p.cursor = recomputeCursor(info.Size())
	return p, nil
}

func recomputeCursor(fileLen int64) int64 {
	if fileLen <= FirstTreePageOffset {
		return FirstTreePageOffset
	}
	written := fileLen - FirstTreePageOffset
	pages := (written + PageSize - 1) / PageSize
	return FirstTreePageOffset + pages*PageSize
}

// SetCursor resets the append cursor; used by CreateTable to reserve the
// schema region. OpenPager computes the cursor itself from the file length.
func (p *Pager) SetCursor(offset int64) { p.cursor = offset }

// Cursor returns the current append cursor.
func (p *Pager) Cursor() int64 { return p.cursor }

// ReadPage seeks to offset and reads exactly PageSize bytes.
func (p *Pager) ReadPage(offset int64) ([]byte, error) {
	buf := make([]byte, PageSize)
	if err := p.readExactAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadSchemaPage reads the first SchemaRegionBytes bytes of the file and
// places them into a zero-padded PageSize buffer, matching decode_node's
// expectations.
func (p *Pager) ReadSchemaPage() ([]byte, error) {
	raw := make([]byte, SchemaRegionBytes)
	n, err := p.file.ReadAt(raw, 0)
	if err != nil && err != io.EOF {
		return nil, &IOError{Op: "read schema page", Err: err}
	}
	if n < headerSize {
		return nil, &CorruptionError{Detail: "read_schema_page: short read, table not initialized"}
	}
	buf := make([]byte, PageSize)
	copy(buf, raw[:n])
	return buf, nil
}

// WriteSchemaBytes overwrites the schema region at offset 0 with the given
// (already-encoded) schema node bytes.
func (p *Pager) WriteSchemaBytes(data []byte) error {
	if _, err := p.file.WriteAt(data, 0); err != nil {
		return &IOError{Op: "write schema page", Err: err}
	}
	return p.file.Sync()
}

// WriteNewPage writes page at the current cursor, returns the pre-write
// cursor, and advances the cursor by PageSize.
func (p *Pager) WriteNewPage(page []byte) (int64, error) {
	if len(page) != PageSize {
		return 0, &CorruptionError{Detail: "write_new_page: page is not exactly PageSize bytes"}
	}
	offset := p.cursor
	if _, err := p.file.WriteAt(page, offset); err != nil {
		return 0, &IOError{Op: "write new page", Err: err}
	}
	if err := p.file.Sync(); err != nil {
		return 0, &IOError{Op: "sync new page", Err: err}
	}
	p.cursor += PageSize
	return offset, nil
}

// WritePageAt overwrites the page at offset in place.
func (p *Pager) WritePageAt(page []byte, offset int64) error {
	if len(page) != PageSize {
		return &CorruptionError{Detail: "write_page_at: page is not exactly PageSize bytes"}
	}
	if _, err := p.file.WriteAt(page, offset); err != nil {
		return &IOError{Op: "write page at offset", Err: err}
	}
	return p.file.Sync()
}

func (p *Pager) readExactAt(buf []byte, offset int64) error {
	n, err := p.file.ReadAt(buf, offset)
	if err != nil && !(err == io.EOF && n == len(buf)) {
		return &IOError{Op: "read page", Err: err}
	}
	if n != len(buf) {
		return &IOError{Op: "read page", Err: io.ErrUnexpectedEOF}
	}
	return nil
}

// Close closes the underlying file.
func (p *Pager) Close() error {
	if err := p.file.Close(); err != nil {
		return &IOError{Op: "close pager file", Err: err}
	}
	return nil
}
