package frame

import (
	"bytes"
	"io"

	"github.com/xitongsys/parquet-go/source"
)

// MemFile is an in-memory source.ParquetFile. A reader serves a fixed byte
// slice; a writer appends to a buffer exposed through Bytes.
type MemFile struct {
	data []byte
	r    *bytes.Reader
	buf  *bytes.Buffer
}

func newMemReader(data []byte) *MemFile {
	return &MemFile{data: data, r: bytes.NewReader(data)}
}

// NewMemWriter returns a parquet sink; read Bytes after WriteStop.
func NewMemWriter() *MemFile {
	return &MemFile{buf: &bytes.Buffer{}}
}

func (m *MemFile) Create(string) (source.ParquetFile, error) { return m, nil }

// Open hands out an independent cursor over the same bytes; the parquet
// reader opens one handle per column chunk.
func (m *MemFile) Open(string) (source.ParquetFile, error) {
	if m.r == nil {
		return newMemReader(m.Bytes()), nil
	}
	return newMemReader(m.data), nil
}

func (m *MemFile) Seek(offset int64, whence int) (int64, error) {
	if m.r == nil {
		return int64(m.buf.Len()), nil
	}
	return m.r.Seek(offset, whence)
}

func (m *MemFile) Read(b []byte) (int, error) {
	if m.r == nil {
		return 0, io.EOF
	}
	return m.r.Read(b)
}

func (m *MemFile) Write(b []byte) (int, error) {
	if m.buf == nil {
		m.buf = &bytes.Buffer{}
	}
	return m.buf.Write(b)
}

func (m *MemFile) Close() error { return nil }

func (m *MemFile) Bytes() []byte {
	if m.buf == nil {
		return nil
	}
	return m.buf.Bytes()
}
