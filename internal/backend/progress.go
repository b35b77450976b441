package backend

import (
	"io"
	"sync"
)

// progressReader wraps the upload body and reports cumulative bytes
// read. The multipart uploader reads from several goroutines, so the
// counter is locked.
type progressReader struct {
	r  io.Reader
	fn ProgressFunc

	mu    sync.Mutex
	total int64
}

func newProgressReader(r io.Reader, fn ProgressFunc) io.Reader {
	if fn == nil {
		return r
	}
	return &progressReader{r: r, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.total += int64(n)
		total := p.total
		p.mu.Unlock()
		p.fn(total)
	}
	return n, err
}
