package audit

import (
	"bytes"
	"sync"
)

var bufMu sync.Mutex

type syncWriter struct{ buf *bytes.Buffer }

func (w *syncWriter) Write(p []byte) (int, error) {
	bufMu.Lock()
	defer bufMu.Unlock()
	return w.buf.Write(p)
}

func snapshot(buf *bytes.Buffer) []byte {
	bufMu.Lock()
	defer bufMu.Unlock()
	return append([]byte(nil), buf.Bytes()...)
}

func lineCount(buf *bytes.Buffer) int {
	return bytes.Count(snapshot(buf), []byte("\n"))
}
