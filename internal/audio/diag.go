package audio

import (
	"bytes"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

const maxDiagBytes = 4096

// diagBuffer receives decoder stderr. Complete lines are logged as they
// arrive and the last maxDiagBytes are kept for error reports.
type diagBuffer struct {
	mu      sync.Mutex
	logger  *log.Logger
	tail    []byte
	partial []byte
}

func newDiagBuffer(logger *log.Logger) *diagBuffer {
	return &diagBuffer{logger: logger}
}

func (b *diagBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tail = append(b.tail, p...)
	if over := len(b.tail) - maxDiagBytes; over > 0 {
		b.tail = append(b.tail[:0], b.tail[over:]...)
	}

	b.partial = append(b.partial, p...)
	for {
		i := bytes.IndexByte(b.partial, '\n')
		if i < 0 {
			break
		}
		if line := strings.TrimSpace(string(b.partial[:i])); line != "" {
			b.logger.Warn("stderr", "line", line)
		}
		b.partial = b.partial[i+1:]
	}
	if len(b.partial) > maxDiagBytes {
		b.partial = b.partial[len(b.partial)-maxDiagBytes:]
	}
	return len(p), nil
}

func (b *diagBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.tail))
}
