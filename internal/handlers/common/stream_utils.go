package common

import (
	"bufio"
	"bytes"
	"io"
	"net/http"

	"llmgate/internal/constants"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// SSEEvent represents a parsed SSE payload.
type SSEEvent struct {
	Event string
	Data  []byte
}

// SSEScanner iterates over SSE events from an upstream stream.
type SSEScanner struct {
	scanner *bufio.Scanner
	event   string
}

// NewSSEScanner creates a scanner with standard buffer settings.
func NewSSEScanner(r io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, constants.SSEScannerInitialBufferSize)
	scanner.Buffer(buf, constants.SSEScannerMaxBufferSize)
	return &SSEScanner{scanner: scanner}
}

// PrepareSSE sets standard headers for SSE and returns writer/flusher pair.
func PrepareSSE(c *gin.Context) (gin.ResponseWriter, http.Flusher) {
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	w := c.Writer
	fl, _ := w.(http.Flusher)
	return w, fl
}

// Next returns the next SSE event. When done is true, the stream finished.
func (s *SSEScanner) Next() (*SSEEvent, bool, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			s.event = ""
			continue
		}
		if bytes.HasPrefix(line, []byte("event:")) {
			s.event = string(bytes.TrimSpace(line[len("event:"):]))
			continue
		}
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(line[len("data:"):])
		if bytes.EqualFold(data, []byte("[DONE]")) {
			return nil, true, nil
		}
		if !gjson.ValidBytes(data) {
			continue
		}
		ev := &SSEEvent{Event: s.event, Data: append([]byte(nil), data...)}
		s.event = ""
		return ev, false, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, false, err
	}
	return nil, true, nil
}
