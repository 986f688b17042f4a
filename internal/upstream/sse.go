package upstream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	apierr "llmgate/internal/errors"
	"llmgate/internal/constants"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	ssePrefix = []byte("data:")
	sseDone   = []byte("[DONE]")
)

// DrainSSELines reads the stream line by line, invoking fn for each
// non-empty line. Stops on fn error or EOF.
func DrainSSELines(r io.Reader, fn func(line []byte) error) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, constants.SSEScannerInitialBufferSize)
	scanner.Buffer(buf, constants.SSEScannerMaxBufferSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ParseSSEData strips the "data:" prefix. ok is false for non-data lines.
func ParseSSEData(line []byte) (data []byte, ok bool) {
	trimmed := bytes.TrimSpace(line)
	if !bytes.HasPrefix(trimmed, ssePrefix) {
		return nil, false
	}
	return bytes.TrimSpace(trimmed[len(ssePrefix):]), true
}

// IsSSEDone reports the terminal [DONE] marker.
func IsSSEDone(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), sseDone)
}

// ParseJSONResponse reads and validates the body of a unary upstream
// response. Non-2xx statuses are mapped onto the forwarding error taxonomy
// with the upstream message preserved.
func ParseJSONResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.RequestFailed("read upstream response: " + err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractErrorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("upstream status %d", resp.StatusCode)
		}
		return nil, apierr.FromStatus(resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(body) {
		// Some upstreams answer a unary call with SSE framing; salvage
		// the last JSON frame instead of failing.
		if salvaged, ok := salvageSSEBody(body); ok {
			return salvaged, nil
		}
		return nil, apierr.RequestFailed("upstream returned invalid JSON")
	}
	return body, nil
}

// salvageSSEBody scans a non-JSON body for data: frames and returns the last
// valid JSON payload. Failing that it strips the [DONE] marker and retries
// the body as a whole.
func salvageSSEBody(body []byte) ([]byte, bool) {
	var last []byte
	for _, line := range bytes.Split(body, []byte("\n")) {
		data, ok := ParseSSEData(line)
		if !ok || IsSSEDone(data) {
			continue
		}
		if gjson.ValidBytes(data) {
			last = data
		}
	}
	if last != nil {
		return last, true
	}
	stripped := bytes.TrimSpace(bytes.ReplaceAll(body, sseDone, nil))
	if len(stripped) > 0 && gjson.ValidBytes(stripped) {
		return stripped, true
	}
	return nil, false
}

func extractErrorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	parsed := gjson.ParseBytes(body)
	for _, path := range []string{"error.message", "error", "message"} {
		if v := parsed.Get(path); v.Exists() && v.Type == gjson.String {
			return v.String()
		}
	}
	return strings.TrimSpace(string(body))
}

// NormalizeStreamFlag coerces a bool-ish "stream" field to a real boolean
// and returns its value. Missing field means false.
func NormalizeStreamFlag(raw []byte) ([]byte, bool) {
	v := gjson.GetBytes(raw, "stream")
	if !v.Exists() {
		return raw, false
	}
	stream := false
	switch v.Type {
	case gjson.True:
		stream = true
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(v.String())) {
		case "true", "1", "yes", "on":
			stream = true
		}
	case gjson.Number:
		stream = v.Int() != 0
	}
	out, err := sjson.SetBytes(raw, "stream", stream)
	if err != nil {
		return raw, stream
	}
	return out, stream
}
