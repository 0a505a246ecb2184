package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxErrorBody = 4096

// serverSentEventScanner reads Server-Sent Events from a stream.
type serverSentEventScanner struct {
	scanner *bufio.Scanner
}

func newServerSentEventScanner(r io.Reader) *serverSentEventScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &serverSentEventScanner{scanner: s}
}

// Next returns the payload of the next "data:" line. ok is false at end of stream.
func (s *serverSentEventScanner) Next() (data string, ok bool) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if len(line) < 5 || line[:5] != "data:" {
			continue
		}
		data = line[5:]
		if len(data) > 0 && data[0] == ' ' {
			data = data[1:]
		}
		return data, true
	}
	return "", false
}

func (s *serverSentEventScanner) Err() error { return s.scanner.Err() }

// postJSON sends body as JSON and returns the response when the status is 200.
// Any other status is turned into a ProviderError and the body is closed.
func postJSON(ctx context.Context, hc *http.Client, provider, url string, headers map[string]string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ProviderError{Provider: provider, Code: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
	}
	return resp, nil
}

// send delivers ev unless ctx is done first.
func send(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
