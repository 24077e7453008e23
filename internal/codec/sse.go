// Package codec implements the line-oriented wire framing for protocol
// events: one JSON document per frame, carried as an SSE data line or as a
// bare JSON line depending on transport.
package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xiaot623/agui/internal/domain"
)

// DataPrefix is the SSE field prefix carrying event payloads.
const DataPrefix = "data:"

// EncodeFrame serializes an event as one SSE frame: "data: <json>\n\n".
func EncodeFrame(event domain.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", event.EventType(), err)
	}
	frame := make([]byte, 0, len(DataPrefix)+len(payload)+3)
	frame = append(frame, DataPrefix...)
	frame = append(frame, ' ')
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')
	return frame, nil
}

// EncodeJSON serializes an event as a bare JSON document (websocket framing).
func EncodeJSON(event domain.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", event.EventType(), err)
	}
	return payload, nil
}

// DecodeLine parses one received line into an event.
//
// Blank lines and comment/keepalive lines (leading ':') yield (nil, nil).
// A single "data:" prefix is stripped before JSON parsing; a doubled prefix
// produced by a double-wrapping emitter is stripped as well. A line that is
// not valid JSON after stripping yields an error for the caller to report;
// it never aborts the stream.
func DecodeLine(line string) (domain.Event, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, ":") {
		return nil, nil
	}

	if rest, ok := strings.CutPrefix(trimmed, DataPrefix); ok {
		trimmed = strings.TrimSpace(rest)
		// Some emitters wrap an already-framed line a second time.
		if rest, ok := strings.CutPrefix(trimmed, DataPrefix); ok {
			trimmed = strings.TrimSpace(rest)
		}
	}

	event, err := domain.ParseEvent([]byte(trimmed))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return event, nil
}

// DecodeError is passed decode failures as the stream is scanned.
type DecodeError func(line string, err error)

// ScanStream reads framed events off r in order, invoking handle for each
// decoded event. Decode failures are reported through onError (which may be
// nil) and scanning continues. A handle error stops the scan and is
// returned to the caller.
func ScanStream(r io.Reader, handle func(domain.Event) error, onError DecodeError) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		event, err := DecodeLine(line)
		if err != nil {
			if onError != nil {
				onError(line, err)
			}
			continue
		}
		if event == nil {
			continue
		}
		if err := handle(event); err != nil {
			return err
		}
	}
	return scanner.Err()
}
