// Package stream writes pipeline events as server-sent events.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/mikeboe/research-writer/pkg/research"
)

// Encoder writes one SSE frame per event and flushes after each frame when
// the writer supports it.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

func NewEncoder(w io.Writer) *Encoder {
	f, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: f}
}

// Encode writes "event: <name>\ndata: <json>\n\n".
func (e *Encoder) Encode(ev research.Event) error {
	payload := ev.Payload
	if payload == nil {
		payload = struct{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", ev.Name, err)
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Copy encodes every event of seq. It stops consuming the sequence at the
// first write error, which leaves the job resumable.
func (e *Encoder) Copy(seq iter.Seq[research.Event]) (int, error) {
	n := 0
	for ev := range seq {
		if err := e.Encode(ev); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
