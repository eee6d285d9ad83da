package piper

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wyoming event types used by the synthesize exchange.
const (
	eventSynthesize = "synthesize"
	eventAudioStart = "audio-start"
	eventAudioChunk = "audio-chunk"
	eventAudioStop  = "audio-stop"
	eventError      = "error"
)

// event is one Wyoming protocol message:
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>   (if payload_length > 0)
type event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func (e *event) intField(name string, fallback int) int {
	if v, ok := e.Data[name].(float64); ok && v > 0 {
		return int(v)
	}
	return fallback
}

func writeEvent(w io.Writer, evt event, payload []byte) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", len(body), len(payload))
	bw.Write(body)
	bw.WriteByte('\n')
	if len(payload) > 0 {
		bw.Write(payload)
	}
	return bw.Flush()
}

func readEvent(r *bufio.Reader) (*event, []byte, error) {
	header, err := r.ReadString('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	fields := strings.Fields(header)
	if len(fields) != 2 {
		return nil, nil, fmt.Errorf("invalid wyoming header: %q", strings.TrimSpace(header))
	}
	jsonLen, err := strconv.Atoi(fields[0])
	if err != nil || jsonLen < 0 {
		return nil, nil, fmt.Errorf("parsing json length %q", fields[0])
	}
	payloadLen, err := strconv.Atoi(fields[1])
	if err != nil || payloadLen < 0 {
		return nil, nil, fmt.Errorf("parsing payload length %q", fields[1])
	}

	// JSON is followed by a newline.
	body := make([]byte, jsonLen+1)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, fmt.Errorf("reading json: %w", err)
	}

	var evt event
	if err := json.Unmarshal(body[:jsonLen], &evt); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling event: %w", err)
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading payload: %w", err)
		}
	}
	return &evt, payload, nil
}
