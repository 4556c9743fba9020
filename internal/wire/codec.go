// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package wire implements the Socket.IO 0.6 frame codec: the
// "~m~<len>~m~<payload>" wire format shared by every transport.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sio6/gateway/internal/metrics"
)

const (
	frameTag     = "~m~"
	jsonTag      = "~j~"
	heartbeatTag = "~h~"
)

// Kind classifies a decoded frame's payload.
type Kind int

const (
	// Text carries raw bytes, or the parsed value of a JSON frame.
	Text Kind = iota
	// Heartbeat carries the heartbeat counter as its payload.
	Heartbeat
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Heartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Frame is a single decoded message: its Kind and the corresponding payload.
// For Text frames decoded from a JSON tag, Value holds the unmarshaled value
// (map[string]any, []any, string, float64, bool, or nil); for plain Text
// frames it holds a string; for Heartbeat frames it holds the counter text.
type Frame struct {
	Kind  Kind
	Value any
}

// CodecError reports a malformed or truncated frame stream.
type CodecError struct {
	Reason string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("wire: codec error: %s", e.Reason)
}

// ErrTruncated names the input-ends-mid-frame condition. Decode reports that
// case as a *CodecError with Reason "truncated payload"; CodecError does not
// wrap ErrTruncated, so errors.Is(err, ErrTruncated) is false.
var ErrTruncated = errors.New("truncated frame")

// Message is anything Encode knows how to serialize: a string (emitted as
// Text), a HeartbeatCounter (emitted as Heartbeat), or any other value
// (marshaled as JSON and tagged with "~j~").
type Message = any

// HeartbeatCounter is a Message that encodes as a heartbeat frame carrying
// the given counter value.
type HeartbeatCounter int

// Encode produces the wire representation of a single message. Strings and
// byte slices are emitted as Text frames and a HeartbeatCounter as a
// Heartbeat frame; everything else is JSON-marshaled and tagged.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case string:
		metrics.FramesEncodedTotal.WithLabelValues(Text.String()).Inc()
		return encodeText([]byte(v)), nil
	case []byte:
		metrics.FramesEncodedTotal.WithLabelValues(Text.String()).Inc()
		return encodeText(v), nil
	case HeartbeatCounter:
		return EncodeHeartbeat(int(v)), nil
	default:
		body, err := json.Marshal(v)
		if err != nil {
			metrics.CodecErrorsTotal.Inc()
			return nil, fmt.Errorf("wire: encode: %w", err)
		}
		payload := append([]byte(jsonTag), body...)
		metrics.FramesEncodedTotal.WithLabelValues(Text.String()).Inc()
		return encodeText(payload), nil
	}
}

// EncodeHeartbeat produces the wire representation of a heartbeat frame
// carrying the given counter.
func EncodeHeartbeat(counter int) []byte {
	payload := append([]byte(heartbeatTag), strconv.Itoa(counter)...)
	metrics.FramesEncodedTotal.WithLabelValues(Heartbeat.String()).Inc()
	return encodeText(payload)
}

// EncodeSequence concatenates the encoding of each message in order, with no
// outer wrapper — this is what a polling transport flushes for a queue.
func EncodeSequence(msgs []Message) ([]byte, error) {
	var out []byte
	for _, m := range msgs {
		b, err := Encode(m)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func encodeText(payload []byte) []byte {
	out := make([]byte, 0, len(frameTag)+10+len(frameTag)+len(payload))
	out = append(out, frameTag...)
	out = strconv.AppendInt(out, int64(len(payload)), 10)
	out = append(out, frameTag...)
	out = append(out, payload...)
	return out
}

// Decode consumes a stream of frames from data, returning one Frame per
// "~m~<len>~m~<payload>" unit in order. A malformed length or a payload that
// runs past the end of data yields a *CodecError. Decode stops cleanly at
// the end of input.
func Decode(data []byte) ([]Frame, error) {
	var frames []Frame
	idx := 0
	for idx < len(data) {
		if !hasPrefixAt(data, idx, frameTag) {
			metrics.CodecErrorsTotal.Inc()
			return nil, &CodecError{Reason: fmt.Sprintf("expected frame delimiter at offset %d", idx)}
		}
		idx += len(frameTag)

		lenStart := idx
		for idx < len(data) && isDigit(data[idx]) {
			idx++
		}
		if idx == lenStart {
			metrics.CodecErrorsTotal.Inc()
			return nil, &CodecError{Reason: fmt.Sprintf("missing length at offset %d", lenStart)}
		}
		n, err := strconv.Atoi(string(data[lenStart:idx]))
		if err != nil {
			metrics.CodecErrorsTotal.Inc()
			return nil, &CodecError{Reason: fmt.Sprintf("invalid length %q", data[lenStart:idx])}
		}

		if !hasPrefixAt(data, idx, frameTag) {
			metrics.CodecErrorsTotal.Inc()
			return nil, &CodecError{Reason: fmt.Sprintf("expected frame delimiter after length at offset %d", idx)}
		}
		idx += len(frameTag)

		if idx+n > len(data) {
			metrics.CodecErrorsTotal.Inc()
			return nil, &CodecError{Reason: "truncated payload"}
		}
		payload := data[idx : idx+n]
		idx += n

		frame, err := decodePayload(payload)
		if err != nil {
			return nil, err
		}
		metrics.FramesDecodedTotal.WithLabelValues(frame.Kind.String()).Inc()
		frames = append(frames, frame)
	}
	return frames, nil
}

func decodePayload(payload []byte) (Frame, error) {
	switch {
	case hasPrefixAt(payload, 0, jsonTag):
		var v any
		if err := json.Unmarshal(payload[len(jsonTag):], &v); err != nil {
			metrics.CodecErrorsTotal.Inc()
			return Frame{}, &CodecError{Reason: fmt.Sprintf("invalid JSON payload: %v", err)}
		}
		return Frame{Kind: Text, Value: v}, nil
	case hasPrefixAt(payload, 0, heartbeatTag):
		return Frame{Kind: Heartbeat, Value: string(payload[len(heartbeatTag):])}, nil
	default:
		return Frame{Kind: Text, Value: string(payload)}, nil
	}
}

func hasPrefixAt(data []byte, idx int, prefix string) bool {
	if idx+len(prefix) > len(data) {
		return false
	}
	return string(data[idx:idx+len(prefix)]) == prefix
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
