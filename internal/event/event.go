// Package event decodes GitLab webhook payloads and picks the notification
// rule that applies to each one.
//
// Payloads are decoded tolerantly: only the envelope is parsed up front and
// each rule decodes the typed view it needs. A field that is missing or of an
// unexpected shape makes the rule inapplicable instead of failing the request.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotJSON is returned by Decode when the body is not a JSON object.
var ErrNotJSON = errors.New("event body is not a JSON object")

// Object kinds sent by GitLab in object_kind.
const (
	KindPipeline     = "pipeline"
	KindNote         = "note"
	KindMergeRequest = "merge_request"
)

// Event is a decoded webhook envelope.
type Event struct {
	Kind string
	Raw  json.RawMessage
}

type envelope struct {
	ObjectKind string `json:"object_kind"`
}

// Decode parses the envelope of a webhook body.
func Decode(body []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	return &Event{Kind: env.ObjectKind, Raw: append(json.RawMessage(nil), body...)}, nil
}

// Pipeline decodes the event as a pipeline payload.
func (e *Event) Pipeline() (*Pipeline, error) {
	var p Pipeline
	if err := e.decode(KindPipeline, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Note decodes the event as a note payload.
func (e *Event) Note() (*Note, error) {
	var n Note
	if err := e.decode(KindNote, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// MergeRequest decodes the event as a merge request payload.
func (e *Event) MergeRequest() (*MergeRequest, error) {
	var mr MergeRequest
	if err := e.decode(KindMergeRequest, &mr); err != nil {
		return nil, err
	}
	return &mr, nil
}

func (e *Event) decode(kind string, dest any) error {
	if e.Kind != kind {
		return fmt.Errorf("event is %q, not %q", e.Kind, kind)
	}
	if err := json.Unmarshal(e.Raw, dest); err != nil {
		return fmt.Errorf("decoding %s event: %w", kind, err)
	}
	return nil
}

// Describe returns a short label for logs: the kind plus the action or
// status when there is one.
func (e *Event) Describe() string {
	var attrs struct {
		ObjectAttributes struct {
			Action string `json:"action"`
			Status string `json:"status"`
		} `json:"object_attributes"`
	}
	if err := json.Unmarshal(e.Raw, &attrs); err != nil {
		slog.Debug("event: describe failed", "kind", e.Kind, "error", err)
		return e.Kind
	}
	switch {
	case attrs.ObjectAttributes.Action != "":
		return e.Kind + "/" + attrs.ObjectAttributes.Action
	case attrs.ObjectAttributes.Status != "":
		return e.Kind + "/" + attrs.ObjectAttributes.Status
	}
	return e.Kind
}
