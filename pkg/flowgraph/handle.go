package flowgraph

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Sentinel replaces every double quote of a serialized handle. Handles are
// embedded as strings inside the builder's flow JSON and the builder matches
// them byte for byte, so the substitution must be preserved exactly.
const Sentinel = "œ"

var (
	// ErrSentinelInValue is returned when a descriptor contains the sentinel
	// character and therefore cannot survive an encode/decode round trip.
	ErrSentinelInValue = errors.New("flowgraph: handle value contains the quote sentinel")
	// ErrMalformedHandle is returned when a handle string does not decode to a JSON object.
	ErrMalformedHandle = errors.New("flowgraph: malformed handle")
)

// SourceHandle describes an output port. Field order matches the builder's
// key order and must not change.
type SourceHandle struct {
	DataType    string   `json:"dataType"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	OutputTypes []string `json:"output_types"`
}

// TargetHandle describes an input field. Field order matches the builder's
// key order and must not change.
type TargetHandle struct {
	FieldName  string   `json:"fieldName"`
	ID         string   `json:"id"`
	InputTypes []string `json:"inputTypes"`
	Type       string   `json:"type"`
}

// PortDescriptor is the decoded pair of handles of one edge.
type PortDescriptor struct {
	Source SourceHandle
	Target TargetHandle
}

// Identity returns the composite identity sourceId|outputName|outputType|fieldName.
// The output type is the first declared output type.
func (p PortDescriptor) Identity() string {
	outputType := ""
	if len(p.Source.OutputTypes) > 0 {
		outputType = p.Source.OutputTypes[0]
	}
	return strings.Join([]string{p.Source.ID, p.Source.Name, outputType, p.Target.FieldName}, "|")
}

// EncodeSourceHandle serializes h into the builder's handle string form.
func EncodeSourceHandle(h SourceHandle) (string, error) {
	if containsSentinel(h.DataType, h.ID, h.Name) || containsSentinel(h.OutputTypes...) {
		return "", ErrSentinelInValue
	}
	if h.OutputTypes == nil {
		h.OutputTypes = []string{}
	}
	return encodeHandle(h)
}

// EncodeTargetHandle serializes h into the builder's handle string form.
func EncodeTargetHandle(h TargetHandle) (string, error) {
	if containsSentinel(h.FieldName, h.ID, h.Type) || containsSentinel(h.InputTypes...) {
		return "", ErrSentinelInValue
	}
	if h.InputTypes == nil {
		h.InputTypes = []string{}
	}
	return encodeHandle(h)
}

// DecodeSourceHandle inverts EncodeSourceHandle. An empty type list decodes
// to nil, the form EncodeSourceHandle writes as [].
func DecodeSourceHandle(s string) (SourceHandle, error) {
	var h SourceHandle
	if err := decodeHandle(s, &h); err != nil {
		return SourceHandle{}, err
	}
	if len(h.OutputTypes) == 0 {
		h.OutputTypes = nil
	}
	return h, nil
}

// DecodeTargetHandle inverts EncodeTargetHandle. An empty type list decodes
// to nil.
func DecodeTargetHandle(s string) (TargetHandle, error) {
	var h TargetHandle
	if err := decodeHandle(s, &h); err != nil {
		return TargetHandle{}, err
	}
	if len(h.InputTypes) == 0 {
		h.InputTypes = nil
	}
	return h, nil
}

// DecodeEdge decodes both handles of e.
func DecodeEdge(e Edge) (PortDescriptor, error) {
	src, err := DecodeSourceHandle(e.SourceHandle)
	if err != nil {
		return PortDescriptor{}, fmt.Errorf("sourceHandle: %w", err)
	}
	tgt, err := DecodeTargetHandle(e.TargetHandle)
	if err != nil {
		return PortDescriptor{}, fmt.Errorf("targetHandle: %w", err)
	}
	return PortDescriptor{Source: src, Target: tgt}, nil
}

// Connect builds a fully populated edge between two ports, including the
// builder's derived edge id and the decoded handle copies.
func Connect(src SourceHandle, tgt TargetHandle) (Edge, error) {
	sh, err := EncodeSourceHandle(src)
	if err != nil {
		return Edge{}, err
	}
	th, err := EncodeTargetHandle(tgt)
	if err != nil {
		return Edge{}, err
	}
	return Edge{
		ID:           EdgeID(src.ID, sh, tgt.ID, th),
		Source:       src.ID,
		Target:       tgt.ID,
		SourceHandle: sh,
		TargetHandle: th,
		Data:         &EdgeData{SourceHandle: src, TargetHandle: tgt},
	}, nil
}

// EdgeID returns the id the builder derives for an edge.
func EdgeID(source, sourceHandle, target, targetHandle string) string {
	return "reactflow__edge-" + source + sourceHandle + "-" + target + targetHandle
}

func encodeHandle(v any) (string, error) {
	raw, err := json.MarshalNoEscape(v)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(raw), `"`, Sentinel), nil
}

func decodeHandle(s string, v any) error {
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return ErrMalformedHandle
	}
	raw := strings.ReplaceAll(s, Sentinel, `"`)
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedHandle, err)
	}
	return nil
}

func containsSentinel(values ...string) bool {
	for _, v := range values {
		if strings.Contains(v, Sentinel) {
			return true
		}
	}
	return false
}
