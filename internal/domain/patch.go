package domain

import "encoding/json"

// PatchOp is one RFC 6902 operation addressed by an RFC 6901 pointer.
// Only add, replace, and remove are used by this protocol.
type PatchOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// AddOp builds an add operation.
func AddOp(path string, value any) PatchOp {
	return PatchOp{Op: "add", Path: path, Value: mustMarshal(value)}
}

// ReplaceOp builds a replace operation.
func ReplaceOp(path string, value any) PatchOp {
	return PatchOp{Op: "replace", Path: path, Value: mustMarshal(value)}
}

// RemoveOp builds a remove operation.
func RemoveOp(path string) PatchOp {
	return PatchOp{Op: "remove", Path: path}
}

// DecodedValue unmarshals the op's value into a generic JSON tree.
func (op PatchOp) DecodedValue() (any, error) {
	if op.Value == nil {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(op.Value, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func mustMarshal(value any) json.RawMessage {
	raw, err := json.Marshal(value)
	if err != nil {
		// Patch values originate from our own state trees, which are
		// always JSON-compatible.
		panic(err)
	}
	return raw
}
