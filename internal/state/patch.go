// Package state maintains per-thread conversation state trees and applies
// snapshot and JSON Patch updates to them.
package state

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xiaot623/agui/internal/domain"
)

// Apply applies one patch operation to root and returns the new root.
//
// Semantics follow RFC 6902/6901 with the protocol's deviations: missing
// intermediate segments are created as empty objects for add/replace, and a
// remove whose path does not resolve is a no-op. An error means the
// operation could not be applied; the caller skips it and the tree is left
// as returned.
func Apply(root any, op domain.PatchOp) (any, error) {
	segs, err := parsePointer(op.Path)
	if err != nil {
		return root, err
	}

	switch op.Op {
	case "add", "replace":
		value, err := op.DecodedValue()
		if err != nil {
			return root, fmt.Errorf("invalid value for %s %s: %w", op.Op, op.Path, err)
		}
		return setPath(root, segs, value, op.Op == "add")
	case "remove":
		if len(segs) == 0 {
			return root, fmt.Errorf("remove of whole document is not supported")
		}
		return removePath(root, segs), nil
	default:
		return root, fmt.Errorf("unsupported patch op %q", op.Op)
	}
}

// parsePointer splits an RFC 6901 pointer into decoded segments. The empty
// pointer addresses the whole document.
func parsePointer(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("invalid pointer %q: must start with /", path)
	}
	raw := strings.Split(path[1:], "/")
	segs := make([]string, len(raw))
	for i, s := range raw {
		s = strings.ReplaceAll(s, "~1", "/")
		s = strings.ReplaceAll(s, "~0", "~")
		segs[i] = s
	}
	return segs, nil
}

func setPath(node any, segs []string, value any, isAdd bool) (any, error) {
	if len(segs) == 0 {
		return value, nil
	}
	head, rest := segs[0], segs[1:]

	switch n := node.(type) {
	case nil:
		// Auto-vivified intermediate.
		child, err := setPath(nil, rest, value, isAdd)
		if err != nil {
			return node, err
		}
		return map[string]any{head: child}, nil

	case map[string]any:
		if len(rest) == 0 {
			n[head] = value
			return n, nil
		}
		child, err := setPath(n[head], rest, value, isAdd)
		if err != nil {
			return n, err
		}
		n[head] = child
		return n, nil

	case []any:
		if head == "-" {
			if !isAdd || len(rest) != 0 {
				return n, fmt.Errorf("\"-\" is only valid as the final segment of an add")
			}
			return append(n, value), nil
		}
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 {
			return n, fmt.Errorf("invalid array index %q", head)
		}
		if len(rest) == 0 {
			if isAdd {
				if idx > len(n) {
					return n, fmt.Errorf("add index %d out of bounds (len %d)", idx, len(n))
				}
				n = append(n, nil)
				copy(n[idx+1:], n[idx:])
				n[idx] = value
				return n, nil
			}
			if idx >= len(n) {
				return n, fmt.Errorf("replace index %d out of bounds (len %d)", idx, len(n))
			}
			n[idx] = value
			return n, nil
		}
		if idx >= len(n) {
			return n, fmt.Errorf("index %d out of bounds (len %d)", idx, len(n))
		}
		child, err := setPath(n[idx], rest, value, isAdd)
		if err != nil {
			return n, err
		}
		n[idx] = child
		return n, nil

	default:
		return node, fmt.Errorf("cannot traverse %T at segment %q", node, head)
	}
}

// removePath deletes the addressed element. Paths that do not resolve
// (missing keys, out-of-range indices, type mismatches) leave the tree
// untouched.
func removePath(node any, segs []string) any {
	head, rest := segs[0], segs[1:]

	switch n := node.(type) {
	case map[string]any:
		if len(rest) == 0 {
			delete(n, head)
			return n
		}
		if child, ok := n[head]; ok {
			n[head] = removePath(child, rest)
		}
		return n

	case []any:
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx >= len(n) {
			return n
		}
		if len(rest) == 0 {
			return append(n[:idx], n[idx+1:]...)
		}
		n[idx] = removePath(n[idx], rest)
		return n

	default:
		return node
	}
}
