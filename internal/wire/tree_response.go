package wire

import (
	"bytes"
	"fmt"

	"ringstore/internal/merkle"
)

// TreeResponse is a TreeRequest's reply: the request it answers,
// followed by the built MerkleTree (spec.md §4.7: "Validator
// (TreeResponse payload): TreeRequest followed by MerkleTree").
type TreeResponse struct {
	Request TreeRequest
	Tree    *merkle.MerkleTree
}

// SerializeTreeResponse writes resp's wire form at version v.
func SerializeTreeResponse(resp TreeResponse, v Version) ([]byte, error) {
	var buf bytes.Buffer
	reqBytes, err := SerializeTreeRequest(resp.Request, v)
	if err != nil {
		return nil, err
	}
	if err := writeBytesLP(&buf, reqBytes); err != nil {
		return nil, err
	}
	if err := resp.Tree.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeserializeTreeResponse reads a TreeResponse encoded at version v.
// Unlike the other messages, the tree's own WriteTo/ReadTree framing
// carries no outer length, so trailing-byte detection only covers the
// request portion; decoding the tree consumes exactly its own bytes.
func DeserializeTreeResponse(payload []byte, v Version) (TreeResponse, error) {
	src := bytes.NewReader(payload)

	reqBytes, err := readBytesLP(src)
	if err != nil {
		return TreeResponse{}, err
	}
	req, err := DeserializeTreeRequest(reqBytes, v)
	if err != nil {
		return TreeResponse{}, fmt.Errorf("wire: tree response: %w", err)
	}

	tree, err := merkle.ReadTree(src)
	if err != nil {
		return TreeResponse{}, fmt.Errorf("wire: tree response: %w", err)
	}

	return TreeResponse{Request: req, Tree: tree}, nil
}

// SerializedSizeTreeResponse returns the exact byte length
// SerializeTreeResponse(resp, v) produces. The tree's own encoding has
// no closed-form size formula (its shape is data-dependent), so this
// measures it directly rather than risk drifting from WriteTo.
func SerializedSizeTreeResponse(resp TreeResponse, v Version) (int, error) {
	data, err := SerializeTreeResponse(resp, v)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
