package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// hashValue canonicalizes v to JSON (Go's encoding/json sorts map[string]*
// keys lexicographically, which is what makes this deterministic across
// re-serialization) and returns a hex sha256 digest. Re-serializing an
// unchanged value always produces the same digest.
func hashValue(kind Kind, v any) string {
	// A small envelope keeps kinds from colliding when two variants
	// happen to canonicalize to the same bytes (e.g., an empty object).
	envelope := struct {
		Kind Kind `json:"kind"`
		V    any  `json:"v"`
	}{Kind: kind, V: v}
	b, err := json.Marshal(envelope)
	if err != nil {
		// Block payloads are always JSON-marshalable (strings, maps, and
		// nested ParamDef/ToolResult values); a marshal failure here
		// indicates a programmer error in a custom Params value, not a
		// recoverable runtime condition.
		panic("model: content block is not JSON-marshalable: " + err.Error())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hashBlock(block Block) string {
	if block == nil {
		return hashValue("", nil)
	}
	return hashValue(block.blockKind(), block)
}

// hashMessage computes a Message's stable id from its role and the ids of
// its content blocks (not their full payloads — content ids are themselves
// already stable hashes, so this is a cheap two-level hash).
func hashMessage(role Role, content []Content) string {
	ids := make([]string, len(content))
	for i, c := range content {
		ids[i] = c.ID
	}
	return hashValue(Kind("message:"+role), ids)
}
