package memory

import (
	"encoding/json"
	"fmt"
)

// encodingVersion is bumped whenever the stored envelope changes shape.
const encodingVersion = 1

type envelope struct {
	Version  int      `json:"version"`
	OwnerID  string   `json:"owner_id"`
	Memories []Memory `json:"memories"`
}

// Encode serializes an owner's memory collection into the self-describing
// form handed to the gateway.
func Encode(ownerID string, memories []Memory) ([]byte, error) {
	env := envelope{
		Version:  encodingVersion,
		OwnerID:  ownerID,
		Memories: memories,
	}
	if env.Memories == nil {
		env.Memories = []Memory{}
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode memories: %w", err)
	}
	return data, nil
}

// Decode parses data produced by Encode. Unknown versions and malformed
// records are errors; callers treat any error as an empty collection.
func Decode(data []byte) (ownerID string, memories []Memory, err error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("decode memories: %w", err)
	}
	if env.Version != encodingVersion {
		return "", nil, fmt.Errorf("decode memories: unsupported version %d", env.Version)
	}

	seen := make(map[string]bool, len(env.Memories))
	for i, m := range env.Memories {
		if m.ID == "" {
			return "", nil, fmt.Errorf("decode memories: record %d has no id", i)
		}
		if seen[m.ID] {
			return "", nil, fmt.Errorf("decode memories: duplicate id %s", m.ID)
		}
		seen[m.ID] = true
	}
	return env.OwnerID, env.Memories, nil
}
