package cache

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// The persisted blob is the entry map as JSON, zstd-compressed.
var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

func encodeEntries(entries map[string]Entry) ([]byte, error) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal cache entries: %w", err)
	}
	return encoder.EncodeAll(raw, nil), nil
}

func decodeEntries(blob []byte) (map[string]Entry, error) {
	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress cache blob: %w", err)
	}
	entries := make(map[string]Entry)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal cache entries: %w", err)
	}
	return entries, nil
}
