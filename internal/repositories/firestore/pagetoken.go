package firestore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

func encodePageToken(token any) (string, error) {
	data, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("encode page token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodePageToken(encoded string, out any) error {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode page token: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode page token json: %w", err)
	}
	return nil
}

func clampPageSize(size, fallback, max int) int {
	if size <= 0 {
		size = fallback
	}
	if size > max {
		size = max
	}
	return size
}
