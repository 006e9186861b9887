package options

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is persisted key/value settings. Values are JSON encoded.
type Store interface {
	// Get decodes the value into dst and reports whether the key exists.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

func encode(key string, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode option %s: %w", key, err)
	}
	return raw, nil
}

func decode(key string, raw []byte, dst any) error {
	if dst == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode option %s: %w", key, err)
	}
	return nil
}
