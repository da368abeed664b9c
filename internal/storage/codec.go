package storage

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeValues serializes observation values for the payload column
func encodeValues(values map[string]float64) ([]byte, error) {
	payload, err := msgpack.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return payload, nil
}

// decodeValues deserializes the payload column
func decodeValues(payload []byte) (map[string]float64, error) {
	var values map[string]float64
	if err := msgpack.Unmarshal(payload, &values); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if values == nil {
		values = map[string]float64{}
	}
	return values, nil
}
