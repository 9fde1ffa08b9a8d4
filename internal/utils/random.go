package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// StateBytes is the entropy of an authorization state value
const StateBytes = 32

// GenerateState returns 32 random bytes encoded as unpadded base64url
func GenerateState() (string, error) {
	b := make([]byte, StateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
