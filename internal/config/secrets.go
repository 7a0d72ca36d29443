package config

import (
	"fmt"
	"os"
	"strings"
)

// ReadSecret reads a Docker-style secret from /run/secrets/<name>.
// There is deliberately no env-var fallback, so behavior stays consistent
// between local compose runs and production.
func ReadSecret(secretName string) (string, error) {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}
