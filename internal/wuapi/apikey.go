package wuapi

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	APIKeyEnv         = "WUOS_API_KEY"
	DefaultAPIKeyFile = "api_key.txt"

	apiKeyPlaceholder = "Paste API key here"
)

// ResolveAPIKey picks the key from the flag value, then the environment, then
// the key file, in that order. A missing key file is created holding a
// placeholder line so the operator has a known place to paste the key; the
// command still fails until a real key is present.
func ResolveAPIKey(flagValue, keyFile string) (string, string, error) {
	if key := strings.TrimSpace(flagValue); key != "" {
		return key, "flag", nil
	}
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		return key, APIKeyEnv, nil
	}

	path := strings.TrimSpace(keyFile)
	if path == "" {
		path = DefaultAPIKeyFile
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if writeErr := os.WriteFile(path, []byte(apiKeyPlaceholder+"\n"), 0o600); writeErr != nil {
			return "", "", fmt.Errorf("create key file %s: %w", path, writeErr)
		}
		return "", "", fmt.Errorf("no API key configured; paste it into %s", displayPath(path))
	}
	if err != nil {
		return "", "", fmt.Errorf("read key file %s: %w", path, err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" || key == apiKeyPlaceholder {
		return "", "", fmt.Errorf("no API key configured; paste it into %s", displayPath(path))
	}
	return key, path, nil
}

func displayPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
