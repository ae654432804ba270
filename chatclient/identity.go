package chatclient

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const identityFile = "device_id"

// DefaultIdentityDir returns the per-user directory the device identity is
// persisted in.
func DefaultIdentityDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, "wifi-chat"), nil
}

// LoadOrCreateDeviceID returns the durable device identity stored under dir,
// generating and persisting a fresh one on first use. Once a token exists it
// is never regenerated; it is the only state the client keeps across runs.
func LoadOrCreateDeviceID(dir string) (string, error) {
	path := filepath.Join(dir, identityFile)
	if raw, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			return id, nil
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create identity dir: %w", err)
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist device identity: %w", err)
	}
	return id, nil
}
