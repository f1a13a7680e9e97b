package cachestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const outputLockOwnerFile = "owner.json"

// OutputLock guards a consolidated export target so two exports cannot
// interleave writes to the same output file. Cache entries themselves are
// never locked; their writes are atomic.
type OutputLock struct {
	lockDir string
}

type outputLockOwner struct {
	PID       int    `json:"pid"`
	Token     string `json:"token"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

func AcquireOutputLock(outputPath string) (OutputLock, error) {
	target := strings.TrimSpace(outputPath)
	if target == "" {
		return OutputLock{}, fmt.Errorf("output path is required")
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return OutputLock{}, fmt.Errorf("create parent for %s: %w", target, err)
	}

	lockDir := filepath.Join(dir, "."+filepath.Base(target)+".lock")
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			ownerPath := filepath.Join(lockDir, outputLockOwnerFile)
			var owner outputLockOwner
			if readErr := ReadJSON(ownerPath, &owner); readErr == nil && owner.PID > 0 && owner.CreatedAt != "" {
				return OutputLock{}, fmt.Errorf(
					"output file is locked: %s (pid=%d created_at=%s host=%s)",
					target, owner.PID, owner.CreatedAt, owner.Hostname,
				)
			}
			return OutputLock{}, fmt.Errorf("output file is locked: %s", target)
		}
		return OutputLock{}, fmt.Errorf("acquire output lock for %s: %w", target, err)
	}

	owner := outputLockOwner{
		PID:       os.Getpid(),
		Token:     uuid.NewString(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	ownerPath := filepath.Join(lockDir, outputLockOwnerFile)
	if err := WriteJSON(ownerPath, owner); err != nil {
		_ = os.Remove(lockDir)
		return OutputLock{}, fmt.Errorf("write output lock owner for %s: %w", target, err)
	}

	return OutputLock{lockDir: lockDir}, nil
}

func (l OutputLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, outputLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release output lock %s: %w", l.lockDir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
