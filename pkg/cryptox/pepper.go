package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Configuration for Argon2id hashing.
const (
	memory      = 19 * 1024 // Memory usage in KiB (19 MiB)
	iterations  = 2         // Iteration count
	parallelism = 1         // Number of threads
	keyLength   = 32        // Length of the generated hash
	saltLength  = 16        // Length of the salt
)

var (
	pepperMu   sync.Mutex
	pepper     string
	pepperFile = "data/pepper"
)

// SetPepperPath configures where the pepper lives. It must be called before
// the first hash or verify, later calls only take effect after ReloadPepper.
func SetPepperPath(file string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	pepperFile = file
}

// GetPepper returns the process pepper, loading or creating the pepper file
// on first use. A pepper that cannot be loaded is fatal: hashing without it
// would silently lock every user out on the next start.
func GetPepper() string {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepper != "" {
		return pepper
	}

	p, err := loadOrGeneratePepper(pepperFile)
	if err != nil {
		panic(fmt.Sprintf("cryptox: load pepper: %v", err))
	}
	pepper = p
	return pepper
}

// ReloadPepper rereads the pepper file, e.g. after a restore.
func ReloadPepper() error {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	p, err := loadOrGeneratePepper(pepperFile)
	if err != nil {
		return err
	}
	pepper = p
	return nil
}

func loadOrGeneratePepper(file string) (string, error) {
	file = filepath.Clean(file)

	data, err := os.ReadFile(file)
	if err == nil {
		return string(data), nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return "", err
	}
	raw := make([]byte, keyLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	p := base64.RawURLEncoding.EncodeToString(raw)
	if err := os.WriteFile(file, []byte(p), 0600); err != nil {
		return "", err
	}
	return p, nil
}
