package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"time"
)

// Stamp directory layout:
//
//	stampDir/
//	  glibc.modulemap.tmpl                 # built-in template, when used
//	  glibc_modulemap-linux-x86_64.json    # one stamp per expansion step
//	  ...
//
// Each expansion step reads and writes only its own stamp, so steps never
// share state.
const stampExt = ".json"

// stamp records the inputs and output of a successful expansion.
type stamp struct {
	Tool         string            `json:"tool"`
	Fingerprint  string            `json:"fingerprint"`
	TemplateHash string            `json:"template_hash"`
	Defines      map[string]string `json:"defines"`
	OutputHash   string            `json:"output_hash"`
	BuildTime    time.Time         `json:"build_time"`
}

// matches reports whether s was produced from the same inputs as want.
func (s *stamp) matches(want *stamp) bool {
	return s.Tool == want.Tool &&
		s.Fingerprint == want.Fingerprint &&
		s.TemplateHash == want.TemplateHash &&
		maps.Equal(s.Defines, want.Defines)
}

func stampPath(dir, target string) string {
	return filepath.Join(dir, target+stampExt)
}

// loadStamp reads the stamp for target from dir.
func loadStamp(dir, target string) (*stamp, error) {
	data, err := os.ReadFile(stampPath(dir, target))
	if err != nil {
		return nil, err
	}
	var s stamp
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// saveStamp writes the stamp for target to dir.
func saveStamp(dir, target string, s *stamp) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(stampPath(dir, target), data, 0o644)
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}
