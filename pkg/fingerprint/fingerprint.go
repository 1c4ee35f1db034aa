// Package fingerprint hashes item snapshots so stored rows can be compared
// across loads independently of the identifiers a run assigned.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/models"
)

// Generate returns the SHA-256 of the canonical JSON form of data.
func Generate(data map[string]any) string {
	return GenerateWithExclusions(data, nil)
}

// GenerateWithExclusions skips the dot-notation paths in exclude, e.g.
// "identifier" or "references.organism".
func GenerateWithExclusions(data map[string]any, exclude map[string]bool) string {
	var b strings.Builder
	canonicalize(&b, data, exclude, "")
	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// Snapshot fingerprints an item's content: class and attributes. Identifiers
// differ between runs, so they and the reference targets are left out.
func Snapshot(s models.Snapshot) string {
	return GenerateWithExclusions(s.Map(), map[string]bool{
		"identifier":  true,
		"references":  true,
		"collections": true,
	})
}

func canonicalize(b *strings.Builder, data any, exclude map[string]bool, path string) {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		first := true
		for _, k := range keys {
			fieldPath := k
			if path != "" {
				fieldPath = path + "." + k
			}
			if excluded(fieldPath, exclude) {
				continue
			}
			if !first {
				b.WriteByte(',')
			}
			first = false
			key, _ := json.Marshal(k)
			b.Write(key)
			b.WriteByte(':')
			canonicalize(b, v[k], exclude, fieldPath)
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			canonicalize(b, item, exclude, path)
		}
		b.WriteByte(']')
	default:
		raw, _ := json.Marshal(v)
		b.Write(raw)
	}
}

func excluded(path string, exclude map[string]bool) bool {
	if exclude == nil {
		return false
	}
	if exclude[path] {
		return true
	}
	for prefix := range exclude {
		if strings.HasPrefix(path, prefix+".") {
			return true
		}
	}
	return false
}
