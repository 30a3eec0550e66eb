package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/harrison/fileloop/internal/models"
)

// InputFile is one entry of the input mapping: a file path and its opaque
// metadata blob.
type InputFile struct {
	Path     string
	Metadata json.RawMessage
}

// LoadInput reads an input mapping: a JSON object from file path to an
// arbitrary metadata value. Key order is preserved so scheduling is
// deterministic, which encoding/json's map decoding would not give us.
func LoadInput(path string) ([]InputFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse input file %s: %w", path, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("input file %s: expected a JSON object mapping paths to metadata", path)
	}

	var files []InputFile
	seen := make(map[string]bool)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse input file %s: %w", path, err)
		}
		key := keyTok.(string)

		var meta json.RawMessage
		if err := dec.Decode(&meta); err != nil {
			return nil, fmt.Errorf("input file %s: bad metadata for %q: %w", path, key, err)
		}

		if seen[key] {
			continue
		}
		seen[key] = true
		files = append(files, InputFile{Path: key, Metadata: meta})
	}

	return files, nil
}

// MergeInput adds input files to a task as Pending entries. Files already
// known to the task keep their state, so merging into a resumed task never
// rewinds progress.
func MergeInput(t *models.Task, files []InputFile) {
	for _, in := range files {
		t.AddFile(in.Path, in.Metadata)
	}
}
