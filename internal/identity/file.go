package identity

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSource reads identities from a CSV or JSON file instead of the database.
//
// CSV files need a header row naming "username" and "password" columns (in
// any order, extra columns ignored). JSON files hold an array of objects with
// the same keys.
type FileSource struct {
	Path string
}

// NewFileSource returns a source for the given path. The format follows the extension.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load reads the file. Rows with an empty username or password are skipped.
func (f *FileSource) Load(ctx context.Context) ([]Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		ids []Identity
		err error
	)
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".csv":
		ids, err = loadCSV(f.Path)
	case ".json":
		ids, err = loadJSON(f.Path)
	default:
		return nil, fmt.Errorf("unsupported identity file %q: expected .csv or .json", f.Path)
	}
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoIdentities
	}
	return ids, nil
}

func loadCSV(path string) ([]Identity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	userCol, passCol := -1, -1
	for i, field := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "username":
			userCol = i
		case "password":
			passCol = i
		}
	}
	if userCol < 0 || passCol < 0 {
		return nil, fmt.Errorf("CSV header must contain username and password columns")
	}

	ids := make([]Identity, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+2, len(row), len(rows[0]))
		}
		id := Identity{Username: row[userCol], Password: row[passCol]}
		if id.Username == "" || id.Password == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func loadJSON(path string) ([]Identity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}
	defer file.Close()

	var raw []struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	ids := make([]Identity, 0, len(raw))
	for _, r := range raw {
		if r.Username == "" || r.Password == "" {
			continue
		}
		ids = append(ids, Identity{Username: r.Username, Password: r.Password})
	}
	return ids, nil
}
