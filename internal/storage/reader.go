package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"graphgate-go/internal/types"

	"go.uber.org/zap"
)

// Reader lists directories and decodes JSON documents from the local filesystem.
type Reader struct {
	logger *zap.Logger
}

func NewReader(logger *zap.Logger) *Reader {
	return &Reader{logger: logger}
}

// ReadDir returns the entry names of dir, sorted.
func (r *Reader) ReadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, notFoundOr(err, dir)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ReadJSON decodes the file at path into v.
func (r *Reader) ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return notFoundOr(err, path)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return types.WrapError(types.ParseFailure, fmt.Sprintf("failed to parse %s: %v", path, err), err)
	}
	return nil
}

// ReadDocument decodes the file at path into a generic value. A file that
// exists but is not valid JSON yields nil with no error.
func (r *Reader) ReadDocument(path string) (any, error) {
	var doc any
	err := r.ReadJSON(path, &doc)
	if types.KindOf(err) == types.ParseFailure {
		r.logger.Warn("Ignoring unparsable document", zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// commandFile is the object form of a command batch file.
type commandFile struct {
	Commands []string `json:"commands"`
}

// ReadCommands reads a batch of Cypher commands. The file holds either a JSON
// array of strings or an object with a "commands" array.
func (r *Reader) ReadCommands(path string) ([]string, error) {
	var raw json.RawMessage
	if err := r.ReadJSON(path, &raw); err != nil {
		return nil, err
	}

	var commands []string
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		if err := json.Unmarshal(raw, &commands); err != nil {
			return nil, types.WrapError(types.ParseFailure, fmt.Sprintf("failed to parse %s: %v", path, err), err)
		}
		return commands, nil
	}

	var file commandFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, types.WrapError(types.ParseFailure, fmt.Sprintf("failed to parse %s: %v", path, err), err)
	}
	return file.Commands, nil
}

// JSONFiles returns the paths of the *.json files directly under dir, sorted.
func (r *Reader) JSONFiles(dir string) ([]string, error) {
	names, err := r.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, name := range names {
		if strings.EqualFold(filepath.Ext(name), ".json") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths, nil
}

func notFoundOr(err error, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return types.WrapError(types.FileNotFound, "No such file or directory: "+path, err)
	}
	return fmt.Errorf("failed to read %s: %w", path, err)
}
