package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tansive/sensorthings/internal/backend"
	"gopkg.in/yaml.v3"
)

// LoadItems reads items from a YAML or JSON file. Placeholders are resolved against the
// environment and a .env file in the working directory.
func LoadItems(filename string) ([]backend.Item, error) {
	var (
		data []byte
		err  error
	)
	if filename == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(filename)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	envFile := ""
	if cwd, err := os.Getwd(); err == nil {
		envFile = filepath.Join(cwd, ".env")
	}
	data, err = PreprocessItems(data, envFile)
	if err != nil {
		return nil, err
	}
	return ParseItems(data)
}

// ParseItems decodes a stream of YAML documents into items. A document may be a single
// entity, a list of entities, or a SensorThings listing ({"value": [...]}) so that the
// output of a GET can be fed back in. Empty documents are skipped.
func ParseItems(data []byte) ([]backend.Item, error) {
	content := strings.TrimSpace(string(data))
	if len(content) == 0 || strings.Trim(content, "- \n\t") == "" {
		return []backend.Item{}, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	items := []backend.Item{}
	for doc := 1; ; doc++ {
		var raw any
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode document %d: %w", doc, err)
		}
		if raw == nil {
			continue
		}
		docItems, err := itemsFromDocument(normalize(raw))
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", doc, err)
		}
		items = append(items, docItems...)
	}
	return items, nil
}

func itemsFromDocument(doc any) ([]backend.Item, error) {
	switch v := doc.(type) {
	case map[string]any:
		if list, ok := listingValues(v); ok {
			return itemsFromList(list)
		}
		if len(v) == 0 {
			return nil, nil
		}
		return []backend.Item{v}, nil
	case []any:
		return itemsFromList(v)
	default:
		return nil, fmt.Errorf("expected a mapping or a list of mappings, got %T", doc)
	}
}

// listingValues recognises a listing: a "value" list plus nothing but @iot annotations.
func listingValues(m map[string]any) ([]any, bool) {
	list, ok := m["value"].([]any)
	if !ok {
		return nil, false
	}
	for k := range m {
		if k != "value" && !strings.HasPrefix(k, "@iot.") {
			return nil, false
		}
	}
	return list, true
}

func itemsFromList(list []any) ([]backend.Item, error) {
	items := make([]backend.Item, 0, len(list))
	for i, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %d: expected a mapping, got %T", i, e)
		}
		items = append(items, m)
	}
	return items, nil
}

// normalize converts map[any]any produced for non-string YAML keys into map[string]any
// so that items always encode as JSON objects.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}
