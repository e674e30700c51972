// manifest.go: module and theme manifest parsing (JSON, YAML, TOML)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agilira/argus"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Manifest candidate file names, in lookup order.
var (
	PluginManifestNames = []string{"plugin.json", "plugin.yaml", "plugin.yml", "plugin.toml"}
	ThemeManifestNames  = []string{"theme.json", "theme.yaml", "theme.yml", "theme.toml"}
)

// AutoloadEntry maps a namespace prefix to a directory relative to the module.
type AutoloadEntry struct {
	Prefix string `json:"prefix"`
	Dir    string `json:"dir"`
}

// Manifest describes a module or theme on disk. It is re-parsed from disk at
// every load and never cached across boots.
//
// Example plugin.json:
//
//	{
//	  "name": "acme/hello",
//	  "title": "Hello",
//	  "namespace": "Acme\\Hello\\",
//	  "version": "1.0.0",
//	  "autoload": {"psr-4": {"Acme\\Hello\\": "src/"}},
//	  "providers": ["Acme\\Hello\\Providers\\HelloProvider"]
//	}
type Manifest struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitempty"`
	Namespace   string          `json:"namespace,omitempty"`
	Version     string          `json:"version,omitempty"`
	Description string          `json:"description,omitempty"`
	Author      string          `json:"author,omitempty"`
	Parent      string          `json:"parent,omitempty"`
	Autoload    []AutoloadEntry `json:"autoload,omitempty"`
	Providers   []string        `json:"providers,omitempty"`

	// Dir is the module directory; Path the manifest file, empty when synthesized.
	Dir  string `json:"dir"`
	Path string `json:"path,omitempty"`

	// Synthesized is set for themes without a manifest file.
	Synthesized bool `json:"synthesized,omitempty"`
}

// autoloadMap decodes a psr-4 object while keeping declaration order.
type autoloadMap []AutoloadEntry

type manifestDocument struct {
	Name        string `json:"name" yaml:"name"`
	Title       string `json:"title" yaml:"title"`
	Namespace   string `json:"namespace" yaml:"namespace"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`
	Author      string `json:"author" yaml:"author"`
	Parent      string `json:"parent" yaml:"parent"`
	Autoload    struct {
		PSR4 autoloadMap `json:"psr-4" yaml:"psr-4"`
	} `json:"autoload" yaml:"autoload"`
	Providers []string `json:"providers" yaml:"providers"`
}

type tomlManifestDocument struct {
	Name        string `toml:"name"`
	Title       string `toml:"title"`
	Namespace   string `toml:"namespace"`
	Version     string `toml:"version"`
	Description string `toml:"description"`
	Author      string `toml:"author"`
	Parent      string `toml:"parent"`
	Autoload    struct {
		PSR4 map[string]string `toml:"psr-4"`
	} `toml:"autoload"`
	Providers []string `toml:"providers"`
}

// UnmarshalJSON walks the object token by token so entry order survives.
func (m *autoloadMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("autoload.psr-4 must be an object")
	}

	entries := autoloadMap{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		prefix, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("autoload.psr-4 key must be a string")
		}
		var dir string
		if err := dec.Decode(&dir); err != nil {
			return fmt.Errorf("autoload.psr-4 %q: %w", prefix, err)
		}
		entries = append(entries, AutoloadEntry{Prefix: prefix, Dir: dir})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = entries
	return nil
}

// UnmarshalYAML reads mapping node pairs in document order.
func (m *autoloadMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: autoload.psr-4 must be a mapping", node.Line)
	}

	entries := make(autoloadMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var dir string
		if err := node.Content[i+1].Decode(&dir); err != nil {
			return fmt.Errorf("autoload.psr-4 %q: %w", node.Content[i].Value, err)
		}
		entries = append(entries, AutoloadEntry{Prefix: node.Content[i].Value, Dir: dir})
	}
	*m = entries
	return nil
}

// ParseManifest reads and decodes the manifest at path. The format is chosen
// from the file extension.
func ParseManifest(path string) (*Manifest, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - path comes from directory discovery
	if err != nil {
		return nil, NewManifestParseError(cleanPath, err)
	}

	manifest, err := decodeManifest(data, argus.DetectFormat(cleanPath))
	if err != nil {
		return nil, NewManifestParseError(cleanPath, err)
	}
	manifest.Path = cleanPath
	manifest.Dir = filepath.Dir(cleanPath)
	return manifest, nil
}

func decodeManifest(data []byte, format argus.ConfigFormat) (*Manifest, error) {
	var doc manifestDocument
	switch format {
	case argus.FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case argus.FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case argus.FormatTOML:
		return decodeTOMLManifest(data)
	default:
		return nil, fmt.Errorf("unsupported manifest format %s", format.String())
	}

	return &Manifest{
		Name:        strings.TrimSpace(doc.Name),
		Title:       doc.Title,
		Namespace:   doc.Namespace,
		Version:     doc.Version,
		Description: doc.Description,
		Author:      doc.Author,
		Parent:      doc.Parent,
		Autoload:    []AutoloadEntry(doc.Autoload.PSR4),
		Providers:   doc.Providers,
	}, nil
}

// decodeTOMLManifest decodes TOML manifests. TOML tables carry no order, so
// autoload entries are sorted by prefix.
func decodeTOMLManifest(data []byte) (*Manifest, error) {
	var doc tomlManifestDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	prefixes := make([]string, 0, len(doc.Autoload.PSR4))
	for prefix := range doc.Autoload.PSR4 {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	autoload := make([]AutoloadEntry, 0, len(prefixes))
	for _, prefix := range prefixes {
		autoload = append(autoload, AutoloadEntry{Prefix: prefix, Dir: doc.Autoload.PSR4[prefix]})
	}

	return &Manifest{
		Name:        strings.TrimSpace(doc.Name),
		Title:       doc.Title,
		Namespace:   doc.Namespace,
		Version:     doc.Version,
		Description: doc.Description,
		Author:      doc.Author,
		Parent:      doc.Parent,
		Autoload:    autoload,
		Providers:   doc.Providers,
	}, nil
}

// findManifest returns the first candidate present in dir.
func findManifest(dir string, candidates []string) (string, bool) {
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// synthesizeThemeManifest builds the manifest of a theme without a manifest
// file: the name is the title-cased slug.
func synthesizeThemeManifest(dir string) *Manifest {
	slug := filepath.Base(dir)
	title := cases.Title(language.English).String(strings.NewReplacer("-", " ", "_", " ").Replace(slug))
	return &Manifest{
		Name:        title,
		Title:       title,
		Dir:         dir,
		Synthesized: true,
	}
}

// ValidateModuleName rejects names that could escape the module root or
// confuse shells and logs. A single '/' is allowed for vendor/module names.
func ValidateModuleName(name string) error {
	if name == "" {
		return NewInvalidModuleNameError(name, "empty name")
	}
	if strings.Contains(name, "..") {
		return NewInvalidModuleNameError(name, "path traversal sequence")
	}
	if strings.Contains(name, `\`) || strings.Count(name, "/") > 1 ||
		strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return NewInvalidModuleNameError(name, "path separator characters")
	}
	for _, r := range name {
		if r < 32 || r == 127 {
			return NewInvalidModuleNameError(name, "control character").
				WithContext("control_character_code", r)
		}
	}
	for _, pattern := range []string{"~", "|", "&", ";", "$", "`", "(", ")", "[", "]", "{", "}", "<", ">"} {
		if strings.Contains(name, pattern) {
			return NewInvalidModuleNameError(name, "dangerous character").
				WithContext("dangerous_character", pattern)
		}
	}
	return nil
}
