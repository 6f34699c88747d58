package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// FileFormat represents the supported catalog file encodings
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatYAML
	FormatTOML
	FormatMsgpack
)

// FormatInfo contains metadata about a catalog file format
type FormatInfo struct {
	Format      FileFormat
	Description string
	Extensions  []string
}

var supportedFormats = map[FileFormat]FormatInfo{
	FormatYAML: {
		Format:      FormatYAML,
		Description: "YAML catalog",
		Extensions:  []string{".yaml", ".yml"},
	},
	FormatTOML: {
		Format:      FormatTOML,
		Description: "TOML catalog",
		Extensions:  []string{".toml"},
	},
	FormatMsgpack: {
		Format:      FormatMsgpack,
		Description: "msgpack catalog snapshot",
		Extensions:  []string{".msgpack", ".mpk"},
	},
}

func (f FileFormat) String() string {
	if info, ok := supportedFormats[f]; ok {
		return info.Description
	}
	return "unknown"
}

// DetectFormat picks a format from the file extension.
func DetectFormat(filename string) (FileFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for format, info := range supportedFormats {
		for _, e := range info.Extensions {
			if e == ext {
				return format, nil
			}
		}
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// Record is the on-disk shape of one catalog row.
type Record struct {
	ID           string   `yaml:"id" toml:"id" msgpack:"id"`
	Kind         string   `yaml:"kind" toml:"kind" msgpack:"kind"`
	Name         string   `yaml:"name" toml:"name" msgpack:"name"`
	Cuisine      string   `yaml:"cuisine,omitempty" toml:"cuisine,omitempty" msgpack:"cuisine,omitempty"`
	Address      string   `yaml:"address,omitempty" toml:"address,omitempty" msgpack:"address,omitempty"`
	Rating       float64  `yaml:"rating,omitempty" toml:"rating,omitempty" msgpack:"rating,omitempty"`
	Price        float64  `yaml:"price,omitempty" toml:"price,omitempty" msgpack:"price,omitempty"`
	RestaurantID string   `yaml:"restaurant_id,omitempty" toml:"restaurant_id,omitempty" msgpack:"restaurant_id,omitempty"`
	Fields       []string `yaml:"fields,omitempty" toml:"fields,omitempty" msgpack:"fields,omitempty"`
}

// Document is the top level of a catalog file.
type Document struct {
	Entities []Record `yaml:"entities" toml:"entities" msgpack:"entities"`
}

// Entity converts a record, keeping a pointer to it as the Owner handle.
func (r *Record) Entity() (Entity, error) {
	kind, err := ParseKind(r.Kind)
	if err != nil {
		return Entity{}, fmt.Errorf("record %q: %w", r.ID, err)
	}
	return Entity{
		ID:           r.ID,
		Kind:         kind,
		Fields:       r.Fields,
		Owner:        r,
		Name:         r.Name,
		Cuisine:      r.Cuisine,
		Address:      r.Address,
		Rating:       r.Rating,
		Price:        r.Price,
		RestaurantID: r.RestaurantID,
	}, nil
}

// RecordOf is the inverse of Record.Entity.
func RecordOf(e Entity) Record {
	return Record{
		ID:           e.ID,
		Kind:         e.Kind.String(),
		Name:         e.Name,
		Cuisine:      e.Cuisine,
		Address:      e.Address,
		Rating:       e.Rating,
		Price:        e.Price,
		RestaurantID: e.RestaurantID,
		Fields:       e.Fields,
	}
}

// Decode reads a catalog document in the given format.
func Decode(r io.Reader, format FileFormat) ([]Entity, error) {
	var doc Document
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: yaml: %w", ErrMalformed, err)
		}
	case FormatTOML:
		if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: toml: %w", ErrMalformed, err)
		}
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: msgpack: %w", ErrMalformed, err)
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}

	entities := make([]Entity, 0, len(doc.Entities))
	for i := range doc.Entities {
		e, err := doc.Entities[i].Entity()
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// Encode writes entities as a catalog document in the given format.
func Encode(w io.Writer, format FileFormat, entities []Entity) error {
	doc := Document{Entities: make([]Record, 0, len(entities))}
	for _, e := range entities {
		doc.Entities = append(doc.Entities, RecordOf(e))
	}
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(&doc)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(&doc)
	}
	return fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
}

// ReadFile loads a catalog file, picking the decoder from its extension.
func ReadFile(path string) ([]Entity, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Decode(bytes.NewReader(data), format)
}

// WriteFile writes a catalog file, picking the encoder from its extension.
func WriteFile(path string, entities []Entity) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, format, entities); err != nil {
		return fmt.Errorf("encode catalog %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
