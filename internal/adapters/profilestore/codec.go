package profilestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// codec converts documents to and from one on-disk format. decode classifies
// failures as ErrCorrupt (not tokenizable) or ErrMalformedData (wrong shape).
type codec interface {
	encode(v any) ([]byte, error)
	decode(data []byte, v any) error
}

// Extensions in lookup order for Load.
var extensions = []string{".json", ".yaml", ".yml", ".toml"}

var codecs = map[string]codec{
	".json": jsonCodec{},
	".yaml": yamlCodec{},
	".yml":  yamlCodec{},
	".toml": tomlCodec{},
}

func codecFor(path string) (codec, error) {
	c, ok := codecs[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	return c, nil
}

// extensionFor maps a configured format name to a file extension.
func extensionFor(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return ".json", nil
	case "yaml", "yml":
		return ".yaml", nil
	case "toml":
		return ".toml", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

type jsonCodec struct{}

func (jsonCodec) encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (jsonCodec) decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		return fmt.Errorf("%w: %w", ErrMalformedData, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after document", ErrCorrupt)
	}
	return nil
}

type yamlCodec struct{}

func (yamlCodec) encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (yamlCodec) decode(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: %w", ErrMalformedData, err)
		}
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return nil
}

type tomlCodec struct{}

func (tomlCodec) encode(v any) ([]byte, error) {
	return toml.Marshal(v)
}

func (tomlCodec) decode(data []byte, v any) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) && !isTOMLTypeMismatch(err) {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		return fmt.Errorf("%w: %w", ErrMalformedData, err)
	}
	return nil
}

// go-toml reports values of the wrong type through DecodeError too, so they
// are told apart from syntax errors by message.
var tomlTypeMismatches = []string{"toml: cannot decode", "toml: cannot store", "toml: cannot assign"}

func isTOMLTypeMismatch(err error) bool {
	msg := err.Error()
	for _, m := range tomlTypeMismatches {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
