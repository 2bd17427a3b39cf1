package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/Autorun/internal/domain"
)

// Format — формат файла конфигурации.
type Format string

const (
	// FormatTOML — формат .replit (по умолчанию).
	FormatTOML Format = "toml"

	// FormatYAML — та же схема в YAML.
	FormatYAML Format = "yaml"
)

// FormatFromPath определяет формат по расширению файла.
// Всё, что не .yaml/.yml, читается как TOML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// options — настройки загрузки.
type options struct {
	lenient bool
}

// Option настраивает загрузку документа.
type Option func(*options)

// WithLenient разрешает неизвестные ключи (entrypoint, hidden и т.п.).
func WithLenient() Option {
	return func(o *options) {
		o.lenient = true
	}
}

// Load читает файл и возвращает провалидированный Registry.
func Load(path string, opts ...Option) (*domain.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, FormatFromPath(path), opts...)
}

// Parse разбирает документ и возвращает провалидированный Registry.
//
// Ошибки синтаксиса и схемы возвращаются как ValidationErrors с ErrSyntax,
// ошибки содержимого — как ValidationErrors со списком всех нарушений.
func Parse(data []byte, format Format, opts ...Option) (*domain.Registry, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	doc, err := decode(data, format, o.lenient)
	if err != nil {
		return nil, err
	}

	var errs errorList
	reg := doc.toRegistry(&errs)
	validate(reg, &errs)

	if err := errs.err(); err != nil {
		return nil, err
	}
	return reg, nil
}

// decode декодирует документ в промежуточную структуру.
func decode(data []byte, format Format, lenient bool) (*document, error) {
	var doc document

	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		if !lenient {
			dec.DisallowUnknownFields()
		}
		if err := dec.Decode(&doc); err != nil {
			return nil, tomlError(err)
		}

	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(!lenient)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, yamlError(err)
		}

	default:
		return nil, ValidationErrors{NewValidationError("", fmt.Sprintf("unsupported format: %q", format), ErrSyntax)}
	}

	return &doc, nil
}

// tomlError переводит ошибку go-toml в ValidationErrors с путём до ключа.
func tomlError(err error) error {
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		errs := make(ValidationErrors, 0, len(strict.Errors))
		for i := range strict.Errors {
			de := &strict.Errors[i]
			row, col := de.Position()
			errs = append(errs, NewValidationError(strings.Join(de.Key(), "."),
				fmt.Sprintf("unknown key (line %d, column %d)", row, col), ErrSyntax))
		}
		return errs
	}

	var de *toml.DecodeError
	if errors.As(err, &de) {
		row, col := de.Position()
		return ValidationErrors{NewValidationError(strings.Join(de.Key(), "."),
			fmt.Sprintf("%s (line %d, column %d)", de.Error(), row, col), ErrSyntax)}
	}

	return ValidationErrors{NewValidationError("", err.Error(), ErrSyntax)}
}

// yamlError переводит ошибку yaml.v3 в ValidationErrors.
func yamlError(err error) error {
	var te *yaml.TypeError
	if errors.As(err, &te) {
		errs := make(ValidationErrors, 0, len(te.Errors))
		for _, msg := range te.Errors {
			errs = append(errs, NewValidationError("", msg, ErrSyntax))
		}
		return errs
	}
	return ValidationErrors{NewValidationError("", err.Error(), ErrSyntax)}
}

// Marshal сериализует Registry обратно в документ.
//
// Parse(Marshal(reg)) возвращает Registry, равный исходному.
func Marshal(reg *domain.Registry, format Format) ([]byte, error) {
	doc := fromRegistry(reg)

	switch format {
	case FormatTOML:
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		enc.SetIndentTables(true)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode toml: %w", err)
		}
		return buf.Bytes(), nil

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}
