package shared

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"stayhub/internal/domain"
)

// DefaultSources is the registry used when no SOURCES_FILE is configured.
func DefaultSources() []domain.Source {
	return []domain.Source{
		{
			Name: "source1",
			URL:  "https://buenro-tech-assessment-materials.s3.eu-north-1.amazonaws.com/structured_generated_data.json",
			Type: "json",
		},
		{
			Name: "source2",
			URL:  "https://buenro-tech-assessment-materials.s3.eu-north-1.amazonaws.com/large_generated_data.json",
			Type: "json",
		},
	}
}

type sourcesFile struct {
	Sources []domain.Source `yaml:"sources" validate:"required,min=1,unique=Name,dive"`
}

// LoadSources reads a YAML registry; an empty path yields DefaultSources.
func LoadSources(path string) ([]domain.Source, error) {
	if path == "" {
		return DefaultSources(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(b)
}

func ParseSources(b []byte) ([]domain.Source, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	for i := range f.Sources {
		if f.Sources[i].Type == "" {
			f.Sources[i].Type = "json"
		}
	}
	if err := validator.New().Struct(f); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			fe := ves[0]
			return nil, &domain.ValidationError{
				Field:   fe.Namespace(),
				Value:   fe.Value(),
				Message: "failed " + fe.Tag() + " check",
			}
		}
		return nil, err
	}
	return f.Sources, nil
}
