package classify

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

//go:embed taxonomy.yaml
var taxonomyYAML []byte

type typeDefinition struct {
	Type              string   `yaml:"type"`
	Label             string   `yaml:"label"`
	Phrases           []string `yaml:"phrases"`
	Keywords          []string `yaml:"keywords"`
	AutoFillTier      string   `yaml:"autofill_tier"`
	TaxImportance     string   `yaml:"tax_importance"`
	EstimatedMinutes  int      `yaml:"estimated_minutes"`
	RelatedForms      []string `yaml:"related_forms"`
	ExtractableFields []string `yaml:"extractable_fields"`

	category string
}

type taxonomy struct {
	Categories []struct {
		Name  string           `yaml:"name"`
		Types []typeDefinition `yaml:"types"`
	} `yaml:"categories"`
}

func loadTaxonomy() ([]typeDefinition, error) {
	var parsed taxonomy
	if err := yaml.Unmarshal(taxonomyYAML, &parsed); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}

	var defs []typeDefinition
	for _, cat := range parsed.Categories {
		for _, def := range cat.Types {
			def.category = cat.Name
			if len(def.Phrases) == 0 && len(def.Keywords) == 0 {
				return nil, fmt.Errorf("taxonomy type %q has no patterns", def.Type)
			}
			if domain.ParseDocumentType(def.Type) == domain.DocTypeUnknown {
				return nil, fmt.Errorf("taxonomy type %q is not a known document type", def.Type)
			}
			defs = append(defs, def)
		}
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("taxonomy is empty")
	}
	return defs, nil
}

func (d typeDefinition) maxWeight() float64 {
	return float64(phraseWeight*len(d.Phrases) + keywordWeight*len(d.Keywords))
}
