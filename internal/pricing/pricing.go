// Package pricing prices token usage from a per-million-token pricing index.
package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/provider/models"
)

// ReasonNotFound is recorded when no pricing record matches the model.
const ReasonNotFound = "pricing_not_found"

// Record is one pricing index entry. Prices are USD per million tokens.
type Record struct {
	Provider                 string   `json:"provider"`
	Model                    string   `json:"model"`
	InputPricePerMillionUSD  *float64 `json:"input_price_per_million_usd"`
	OutputPricePerMillionUSD *float64 `json:"output_price_per_million_usd"`
	Unit                     string   `json:"unit,omitempty"`
	LastUpdated              string   `json:"last_updated,omitempty"`
	Source                   string   `json:"source,omitempty"`
	SourceURL                string   `json:"source_url,omitempty"`
}

// Index is a loaded pricing index.
type Index struct {
	records []Record
}

// NewIndex wraps records.
func NewIndex(records []Record) *Index {
	return &Index{records: records}
}

// Load reads a JSON array of records. An empty path or a missing file yields an
// empty index so that runs are priced as pricing_not_found instead of failing.
func Load(path string) (*Index, error) {
	if path == "" {
		return NewIndex(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewIndex(nil), nil
		}
		return nil, fmt.Errorf("failed to read pricing index: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse pricing index %s: %w", path, err)
	}
	return NewIndex(records), nil
}

// Len returns the number of records.
func (x *Index) Len() int {
	return len(x.records)
}

// Slug returns the index key for a model: "<provider>/<model>" for direct
// providers and the routing slug itself for OpenRouter.
func Slug(provider domain.Provider, model string) string {
	m := models.Normalize(model)
	if provider == domain.ProviderOpenRouter {
		return m
	}
	return string(provider) + "/" + m
}

// Find returns the record whose model equals slug exactly.
func (x *Index) Find(slug string) (Record, bool) {
	if slug == "" {
		return Record{}, false
	}
	for _, rec := range x.records {
		if rec.Model == slug {
			return rec, true
		}
	}
	return Record{}, false
}

// Cost prices usage for the given provider and model.
func (x *Index) Cost(provider domain.Provider, model string, usage domain.Usage) domain.Cost {
	rec, ok := x.Find(Slug(provider, model))
	if !ok {
		return Calc(usage.InputTokens, usage.OutputTokens, nil)
	}
	return Calc(usage.InputTokens, usage.OutputTokens, &rec)
}

// Calc computes the cost breakdown. A nil record yields nil costs and
// reason pricing_not_found. A missing price leaves its side nil.
func Calc(tokensIn, tokensOut int, rec *Record) domain.Cost {
	cost := domain.Cost{
		InputTokens:  tokensIn,
		OutputTokens: tokensOut,
	}
	if rec == nil {
		cost.Reason = ReasonNotFound
		return cost
	}

	cost.InputPricePerMillion = rec.InputPricePerMillionUSD
	cost.OutputPricePerMillion = rec.OutputPricePerMillionUSD
	cost.PricingLastUpdated = rec.LastUpdated
	cost.PricingSource = rec.Source
	cost.PricingSourceURL = rec.SourceURL
	cost.Unit = rec.Unit

	var total float64
	priced := false
	if p := rec.InputPricePerMillionUSD; p != nil {
		v := float64(tokensIn) / 1_000_000 * *p
		cost.InputCost = ptr(round6(v))
		total += v
		priced = true
	}
	if p := rec.OutputPricePerMillionUSD; p != nil {
		v := float64(tokensOut) / 1_000_000 * *p
		cost.OutputCost = ptr(round6(v))
		total += v
		priced = true
	}
	if priced {
		cost.TotalCost = ptr(round6(total))
	}
	return cost
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func ptr(v float64) *float64 {
	return &v
}
