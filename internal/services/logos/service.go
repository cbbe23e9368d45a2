// Package logos fills brand metadata on stored reports.
package logos

import (
	"context"
	"fmt"
	"strings"

	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/interfaces"
	"github.com/earnboard/earnboard/internal/models"
)

// Service implements interfaces.LogoEnrichService. It runs after report
// builds and only touches reports that have no logo yet; the report builder
// never writes logo fields itself.
type Service struct {
	source  interfaces.LogoSource
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewService creates the logo enrichment service.
func NewService(source interfaces.LogoSource, storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{source: source, storage: storage, logger: logger}
}

// Enrich resolves logos for reports missing them. A source miss is not an
// error; the report is retried on the next cycle. Returns the number of
// reports updated.
func (s *Service) Enrich(ctx context.Context) (int, error) {
	reports, err := s.storage.ReportStorage().List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list reports: %w", err)
	}

	updated := 0
	for _, report := range reports {
		if report.LogoURL != "" {
			continue
		}
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}

		logo, err := s.source.GetLogo(ctx, report.Symbol)
		if err != nil {
			s.logger.Warn().Str("symbol", report.Symbol).Err(err).Msg("Logo lookup failed")
			continue
		}
		if logo == nil {
			continue
		}
		if err := s.storage.ReportStorage().SetLogo(ctx, report.Symbol, logo); err != nil {
			s.logger.Warn().Str("symbol", report.Symbol).Err(err).Msg("Logo save failed")
			continue
		}
		updated++
	}

	if updated > 0 {
		s.logger.Info().Int("updated", updated).Msg("Logos enriched")
	}
	return updated, nil
}

// TemplateSource resolves logos from a URL template containing a {symbol}
// placeholder, e.g. "https://logos.example.com/{symbol}.png". It never makes
// a network call; the CDN serves a placeholder for unknown symbols.
type TemplateSource struct {
	template string
	name     string
}

// NewTemplateSource creates a template-based logo source.
func NewTemplateSource(name, template string) *TemplateSource {
	return &TemplateSource{template: template, name: name}
}

func (t *TemplateSource) GetLogo(_ context.Context, symbol string) (*models.LogoInfo, error) {
	if symbol == "" {
		return nil, nil
	}
	slug := strings.ToLower(strings.ReplaceAll(symbol, ".", "-"))
	return &models.LogoInfo{
		Symbol: symbol,
		URL:    strings.ReplaceAll(t.template, "{symbol}", slug),
		Source: t.name,
	}, nil
}
