package usecase

import (
	"regexp"
	"strings"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

var queryYearPattern = regexp.MustCompile(`\b(20[1-2]\d)\b`)

// AnalyzeQuery extracts structured filter hints from a free-text query.
// The three dimensions are independent; a missing signal leaves that
// dimension unconstrained.
func AnalyzeQuery(query string, tables domain.RuleTables) domain.QueryFilters {
	var filters domain.QueryFilters
	lower := strings.ToLower(query)

	if m := queryYearPattern.FindString(query); m != "" {
		filters.Year = m
	}

	for _, rule := range tables.QueryDocTypes {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				filters.DocumentType = rule.Type
				break
			}
		}
		if filters.DocumentType != "" {
			break
		}
	}

	for _, rule := range tables.Regions {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				filters.Region = rule.Region
				break
			}
		}
		if filters.Region != "" {
			break
		}
	}

	return filters
}
