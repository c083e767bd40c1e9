package provider

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/UnknownOlympus/pincheck/internal/models"
)

// Classify decides serviceability from one page-source snapshot. The "not serviceable"
// markers take precedence; when neither kind matches, undetermined is returned.
func Classify(source string, notServiceable, serviceable []string, undetermined models.Status) (models.Status, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return "", fmt.Errorf("failed to parse page source: %w", err)
	}

	if matchesAny(doc, notServiceable) {
		return models.StatusNotServiceable, nil
	}
	if matchesAny(doc, serviceable) {
		return models.StatusServiceable, nil
	}

	return undetermined, nil
}

func matchesAny(doc *goquery.Document, selectors []string) bool {
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}
