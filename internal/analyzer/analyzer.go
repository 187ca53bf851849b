package analyzer

import (
	"fmt"

	"autoseo/internal/models"
)

// scoring thresholds
const (
	minTitleLen = 30
	minMetaLen  = 70
	minWords    = 300
)

// Result is the aggregate outcome of analyzing one crawl
type Result struct {
	Score         float64        `json:"score"`
	Issues        []models.Issue `json:"issues"`
	PagesAnalyzed int            `json:"pages_analyzed"`
}

// Analyze scores each page independently and averages the per-page scores.
// Issues from all pages are concatenated, each carrying the page it was
// found on. An empty crawl yields a zero score and no issues.
func Analyze(pages []models.Page) Result {
	result := Result{Issues: []models.Issue{}, PagesAnalyzed: len(pages)}
	if len(pages) == 0 {
		return result
	}

	var total float64
	for _, page := range pages {
		score, issues := scorePage(page)
		total += score
		result.Issues = append(result.Issues, issues...)
	}

	result.Score = total / float64(len(pages))
	return result
}

// scorePage starts at 100 and deducts per triggered rule, clamping to [0,100]
func scorePage(page models.Page) (float64, []models.Issue) {
	score := 100.0
	var issues []models.Issue

	deduct := func(issueType, severity string, penalty float64, message string) {
		score -= penalty
		issues = append(issues, models.Issue{
			Type:     issueType,
			Severity: severity,
			Penalty:  penalty,
			Message:  message,
			Page:     page.URL,
		})
	}

	if page.Title == "" {
		deduct("missing_title", "high", 20, "Missing title")
	}
	if len(page.Title) < minTitleLen {
		deduct("title_too_short", "low", 10,
			fmt.Sprintf("Title too short (recommended %d+ characters)", minTitleLen))
	}

	if page.MetaDescription == "" {
		deduct("missing_meta_description", "high", 20, "Missing meta description")
	} else if len(page.MetaDescription) < minMetaLen {
		deduct("meta_description_too_short", "low", 10,
			fmt.Sprintf("Meta description too short (recommended %d+ characters)", minMetaLen))
	}

	if page.WordCount < minWords {
		deduct("thin_content", "medium", 15,
			fmt.Sprintf("Low word count (recommended %d+ words)", minWords))
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, issues
}
