package quality_test

import (
	"math"
	"strings"
	"testing"

	"github.com/Khamel83/atlas-sub014/internal/config"
	"github.com/Khamel83/atlas-sub014/internal/pathway"
	"github.com/Khamel83/atlas-sub014/internal/quality"
)

const paragraph = "The migration finished ahead of schedule and the team documented every step along the way. " +
	"Each service moved to the new cluster without downtime and the dashboards stayed green throughout. " +
	"Operators reviewed the logs the next morning and found nothing unusual in any of the output."

// article builds clean multi-paragraph prose of at least minLength bytes.
func article(minLength int) string {
	var b strings.Builder
	for b.Len() < minLength {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(paragraph)
	}
	return b.String()
}

func newClassifier() *quality.Classifier {
	cfg := config.Default()
	return quality.NewClassifier(&cfg)
}

func hasIssue(assessment quality.Assessment, issue string) bool {
	for _, got := range assessment.Issues {
		if got == issue {
			return true
		}
	}
	return false
}

func TestClassifyCleanArticle(t *testing.T) {
	assessment := newClassifier().Classify(article(1500), pathway.KindArticle)

	if assessment.Tier != quality.TierExcellent {
		t.Fatalf("tier = %s, want excellent (score %.2f, issues %v)", assessment.Tier, assessment.Score, assessment.Issues)
	}
	if assessment.Score != 1.0 {
		t.Errorf("score = %.2f, want 1.0", assessment.Score)
	}
	if len(assessment.Issues) != 0 {
		t.Errorf("issues = %v, want none", assessment.Issues)
	}
	if assessment.Confidence != 0.5 {
		t.Errorf("confidence = %.2f, want 0.5", assessment.Confidence)
	}
}

func TestClassifyVeryShortContent(t *testing.T) {
	assessment := newClassifier().Classify("tiny.", pathway.KindArticle)

	if assessment.Tier != quality.TierFailed {
		t.Fatalf("tier = %s, want failed", assessment.Tier)
	}
	if !hasIssue(assessment, quality.IssueVeryShort) {
		t.Errorf("issues = %v, want %s", assessment.Issues, quality.IssueVeryShort)
	}
}

func TestClassifyErrorPage(t *testing.T) {
	assessment := newClassifier().Classify("404 Not Found", pathway.KindArticle)

	if assessment.Tier != quality.TierFailed {
		t.Fatalf("tier = %s, want failed", assessment.Tier)
	}
	if assessment.Score != 0 {
		t.Errorf("score = %.2f, want 0", assessment.Score)
	}
	if !hasIssue(assessment, "404 not found") {
		t.Errorf("issues = %v, want fingerprint phrase recorded", assessment.Issues)
	}
}

func TestClassifyFakeTranscript(t *testing.T) {
	// A feed index page masquerading as a transcript: long enough to dodge
	// the length bands but stuffed with feed navigation text.
	content := article(1100) + "\n\nListen on Apple Podcasts. Listen on Spotify. Show notes and episode list below."
	assessment := newClassifier().Classify(content, pathway.KindEpisode)

	if !hasIssue(assessment, quality.IssueFakeTranscript) {
		t.Fatalf("issues = %v, want %s", assessment.Issues, quality.IssueFakeTranscript)
	}
	if !hasIssue(assessment, quality.IssueShortTranscript) {
		t.Errorf("issues = %v, want %s", assessment.Issues, quality.IssueShortTranscript)
	}
	if assessment.Tier == quality.TierGood || assessment.Tier == quality.TierExcellent {
		t.Errorf("tier = %s, want a rejection-band tier", assessment.Tier)
	}
}

func TestClassifyRealTranscript(t *testing.T) {
	assessment := newClassifier().Classify(article(2500), pathway.KindEpisode)

	if assessment.Tier != quality.TierExcellent {
		t.Fatalf("tier = %s, want excellent (issues %v)", assessment.Tier, assessment.Issues)
	}
	if len(assessment.Issues) != 0 {
		t.Errorf("issues = %v, want none", assessment.Issues)
	}
}

func TestClassifyTruncatedArticle(t *testing.T) {
	content := article(1500) + "\n\nContinue reading on the original site to finish the story today."
	assessment := newClassifier().Classify(content, pathway.KindArticle)

	if !hasIssue(assessment, quality.IssueTruncated) {
		t.Fatalf("issues = %v, want %s", assessment.Issues, quality.IssueTruncated)
	}
	if diff := math.Abs(assessment.Score - 0.85); diff > 0.001 {
		t.Errorf("score = %.3f, want 0.85", assessment.Score)
	}
	if assessment.Tier != quality.TierExcellent {
		t.Errorf("tier = %s, want excellent", assessment.Tier)
	}
}

func TestClassifyTruncationIgnoredForEpisodes(t *testing.T) {
	content := article(2500) + "\n\nContinue reading on the original site to finish the story today."
	assessment := newClassifier().Classify(content, pathway.KindEpisode)

	if hasIssue(assessment, quality.IssueTruncated) {
		t.Fatalf("issues = %v, truncation check should only apply to articles and pages", assessment.Issues)
	}
}

func TestClassifyConfidenceGrowsWithSignals(t *testing.T) {
	classifier := newClassifier()

	clean := classifier.Classify(article(1500), pathway.KindArticle)
	garbage := classifier.Classify("bad", pathway.KindArticle)

	if clean.Confidence != 0.5 {
		t.Errorf("clean confidence = %.2f, want 0.5", clean.Confidence)
	}
	if garbage.Confidence <= clean.Confidence {
		t.Errorf("garbage confidence = %.2f, want above %.2f", garbage.Confidence, clean.Confidence)
	}
	if garbage.Confidence > 1 {
		t.Errorf("confidence = %.2f, must not exceed 1", garbage.Confidence)
	}
}
