// Package quality scores fetched content against structural and content
// pattern heuristics and assigns a discrete quality tier.
package quality

import (
	"strings"

	"github.com/Khamel83/atlas-sub014/internal/config"
	"github.com/Khamel83/atlas-sub014/internal/pathway"
)

// Tier is a discrete quality bucket for operator triage.
type Tier string

const (
	TierFailed     Tier = "failed"
	TierStub       Tier = "stub"
	TierLowQuality Tier = "low_quality"
	TierGood       Tier = "good"
	TierExcellent  Tier = "excellent"
)

// Issue tags attached alongside matched fingerprint phrases.
const (
	IssueVeryShort       = "very_short"
	IssueShort           = "short"
	IssueBrief           = "brief"
	IssueFakeTranscript  = "fake_transcript"
	IssueShortTranscript = "short_transcript"
	IssueTruncated       = "truncated"
	IssueFewParagraphs   = "few_paragraphs"
	IssueSentenceRhythm  = "sentence_rhythm"
)

// Length bands and penalty weights. Manually tuned starting points, not
// calibrated against measured data.
const (
	severeLengthLimit   = 100
	moderateLengthLimit = 500
	lightLengthLimit    = 1000
	transcriptMinLength = 2000

	severeLengthPenalty    = 0.85
	moderateLengthPenalty  = 0.4
	lightLengthPenalty     = 0.2
	fakeTranscriptPenalty  = 0.5
	shortTranscriptPenalty = 0.2
	truncationPenalty      = 0.15
	structuralFactor       = 0.9

	feedIndicatorMinimum = 3

	minAvgSentenceWords = 5
	maxAvgSentenceWords = 45
)

// Assessment is the classifier's verdict on one piece of content.
type Assessment struct {
	Score      float64
	Tier       Tier
	Issues     []string
	Confidence float64
}

// Classifier evaluates raw fetched content. Safe for concurrent use.
type Classifier struct {
	fingerprints      []config.Fingerprint
	feedIndicators    []string
	truncationPhrases []string
}

// NewClassifier builds a classifier from configured fingerprint lists.
func NewClassifier(cfg *config.Config) *Classifier {
	return &Classifier{
		fingerprints:      cfg.Quality.Fingerprints,
		feedIndicators:    cfg.Quality.FeedIndicators,
		truncationPhrases: cfg.Quality.TruncationPhrases,
	}
}

// Classify scores content for a source kind. Scoring starts at 1.0 and stacks
// weighted penalties: length bands, error-page fingerprints, kind-specific
// checks, then a structural multiplier. The final score is clamped to [0, 1]
// and mapped onto a tier.
func (c *Classifier) Classify(content string, kind pathway.SourceKind) Assessment {
	score := 1.0
	var issues []string

	trimmed := strings.TrimSpace(content)
	lowered := strings.ToLower(trimmed)

	switch n := len(trimmed); {
	case n < severeLengthLimit:
		score -= severeLengthPenalty
		issues = append(issues, IssueVeryShort)
	case n < moderateLengthLimit:
		score -= moderateLengthPenalty
		issues = append(issues, IssueShort)
	case n < lightLengthLimit:
		score -= lightLengthPenalty
		issues = append(issues, IssueBrief)
	}

	for _, fingerprint := range c.fingerprints {
		if strings.Contains(lowered, fingerprint.Phrase) {
			score -= fingerprint.Weight
			issues = append(issues, fingerprint.Phrase)
		}
	}

	switch kind {
	case pathway.KindEpisode:
		if c.countFeedIndicators(lowered) >= feedIndicatorMinimum {
			score -= fakeTranscriptPenalty
			issues = append(issues, IssueFakeTranscript)
		}
		if len(trimmed) < transcriptMinLength {
			score -= shortTranscriptPenalty
			issues = append(issues, IssueShortTranscript)
		}
	default:
		for _, phrase := range c.truncationPhrases {
			if strings.Contains(lowered, phrase) {
				score -= truncationPenalty
				issues = append(issues, IssueTruncated)
				break
			}
		}
	}

	if countParagraphs(trimmed) < 2 {
		score *= structuralFactor
		issues = append(issues, IssueFewParagraphs)
	}
	if avg := averageSentenceWords(trimmed); avg > 0 && (avg < minAvgSentenceWords || avg > maxAvgSentenceWords) {
		score *= structuralFactor
		issues = append(issues, IssueSentenceRhythm)
	}

	score = clamp01(score)
	return Assessment{
		Score:      score,
		Tier:       tierForScore(score),
		Issues:     issues,
		Confidence: confidence(len(issues)),
	}
}

func (c *Classifier) countFeedIndicators(lowered string) int {
	count := 0
	for _, indicator := range c.feedIndicators {
		if strings.Contains(lowered, indicator) {
			count++
		}
	}
	return count
}

func countParagraphs(content string) int {
	count := 0
	for _, block := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count
}

func averageSentenceWords(content string) float64 {
	sentences := 0
	words := 0
	for _, sentence := range strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		n := len(strings.Fields(sentence))
		if n == 0 {
			continue
		}
		sentences++
		words += n
	}
	if sentences == 0 {
		return 0
	}
	return float64(words) / float64(sentences)
}

func tierForScore(score float64) Tier {
	switch {
	case score < 0.2:
		return TierFailed
	case score < 0.4:
		return TierStub
	case score < 0.6:
		return TierLowQuality
	case score < 0.8:
		return TierGood
	default:
		return TierExcellent
	}
}

// confidence grows with the number of independent signals found. Reporting
// only; never used for gating.
func confidence(signals int) float64 {
	value := 0.5 + 0.1*float64(signals)
	if value > 1 {
		return 1
	}
	return value
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
