package domain

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	BaseSentiment      = 0.8
	EnrichVarianceMin  = -0.1
	EnrichVarianceMax  = 0.1
	RescoreVarianceMin = -0.5
	RescoreVarianceMax = 0.1
	ReviewThreshold    = 0.5
	TagReviewRequired  = "review_required"
	financeKeyword     = "money"
)

// EnrichTranscript builds the first result for a conversation from its text
// and a variance drawn from [EnrichVarianceMin, EnrichVarianceMax].
func EnrichTranscript(tenantID string, payload TranscriptPayload, variance float64) ResultRecord {
	tags := []string{"general"}
	if strings.Contains(payload.Text, financeKeyword) {
		tags = []string{"finance", "risk"}
	}
	return ResultRecord{
		ConversationID: payload.ConversationID,
		SentimentScore: Round3(BaseSentiment + variance),
		Summary:        fmt.Sprintf("Processed text length %d.", utf8.RuneCountInString(payload.Text)),
		Tags:           tags,
		Status:         StatusCompleted,
		TenantID:       tenantID,
	}
}

// Rescore applies a perturbation to an existing record in place.
// Identifier, summary and tenant are left untouched.
func Rescore(rec *ResultRecord, perturbation float64) {
	rec.SentimentScore = Round3(Clamp01(rec.SentimentScore + perturbation))
	if rec.SentimentScore < ReviewThreshold && !rec.HasTag(TagReviewRequired) {
		rec.Tags = append(rec.Tags, TagReviewRequired)
	}
	rec.Status = StatusCompleted
}

func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
