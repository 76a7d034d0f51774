// Package complexity scores how demanding a message is to answer well and
// classifies its apparent task type. The analyzer is a pure function over its
// inputs: no I/O, no clock, no randomness, safe for concurrent use.
package complexity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/orangecat-xyz/autorouter/internal/models"
)

const (
	longMessageChars   = 2000
	mediumMessageChars = 500

	extendedHistoryTokens = 4000
	ongoingHistoryTokens  = 1000

	charsPerToken = 4

	minOutputTokens = 100
	maxOutputTokens = 4000

	maxCountedFencePairs = 3
	fenceWeight          = 0.15
)

// numberedLineRe matches numbered list markers at the start of a line.
var numberedLineRe = regexp.MustCompile(`(?m)^\d+\.`)

// Analyzer converts a message plus optional conversation history into a
// ComplexityAnalysis. It holds no state; the zero value is ready to use.
type Analyzer struct{}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze scores one message. It always succeeds: degenerate inputs (empty
// message, empty history) produce a zero score, not an error.
func (a *Analyzer) Analyze(message string, history []models.Message) models.ComplexityAnalysis {
	score := 0.0
	var factors []string

	// Length contribution: the longer threshold wins, they never stack.
	msgLen := len(message)
	switch {
	case msgLen > longMessageChars:
		score += 0.3
		factors = append(factors, "Long input")
	case msgLen > mediumMessageChars:
		score += 0.15
		factors = append(factors, "Moderately long input")
	}

	// Keyword scan: case-insensitive substring containment over the fixed
	// dictionary. Every hit adds its weight and votes for its task type.
	lower := strings.ToLower(message)
	votes := make(map[models.TaskType]int)
	for _, rule := range keywordRules {
		if strings.Contains(lower, rule.keyword) {
			score += rule.weight
			votes[rule.task]++
		}
	}

	taskType := models.TaskConversation
	if len(votes) > 0 {
		taskType = winningTaskType(votes)
		factors = append(factors, fmt.Sprintf("%s detected", taskType))
	}

	// Conversation history contribution.
	historyChars := 0
	for _, turn := range history {
		historyChars += len(turn.Content)
	}
	switch historyTokens := historyChars / charsPerToken; {
	case historyTokens > extendedHistoryTokens:
		score += 0.2
		factors = append(factors, "Extended conversation history")
	case historyTokens > ongoingHistoryTokens:
		score += 0.1
		factors = append(factors, "Ongoing conversation history")
	}

	// Question density contribution.
	switch questions := strings.Count(message, "?"); {
	case questions > 3:
		score += 0.2
		factors = append(factors, "Multiple questions")
	case questions > 1:
		score += 0.1
		factors = append(factors, "Contains questions")
	}

	// Code fences trump the keyword vote: any paired fence means coding.
	if fencePairs := strings.Count(message, "```") / 2; fencePairs > 0 {
		score += fenceWeight * float64(min(fencePairs, maxCountedFencePairs))
		taskType = models.TaskCoding
		factors = append(factors, "Contains code blocks")
	}

	// Numbered list markers signal a multi-step request.
	if len(numberedLineRe.FindAllStringIndex(message, -1)) > 3 {
		score += 0.15
		factors = append(factors, "Multi-step request")
	}

	score = clampScore(score)

	inputTokens := (msgLen + historyChars + charsPerToken - 1) / charsPerToken
	outputTokens := estimateOutputTokens(inputTokens, taskType)

	reason := "Simple task"
	if len(factors) > 0 {
		reason = strings.Join(factors, ", ")
	}

	return models.ComplexityAnalysis{
		Score:                 score,
		TaskType:              taskType,
		EstimatedInputTokens:  inputTokens,
		EstimatedOutputTokens: outputTokens,
		EstimatedTokens:       inputTokens + outputTokens,
		Reason:                reason,
	}
}

// winningTaskType picks the task type with the most votes. Ties resolve to
// the earlier entry in taskTypeOrder, never to map iteration order.
func winningTaskType(votes map[models.TaskType]int) models.TaskType {
	winner := models.TaskConversation
	best := 0
	for _, t := range taskTypeOrder {
		if votes[t] > best {
			best = votes[t]
			winner = t
		}
	}
	return winner
}

// estimateOutputTokens sizes the expected response from the input volume and
// task type, clamped to a sane range.
func estimateOutputTokens(inputTokens int, taskType models.TaskType) int {
	multiplier := 1.0
	switch taskType {
	case models.TaskCoding:
		multiplier = 2.0
	case models.TaskResearch:
		multiplier = 2.5
	case models.TaskSummarization:
		multiplier = 0.3
	}

	out := int(float64(inputTokens) * multiplier)
	if out < minOutputTokens {
		return minOutputTokens
	}
	if out > maxOutputTokens {
		return maxOutputTokens
	}
	return out
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
