package complexity

import (
	"strings"
	"testing"

	"github.com/orangecat-xyz/autorouter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_EmptyInput(t *testing.T) {
	a := NewAnalyzer()
	result := a.Analyze("", nil)

	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, models.TaskConversation, result.TaskType)
	assert.Equal(t, "Simple task", result.Reason)
	assert.Equal(t, 0, result.EstimatedInputTokens)
	assert.Equal(t, minOutputTokens, result.EstimatedOutputTokens)
}

func TestAnalyze_ScoreAlwaysInRange(t *testing.T) {
	a := NewAnalyzer()

	messages := []string{
		"",
		"hi",
		"What? Why? How? When? Where?",
		strings.Repeat("analyze compare evaluate research prove theorem ", 100),
		strings.Repeat("x", 10000),
		"```go\nfunc main() {}\n``` ```py\npass\n``` ```sh\nls\n``` ```c\nint x;\n```",
	}

	for _, msg := range messages {
		result := a.Analyze(msg, nil)
		assert.GreaterOrEqual(t, result.Score, 0.0, "message %q", msg)
		assert.LessOrEqual(t, result.Score, 1.0, "message %q", msg)
	}
}

func TestAnalyze_OutputTokensAlwaysClamped(t *testing.T) {
	a := NewAnalyzer()

	messages := []string{
		"",
		"short",
		"summarize",
		strings.Repeat("research ", 5000),
	}

	for _, msg := range messages {
		result := a.Analyze(msg, nil)
		assert.GreaterOrEqual(t, result.EstimatedOutputTokens, minOutputTokens, "message length %d", len(msg))
		assert.LessOrEqual(t, result.EstimatedOutputTokens, maxOutputTokens, "message length %d", len(msg))
	}
}

func TestAnalyze_LengthContribution(t *testing.T) {
	a := NewAnalyzer()

	t.Run("long message without keywords", func(t *testing.T) {
		result := a.Analyze(strings.Repeat("z", 2500), nil)

		assert.InDelta(t, 0.3, result.Score, 1e-9)
		assert.Equal(t, models.TaskConversation, result.TaskType)
		assert.Equal(t, "Long input", result.Reason)
	})

	t.Run("medium message without keywords", func(t *testing.T) {
		result := a.Analyze(strings.Repeat("z", 800), nil)

		assert.InDelta(t, 0.15, result.Score, 1e-9)
		assert.Equal(t, "Moderately long input", result.Reason)
	})

	t.Run("thresholds do not stack", func(t *testing.T) {
		long := a.Analyze(strings.Repeat("z", 5000), nil)
		assert.InDelta(t, 0.3, long.Score, 1e-9)
	})
}

func TestAnalyze_KeywordVoting(t *testing.T) {
	a := NewAnalyzer()

	tests := []struct {
		name     string
		message  string
		taskType models.TaskType
	}{
		{"coding keywords", "please debug this function", models.TaskCoding},
		{"analysis keywords", "compare and evaluate these options", models.TaskAnalysis},
		{"research keywords", "do a comprehensive literature review with sources", models.TaskResearch},
		{"reasoning keywords", "prove the theorem step by step", models.TaskComplexReasoning},
		{"creative keywords", "write a poem about lyrics", models.TaskCreative},
		{"translation keywords", "translate this paragraph", models.TaskTranslation},
		{"summarization keywords", "summarize the key points", models.TaskSummarization},
		{"professional domain votes analysis", "review this legal compliance audit", models.TaskAnalysis},
		{"no keywords", "hello there", models.TaskConversation},
		{"substring containment", "the encoder output looks fine", models.TaskCoding}, // "code" inside "encoder"
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := a.Analyze(tt.message, nil)
			assert.Equal(t, tt.taskType, result.TaskType)
		})
	}
}

func TestAnalyze_TaskTypeTieBreak(t *testing.T) {
	a := NewAnalyzer()

	// One coding vote and one analysis vote: the earlier category in the
	// fixed order wins.
	result := a.Analyze("debug the legal thing", nil)
	assert.Equal(t, models.TaskCoding, result.TaskType)

	// Two analysis votes beat one coding vote.
	result = a.Analyze("debug the legal compliance thing", nil)
	assert.Equal(t, models.TaskAnalysis, result.TaskType)
}

func TestAnalyze_CodeFences(t *testing.T) {
	a := NewAnalyzer()

	t.Run("fence forces coding over other votes", func(t *testing.T) {
		msg := "summarize the key points of this recap ```text\nsome content\n```"
		result := a.Analyze(msg, nil)
		assert.Equal(t, models.TaskCoding, result.TaskType)
		assert.Contains(t, result.Reason, "Contains code blocks")
	})

	t.Run("three fence pairs force coding", func(t *testing.T) {
		msg := "compare ```a``` evaluate ```b``` assess ```c```"
		result := a.Analyze(msg, nil)
		assert.Equal(t, models.TaskCoding, result.TaskType)
	})

	t.Run("fence contribution caps at three pairs", func(t *testing.T) {
		three := a.Analyze("```a``` ```b``` ```c```", nil)
		five := a.Analyze("```a``` ```b``` ```c``` ```d``` ```e```", nil)

		assert.InDelta(t, 0.45, three.Score, 1e-9)
		assert.InDelta(t, three.Score, five.Score, 1e-9)
	})

	t.Run("unpaired fence does not count", func(t *testing.T) {
		result := a.Analyze("```", nil)
		assert.Equal(t, 0.0, result.Score)
		assert.Equal(t, models.TaskConversation, result.TaskType)
	})
}

func TestAnalyze_QuestionDensity(t *testing.T) {
	a := NewAnalyzer()

	tests := []struct {
		name  string
		msg   string
		score float64
	}{
		{"one question", "what time is it?", 0.0},
		{"two questions", "what? where?", 0.1},
		{"four questions", "what? where? when? why?", 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := a.Analyze(tt.msg, nil)
			assert.InDelta(t, tt.score, result.Score, 1e-9)
		})
	}
}

func TestAnalyze_HistoryContribution(t *testing.T) {
	a := NewAnalyzer()

	historyOf := func(chars int) []models.Message {
		return []models.Message{
			{Role: "user", Content: strings.Repeat("z", chars/2)},
			{Role: "assistant", Content: strings.Repeat("z", chars-chars/2)},
		}
	}

	t.Run("short history adds nothing", func(t *testing.T) {
		result := a.Analyze("hi", historyOf(1000))
		assert.Equal(t, 0.0, result.Score)
	})

	t.Run("ongoing history", func(t *testing.T) {
		// 8000 chars is about 2000 tokens
		result := a.Analyze("hi", historyOf(8000))
		assert.InDelta(t, 0.1, result.Score, 1e-9)
		assert.Contains(t, result.Reason, "Ongoing conversation history")
	})

	t.Run("extended history", func(t *testing.T) {
		// 20000 chars is about 5000 tokens
		result := a.Analyze("hi", historyOf(20000))
		assert.InDelta(t, 0.2, result.Score, 1e-9)
		assert.Contains(t, result.Reason, "Extended conversation history")
	})

	t.Run("history counts toward input tokens", func(t *testing.T) {
		result := a.Analyze("hi", historyOf(998))
		// (2 + 998 + 3) / 4
		assert.Equal(t, 250, result.EstimatedInputTokens)
	})
}

func TestAnalyze_NumberedSteps(t *testing.T) {
	a := NewAnalyzer()

	t.Run("four numbered lines fire", func(t *testing.T) {
		msg := "1. first\n2. second\n3. third\n4. fourth"
		result := a.Analyze(msg, nil)
		assert.InDelta(t, 0.15, result.Score, 1e-9)
		assert.Contains(t, result.Reason, "Multi-step request")
	})

	t.Run("three numbered lines do not", func(t *testing.T) {
		msg := "1. first\n2. second\n3. third"
		result := a.Analyze(msg, nil)
		assert.Equal(t, 0.0, result.Score)
	})

	t.Run("mid-line numbers do not count", func(t *testing.T) {
		msg := "see items 1. and 2. and 3. and 4. inline"
		result := a.Analyze(msg, nil)
		assert.Equal(t, 0.0, result.Score)
	})
}

func TestAnalyze_OutputTokenMultipliers(t *testing.T) {
	a := NewAnalyzer()

	t.Run("research expands output", func(t *testing.T) {
		// 997 filler chars + "research" keyword: 1005 chars, 252 input tokens
		msg := "research" + strings.Repeat(" z", 497) + "zzz"
		result := a.Analyze(msg, nil)
		require.Equal(t, models.TaskResearch, result.TaskType)
		assert.Equal(t, result.EstimatedInputTokens*5/2, result.EstimatedOutputTokens)
	})

	t.Run("summarization shrinks output", func(t *testing.T) {
		msg := "summarize " + strings.Repeat("z", 1990)
		result := a.Analyze(msg, nil)
		require.Equal(t, models.TaskSummarization, result.TaskType)
		assert.Equal(t, 500, result.EstimatedInputTokens)
		assert.Equal(t, 150, result.EstimatedOutputTokens)
	})

	t.Run("coding doubles output with clamp", func(t *testing.T) {
		msg := "debug " + strings.Repeat("z", 9994)
		result := a.Analyze(msg, nil)
		require.Equal(t, models.TaskCoding, result.TaskType)
		assert.Equal(t, 2500, result.EstimatedInputTokens)
		// 2500 * 2.0 exceeds the ceiling
		assert.Equal(t, maxOutputTokens, result.EstimatedOutputTokens)
	})

	t.Run("estimated total is input plus output", func(t *testing.T) {
		result := a.Analyze("hello world", nil)
		assert.Equal(t, result.EstimatedInputTokens+result.EstimatedOutputTokens, result.EstimatedTokens)
	})
}

func TestAnalyze_Idempotent(t *testing.T) {
	a := NewAnalyzer()
	msg := "Can you analyze this data? What trends do you see? 1. sales\n2. churn\n3. growth\n4. retention"
	history := []models.Message{{Role: "user", Content: strings.Repeat("context ", 600)}}

	first := a.Analyze(msg, history)
	second := a.Analyze(msg, history)

	assert.Equal(t, first, second)
}

func TestAnalyze_DebugScenario(t *testing.T) {
	a := NewAnalyzer()

	msg := "Can you help me debug this ```python\ndef f(): pass\n``` function?"
	result := a.Analyze(msg, nil)

	assert.Equal(t, models.TaskCoding, result.TaskType)
	assert.Greater(t, result.Score, 0.3)
	assert.Contains(t, result.Reason, "coding detected")
	assert.Contains(t, result.Reason, "Contains code blocks")
}

func TestAnalyze_ReasonWording(t *testing.T) {
	a := NewAnalyzer()

	msg := strings.Repeat("z", 2200) + " debug this function"
	result := a.Analyze(msg, nil)

	assert.Equal(t, "Long input, coding detected", result.Reason)
}
