package complexity

import "github.com/orangecat-xyz/autorouter/internal/models"

// keywordRule maps one lowercase keyword to its score weight and the task
// type it votes for. Matching is naive substring containment, so a keyword
// like "class" also fires inside unrelated words; scoring depends on that
// behavior staying put.
type keywordRule struct {
	keyword string
	weight  float64
	task    models.TaskType
}

// keywordRules is scanned in declaration order. Keep the categories grouped;
// taskTypeOrder below must list the vote targets in the same first-seen order.
var keywordRules = []keywordRule{
	// Coding
	{"code", 0.20, models.TaskCoding},
	{"debug", 0.25, models.TaskCoding},
	{"function", 0.20, models.TaskCoding},
	{"algorithm", 0.30, models.TaskCoding},
	{"implement", 0.25, models.TaskCoding},
	{"refactor", 0.30, models.TaskCoding},
	{"compile", 0.25, models.TaskCoding},
	{"syntax", 0.20, models.TaskCoding},
	{"python", 0.20, models.TaskCoding},
	{"javascript", 0.20, models.TaskCoding},
	{"typescript", 0.20, models.TaskCoding},
	{"golang", 0.20, models.TaskCoding},
	{"sql", 0.20, models.TaskCoding},
	{"regex", 0.25, models.TaskCoding},
	{"stack trace", 0.25, models.TaskCoding},
	{"exception", 0.20, models.TaskCoding},
	{"unit test", 0.25, models.TaskCoding},
	{"class", 0.15, models.TaskCoding},
	{"script", 0.15, models.TaskCoding},

	// Analysis
	{"analyze", 0.25, models.TaskAnalysis},
	{"analysis", 0.25, models.TaskAnalysis},
	{"compare", 0.20, models.TaskAnalysis},
	{"evaluate", 0.25, models.TaskAnalysis},
	{"assess", 0.20, models.TaskAnalysis},
	{"trade-off", 0.25, models.TaskAnalysis},
	{"tradeoff", 0.25, models.TaskAnalysis},
	{"pros and cons", 0.25, models.TaskAnalysis},
	{"statistical", 0.20, models.TaskAnalysis},
	{"correlation", 0.25, models.TaskAnalysis},
	{"interpret", 0.20, models.TaskAnalysis},

	// Professional domains lean on careful analysis
	{"legal", 0.25, models.TaskAnalysis},
	{"contract", 0.20, models.TaskAnalysis},
	{"medical", 0.25, models.TaskAnalysis},
	{"diagnosis", 0.30, models.TaskAnalysis},
	{"financial", 0.20, models.TaskAnalysis},
	{"regulation", 0.20, models.TaskAnalysis},
	{"compliance", 0.25, models.TaskAnalysis},
	{"audit", 0.25, models.TaskAnalysis},

	// Research
	{"research", 0.30, models.TaskResearch},
	{"investigate", 0.25, models.TaskResearch},
	{"in-depth", 0.25, models.TaskResearch},
	{"comprehensive", 0.25, models.TaskResearch},
	{"literature", 0.25, models.TaskResearch},
	{"sources", 0.20, models.TaskResearch},
	{"citations", 0.25, models.TaskResearch},
	{"state of the art", 0.30, models.TaskResearch},

	// Complex reasoning
	{"prove", 0.30, models.TaskComplexReasoning},
	{"theorem", 0.35, models.TaskComplexReasoning},
	{"step by step", 0.25, models.TaskComplexReasoning},
	{"reasoning", 0.25, models.TaskComplexReasoning},
	{"deduce", 0.30, models.TaskComplexReasoning},
	{"logic puzzle", 0.30, models.TaskComplexReasoning},
	{"optimize", 0.25, models.TaskComplexReasoning},
	{"architecture", 0.25, models.TaskComplexReasoning},
	{"strategy", 0.20, models.TaskComplexReasoning},

	// Creative
	{"story", 0.20, models.TaskCreative},
	{"poem", 0.25, models.TaskCreative},
	{"creative", 0.20, models.TaskCreative},
	{"brainstorm", 0.20, models.TaskCreative},
	{"fiction", 0.20, models.TaskCreative},
	{"lyrics", 0.25, models.TaskCreative},
	{"screenplay", 0.30, models.TaskCreative},
	{"imagine", 0.15, models.TaskCreative},

	// Translation
	{"translate", 0.30, models.TaskTranslation},
	{"translation", 0.30, models.TaskTranslation},

	// Summarization
	{"summarize", 0.30, models.TaskSummarization},
	{"summarise", 0.30, models.TaskSummarization},
	{"summary", 0.25, models.TaskSummarization},
	{"tl;dr", 0.30, models.TaskSummarization},
	{"condense", 0.25, models.TaskSummarization},
	{"key points", 0.20, models.TaskSummarization},
	{"recap", 0.20, models.TaskSummarization},
}

// taskTypeOrder breaks vote ties: the earlier entry wins. The order is the
// first-seen order of the categories in keywordRules.
var taskTypeOrder = []models.TaskType{
	models.TaskCoding,
	models.TaskAnalysis,
	models.TaskResearch,
	models.TaskComplexReasoning,
	models.TaskCreative,
	models.TaskTranslation,
	models.TaskSummarization,
}
