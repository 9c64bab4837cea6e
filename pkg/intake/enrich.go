package intake

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wolflogic/wolfmem/pkg/llm"
	"github.com/wolflogic/wolfmem/pkg/logger"
)

const (
	// DefaultNamespace tags live-session memories.
	DefaultNamespace = "scripty"
	// DefaultUsername is the user_id recorded for pipeline inserts.
	DefaultUsername = "scripty"

	// summaryFallbackLen caps the truncation fallback when the summary
	// model fails.
	summaryFallbackLen = 240
	// maxPromptChars keeps exchange text within small-model context.
	maxPromptChars = 12000
)

// Enricher runs the three enrichment calls for an exchange. Every call
// has a per-call timeout and passes through a shared rate limiter; a
// failing call yields its documented fallback, never an error.
type Enricher struct {
	client         llm.Client
	limiter        *rate.Limiter
	keywordModel   string
	sentimentModel string
	summaryModel   string
	timeout        time.Duration
	log            logger.Logger
}

// EnricherOptions configures an Enricher.
type EnricherOptions struct {
	Client         llm.Client
	KeywordModel   string
	SentimentModel string
	SummaryModel   string
	// Timeout bounds each model call. Zero means 30s.
	Timeout time.Duration
	// RateLimit is model calls per second. Zero means unlimited.
	RateLimit float64
	Logger    logger.Logger
}

func NewEnricher(opts EnricherOptions) *Enricher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}
	return &Enricher{
		client:         opts.Client,
		limiter:        rate.NewLimiter(limit, 1),
		keywordModel:   opts.KeywordModel,
		sentimentModel: opts.SentimentModel,
		summaryModel:   opts.SummaryModel,
		timeout:        timeout,
		log:            log,
	}
}

// Enrich produces the enriched record for one raw exchange.
func (e *Enricher) Enrich(ctx context.Context, raw RawExchange) EnrichedRecord {
	text := truncate(raw.CombinedText(), maxPromptChars)
	return EnrichedRecord{
		Text:      e.Summarize(ctx, raw),
		Content:   raw.CombinedText(),
		User:      raw.User,
		Namespace: DefaultNamespace,
		Username:  DefaultUsername,
		Session:   raw.Session,
		Timestamp: raw.Timestamp,
		Keywords:  e.Keywords(ctx, text),
		Sentiment: e.Sentiment(ctx, text),
		Source:    raw.Source,
	}
}

// Keywords asks the keyword model for 5-10 topical keywords. An
// unusable reply falls back to static category matching, and an empty
// match list stays empty.
func (e *Enricher) Keywords(ctx context.Context, text string) []string {
	prompt := "Extract 5-10 topical keywords from the following text.\n" +
		"Respond ONLY with a JSON array of lowercase keyword strings.\n\n" +
		"Text: " + text
	reply, err := e.complete(ctx, e.keywordModel, prompt)
	if err != nil {
		e.log.Warn("keyword extraction failed, using category fallback", "error", err)
		return categorize(text)
	}
	var keywords []string
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &keywords); err != nil {
		e.log.Warn("keyword reply unparseable, using category fallback", "error", err)
		return categorize(text)
	}
	out := keywords[:0]
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			out = append(out, kw)
		}
	}
	if len(out) > 10 {
		out = out[:10]
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// Sentiment scores the exchange 1..5. Out-of-range or unparseable
// verdicts fall back to the neutral 3.
func (e *Enricher) Sentiment(ctx context.Context, text string) Sentiment {
	prompt := `Analyze the sentiment of the following text and rate it on a scale of 1-5:
1 = Very Negative (angry, frustrated, critical)
2 = Negative (disappointed, concerned)
3 = Neutral (factual, objective)
4 = Positive (satisfied, constructive)
5 = Very Positive (enthusiastic, excited)

Text: ` + text + `

Respond ONLY with a JSON object in this exact format:
{"score": <number 1-5>, "reasoning": "<brief explanation>"}`

	neutral := Sentiment{Score: 3, Model: e.sentimentModel}
	reply, err := e.complete(ctx, e.sentimentModel, prompt)
	if err != nil {
		e.log.Warn("sentiment analysis failed, defaulting to neutral", "error", err)
		neutral.Analysis = "analysis failed: " + err.Error()
		return neutral
	}
	var verdict struct {
		Score     float64 `json:"score"`
		Reasoning string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &verdict); err != nil {
		e.log.Warn("sentiment reply unparseable, defaulting to neutral", "error", err)
		neutral.Analysis = "unparseable model reply"
		return neutral
	}
	score := int(verdict.Score)
	if float64(score) != verdict.Score || score < 1 || score > 5 {
		e.log.Warn("sentiment score out of range, defaulting to neutral", "score", verdict.Score)
		score = 3
	}
	analysis := verdict.Reasoning
	if analysis == "" {
		analysis = "no explanation provided"
	}
	return Sentiment{Score: score, Analysis: analysis, Model: e.sentimentModel}
}

// Summarize produces a 2-3 sentence summary of the exchange. On
// failure it returns the first characters of the exchange instead.
func (e *Enricher) Summarize(ctx context.Context, raw RawExchange) string {
	prompt := "Summarize this conversation exchange in 2-3 concise sentences. " +
		"Focus on what task was requested and what action was taken.\n\n" +
		"USER: " + truncate(raw.User, maxPromptChars) + "\n\n" +
		"ASSISTANT: " + truncate(raw.Assistant, maxPromptChars) + "\n\nSUMMARY:"
	reply, err := e.complete(ctx, e.summaryModel, prompt)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			e.log.Warn("summary failed, truncating exchange", "error", err)
		}
		return truncate(raw.CombinedText(), summaryFallbackLen)
	}
	return strings.TrimSpace(reply)
}

func (e *Enricher) complete(ctx context.Context, model, prompt string) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.client.Complete(callCtx, model, prompt)
}

// stripCodeFence unwraps a reply the model wrapped in markdown fences.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		return strings.TrimSpace(s)
	}
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		return strings.TrimSpace(s)
	}
	return s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
