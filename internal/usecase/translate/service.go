// Package translate is the pipeline's second stage: it turns a resolved
// research question into a validated archive search specification.
package translate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/domain"
	"github.com/lexsieve/lexsieve/internal/domain/question"
	"github.com/lexsieve/lexsieve/internal/domain/spec"
	"github.com/lexsieve/lexsieve/internal/llmjson"
	"github.com/lexsieve/lexsieve/internal/metrics"
)

// DefaultRecentWindowMonths is how far back "recent" questions reach.
const DefaultRecentWindowMonths = 6

// Service implements the query translator over a text generator.
type Service struct {
	gen          Generator
	channels     ChannelReader
	recentMonths int
	logger       *zap.Logger
}

// New creates a query translator.
func New(gen Generator, channels ChannelReader, logger *zap.Logger) *Service {
	return &Service{
		gen:          gen,
		channels:     channels,
		recentMonths: DefaultRecentWindowMonths,
		logger:       logger,
	}
}

// WithRecentWindow configures how many months back "recent" reaches.
func (s *Service) WithRecentWindow(months int) *Service {
	if months > 0 {
		s.recentMonths = months
	}
	return s
}

var translateSchema = llmjson.Schema{Fields: []llmjson.Field{
	{Name: "reasoning", Kind: llmjson.String},
	{Name: "parameters", Kind: llmjson.Object, Required: true, Nested: &llmjson.Schema{Fields: []llmjson.Field{
		{Name: "keyword", Kind: llmjson.String},
		{Name: "keywords_all", Kind: llmjson.String},
		{Name: "keywords_any", Kind: llmjson.String},
		{Name: "keywords_exclude", Kind: llmjson.String},
		{Name: "keywords_phrase", Kind: llmjson.String},
		{Name: "listserv", Kind: llmjson.String},
		{Name: "author_first_name", Kind: llmjson.String},
		{Name: "author_last_name", Kind: llmjson.String},
		{Name: "posted_by", Kind: llmjson.String},
		{Name: "attachment_filter", Kind: llmjson.String,
			Enum: []string{string(spec.AttachmentAll), string(spec.AttachmentWith), string(spec.AttachmentWithout)}},
		{Name: "date_from", Kind: llmjson.String},
		{Name: "date_to", Kind: llmjson.String},
		{Name: "search_in", Kind: llmjson.String,
			Enum: []string{string(spec.ScopeSubjectAndBody), string(spec.ScopeSubjectOnly)}},
	}}},
}}

type translateResponse struct {
	Reasoning  string          `json:"reasoning"`
	Parameters translateParams `json:"parameters"`
}

type translateParams struct {
	Keyword         string `json:"keyword"`
	KeywordsAll     string `json:"keywords_all"`
	KeywordsAny     string `json:"keywords_any"`
	KeywordsExclude string `json:"keywords_exclude"`
	Phrase          string `json:"keywords_phrase"`
	Channel         string `json:"listserv"`
	AuthorFirst     string `json:"author_first_name"`
	AuthorLast      string `json:"author_last_name"`
	PostedBy        string `json:"posted_by"`
	Attachments     string `json:"attachment_filter"`
	DateFrom        string `json:"date_from"`
	DateTo          string `json:"date_to"`
	Scope           string `json:"search_in"`
}

// Translate converts the resolved question into a search specification.
// now anchors relative-date arithmetic. The translator never asks follow-ups;
// residual ambiguity resolves by best-effort default. Malformed or out-of-domain
// model output is retried once with a stricter instruction; a second failure is
// fatal for the run.
func (s *Service) Translate(ctx context.Context, q question.Resolved, now time.Time) (spec.Spec, error) {
	listing, err := s.channels.All(ctx)
	if err != nil {
		return spec.Spec{}, fmt.Errorf("list channels: %w", err)
	}
	ids := make([]string, 0, len(listing))
	for id := range listing {
		ids = append(ids, id)
	}
	prompt := translatePrompt(q.Text(), now, listing, s.recentMonths)

	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return spec.Spec{}, fmt.Errorf("translate: %w", err)
	}
	out, derr := s.decode(raw, ids)
	if derr == nil {
		metrics.TranslationsTotal.WithLabelValues("ok").Inc()
		return out, nil
	}

	raw, err = s.gen.Generate(ctx, prompt+strictRetrySuffix)
	if err != nil {
		return spec.Spec{}, fmt.Errorf("translate retry: %w", err)
	}
	out, derr = s.decode(raw, ids)
	if derr == nil {
		metrics.TranslationsTotal.WithLabelValues("retried").Inc()
		return out, nil
	}

	s.logger.Error("translation failed", zap.Error(derr))
	metrics.TranslationsTotal.WithLabelValues("failed").Inc()
	return spec.Spec{}, fmt.Errorf("translate: %w: %w", domain.ErrTranslationFailed, derr)
}

// decode parses the model reply and constructs the specification. A reply
// that parses but fails specification validation counts as malformed: the
// model emitted a value outside its contract.
func (s *Service) decode(raw string, channelIDs []string) (spec.Spec, error) {
	var resp translateResponse
	if err := llmjson.Decode(raw, translateSchema, &resp); err != nil {
		return spec.Spec{}, err
	}
	if resp.Reasoning != "" {
		s.logger.Debug("translation strategy", zap.String("reasoning", resp.Reasoning))
	}
	out, err := spec.New(specParams(resp.Parameters), channelIDs)
	if err != nil {
		return spec.Spec{}, &llmjson.Error{Reason: err.Error(), Raw: raw}
	}
	return out, nil
}

func specParams(p translateParams) spec.Params {
	return spec.Params{
		Keyword:         p.Keyword,
		KeywordsAll:     p.KeywordsAll,
		KeywordsAny:     p.KeywordsAny,
		KeywordsExclude: p.KeywordsExclude,
		Phrase:          p.Phrase,
		Channel:         p.Channel,
		AuthorFirst:     p.AuthorFirst,
		AuthorLast:      p.AuthorLast,
		PostedBy:        p.PostedBy,
		Attachments:     p.Attachments,
		DateFrom:        p.DateFrom,
		DateTo:          p.DateTo,
		Scope:           p.Scope,
	}
}
