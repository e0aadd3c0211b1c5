package usecase

import (
	"context"
	"time"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/usecase/retrieval"
	"agentic-rag/internal/usecase/workflow"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer emits one span per turn (run) and one child span per pipeline
// node, exported via whatever TracerProvider internal/infra/otel has
// installed. Before that provider is installed this is the SDK's
// built-in no-op tracer, so spans cost nothing at dev time.
var tracer = otel.Tracer("agentic-rag/usecase")

// StreamEventKind is the discriminator for AnswerWithRAGUsecase.Stream's
// event channel.
type StreamEventKind string

const (
	StreamEventKindThinking  StreamEventKind = "thinking"
	StreamEventKindHeartbeat StreamEventKind = "heartbeat"
	StreamEventKindToken     StreamEventKind = "token"
	StreamEventKindDone      StreamEventKind = "done"
	StreamEventKindError     StreamEventKind = "error"
)

// StreamEvent is one server-sent event emitted by Stream.
type StreamEvent struct {
	Kind     StreamEventKind
	Token    string
	Result   *AnswerResult
	Err      error
}

// AnswerResult is the pipeline's final output for one turn.
type AnswerResult struct {
	Answer     string
	Citations  []Citation
	Contexts   []ContextItem
	Metadata   domain.ContextMetadata
	Warnings   []string
}

// AnswerWithRAGUsecaseOption configures AnswerWithRAGUsecase.
type AnswerWithRAGUsecaseOption func(*AnswerWithRAGUsecase)

// WithHeartbeatInterval sets how often Stream emits a heartbeat event
// while a slow phase (building the prompt, waiting on the chat stream
// to start) is in progress. Needed so a reverse proxy with an idle-read
// timeout (Cloudflare's 524 at ~30s, for instance) doesn't tear down
// the connection mid-turn.
func WithHeartbeatInterval(d time.Duration) AnswerWithRAGUsecaseOption {
	return func(u *AnswerWithRAGUsecase) { u.heartbeatInterval = d }
}

// AnswerWithRAGUsecase orchestrates the full pipeline: Query Preparer,
// Retriever, Reranker, Grader, Context Expander, Context Packer and
// Generator, with the Rewriter looped in via a bounded-retry workflow
// graph.
type AnswerWithRAGUsecase struct {
	preparer  *QueryPreparer
	retriever *retrieval.Retriever
	reranker  *RerankerStage
	grader    *Grader
	expander  *ContextExpander
	generator *Generator
	rewriter  *Rewriter
	config    RetrievalConfig
	modelName string

	heartbeatInterval time.Duration
}

func NewAnswerWithRAGUsecase(
	preparer *QueryPreparer,
	retriever *retrieval.Retriever,
	reranker *RerankerStage,
	grader *Grader,
	expander *ContextExpander,
	generator *Generator,
	rewriter *Rewriter,
	config RetrievalConfig,
	modelName string,
	opts ...AnswerWithRAGUsecaseOption,
) *AnswerWithRAGUsecase {
	u := &AnswerWithRAGUsecase{
		preparer:          preparer,
		retriever:         retriever,
		reranker:          reranker,
		grader:            grader,
		expander:          expander,
		generator:         generator,
		rewriter:          rewriter,
		config:            config,
		modelName:         modelName,
		heartbeatInterval: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Stream runs the pipeline and streams progress events. The first event
// is always StreamEventKindThinking, emitted before any retrieval work
// starts; heartbeats follow at heartbeatInterval while the pipeline is
// still running.
func (u *AnswerWithRAGUsecase) Stream(
	ctx context.Context,
	rawQuery string,
	userFilters domain.Filters,
	history []domain.Message,
	rc domain.RuntimeContext,
) <-chan StreamEvent {
	events := make(chan StreamEvent, 4)

	go func() {
		defer close(events)

		events <- StreamEvent{Kind: StreamEventKindThinking}

		done := make(chan struct{})
		defer close(done)
		go u.heartbeat(events, done)

		result, err := u.run(ctx, rawQuery, userFilters, history, rc)
		if err != nil {
			events <- StreamEvent{Kind: StreamEventKindError, Err: err}
			return
		}
		events <- StreamEvent{Kind: StreamEventKindDone, Result: result}
	}()

	return events
}

func (u *AnswerWithRAGUsecase) heartbeat(events chan<- StreamEvent, done <-chan struct{}) {
	if u.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(u.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			select {
			case events <- StreamEvent{Kind: StreamEventKindHeartbeat}:
			case <-done:
				return
			}
		}
	}
}

// Answer runs the pipeline synchronously, for callers (tests, the batch
// CLI) that don't need streamed progress events.
func (u *AnswerWithRAGUsecase) Answer(
	ctx context.Context,
	rawQuery string,
	userFilters domain.Filters,
	history []domain.Message,
	rc domain.RuntimeContext,
) (*AnswerResult, error) {
	return u.run(ctx, rawQuery, userFilters, history, rc)
}

func (u *AnswerWithRAGUsecase) run(
	ctx context.Context,
	rawQuery string,
	userFilters domain.Filters,
	history []domain.Message,
	rc domain.RuntimeContext,
) (*AnswerResult, error) {
	ctx, span := tracer.Start(ctx, "rag.turn", trace.WithAttributes(
		attribute.String("rag.query", rawQuery),
	))
	defer span.End()

	state, warnings, err := u.preparer.Prepare(ctx, rawQuery, userFilters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	state.Messages = history
	state.RuntimeContext = rc
	span.SetAttributes(
		attribute.String("rag.intent", string(state.Intent)),
		attribute.String("rag.language", state.QueryLanguage),
	)

	switch state.Intent {
	case domain.IntentGreeting:
		return &AnswerResult{Answer: domain.GreetingReply(state.QueryLanguage), Warnings: warnings}, nil
	case domain.IntentThanks:
		return &AnswerResult{Answer: domain.ThanksReply(state.QueryLanguage), Warnings: warnings}, nil
	}

	graph := u.buildGraph()
	final, err := graph.Run(ctx, state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("rag.documents_count", len(final.Documents)),
		attribute.Int("rag.retries", final.Retries),
	)

	if len(final.Documents) == 0 {
		return &AnswerResult{Answer: domain.NotFoundReply(final.QueryLanguage), Warnings: warnings}, nil
	}

	gen, metadata, err := u.generator.Generate(ctx, final.Query, final.QueryLanguage, final.RuntimeContext, final.Documents, final.Messages, u.modelName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	allWarnings := append(append([]string{}, warnings...), gen.Guardrail.Warnings...)
	allWarnings = append(allWarnings, gen.Validation.Warnings...)

	return &AnswerResult{
		Answer:    gen.Answer.Answer,
		Citations: gen.Answer.Citations,
		Contexts:  gen.Contexts,
		Metadata:  metadata,
		Warnings:  allWarnings,
	}, nil
}

const (
	nodeRetrieve = "retrieve"
	nodeRerank   = "rerank"
	nodeGrade    = "grade"
	nodeExpand   = "expand"
	nodeRewrite  = "rewrite"
)

// traced wraps a node function so its execution is recorded as a child
// span of the turn span started in run, named "node.<name>".
func traced(name string, fn workflow.NodeFunc) workflow.NodeFunc {
	return func(ctx context.Context, s domain.TurnState) (domain.TurnState, error) {
		ctx, span := tracer.Start(ctx, "node."+name)
		defer span.End()

		out, err := fn(ctx, s)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out, err
	}
}

func (u *AnswerWithRAGUsecase) buildGraph() *workflow.Graph {
	g := workflow.NewGraph(nodeRetrieve)

	g.AddNode(nodeRetrieve, traced(nodeRetrieve, func(ctx context.Context, s domain.TurnState) (domain.TurnState, error) {
		out := s.Clone()
		filters := s.UserFilters.MergePreferLeft(s.InferredFilters)
		docs, err := u.retriever.Retrieve(ctx, s.SearchQueries, filters)
		if err != nil {
			return out, err
		}
		out.Documents = docs
		return out, nil
	}))

	g.AddNode(nodeRerank, traced(nodeRerank, func(ctx context.Context, s domain.TurnState) (domain.TurnState, error) {
		out := s.Clone()
		docs, err := u.reranker.Rerank(ctx, s.Query, s.Documents)
		if err != nil {
			return out, err
		}
		out.Documents = docs
		return out, nil
	}))

	g.AddNode(nodeGrade, traced(nodeGrade, func(ctx context.Context, s domain.TurnState) (domain.TurnState, error) {
		out := s.Clone()
		out.Documents = u.grader.Grade(s.Documents)
		return out, nil
	}))

	g.AddNode(nodeExpand, traced(nodeExpand, func(ctx context.Context, s domain.TurnState) (domain.TurnState, error) {
		out := s.Clone()
		docs, err := u.expander.Expand(ctx, s.Documents)
		if err != nil {
			return out, err
		}
		out.Documents = docs
		return out, nil
	}))

	g.AddNode(nodeRewrite, traced(nodeRewrite, func(ctx context.Context, s domain.TurnState) (domain.TurnState, error) {
		out := s.Clone()
		rewritten, err := u.rewriter.Rewrite(ctx, s.Query, s.QueryLanguage, s.Retries)
		if err != nil {
			return out, err
		}
		out.SearchQuery = rewritten
		out.SearchQueries = []string{rewritten}
		out.Retries = s.Retries + 1
		return out, nil
	}))

	g.AddEdge(nodeRetrieve, nodeRerank)
	g.AddEdge(nodeRerank, nodeGrade)

	g.AddConditionalEdge(nodeGrade, func(s domain.TurnState) string {
		if ShouldRetry(s.Documents, s.Retries, u.config.MaxRetries) {
			return nodeRewrite
		}
		return nodeExpand
	})

	g.AddEdge(nodeRewrite, nodeRetrieve)
	g.AddEdge(nodeExpand, workflow.End)

	return g
}
