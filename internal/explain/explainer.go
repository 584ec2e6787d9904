// Package explain ties the tokenizer, the black-box scorer, and the
// approximation engine together: one call turns a raw input into a stored,
// reportable set of interaction values.
package explain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tokenshap/tokenshap-go/internal/approx"
	"github.com/tokenshap/tokenshap-go/internal/game"
	"github.com/tokenshap/tokenshap-go/internal/store"
	"github.com/tokenshap/tokenshap-go/internal/tokens"
)

// EngineVersion identifies the approximation engine build in run records
// and API responses.
const EngineVersion = "0.3.0"

// Run is the result of one explanation.
type Run struct {
	ID        string
	Input     string
	Tokens    []string
	Baseline  float64
	FullValue float64
	Values    *approx.InteractionValues
	Duration  time.Duration
	CreatedAt time.Time
}

// Explainer explains inputs against one scorer with one tokenizer.
// Safe for concurrent use when the scorer is; every explanation owns its
// own game instance.
type Explainer struct {
	tokenizer tokens.Tokenizer
	scorer    game.Scorer
	db        store.DB
	log       *zap.Logger
}

// Option configures an Explainer.
type Option func(*Explainer)

// WithStore attaches a database; completed runs are persisted to it.
func WithStore(db store.DB) Option {
	return func(e *Explainer) { e.db = db }
}

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Explainer) { e.log = log }
}

// New creates an explainer.
func New(tokenizer tokens.Tokenizer, scorer game.Scorer, opts ...Option) *Explainer {
	e := &Explainer{
		tokenizer: tokenizer,
		scorer:    scorer,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Explain tokenizes the input, builds a fresh coalition game over it, and
// runs the approximation engine with the given request. The run is
// persisted when a store is attached.
func (e *Explainer) Explain(ctx context.Context, text string, req approx.Request) (*Run, error) {
	start := time.Now()

	toks, err := e.tokenizer.Tokenize(text)
	if err != nil {
		return nil, err
	}

	g, err := game.New(ctx, toks, e.scorer, game.MaskPerturber{Marker: e.tokenizer.Marker()})
	if err != nil {
		return nil, err
	}

	e.log.Debug("explanation started",
		zap.Int("n_players", g.NPlayers()),
		zap.String("index", string(req.Index)),
		zap.Int("max_order", req.MaxOrder),
		zap.Int("budget", req.Budget),
	)

	values, err := approx.Approximate(ctx, g, req)
	if err != nil {
		return nil, err
	}

	// Served from the game cache whenever the engine already evaluated
	// the grand coalition.
	full, err := g.Evaluate(ctx, []game.Coalition{game.GrandCoalition(g.NPlayers())})
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.New().String(),
		Input:     text,
		Tokens:    toks,
		Baseline:  g.BaselineValue(),
		FullValue: full[0],
		Values:    values,
		Duration:  time.Since(start),
		CreatedAt: start,
	}

	if e.db != nil {
		if err := e.persist(run, req); err != nil {
			return nil, err
		}
	}

	e.log.Info("explanation finished",
		zap.String("run_id", run.ID),
		zap.Int("n_players", g.NPlayers()),
		zap.Bool("estimated", values.Estimated()),
		zap.Int("budget_used", values.BudgetUsed()),
		zap.Duration("duration", run.Duration),
	)
	return run, nil
}

// Render returns the human-readable form of a token sequence.
func (e *Explainer) Render(toks []string) string {
	return e.tokenizer.Render(toks)
}

func (e *Explainer) persist(run *Run, req approx.Request) error {
	record := &store.Run{
		ID:            run.ID,
		Input:         run.Input,
		NPlayers:      run.Values.NPlayers(),
		Index:         string(run.Values.Index()),
		MaxOrder:      run.Values.MaxOrder(),
		Estimator:     string(req.Estimator),
		Budget:        req.Budget,
		BudgetUsed:    run.Values.BudgetUsed(),
		Estimated:     run.Values.Estimated(),
		Baseline:      run.Baseline,
		FullValue:     run.FullValue,
		EngineVersion: EngineVersion,
		CreatedAt:     run.CreatedAt,
	}
	if err := e.db.SaveRun(record); err != nil {
		return err
	}

	subsets := run.Values.Subsets()
	values := make([]store.Value, 0, len(subsets))
	for _, subset := range subsets {
		v, _ := run.Values.Get(subset...)
		values = append(values, store.Value{
			RunID:     run.ID,
			SubsetKey: game.SubsetKey(subset),
			Order:     len(subset),
			Value:     v,
		})
	}
	return e.db.SaveValues(run.ID, values)
}
