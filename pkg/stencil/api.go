package stencil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/render"
	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/xml"
)

// Engine binds template data to slides. Use New or NewWithOptions to create one.
// An Engine is safe to share; per-document state lives in a GenerationRun.
type Engine struct {
	config    *Config
	registry  FunctionRegistry
	logger    *Logger
	evaluator *Evaluator
	images    *ImageSubstituter

	// programCache overrides the cache settings of config when set
	programCache *CacheConfig
}

// New creates an engine with the global configuration.
func New() *Engine {
	return NewWithOptions()
}

// NewWithConfig creates an engine with a specific configuration.
func NewWithConfig(config *Config) *Engine {
	return NewWithOptions(WithConfig(config))
}

// Option represents a configuration option for the engine.
type Option func(*Engine)

// WithConfig returns an option that sets the engine configuration.
func WithConfig(config *Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// WithLogger returns an option that sets the engine logger.
func WithLogger(logger *Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithProgramCache returns an option that sizes the compiled expression cache
// (0 disables caching). It applies on top of whichever configuration the
// engine ends up with, in any option order, and never modifies that Config.
func WithProgramCache(maxSize int, ttl time.Duration) Option {
	return func(e *Engine) {
		e.programCache = &CacheConfig{MaxSize: maxSize, TTL: ttl}
	}
}

// WithFunction returns an option that registers a custom function.
func WithFunction(fn Function) Option {
	return func(e *Engine) {
		if err := e.registry.RegisterFunction(fn); err != nil {
			e.logger.Warn("cannot register function: %v", err)
		}
	}
}

// WithFunctionProvider returns an option that registers functions from a provider.
func WithFunctionProvider(provider FunctionProvider) Option {
	return func(e *Engine) {
		if err := e.RegisterFunctionsFromProvider(provider); err != nil {
			e.logger.Warn("cannot register functions: %v", err)
		}
	}
}

// NewWithOptions creates a new engine with the specified options.
func NewWithOptions(opts ...Option) *Engine {
	e := &Engine{
		config:   GetGlobalConfig(),
		registry: NewFunctionRegistry(),
		logger:   GetLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.config == nil {
		e.config = GetGlobalConfig()
	}
	if e.programCache != nil {
		cfg := *e.config
		cfg.ProgramCacheSize = e.programCache.MaxSize
		cfg.ProgramCacheTTL = e.programCache.TTL
		e.config = &cfg
	}
	e.evaluator = NewEvaluator(e.config, e.registry, e.logger)
	e.images = NewImageSubstituter(e.config, e.logger)
	return e
}

// RegisterFunction adds a custom function callable as ns.Name(...).
func (e *Engine) RegisterFunction(fn Function) error {
	return e.registry.RegisterFunction(fn)
}

// RegisterFunctionsFromProvider registers all functions from a provider.
func (e *Engine) RegisterFunctionsFromProvider(provider FunctionProvider) error {
	for _, fn := range provider.ProvideFunctions() {
		if err := e.registry.RegisterFunction(fn); err != nil {
			return err
		}
	}
	return nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// Functions returns the engine's function registry.
func (e *Engine) Functions() FunctionRegistry {
	return e.registry
}

// NewRun starts a generation run. The run owns the suppression records of
// every shape it touches; they are dropped by Close.
func (e *Engine) NewRun() *GenerationRun {
	id := uuid.NewString()
	logger := e.logger.WithField("run_id", id)
	return &GenerationRun{
		ID:       id,
		engine:   e,
		resolver: NewVisibilityResolver(logger),
		logger:   logger,
	}
}

// ProcessSlide processes one slide in a run of its own.
func (e *Engine) ProcessSlide(ctx context.Context, part *SlidePart, data TemplateData, windows map[string]RepeatWindow) (*ProcessReport, error) {
	run := e.NewRun()
	defer run.Close()
	return run.ProcessSlide(ctx, part, data, windows)
}

// ProcessSlides processes slides in order in a run of its own.
func (e *Engine) ProcessSlides(ctx context.Context, parts []*SlidePart, data TemplateData, windows map[string]RepeatWindow) (*ProcessReport, error) {
	run := e.NewRun()
	defer run.Close()
	return run.ProcessSlides(ctx, parts, data, windows)
}

// PaginateSlide paginates a template slide in a run of its own.
func (e *Engine) PaginateSlide(ctx context.Context, template *SlidePart, data TemplateData, arrayName string, pageSize int) ([]*SlidePart, *ProcessReport, error) {
	run := e.NewRun()
	defer run.Close()
	return run.PaginateSlide(ctx, template, data, arrayName, pageSize)
}

// ProcessReport summarizes a pass. Shape failures are collected in Errors and
// never abort the pass.
type ProcessReport struct {
	RunID             string
	Slides            int
	ShapesProcessed   int
	TokensEvaluated   int
	Suppressed        int
	Restored          int
	ImagesSubstituted int
	Errors            *MultiError
}

func newProcessReport(runID string) *ProcessReport {
	return &ProcessReport{RunID: runID, Errors: NewMultiError()}
}

// Err returns the collected shape failures, or nil
func (r *ProcessReport) Err() error {
	return r.Errors.Err()
}

func (r *ProcessReport) merge(o *ProcessReport) {
	r.Slides += o.Slides
	r.ShapesProcessed += o.ShapesProcessed
	r.TokensEvaluated += o.TokensEvaluated
	r.Suppressed += o.Suppressed
	r.Restored += o.Restored
	r.ImagesSubstituted += o.ImagesSubstituted
	for _, err := range o.Errors.Errors() {
		r.Errors.Add(err)
	}
}

func (r *ProcessReport) String() string {
	return fmt.Sprintf("run %s: %d slides, %d shapes, %d tokens, %d suppressed, %d restored, %d images, %d errors",
		r.RunID, r.Slides, r.ShapesProcessed, r.TokensEvaluated, r.Suppressed, r.Restored, r.ImagesSubstituted, r.Errors.Len())
}

// GenerationRun processes the slides of one document. It is not safe for
// concurrent use: slides and shapes are processed one at a time, in order.
type GenerationRun struct {
	ID string

	engine   *Engine
	resolver *VisibilityResolver
	logger   *Logger
	slides   int
}

// Resolver returns the run's visibility resolver
func (r *GenerationRun) Resolver() *VisibilityResolver {
	return r.resolver
}

// Close drops the suppression records of the run
func (r *GenerationRun) Close() {
	r.resolver.Reset()
}

// ProcessSlides processes slides in document order and merges their reports.
func (r *GenerationRun) ProcessSlides(ctx context.Context, parts []*SlidePart, data TemplateData, windows map[string]RepeatWindow) (*ProcessReport, error) {
	report := newProcessReport(r.ID)
	for _, part := range parts {
		slideReport, err := r.ProcessSlide(ctx, part, data, windows)
		if err != nil {
			return report, err
		}
		report.merge(slideReport)
	}
	r.logger.Info("%s", report)
	return report, nil
}

// ProcessSlide runs extraction, evaluation, write-back, visibility and image
// substitution over every shape of a slide. The error is non-nil only when
// the context is done or the part has no shape tree.
func (r *GenerationRun) ProcessSlide(ctx context.Context, part *SlidePart, data TemplateData, windows map[string]RepeatWindow) (*ProcessReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if part == nil || part.Slide == nil || part.Slide.Tree == nil {
		name := ""
		if part != nil {
			name = part.Name
		}
		return nil, NewDocumentError("process slide", name, errors.New("slide has no shape tree"))
	}

	index := r.slides
	r.slides++

	report := newProcessReport(r.ID)
	report.Slides = 1
	logger := r.logger.WithField("slide", part.Name)

	for _, shape := range part.Slide.Shapes() {
		pctx := &ProcessingContext{RunID: r.ID, SlideIndex: index, SlideName: part.Name, Shape: shape}
		env := NewVariableEnvironment(data, pctx).WithWindows(windows)
		if err := r.processShape(part, shape, env, report); err != nil {
			shapeLogger := logger.WithFields(Fields{"shape_id": shape.ID(), "shape_name": shape.Name()})
			shapeLogger.Warn("shape skipped: %v", err)
			report.Errors.Add(NewShapeError(part.Name, shape.ID(), shape.Name(), err))
		}
	}
	return report, nil
}

// processShape handles one shape. Panics are recovered so the next shape
// still gets processed.
func (r *GenerationRun) processShape(part *SlidePart, shape *xml.Shape, env *VariableEnvironment, report *ProcessReport) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = RecoverError(rec)
		}
	}()

	cfg := r.engine.config
	key := ShapeKey{Slide: part.Name, ID: shape.ID()}

	source := r.resolver.SourceText(key, shape)
	if !strings.Contains(source, tokenOpen) {
		return nil
	}

	decision := Decide(FindArrayReferences(source, cfg.FunctionNamespace), availableIn(env))
	switch decision {
	case Suppressed:
		if r.resolver.Suppress(key, shape) {
			report.Suppressed++
		}
		return nil
	case Visible:
		if r.resolver.Apply(key, shape, Visible) {
			report.Restored++
		}
	}
	if _, suppressed := r.resolver.Record(key); suppressed {
		return nil
	}

	fctx := &FunctionContext{
		Env:    env,
		Part:   part,
		Shape:  shape,
		Config: cfg,
		Logger: r.logger,
		Images: r.engine.images,
	}

	type pending struct {
		para         *xml.Paragraph
		replacements []render.Replacement
	}
	var plan []pending

	for _, para := range shape.Paragraphs() {
		m := render.BuildRunMap(para)
		var replacements []render.Replacement
		for _, tok := range ExtractTokens(m.Text, cfg.FunctionNamespace) {
			res := r.engine.evaluator.EvaluateToken(tok, env, fctx)
			report.TokensEvaluated++

			switch res.Status {
			case StatusOutOfRange:
				if r.resolver.Suppress(key, shape) {
					report.Suppressed++
				}
				return nil
			case StatusMutated:
				report.ImagesSubstituted++
				return nil
			case StatusFailed:
				report.Errors.Add(res.Err)
			case StatusKeep:
				if errors.Is(res.Err, ErrNoParent) {
					r.logger.WithFields(Fields{
						"slide":      part.Name,
						"shape_id":   shape.ID(),
						"shape_name": shape.Name(),
					}).Warn("cannot replace shape: %v", res.Err)
					report.Errors.Add(res.Err)
				}
			}

			if res.Text != tok.Raw {
				replacements = append(replacements, render.Replacement{Start: tok.Start, End: tok.End, Text: res.Text})
			}
		}
		plan = append(plan, pending{para: para, replacements: replacements})
	}

	for _, p := range plan {
		if _, rebuilt := render.ApplyReplacements(p.para, p.replacements); rebuilt {
			r.logger.WithFields(Fields{
				"slide":    part.Name,
				"shape_id": shape.ID(),
			}).Debug("paragraph rebuilt without run formatting")
		}
	}
	report.ShapesProcessed++
	return nil
}

// availableIn counts items per array name in env; a missing array has none
func availableIn(env *VariableEnvironment) func(string) int {
	return func(arrayName string) int {
		n, _ := env.Count(arrayName)
		return n
	}
}
