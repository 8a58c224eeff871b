package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/imkonsowa/restaurant-qa/catalog"
	"github.com/imkonsowa/restaurant-qa/chunker"
	"github.com/imkonsowa/restaurant-qa/generation"
	"github.com/imkonsowa/restaurant-qa/intent"
	"github.com/imkonsowa/restaurant-qa/models"
	"github.com/imkonsowa/restaurant-qa/vectorindex"
)

const DefaultMaxContextChars = 4000

type Path string

const (
	PathStructured Path = "structured"
	PathSemantic   Path = "semantic"
)

type Options struct {
	TopK            int
	MaxContextChars int
	// Structured sends structured-path evidence to the generator instead
	// of returning the rendered answer as is.
	Structured bool
}

// Result is a question routed and resolved, ready for generation.
type Result struct {
	Path       Path              `json:"path"`
	Descriptor intent.Descriptor `json:"descriptor"`
	// Context is the evidence handed to the generator.
	Context string `json:"context"`
	// Direct is the complete answer on the structured path.
	Direct string            `json:"direct,omitempty"`
	Hits   []vectorindex.Hit `json:"hits,omitempty"`
}

// ResolutionError reports names in a structured question that the catalog
// does not know. Its message is meant for the user.
type ResolutionError struct {
	Restaurants []string
	// Dish is set when the dish, not the restaurants, is missing; then
	// Restaurants lists where it was looked for.
	Dish string
}

func (e *ResolutionError) Error() string {
	switch {
	case e.Dish == "":
		return fmt.Sprintf("Sorry, I couldn't find the restaurant(s): %s.", strings.Join(e.Restaurants, ", "))
	case len(e.Restaurants) == 0:
		return fmt.Sprintf("Sorry, I couldn't find the dish '%s' in any restaurant.", e.Dish)
	default:
		return fmt.Sprintf("Sorry, I couldn't find the dish '%s' in restaurant(s): %s.", e.Dish, strings.Join(e.Restaurants, ", "))
	}
}

// Router answers questions over one catalog, its chunk store and the index
// built from that store. All of them are shared read-only, so a Router is
// safe for concurrent use.
type Router struct {
	catalog   *catalog.Catalog
	store     *chunker.Store
	index     *vectorindex.Index
	parser    *intent.Parser
	generator generation.Generator
	opts      Options

	// ordinals maps the catalog's own dish records to their chunks
	ordinals map[*models.MenuItem]int
}

func New(cat *catalog.Catalog, store *chunker.Store, index *vectorindex.Index, generator generation.Generator, opts Options) *Router {
	if opts.TopK <= 0 {
		opts.TopK = vectorindex.DefaultTopK
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = DefaultMaxContextChars
	}

	var dishes []string
	for i := 0; i < store.Len(); i++ {
		dishes = append(dishes, store.Metadata(i).Item)
	}

	restaurants := cat.Restaurants()
	ordinals := make(map[*models.MenuItem]int, store.Len())
	for ri := range restaurants {
		for mi := range restaurants[ri].Menu {
			if o, ok := store.Ordinal(ri, mi); ok {
				ordinals[&restaurants[ri].Menu[mi]] = o
			}
		}
	}

	return &Router{
		catalog:   cat,
		store:     store,
		index:     index,
		parser:    intent.NewParser(cat.Names(), dishes),
		generator: generator,
		opts:      opts,
		ordinals:  ordinals,
	}
}

func (r *Router) Catalog() *catalog.Catalog {
	return r.catalog
}

// Parse exposes the intent parser bound to this catalog.
func (r *Router) Parse(question string) intent.Descriptor {
	return r.parser.Parse(question)
}

// Prepare routes the question and assembles the evidence context without
// calling the generator. A structured question naming something the
// catalog lacks returns a *ResolutionError and never falls back to
// semantic search.
func (r *Router) Prepare(ctx context.Context, question string) (*Result, error) {
	d := r.parser.Parse(question)

	if d.Structured() {
		res, err := r.resolve(ctx, d, question)
		if err != nil {
			return nil, err
		}
		res.Path = PathStructured
		res.Descriptor = d

		slog.Debug("structured answer", "intent", d.String())

		return res, nil
	}

	hits, err := r.index.Query(ctx, question, r.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}

	slog.Debug("semantic answer", "hits", len(hits))

	return &Result{
		Path:       PathSemantic,
		Descriptor: d,
		Context:    r.semanticContext(hits),
		Hits:       hits,
	}, nil
}

// Answer is the caller entry point. Resolution failures come back as the
// user-facing message with a nil error.
func (r *Router) Answer(ctx context.Context, question string) (string, error) {
	return r.AnswerStream(ctx, question, nil)
}

// AnswerStream is Answer with the generated text also passed to fn as it
// is produced.
func (r *Router) AnswerStream(ctx context.Context, question string, fn generation.StreamFunc) (string, error) {
	res, err := r.Prepare(ctx, question)

	var rerr *ResolutionError
	if errors.As(err, &rerr) {
		msg := rerr.Error()
		if fn != nil {
			if err := fn(ctx, []byte(msg)); err != nil {
				return "", err
			}
		}
		return msg, nil
	}
	if err != nil {
		return "", err
	}

	return r.Respond(ctx, res, question, fn)
}

// Respond produces the answer for a prepared result. The generated text is
// returned unedited.
func (r *Router) Respond(ctx context.Context, res *Result, question string, fn generation.StreamFunc) (string, error) {
	if res.Path == PathStructured && !r.opts.Structured {
		if fn != nil {
			if err := fn(ctx, []byte(res.Direct)); err != nil {
				return "", err
			}
		}
		return res.Direct, nil
	}

	if streamer, ok := r.generator.(generation.Streamer); ok && fn != nil {
		return streamer.Stream(ctx, res.Context, question, fn)
	}

	answer, err := r.generator.Generate(ctx, res.Context, question)
	if err != nil {
		return "", err
	}
	if fn != nil {
		if err := fn(ctx, []byte(answer)); err != nil {
			return "", err
		}
	}

	return answer, nil
}
