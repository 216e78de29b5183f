package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"promptmaster/internal/models"
	"promptmaster/internal/observability"
	"promptmaster/internal/prompt"
)

// User-facing texts returned instead of an error.
const (
	FallbackNoResponse         = "I couldn't generate a response. Please try again."
	FallbackCommunicationError = "I encountered an error communicating with the AI. Please check your connection or API key."
)

const (
	DefaultModel         = "gemini-2.5-flash"
	DefaultCreativeModel = "gemini-3-pro-preview"

	DefaultTemperature  float32 = 0.4
	CreativeTemperature float32 = 0.9
)

var (
	ErrEmptyInput  = errors.New("input text is empty")
	ErrBackend     = errors.New("generation backend failed")
	ErrEmptyResult = errors.New("generation backend returned no text")
)

// FailureKind classifies why a dispatch fell back.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureConfigNotFound FailureKind = "config_not_found"
	FailureInvalidInput   FailureKind = "invalid_input"
	FailureBackend        FailureKind = "backend"
	FailureEmptyResult    FailureKind = "empty_result"
)

// Result carries both the text to show the user and the internal error
// signal. Text is always set.
type Result struct {
	Text        string
	Err         error
	Kind        FailureKind
	Model       string
	Temperature float32
}

// OK reports whether Text is real backend output.
func (r Result) OK() bool {
	return r.Err == nil
}

// ModelSet names the default and the higher-capability model of a provider.
type ModelSet struct {
	Default  string
	Creative string
}

// Dispatcher resolves a chat turn to one generation call. It holds no
// mutable state and is safe for concurrent use.
type Dispatcher struct {
	catalog *prompt.Catalog
	backend Backend
	models  ModelSet
}

func NewDispatcher(catalog *prompt.Catalog, backend Backend, set ModelSet) *Dispatcher {
	if catalog == nil {
		catalog = prompt.Default()
	}
	if set.Default == "" {
		set.Default = DefaultModel
	}
	if set.Creative == "" {
		set.Creative = set.Default
	}
	return &Dispatcher{catalog: catalog, backend: backend, models: set}
}

// Catalog exposes the prompt table the dispatcher resolves against.
func (d *Dispatcher) Catalog() *prompt.Catalog {
	return d.catalog
}

// Params returns the model and sampling temperature used for a mode.
func (d *Dispatcher) Params(mode models.Mode) (string, float32) {
	if mode == models.ModeCreative {
		return d.models.Creative, CreativeTemperature
	}
	return d.models.Default, DefaultTemperature
}

// Generate returns the backend text or one of the fallback strings. It never
// fails.
func (d *Dispatcher) Generate(ctx context.Context, input string, mode models.Mode, style models.Style) string {
	return d.Dispatch(ctx, input, mode, style).Text
}

// Dispatch is Generate with the internal error kept alongside the text.
func (d *Dispatcher) Dispatch(ctx context.Context, input string, mode models.Mode, style models.Style) (res Result) {
	logger := observability.LoggerFromContext(ctx).With("mode", mode, "style", style)
	modelID, temperature := d.Params(mode)
	res.Model = modelID
	res.Temperature = temperature

	defer func() {
		if r := recover(); r != nil {
			res.Text = FallbackCommunicationError
			res.Err = fmt.Errorf("%w: panic: %v", ErrBackend, r)
			res.Kind = FailureBackend
			logger.Error("generation backend panicked", "panic", r)
		}
	}()

	if strings.TrimSpace(input) == "" {
		res.Text = FallbackCommunicationError
		res.Err = ErrEmptyInput
		res.Kind = FailureInvalidInput
		logger.Warn("dispatch called with empty input")
		return res
	}

	cfg, err := d.catalog.Lookup(mode, style)
	if err != nil {
		res.Text = FallbackCommunicationError
		res.Err = err
		res.Kind = FailureConfigNotFound
		logger.Error("prompt config missing, catalog and caller are out of sync", "error", err)
		return res
	}
	if d.backend == nil {
		res.Text = FallbackCommunicationError
		res.Err = fmt.Errorf("%w: no backend configured", ErrBackend)
		res.Kind = FailureBackend
		logger.Error("generation backend not configured")
		return res
	}

	text, err := d.backend.Generate(ctx, Request{
		Model:             modelID,
		SystemInstruction: cfg.SystemInstruction,
		Content:           input,
		Temperature:       temperature,
	})
	if err != nil {
		res.Text = FallbackCommunicationError
		res.Err = fmt.Errorf("%w: %w", ErrBackend, err)
		res.Kind = FailureBackend
		logger.Error("generation request failed", "model", modelID, "error", err)
		return res
	}
	if strings.TrimSpace(text) == "" {
		res.Text = FallbackNoResponse
		res.Err = ErrEmptyResult
		res.Kind = FailureEmptyResult
		logger.Warn("generation returned no text", "model", modelID)
		return res
	}
	res.Text = text
	return res
}
