package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/prquick/composer"
)

//go:embed bridge.js
var bridgeJS string

//go:embed toolbar.css
var toolbarCSS string

// BindingName is the CDP runtime binding the page script reports through.
const BindingName = "__prquick_binding"

// Events receives page signals. *inject.Engine implements it.
type Events interface {
	Start()
	Mutation()
	Navigate()
	// Gesture applies g and may return before a dispatch it starts ends.
	Gesture(ctx context.Context, g composer.Gesture) <-chan struct{}
}

// gestureQueue bounds gestures waiting for delivery.
const gestureQueue = 64

// event is one binding payload from bridge.js.
type event struct {
	Type    string           `json:"type"`
	Via     string           `json:"via,omitempty"`
	Gesture composer.Gesture `json:"gesture"`
}

// Bridge connects a Tab's page script to an Events sink.
type Bridge struct {
	tab      *Tab
	events   Events
	logger   *slog.Logger
	gestures chan composer.Gesture
}

// NewBridge creates a Bridge. Call Install, then Listen.
func NewBridge(tab *Tab, events Events, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		tab:      tab,
		events:   events,
		logger:   logger,
		gestures: make(chan composer.Gesture, gestureQueue),
	}
}

func bridgeSource() (string, error) {
	css, err := json.Marshal(toolbarCSS)
	if err != nil {
		return "", err
	}
	return strings.Replace(bridgeJS, "__PRQUICK_CSS__", string(css), 1), nil
}

// Install adds the binding, registers the page script for every future
// document, and runs it once in the current one.
func (b *Bridge) Install(ctx context.Context) error {
	page := b.tab.Page.Context(ctx)
	if err := (proto.RuntimeAddBinding{Name: BindingName}).Call(page); err != nil {
		b.logger.Warn("browser: addBinding failed (may already exist)", "error", err)
	}
	src, err := bridgeSource()
	if err != nil {
		return fmt.Errorf("browser: bridge source: %w", err)
	}
	if _, err := page.EvalOnNewDocument(src); err != nil {
		return fmt.Errorf("browser: register bridge: %w", err)
	}
	if _, err := (proto.RuntimeEvaluate{Expression: src}).Call(page); err != nil {
		return fmt.Errorf("browser: inject bridge: %w", err)
	}
	b.logger.Debug("browser: bridge installed")
	return nil
}

// Listen forwards page events until ctx is done. It blocks.
func (b *Bridge) Listen(ctx context.Context) {
	go b.deliver(ctx)
	page := b.tab.Page.Context(ctx)
	page.EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != BindingName {
			return
		}
		b.handle(ctx, e.Payload)
	}, func(e *proto.PageFrameNavigated) {
		if e.Frame != nil && e.Frame.ParentID == "" {
			b.events.Navigate()
		}
	})()
}

func (b *Bridge) handle(ctx context.Context, payload string) {
	var ev event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.logger.Warn("browser: parse binding payload", "error", err)
		return
	}
	switch ev.Type {
	case "load":
		b.events.Start()
	case "mutation":
		b.events.Mutation()
	case "navigate":
		b.logger.Debug("browser: navigation", "via", ev.Via)
		b.events.Navigate()
	case "gesture":
		select {
		case b.gestures <- ev.Gesture:
		default:
			b.logger.Warn("browser: gesture queue full, dropped", "kind", ev.Gesture.Kind)
		}
	default:
		b.logger.Debug("browser: unknown binding event", "type", ev.Type)
	}
}

// deliver hands gestures to the sink one at a time, in page order, off the
// CDP event goroutine.
func (b *Bridge) deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case g := <-b.gestures:
			b.events.Gesture(ctx, g)
		}
	}
}
