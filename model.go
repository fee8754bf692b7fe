package chartsync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/golang/glog"
)

// a stop raced an in-progress start. the start that follows the stop is
// expected to supersede this one.
var ErrListeningSuperseded = errors.New("listening superseded")

type ChartEvent struct {
	// the full current data region, not a diff. observers re-render from
	// the complete trace array each time.
	Data []*Node
}

type ChartEventFunction = func(event *ChartEvent)

type ChartModelSettings struct {
	// converts host-native cells to plain values at extraction time
	Unwrap UnwrapFunction
}

func DefaultChartModelSettings() *ChartModelSettings {
	return &ChartModelSettings{
		Unwrap: IdentityUnwrap,
	}
}

// ChartModel is the externally observable object: it owns the chart
// document, runs one streaming subscription per bound table while observers
// are attached, and answers geometry queries for the rendering surface.
//
// All state is read and written behind `stateLock`. The start sequence
// suspends (fetch, subscribe) without the lock, so it re-checks the
// listening flag and a listen generation counter after every suspension:
// concurrent starts collapse to one live listener set per table, and a
// stop invalidates any start it raced. An update callback always observes
// the binding map and accumulators of the most recent completed start.
type ChartModel struct {
	ctx    context.Context
	cancel context.CancelFunc

	provider FigureProvider
	theme    *Theme
	settings *ChartModelSettings

	stateLock        sync.Mutex
	document         *Document
	bindings         Bindings
	listeners        map[Table]*tableListener
	listening        bool
	listenGeneration int
	rectWidth        float64
	rectHeight       float64
	hasRect          bool

	eventCallbacks *CallbackList[ChartEventFunction]
}

func NewChartModelWithDefaults(ctx context.Context, provider FigureProvider, theme *Theme) *ChartModel {
	return NewChartModel(ctx, provider, theme, DefaultChartModelSettings())
}

func NewChartModel(ctx context.Context, provider FigureProvider, theme *Theme, settings *ChartModelSettings) *ChartModel {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &ChartModel{
		ctx:            cancelCtx,
		cancel:         cancel,
		provider:       provider,
		theme:          theme,
		settings:       settings,
		eventCallbacks: NewCallbackList[ChartEventFunction](),
	}
}

// Subscribe registers a change observer and starts listening if this is the
// first observer. The returned function unsubscribes the observer and stops
// listening when no observers remain.
func (self *ChartModel) Subscribe(eventCallback ChartEventFunction) (func(), error) {
	callbackId := self.eventCallbacks.Add(eventCallback)
	if err := self.startListening(self.ctx); err != nil {
		self.eventCallbacks.Remove(callbackId)
		return nil, err
	}
	unsub := func() {
		self.eventCallbacks.Remove(callbackId)
		if self.eventCallbacks.Len() == 0 {
			self.stopListening()
		}
	}
	return unsub, nil
}

// Data returns the current trace objects. Not a deep copy; callers must not
// mutate.
func (self *ChartModel) Data() []*Node {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if self.document == nil {
		return nil
	}
	return self.document.Data()
}

// Layout returns the current layout region. Not a deep copy; callers must
// not mutate.
func (self *ChartModel) Layout() *Node {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if self.document == nil {
		return nil
	}
	return self.document.Layout()
}

// SetRect reports the last-known layout rectangle. Geometry queries return
// zero until the host reports a rectangle.
func (self *ChartModel) SetRect(width float64, height float64) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.rectWidth = width
	self.rectHeight = height
	self.hasRect = true
}

func (self *ChartModel) PlotWidth() float64 {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if !self.hasRect {
		return 0
	}
	return plotExtent(self.rectWidth, self.marginLocked("l"), self.marginLocked("r"))
}

func (self *ChartModel) PlotHeight() float64 {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if !self.hasRect {
		return 0
	}
	return plotExtent(self.rectHeight, self.marginLocked("t"), self.marginLocked("b"))
}

// Reload replaces the document: stop old listeners, reinitialize bindings
// and document, start new listeners. The ordering prevents a stale
// subscription from delivering events against a mismatched binding map.
func (self *ChartModel) Reload(ctx context.Context) error {
	self.stopListening()

	self.stateLock.Lock()
	self.bindings = nil
	self.stateLock.Unlock()

	if self.eventCallbacks.Len() == 0 {
		// no observers. initialization happens lazily on the next start.
		return nil
	}
	return self.startListening(ctx)
}

func (self *ChartModel) Cancel() {
	self.cancel()
	self.stopListening()
}

// startListening is idempotent with respect to already-bound tables,
// including starts racing each other: whichever start wires its listeners
// first wins, and a losing start closes its own subscriptions and returns
// nil. If no bindings exist yet it first initializes the document to
// populate them.
// For every bound table it creates exactly one accumulator and exactly one
// subscription scoped to the union of the table's bound columns. Listening
// is marked true only after all subscriptions are established.
//
// Any single subscription failure aborts the whole start after tearing down
// the partial state. A partially subscribed chart is considered unreliable.
func (self *ChartModel) startListening(ctx context.Context) error {
	self.stateLock.Lock()
	if self.listening {
		self.stateLock.Unlock()
		return nil
	}
	generation := self.listenGeneration
	initialized := self.bindings != nil
	self.stateLock.Unlock()

	if !initialized {
		if err := self.initialize(ctx, generation); err != nil {
			return err
		}
	}

	self.stateLock.Lock()
	if generation != self.listenGeneration {
		self.stateLock.Unlock()
		return ErrListeningSuperseded
	}
	if self.listening {
		// a concurrent start already established the listeners
		self.stateLock.Unlock()
		return nil
	}
	bindings := self.bindings
	self.stateLock.Unlock()

	var listenersLock sync.Mutex
	listeners := map[Table]*tableListener{}
	closeListeners := func() {
		for _, listener := range listeners {
			listener.close()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for table := range bindings {
		table := table
		columns := bindings.Columns(table)
		g.Go(func() error {
			subscription, err := table.Subscribe(gctx, columns)
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", table.Name(), err)
			}
			listener := &tableListener{
				table:        table,
				accumulator:  NewAccumulator(columns),
				subscription: subscription,
			}
			listenersLock.Lock()
			listeners[table] = listener
			listenersLock.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		glog.Infof("[model]start aborted: %v\n", err)
		closeListeners()
		return err
	}

	self.stateLock.Lock()
	if generation != self.listenGeneration {
		self.stateLock.Unlock()
		closeListeners()
		return ErrListeningSuperseded
	}
	if self.listening {
		// a concurrent start won while this one was subscribing. its
		// listeners are live; close the duplicates.
		self.stateLock.Unlock()
		closeListeners()
		return nil
	}
	for table, listener := range listeners {
		table := table
		removeUpdateCallback := listener.subscription.AddUpdateCallback(func(update *TableUpdate) {
			self.handleTableUpdate(table, update)
		})
		listener.cleanups = append(listener.cleanups, removeUpdateCallback)
	}
	self.listeners = listeners
	self.listening = true
	self.stateLock.Unlock()

	glog.V(2).Infof("[model]listening to %d tables\n", len(listeners))
	return nil
}

// stopListening is unconditional and safe to call when nothing is
// listening. It completes synchronously: the flag is cleared, every
// registered cleanup runs, every subscription closes, and the listener map
// is cleared before it returns.
func (self *ChartModel) stopListening() {
	self.stateLock.Lock()
	self.listening = false
	self.listenGeneration += 1
	listeners := self.listeners
	self.listeners = nil
	self.stateLock.Unlock()

	for _, listener := range listeners {
		listener.close()
	}
}

func (self *ChartModel) initialize(ctx context.Context, generation int) error {
	descriptor, err := self.provider.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch figure: %w", err)
	}

	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if generation != self.listenGeneration {
		// a stop raced the fetch. discard the result.
		return ErrListeningSuperseded
	}

	document := NewDocument(descriptor.Data, descriptor.Layout)
	applyTemplate(document, self.theme, descriptor.IsUserSetTemplate)
	self.document = document
	self.bindings = BuildBindings(descriptor.TableRefs)

	glog.V(2).Infof("[model]initialized with %d traces, %d tables\n", len(descriptor.Data), len(self.bindings))
	return nil
}

// must be called with `stateLock`
func (self *ChartModel) marginLocked(side string) float64 {
	if self.document == nil {
		return 0
	}
	layout := self.document.Layout()
	if layout == nil {
		return 0
	}
	margin, ok := layout.Field("margin")
	if !ok {
		return 0
	}
	value, ok := margin.Field(side)
	if !ok {
		return 0
	}
	return numberValue(value.Value())
}

func plotExtent(extent float64, marginLow float64, marginHigh float64) float64 {
	plot := extent - marginLow - marginHigh
	if plot < 0 {
		return 0
	}
	return plot
}

func numberValue(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// tableListener is the per-table subscription handle: the live
// column-filtered feed, the column-value accumulator, and the registered
// cleanup actions.
type tableListener struct {
	table        Table
	accumulator  *Accumulator
	subscription TableSubscription
	cleanups     []func()
}

func (self *tableListener) close() {
	for _, cleanup := range self.cleanups {
		cleanup()
	}
	self.cleanups = nil
	self.subscription.Close()
}
