package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/lead"
)

const (
	// VisibleStep is both the initial per-column page size and the "load more" increment.
	VisibleStep = 5

	resyncKey = "resync"
)

var (
	ErrUnknownColumn = errors.New("unknown pipeline column")
	ErrLeadNotFound  = errors.New("lead is not on the board")
)

type (
	// Source is the remote source of truth the board reads and writes through.
	// *lead.Service satisfies it.
	Source interface {
		Query(ctx context.Context, filter lead.QueryFilter) ([]lead.Lead, error)
		UpdateStatus(ctx context.Context, id string, status lead.Status) error
	}

	Location struct {
		Status lead.Status `json:"status" form:"status"`
		Index  int         `json:"index" form:"index"`
	}

	// Drop is a drag-and-drop result. A nil Destination means the card was dropped outside any column.
	Drop struct {
		LeadID      string    `json:"lead_id" form:"lead_id"`
		Source      Location  `json:"source"`
		Destination *Location `json:"destination"`
	}

	// Transition is an applied, not yet committed, status change.
	Transition struct {
		LeadID string
		From   lead.Status
		To     lead.Status
		epoch  uint64
	}

	Options struct {
		Cache    core.Cache
		TTL      time.Duration
		Notifier core.Notifier
		Logger   core.Logger
		Now      func() time.Time
	}

	// Board is the kanban view of the pipeline. It is safe for concurrent use.
	Board struct {
		mu      sync.Mutex
		state   State
		epoch   uint64
		loaded  bool
		visible map[lead.Status]int

		src      Source
		cache    core.Cache
		ttl      time.Duration
		notifier core.Notifier
		logger   core.Logger
		now      func() time.Time
		resyncs  singleflight.Group
	}
)

func NewBoard(src Source, opts Options) *Board {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = core.NotifierFunc(func(core.Toast) {})
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	b := &Board{
		state:    Settled{Server: NewColumns()},
		src:      src,
		cache:    opts.Cache,
		ttl:      opts.TTL,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	b.resetVisible()
	return b
}

func (b *Board) resetVisible() {
	b.visible = make(map[lead.Status]int, len(lead.Statuses))
	for _, s := range lead.Statuses {
		b.visible[s] = VisibleStep
	}
}

// Warm shows the cached columns, if any, until the first resync lands.
func (b *Board) Warm(ctx context.Context) bool {
	if b.cache == nil {
		return false
	}
	var cols Columns
	if err := b.cache.Get(ctx, core.CacheKeyPipelineColumns, &cols); err != nil {
		if err != core.ErrCacheMiss {
			b.logger.Warn("reading cached pipeline", err)
		}
		return false
	}
	fresh := NewColumns()
	for s := range fresh {
		if col, ok := cols[s]; ok && col != nil {
			fresh[s] = col
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loaded {
		return false
	}
	b.state = Settled{Server: fresh}
	b.loaded = true
	return true
}

// Resync replaces the local state with the server's. Concurrent calls share one fetch.
// Any optimistic move still in flight is discarded; its completion will be ignored.
func (b *Board) Resync(ctx context.Context) (Columns, error) {
	v, err, _ := b.resyncs.Do(resyncKey, func() (interface{}, error) {
		leads, err := b.src.Query(ctx, lead.QueryFilter{})
		if err != nil {
			return nil, err
		}
		cols := Group(leads)

		b.mu.Lock()
		b.epoch++
		b.state = Settled{Server: cols}
		if !b.loaded {
			b.resetVisible()
			b.loaded = true
		}
		b.mu.Unlock()

		b.persist(ctx, cols)
		return cols, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "resyncing pipeline")
	}
	return v.(Columns).Clone(), nil
}

// State returns a copy of the current state.
func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch st := b.state.(type) {
	case Pending:
		return Pending{Optimistic: st.Optimistic.Clone(), Original: st.Original.Clone(), InFlight: st.InFlight}
	case Settled:
		return Settled{Server: st.Server.Clone()}
	}
	return nil
}

// Columns returns a copy of what the board currently shows.
func (b *Board) Columns() Columns {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Columns().Clone()
}

// Apply moves the card locally, before anything is sent. It returns a nil Transition when the
// drop is not a status change: outside any column, or within the same column.
func (b *Board) Apply(d Drop) (*Transition, error) {
	if d.Destination == nil {
		return nil, nil
	}
	if !d.Source.Status.Valid() || !d.Destination.Status.Valid() {
		return nil, ErrUnknownColumn
	}
	if d.Source.Status == d.Destination.Status {
		return nil, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cols := b.state.Columns()
	from, to := d.Source.Status, d.Destination.Status
	col := cols[from]
	idx := d.Source.Index
	if idx < 0 || idx >= len(col) || (d.LeadID != "" && col[idx].ID != d.LeadID) {
		idx = -1
		for i, l := range col {
			if l.ID == d.LeadID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, ErrLeadNotFound
		}
	}

	moved := col[idx].Clone()
	moved.Status = to
	moved.UpdatedAt = b.now()

	next := cols.Clone()
	next[from] = removeAt(next[from], idx)
	next[to] = insertAt(next[to], d.Destination.Index, moved)

	switch st := b.state.(type) {
	case Settled:
		b.state = Pending{Optimistic: next, Original: st.Server, InFlight: 1}
	case Pending:
		b.state = Pending{Optimistic: next, Original: st.Original, InFlight: st.InFlight + 1}
	}
	return &Transition{LeadID: moved.ID, From: from, To: to, epoch: b.epoch}, nil
}

// Commit persists an applied transition. On success the optimistic state is kept; on any
// failure the board is resynced from the server and the error is returned.
func (b *Board) Commit(ctx context.Context, tr *Transition) error {
	if tr == nil {
		return nil
	}
	if err := b.src.UpdateStatus(ctx, tr.LeadID, tr.To); err != nil {
		b.notifier.Notify(core.Toast{Level: core.LevelError, Title: "Failed to move lead"})
		b.recover(ctx, err)
		return errors.Wrap(err, "moving lead")
	}

	var settled Columns
	b.mu.Lock()
	if p, ok := b.state.(Pending); ok && tr.epoch == b.epoch {
		if p.InFlight <= 1 {
			b.state = Settled{Server: p.Optimistic}
			settled = p.Optimistic.Clone()
		} else {
			p.InFlight--
			b.state = p
		}
	}
	b.mu.Unlock()

	if settled != nil {
		b.persist(ctx, settled)
	}
	b.notifier.Notify(core.Toast{Level: core.LevelSuccess, Title: "Moved to " + tr.To.Label()})
	if tr.To == lead.StatusVisitScheduled {
		b.notifier.Notify(core.Toast{
			Level:       core.LevelInfo,
			Title:       "Task created: Prepare for Visit",
			Description: "Check your tasks list.",
		})
	}
	return nil
}

// Move is Apply followed by Commit.
func (b *Board) Move(ctx context.Context, d Drop) error {
	tr, err := b.Apply(d)
	if err != nil {
		return err
	}
	return b.Commit(ctx, tr)
}

// recover never leaves an unconfirmed move on screen. Recoverable failures resync; when that
// is impossible (session gone, forbidden, resync failed) the last settled columns are restored.
func (b *Board) recover(ctx context.Context, cause error) {
	if core.IsRecoverable(cause) {
		_, err := b.Resync(ctx)
		if err == nil {
			return
		}
		b.logger.Warn("resync after failed move", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.state.(Pending); ok {
		b.epoch++
		b.state = Settled{Server: p.Original}
	}
}

// LoadMore reveals the next VisibleStep cards of a column.
func (b *Board) LoadMore(s lead.Status) error {
	if !s.Valid() {
		return ErrUnknownColumn
	}
	b.mu.Lock()
	b.visible[s] += VisibleStep
	b.mu.Unlock()
	return nil
}

// Visible is how many cards of a column are shown.
func (b *Board) Visible(s lead.Status) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visible[s]
}

// Pending reports whether optimistic moves are awaiting confirmation.
func (b *Board) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.state.(Pending)
	return ok
}

func (b *Board) persist(ctx context.Context, cols Columns) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Set(ctx, core.CacheKeyPipelineColumns, cols, b.ttl); err != nil {
		b.logger.Warn("caching pipeline", err)
	}
}
