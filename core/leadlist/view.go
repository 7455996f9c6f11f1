// Package leadlist is the filterable, searchable, sortable leads table.
package leadlist

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/lead"
)

const (
	// VisibleStep is the page size and the ShowMore increment.
	VisibleStep = 25

	DefaultDebounce = 500 * time.Millisecond
)

type (
	// Fetcher is satisfied by *lead.Service.
	Fetcher interface {
		Query(ctx context.Context, filter lead.QueryFilter) ([]lead.Lead, error)
		Cached(ctx context.Context) ([]lead.Lead, bool)
	}

	Options struct {
		Debounce time.Duration
		Logger   core.Logger

		// OnChange is called, from the fetching goroutine, after every fetch that was not superseded.
		OnChange func(Snapshot)

		// Context is the parent of debounced fetches. Defaults to context.Background().
		Context context.Context
	}

	// Snapshot is what the table shows.
	Snapshot struct {
		Filter   lead.QueryFilter
		Ordering core.Ordering
		Rows     []lead.Lead
		Total    int
		Visible  int
		Loading  bool
		Err      error
	}

	// View holds the list state. Filter and search changes are debounced into a single fetch;
	// sorting and paging work on the loaded rows and never fetch.
	View struct {
		mu       sync.Mutex
		filter   lead.QueryFilter
		ordering core.Ordering
		leads    []lead.Lead
		visible  int
		loading  bool
		err      error
		seq      uint64
		closed   bool
		inflight sync.WaitGroup

		fetcher   Fetcher
		debouncer *Debouncer
		logger    core.Logger
		onChange  func(Snapshot)
		ctx       context.Context
	}
)

func (s Snapshot) HasMore() bool { return s.Visible < s.Total }

func NewView(fetcher Fetcher, opts Options) *View {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return &View{
		ordering:  DefaultOrdering,
		visible:   VisibleStep,
		fetcher:   fetcher,
		debouncer: NewDebouncer(opts.Debounce),
		logger:    opts.Logger,
		onChange:  opts.OnChange,
		ctx:       opts.Context,
	}
}

// Load fetches the current filter now, cancelling any pending debounced fetch.
// The cached default view, if any, is shown while the fetch is in flight.
func (v *View) Load(ctx context.Context) (Snapshot, error) {
	v.debouncer.Cancel()

	v.mu.Lock()
	filter := v.filter
	v.mu.Unlock()
	if filter.IsDefault() {
		if cached, ok := v.fetcher.Cached(ctx); ok {
			v.mu.Lock()
			if v.leads == nil {
				v.leads = cached
			}
			v.mu.Unlock()
		}
	}

	seq, ok := v.begin()
	if !ok {
		return v.Snapshot(), errors.New("list view is closed")
	}
	defer v.inflight.Done()
	err := v.fetch(ctx, seq)
	return v.Snapshot(), err
}

// Refresh sets the filter and fetches it now. Used where input is already coalesced (e.g. a submitted form).
func (v *View) Refresh(ctx context.Context, filter lead.QueryFilter) (Snapshot, error) {
	filter.Clean()
	v.mu.Lock()
	if filter != v.filter {
		v.filter = filter
		v.visible = VisibleStep
	}
	v.mu.Unlock()
	return v.Load(ctx)
}

// SetStatus changes the status filter ("all" or a status). The fetch is debounced.
func (v *View) SetStatus(status string) error {
	qf := lead.QueryFilter{Status: status}
	qf.Clean()
	if !qf.AllStatuses() && !lead.Status(qf.Status).Valid() {
		return lead.ErrInvalidStatus
	}
	v.mu.Lock()
	v.filter.Status = qf.Status
	v.mu.Unlock()
	v.schedule()
	return nil
}

// SetSearch changes the search term. The fetch is debounced.
func (v *View) SetSearch(search string) {
	v.mu.Lock()
	v.filter.Search = search
	v.mu.Unlock()
	v.schedule()
}

func (v *View) schedule() {
	v.mu.Lock()
	v.visible = VisibleStep
	v.loading = true
	v.mu.Unlock()

	v.debouncer.Debounce(func() {
		seq, ok := v.begin()
		if !ok {
			return
		}
		defer v.inflight.Done()
		if err := v.fetch(v.ctx, seq); err != nil && v.logger != nil {
			v.logger.Warn("fetching leads", err)
		}
	})
}

// begin registers a fetch. The returned sequence identifies the latest request.
func (v *View) begin() (uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, false
	}
	v.inflight.Add(1)
	v.seq++
	v.loading = true
	return v.seq, true
}

func (v *View) fetch(ctx context.Context, seq uint64) error {
	v.mu.Lock()
	filter := v.filter
	v.mu.Unlock()
	filter.Clean()

	leads, err := v.fetcher.Query(ctx, filter)

	v.mu.Lock()
	if seq != v.seq {
		v.mu.Unlock()
		return err // superseded
	}
	v.loading = false
	v.err = err
	v.leads = leads // nil on error: rows must match the filter shown
	v.mu.Unlock()

	if v.onChange != nil {
		v.onChange(v.Snapshot())
	}
	return err
}

// SetOrdering sorts the loaded rows. It never fetches.
func (v *View) SetOrdering(ord core.Ordering) error {
	if ord.Field != "" && !validSortField(ord.Field) {
		return errors.Wrapf(ErrUnknownSortField, "%q", ord.Field)
	}
	v.mu.Lock()
	v.ordering = ord
	v.mu.Unlock()
	return nil
}

// SortBy orders by field, flipping the direction when field is already the sort key.
func (v *View) SortBy(field string) error {
	v.mu.Lock()
	ord := core.Ordering{Field: field, Ascending: true}
	if v.ordering.Field == field {
		ord.Ascending = !v.ordering.Ascending
	}
	v.mu.Unlock()
	return v.SetOrdering(ord)
}

// ShowMore reveals the next VisibleStep rows.
func (v *View) ShowMore() {
	v.mu.Lock()
	v.visible += VisibleStep
	v.mu.Unlock()
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := Snapshot{
		Filter:   v.filter,
		Ordering: v.ordering,
		Total:    len(v.leads),
		Loading:  v.loading,
		Err:      v.err,
	}
	sorted, err := Sort(v.leads, v.ordering)
	if err != nil {
		sorted = append([]lead.Lead(nil), v.leads...)
	}
	snap.Visible = v.visible
	if snap.Visible > len(sorted) {
		snap.Visible = len(sorted)
	}
	snap.Rows = sorted[:snap.Visible]
	return snap
}

// All returns every loaded row in the current ordering, ignoring paging.
func (v *View) All() []lead.Lead {
	v.mu.Lock()
	defer v.mu.Unlock()
	sorted, err := Sort(v.leads, v.ordering)
	if err != nil {
		return append([]lead.Lead(nil), v.leads...)
	}
	return sorted
}

// Close cancels any pending fetch and waits for the running one.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.debouncer.Cancel()
	v.inflight.Wait()
}
