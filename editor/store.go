package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"canvas-editor/core"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type (
	// Persister is the write-through target for the current project.
	Persister interface {
		SaveProject(ctx context.Context, project *core.Project) error
		// LoadProject returns nil and no error when nothing usable is stored.
		LoadProject(ctx context.Context) (*core.Project, error)
	}

	// State is a read-only view of the store. Project is a private copy.
	State struct {
		Project           *core.Project `json:"project"`
		CurrentPageIndex  int           `json:"currentPageIndex"`
		SelectedElementID *string       `json:"selectedElementId"`
		CanUndo           bool          `json:"canUndo"`
		CanRedo           bool          `json:"canRedo"`
		Generation        uint64        `json:"generation"`
	}

	// Ticket captures the document generation at the start of an asynchronous
	// operation so its result can be discarded if the document moved on.
	Ticket struct {
		generation uint64
	}

	Option func(*Store)

	// Store owns one user's current project, the active page, the selection and
	// the undo/redo history. Project values held by the store are never modified
	// in place: every change builds a new copy, so past snapshots stay intact.
	Store struct {
		mu sync.Mutex

		persister Persister
		now       func() time.Time
		limit     int

		project    *core.Project
		pageIndex  int
		selected   string
		past       []*core.Project
		future     []*core.Project
		generation uint64

		// seq orders published states; delivered is the last one handed to
		// subscribers and is guarded by pubMu.
		seq       uint64
		pubMu     sync.Mutex
		delivered uint64

		subMu       sync.Mutex
		subscribers map[int]func(State)
		nextSub     int
	}
)

type effect int

const (
	effectNone effect = iota
	effectView
	effectDocument
)

// WithHistoryLimit caps the number of undo steps kept. Zero means unbounded.
func WithHistoryLimit(n int) Option {
	return func(s *Store) { s.limit = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(persister Persister, opts ...Option) *Store {
	s := &Store{
		persister:   persister,
		now:         func() time.Time { return time.Now().UTC() },
		subscribers: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ActivePage returns the page at CurrentPageIndex, or nil without a project.
func (st State) ActivePage() *core.Page {
	if st.Project == nil || st.CurrentPageIndex < 0 || st.CurrentPageIndex >= len(st.Project.Pages) {
		return nil
	}
	return &st.Project.Pages[st.CurrentPageIndex]
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Subscribe registers fn to receive the state after every change. States reach
// fn in the order they were produced; one overtaken by a newer state is
// skipped. fn must not mutate the store. The returned function removes the
// subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// CreateProject replaces the current project with a fresh one holding a single
// empty page. History is reset; the reset itself cannot be undone.
func (s *Store) CreateProject(ctx context.Context, name, userID string) error {
	return s.run(ctx, func() (effect, error) {
		now := s.now()
		s.project = &core.Project{
			ID:            uuid.NewString(),
			Name:          name,
			Pages:         []core.Page{core.NewPage("Page 1")},
			CreatedAt:     now,
			UpdatedAt:     now,
			CreatedBy:     userID,
			Collaborators: []string{userID},
		}
		s.resetLocked()
		return effectDocument, nil
	})
}

// LoadProject makes project current without writing it back, resetting history.
func (s *Store) LoadProject(project *core.Project) error {
	if project == nil || len(project.Pages) == 0 {
		return fmt.Errorf("%w: project has no pages", core.ErrMalformedRecord)
	}
	return s.run(context.Background(), func() (effect, error) {
		s.project = project.Clone()
		s.resetLocked()
		return effectView, nil
	})
}

// Load rehydrates the store from its persister. It reports whether a project
// was found.
func (s *Store) Load(ctx context.Context) (bool, error) {
	project, err := s.persister.LoadProject(ctx)
	if err != nil {
		return false, err
	}
	if project == nil {
		return false, nil
	}
	if err := s.LoadProject(project); err != nil {
		return false, err
	}
	return true, nil
}

// Save writes the current project through without touching history. It
// reports false when there is nothing to save.
func (s *Store) Save(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.project == nil {
		return false, nil
	}
	return true, s.persistLocked(ctx)
}

func (s *Store) AddPage(ctx context.Context) error {
	return s.run(ctx, func() (effect, error) {
		err := s.applyLocked(func(p *core.Project) error {
			p.Pages = append(p.Pages, core.NewPage(fmt.Sprintf("Page %d", len(p.Pages)+1)))
			return nil
		})
		if err != nil {
			return effectNone, err
		}
		s.pageIndex = len(s.project.Pages) - 1
		s.selected = ""
		return effectDocument, nil
	})
}

func (s *Store) DeletePage(ctx context.Context, pageID string) error {
	return s.run(ctx, func() (effect, error) {
		err := s.applyLocked(func(p *core.Project) error {
			idx := p.PageIndex(pageID)
			if idx == -1 {
				return fmt.Errorf("%w: %s", ErrPageNotFound, pageID)
			}
			if len(p.Pages) <= 1 {
				return ErrLastPage
			}
			p.Pages = append(p.Pages[:idx], p.Pages[idx+1:]...)
			return nil
		})
		if err != nil {
			return effectNone, err
		}
		s.clampLocked()
		return effectDocument, nil
	})
}

// ChangePage is navigation only and never touches history.
func (s *Store) ChangePage(index int) error {
	return s.run(context.Background(), func() (effect, error) {
		if s.project == nil {
			return effectNone, ErrNoProject
		}
		if index < 0 || index >= len(s.project.Pages) {
			return effectNone, fmt.Errorf("%w: %d", ErrPageIndex, index)
		}
		s.pageIndex = index
		s.selected = ""
		return effectView, nil
	})
}

// AddElement appends el to the active page and selects it. The caller owns
// ZIndex; by convention it is the page's element count plus one.
func (s *Store) AddElement(ctx context.Context, el core.Element) error {
	if err := el.Validate(); err != nil {
		return err
	}
	return s.run(ctx, func() (effect, error) {
		err := s.applyLocked(func(p *core.Project) error {
			page := &p.Pages[s.pageIndex]
			if page.ElementIndex(el.ID) != -1 {
				return fmt.Errorf("%w: %s", ErrDuplicateElement, el.ID)
			}
			page.Elements = append(page.Elements, el.Clone())
			return nil
		})
		if err != nil {
			return effectNone, err
		}
		s.selected = el.ID
		return effectDocument, nil
	})
}

// UpdateElement merges patch into the element with the given id on the active
// page. The element keeps its identity.
func (s *Store) UpdateElement(ctx context.Context, id string, patch core.ElementPatch) error {
	return s.run(ctx, func() (effect, error) {
		if err := s.updateLocked(id, patch); err != nil {
			return effectNone, err
		}
		return effectDocument, nil
	})
}

func (s *Store) DeleteElement(ctx context.Context, id string) error {
	return s.run(ctx, func() (effect, error) {
		err := s.applyLocked(func(p *core.Project) error {
			page := &p.Pages[s.pageIndex]
			idx := page.ElementIndex(id)
			if idx == -1 {
				return fmt.Errorf("%w: %s", ErrElementNotFound, id)
			}
			page.Elements = append(page.Elements[:idx], page.Elements[idx+1:]...)
			return nil
		})
		if err != nil {
			return effectNone, err
		}
		if s.selected == id {
			s.selected = ""
		}
		return effectDocument, nil
	})
}

// SelectElement changes the selection; an empty id clears it. It never touches
// history.
func (s *Store) SelectElement(id string) error {
	return s.run(context.Background(), func() (effect, error) {
		if id != "" {
			if s.project == nil {
				return effectNone, ErrNoProject
			}
			if s.project.Pages[s.pageIndex].ElementIndex(id) == -1 {
				return effectNone, fmt.Errorf("%w: %s", ErrElementNotFound, id)
			}
		}
		s.selected = id
		return effectView, nil
	})
}

// Undo restores the most recent snapshot. It reports false when there was
// nothing to undo.
func (s *Store) Undo(ctx context.Context) (bool, error) {
	var moved bool
	err := s.run(ctx, func() (effect, error) {
		if s.project == nil || len(s.past) == 0 {
			return effectNone, nil
		}
		prev := s.past[len(s.past)-1]
		s.past = s.past[:len(s.past)-1]
		s.future = append(s.future, s.project)
		s.project = prev
		s.generation++
		s.clampLocked()
		moved = true
		return effectDocument, nil
	})
	return moved, err
}

func (s *Store) Redo(ctx context.Context) (bool, error) {
	var moved bool
	err := s.run(ctx, func() (effect, error) {
		if s.project == nil || len(s.future) == 0 {
			return effectNone, nil
		}
		next := s.future[len(s.future)-1]
		s.future = s.future[:len(s.future)-1]
		s.pushPastLocked(s.project)
		s.project = next
		s.generation++
		s.clampLocked()
		moved = true
		return effectDocument, nil
	})
	return moved, err
}

// Ticket starts a two-phase operation. Pass it to a Commit method once the
// asynchronous part has finished.
func (s *Store) Ticket() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Ticket{generation: s.generation}
}

// CommitElementUpdate applies patch only when the document has not changed
// since t was taken. Otherwise it returns ErrStale and changes nothing.
func (s *Store) CommitElementUpdate(ctx context.Context, t Ticket, id string, patch core.ElementPatch) error {
	return s.run(ctx, func() (effect, error) {
		if t.generation != s.generation {
			return effectNone, ErrStale
		}
		if err := s.updateLocked(id, patch); err != nil {
			return effectNone, err
		}
		return effectDocument, nil
	})
}

func (s *Store) updateLocked(id string, patch core.ElementPatch) error {
	return s.applyLocked(func(p *core.Project) error {
		page := &p.Pages[s.pageIndex]
		idx := page.ElementIndex(id)
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrElementNotFound, id)
		}
		updated, err := patch.Apply(page.Elements[idx])
		if err != nil {
			return err
		}
		page.Elements[idx] = updated
		return nil
	})
}

// run executes fn under the store lock, writes the project through when the
// document changed and notifies subscribers after the lock is released.
func (s *Store) run(ctx context.Context, fn func() (effect, error)) error {
	s.mu.Lock()
	eff, err := fn()
	var (
		st         State
		seq        uint64
		persistErr error
	)
	if eff == effectDocument {
		persistErr = s.persistLocked(ctx)
	}
	if eff != effectNone {
		st = s.stateLocked()
		s.seq++
		seq = s.seq
	}
	s.mu.Unlock()

	if eff != effectNone {
		s.publish(seq, st)
	}
	if err != nil {
		return err
	}
	return persistErr
}

// applyLocked runs transform against a copy of the current project and, on
// success, records the previous project as an undo step.
func (s *Store) applyLocked(transform func(p *core.Project) error) error {
	if s.project == nil {
		return ErrNoProject
	}
	next := s.project.Clone()
	if err := transform(next); err != nil {
		return err
	}
	next.UpdatedAt = s.now()

	s.pushPastLocked(s.project)
	s.future = nil
	s.project = next
	s.generation++
	return nil
}

func (s *Store) pushPastLocked(p *core.Project) {
	s.past = append(s.past, p)
	if s.limit > 0 && len(s.past) > s.limit {
		s.past = append([]*core.Project(nil), s.past[len(s.past)-s.limit:]...)
	}
}

func (s *Store) resetLocked() {
	s.pageIndex = 0
	s.selected = ""
	s.past = nil
	s.future = nil
	s.generation++
}

// clampLocked restores the page index and selection invariants after the page
// list changed underneath them.
func (s *Store) clampLocked() {
	if s.project == nil {
		return
	}
	if s.pageIndex >= len(s.project.Pages) {
		s.pageIndex = len(s.project.Pages) - 1
	}
	if s.pageIndex < 0 {
		s.pageIndex = 0
	}
	if s.selected != "" && s.project.Pages[s.pageIndex].ElementIndex(s.selected) == -1 {
		s.selected = ""
	}
}

func (s *Store) persistLocked(ctx context.Context) error {
	if s.persister == nil || s.project == nil {
		return nil
	}
	if err := s.persister.SaveProject(ctx, s.project); err != nil {
		logrus.WithFields(logrus.Fields{
			"project_id": s.project.ID,
			"error":      err,
		}).Warn("Write-through of project failed")
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func (s *Store) stateLocked() State {
	st := State{
		Project:          s.project.Clone(),
		CurrentPageIndex: s.pageIndex,
		CanUndo:          len(s.past) > 0,
		CanRedo:          len(s.future) > 0,
		Generation:       s.generation,
	}
	if s.selected != "" {
		id := s.selected
		st.SelectedElementID = &id
	}
	return st
}

// publish hands st to the subscribers unless a later state already went out.
// Subscribers must not mutate the store.
func (s *Store) publish(seq uint64, st State) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if seq <= s.delivered {
		return
	}
	s.delivered = seq

	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
