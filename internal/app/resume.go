package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/animation"
	"github.com/dokzlo13/huemotion/internal/engine"
	"github.com/dokzlo13/huemotion/internal/eventbus"
	"github.com/dokzlo13/huemotion/internal/storage"
)

const (
	resumeKind = "animation"
	resumeID   = "active"

	// ResumeSource is stamped on animations restarted at boot.
	ResumeSource = "resume"
)

// ActiveAnimation is the persisted record of the playing animation.
type ActiveAnimation struct {
	RunID  string         `json:"run_id"`
	Source string         `json:"source"`
	Spec   animation.Spec `json:"spec"`
}

// ResumeStore remembers the playing animation so it can be restarted after
// a restart of the process.
type ResumeStore struct {
	store *storage.Docs[ActiveAnimation]
	mu    sync.Mutex

	// first event handled per run, until its counterpart arrives
	pending map[string]eventbus.EventType
}

// NewResumeStore creates a resume store on top of the generic state store.
func NewResumeStore(store *storage.Store) *ResumeStore {
	return &ResumeStore{
		store:   storage.NewDocs[ActiveAnimation](store, resumeKind),
		pending: make(map[string]eventbus.EventType),
	}
}

// Subscribe tracks animation starts and stops published on the bus.
func (r *ResumeStore) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeAnimationStarted, r.onStarted)
	bus.Subscribe(eventbus.EventTypeAnimationStopped, r.onStopped)
}

// Active returns the persisted animation, if any.
func (r *ResumeStore) Active() (ActiveAnimation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Load(resumeID)
}

// Clear forgets the persisted animation.
func (r *ResumeStore) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Delete(resumeID)
}

// Restore resubmits the persisted animation. It is a no-op when nothing
// was playing at the last shutdown.
func (r *ResumeStore) Restore(ctx context.Context, submit func(context.Context, engine.Command) error) error {
	active, ok, err := r.Active()
	if err != nil || !ok {
		return err
	}
	log.Info().
		Str("animation", string(active.Spec.Kind)).
		Str("previous_run_id", active.RunID).
		Msg("Resuming animation")
	return submit(ctx, engine.StartAnimation{Spec: active.Spec, Source: ResumeSource})
}

func (r *ResumeStore) onStarted(event eventbus.Event) {
	spec, ok := event.Data["spec"].(animation.Spec)
	if !ok {
		return
	}
	runID, _ := event.Data["run_id"].(string)
	source, _ := event.Data["source"].(string)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[runID] == eventbus.EventTypeAnimationStopped {
		delete(r.pending, runID)
		return
	}
	r.pending[runID] = eventbus.EventTypeAnimationStarted
	if err := r.store.Save(resumeID, ActiveAnimation{RunID: runID, Source: source, Spec: spec}); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Failed to persist active animation")
	}
}

// onStopped forgets the animation unless the process is shutting down.
// Events are handled concurrently: only the record of the stopped run is
// removed, and a stop that overtakes its start is remembered.
func (r *ResumeStore) onStopped(event eventbus.Event) {
	if reason, _ := event.Data["reason"].(string); reason == "shutdown" {
		return
	}
	runID, _ := event.Data["run_id"].(string)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[runID] != eventbus.EventTypeAnimationStarted {
		r.pending[runID] = eventbus.EventTypeAnimationStopped
		return
	}
	delete(r.pending, runID)

	active, ok, err := r.store.Load(resumeID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read active animation")
		return
	}
	if !ok || active.RunID != runID {
		return
	}
	if err := r.store.Delete(resumeID); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Failed to clear active animation")
	}
}
