package reconcile

import (
	"encoding/json"
	"sort"

	"github.com/cespare/xxhash/v2"

	"flow-stream/backend/internal/model"
)

const defaultCacheSize = 32

// Reconciler owns the client-side state of one thread view. It must be driven
// from a single goroutine; every mutation is followed by a cleanup check.
type Reconciler struct {
	persisted []model.Message
	locals    []model.Message
	patches   map[string]Patch
	cutoff    string

	views *LRU[uint64, []model.Message]
}

// New returns an empty reconciler.
func New() *Reconciler {
	return &Reconciler{
		patches: make(map[string]Patch),
		views:   NewLRU[uint64, []model.Message](defaultCacheSize),
	}
}

// SetPersisted replaces the persisted snapshot.
func (r *Reconciler) SetPersisted(messages []model.Message) {
	r.persisted = cloneMessages(messages)
	r.cleanup()
}

// AddLocal adds a message that is not yet confirmed by the server. A local
// message with the same id is replaced.
func (r *Reconciler) AddLocal(msg model.Message) {
	msg = msg.Clone()
	for i := range r.locals {
		if r.locals[i].ID == msg.ID {
			r.locals[i] = msg
			r.cleanup()
			return
		}
	}
	r.locals = append(r.locals, msg)
	r.cleanup()
}

// AppendLocal appends a streamed content delta to a local message.
func (r *Reconciler) AppendLocal(id, delta string) bool {
	return r.UpdateLocal(id, func(m *model.Message) { m.Content += delta })
}

// AppendLocalReasoning appends a streamed reasoning delta to a local message.
func (r *Reconciler) AppendLocalReasoning(id, delta string) bool {
	return r.UpdateLocal(id, func(m *model.Message) { m.Reasoning += delta })
}

// UpdateLocal applies fn to the local message with the given id and reports
// whether it exists.
func (r *Reconciler) UpdateLocal(id string, fn func(*model.Message)) bool {
	for i := range r.locals {
		if r.locals[i].ID == id {
			fn(&r.locals[i])
			r.cleanup()
			return true
		}
	}
	return false
}

// DropLocal removes a local message, e.g. when its submission was rejected.
func (r *Reconciler) DropLocal(id string) {
	for i := range r.locals {
		if r.locals[i].ID == id {
			r.locals = append(r.locals[:i], r.locals[i+1:]...)
			r.cleanup()
			return
		}
	}
}

// Patch folds p into the overlay patch for a message id. Status never
// regresses: a patch cannot move a message back to streaming.
func (r *Reconciler) Patch(id string, p Patch) {
	r.patches[id] = r.patches[id].combine(p)
	r.cleanup()
}

// SetCutoff hides the persisted message id and everything after it until the
// pending generation is confirmed.
func (r *Reconciler) SetCutoff(id string) {
	r.cutoff = id
}

// ClearCutoff restores the hidden tail, for resubmissions that never started.
func (r *Reconciler) ClearCutoff() {
	r.cutoff = ""
}

// Cutoff returns the current cutoff message id.
func (r *Reconciler) Cutoff() string {
	return r.cutoff
}

// Pending reports how many local messages are not yet settled.
func (r *Reconciler) Pending() int {
	return len(r.locals)
}

// Overlay returns a copy of the current overlay.
func (r *Reconciler) Overlay() Overlay {
	patches := make(map[string]Patch, len(r.patches))
	for id, p := range r.patches {
		patches[id] = p
	}
	return Overlay{Patches: patches, CutoffMessageID: r.cutoff}
}

// View returns the merged, ordered messages. Identical state yields an
// identical view; results are memoized per input fingerprint.
func (r *Reconciler) View() []model.Message {
	overlay := r.Overlay()
	key, ok := fingerprint(r.persisted, r.locals, overlay)
	if ok {
		if cached, hit := r.views.Get(key); hit {
			return cloneMessages(cached)
		}
	}
	view := Merge(r.persisted, r.locals, overlay)
	if ok {
		r.views.Put(key, view)
	}
	return cloneMessages(view)
}

// cloneMessages deep-copies messages so that callers and the cache never
// share metadata or attachments.
func cloneMessages(messages []model.Message) []model.Message {
	out := make([]model.Message, len(messages))
	for i := range messages {
		out[i] = messages[i].Clone()
	}
	return out
}

// cleanup drops patches confirmed by the server and, once every local message
// is matched to a terminal persisted one, the whole local state and cutoff.
func (r *Reconciler) cleanup() {
	byID := make(map[string]model.Message, len(r.persisted))
	for _, p := range r.persisted {
		byID[p.ID] = p
	}
	for id, p := range r.patches {
		if msg, ok := byID[id]; ok && p.confirmedBy(msg) {
			delete(r.patches, id)
		}
	}

	if len(r.locals) == 0 {
		return
	}
	for _, l := range r.locals {
		m := findMatch(r.persisted, l)
		if m < 0 || !r.persisted[m].Status.IsTerminal() {
			return
		}
	}
	r.locals = nil
	r.patches = make(map[string]Patch)
	r.cutoff = ""
}

type fingerprintInput struct {
	Persisted []model.Message `json:"p"`
	Locals    []model.Message `json:"l"`
	Patches   []patchEntry    `json:"o"`
	Cutoff    string          `json:"c"`
}

type patchEntry struct {
	ID    string `json:"id"`
	Patch Patch  `json:"patch"`
}

func fingerprint(persisted, locals []model.Message, overlay Overlay) (uint64, bool) {
	patches := make([]patchEntry, 0, len(overlay.Patches))
	for id, p := range overlay.Patches {
		patches = append(patches, patchEntry{ID: id, Patch: p})
	}
	sort.Slice(patches, func(i, j int) bool { return patches[i].ID < patches[j].ID })

	d := xxhash.New()
	err := json.NewEncoder(d).Encode(fingerprintInput{
		Persisted: persisted,
		Locals:    locals,
		Patches:   patches,
		Cutoff:    overlay.CutoffMessageID,
	})
	if err != nil {
		return 0, false
	}
	return d.Sum64(), true
}
