package reconcile

import "flow-stream/backend/internal/model"

// Patch is a partial, optimistic change to one message in the view, e.g.
// forcing status=error after the user pressed stop. Nil fields are left as is.
type Patch struct {
	Status    *model.MessageStatus `json:"status,omitempty"`
	Content   *string              `json:"content,omitempty"`
	Reasoning *string              `json:"reasoning,omitempty"`
	Metadata  *model.Metadata      `json:"metadata,omitempty"`
}

// Overlay is the client-only state layered over the persisted messages.
type Overlay struct {
	// Patches are keyed by final message id.
	Patches map[string]Patch `json:"patches,omitempty"`
	// CutoffMessageID hides the persisted message with this id and everything
	// after it, while a resubmission is pending.
	CutoffMessageID string `json:"cutoff,omitempty"`
}

// combine folds next into p. A status never moves backwards.
func (p Patch) combine(next Patch) Patch {
	out := p
	if next.Status != nil {
		if p.Status == nil || p.Status.CanTransitionTo(*next.Status) {
			s := *next.Status
			out.Status = &s
		}
	}
	if next.Content != nil {
		out.Content = next.Content
	}
	if next.Reasoning != nil {
		out.Reasoning = next.Reasoning
	}
	if next.Metadata != nil {
		out.Metadata = mergeMetadata(p.Metadata, next.Metadata)
	}
	return out
}

// apply returns msg with the patch applied. Terminal messages keep their status.
func (p Patch) apply(msg model.Message) model.Message {
	if p.Status != nil && msg.Status.CanTransitionTo(*p.Status) {
		msg.Status = *p.Status
	}
	if p.Content != nil {
		msg.Content = *p.Content
	}
	if p.Reasoning != nil {
		msg.Reasoning = *p.Reasoning
	}
	if p.Metadata != nil {
		msg.Metadata = mergeMetadata(msg.Metadata, p.Metadata)
	}
	return msg
}

// confirmedBy reports whether the persisted message already shows the
// terminal status this patch forces.
func (p Patch) confirmedBy(msg model.Message) bool {
	return p.Status != nil && p.Status.IsTerminal() && msg.Status == *p.Status
}

func mergeMetadata(base, top *model.Metadata) *model.Metadata {
	if base == nil {
		cp := *top
		return &cp
	}
	out := *base
	if top.Usage != nil {
		out.Usage = top.Usage
	}
	if top.DurationMs != 0 {
		out.DurationMs = top.DurationMs
	}
	if top.StopReason != "" {
		out.StopReason = top.StopReason
	}
	if top.Error != "" {
		out.Error = top.Error
	}
	return &out
}
