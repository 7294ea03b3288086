// Package reconcile merges the persisted messages of a thread, the messages a
// client created or streamed locally, and its optimistic overlay into one
// ordered, deduplicated view.
package reconcile

import (
	"sort"

	"flow-stream/backend/internal/model"
)

// Merge builds the view of a thread. persisted is the latest snapshot from the
// server in creation order; local holds messages not yet confirmed by it.
// The result depends only on its inputs, and the inputs are not modified.
func Merge(persisted, local []model.Message, overlay Overlay) []model.Message {
	claimed := make([]bool, len(persisted))
	matchOf := make([]int, len(local))
	for i, l := range local {
		matchOf[i] = findMatch(persisted, l)
		if matchOf[i] >= 0 {
			claimed[matchOf[i]] = true
		}
	}

	cut := len(persisted)
	if overlay.CutoffMessageID != "" {
		for i, p := range persisted {
			if p.ID == overlay.CutoffMessageID {
				cut = i
				break
			}
		}
	}

	out := make([]model.Message, 0, len(persisted)+len(local))
	index := make(map[string]int, len(persisted)+len(local))
	for i, p := range persisted {
		// Past the cutoff only messages of the new generation survive.
		if i >= cut && !claimed[i] {
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}

	for i, l := range local {
		if m := matchOf[i]; m >= 0 {
			at := index[persisted[m].ID]
			out[at] = mergeMessage(out[at], l)
			continue
		}
		if at, ok := index[l.ID]; ok {
			out[at] = l
			continue
		}
		index[l.ID] = len(out)
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return createdBefore(out[i], out[j])
	})

	if len(overlay.Patches) > 0 {
		for i := range out {
			if p, ok := overlay.Patches[out[i].ID]; ok {
				out[i] = p.apply(out[i])
			}
		}
	}
	return out
}

// findMatch returns the index of the persisted message l stands for, or -1.
// An id match wins over a clientId match, which wins over a streamId match.
func findMatch(persisted []model.Message, l model.Message) int {
	byClient, byStream := -1, -1
	for i, p := range persisted {
		switch {
		case p.ID == l.ID:
			return i
		case byClient < 0 && l.ClientID != "" && p.ClientID == l.ClientID:
			byClient = i
		case byStream < 0 && l.StreamID != "" && p.StreamID == l.StreamID:
			byStream = i
		}
	}
	if byClient >= 0 {
		return byClient
	}
	return byStream
}

// mergeMessage prefers the persisted fields. The local stream usually leads
// the periodic snapshot, so longer local content wins, except over a
// persisted terminal message while the local copy is still streaming: a
// stopped generation may be persisted shorter than what was streamed.
func mergeMessage(p, l model.Message) model.Message {
	out := p
	if statusRank(l.Status) > statusRank(p.Status) {
		out.Status = l.Status
		if out.Metadata == nil {
			out.Metadata = l.Metadata
		}
	}
	if p.Status.IsTerminal() && !l.Status.IsTerminal() {
		return out
	}
	if len(l.Content) > len(p.Content) {
		out.Content = l.Content
	}
	if len(l.Reasoning) > len(p.Reasoning) {
		out.Reasoning = l.Reasoning
	}
	return out
}

func statusRank(s model.MessageStatus) int {
	if s.IsTerminal() {
		return 1
	}
	return 0
}

// createdBefore orders dated messages by createdAt. Undated messages count as
// newer than any dated one and keep their relative order.
func createdBefore(a, b model.Message) bool {
	switch {
	case a.CreatedAt.IsZero():
		return false
	case b.CreatedAt.IsZero():
		return true
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}
