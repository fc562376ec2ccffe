package service

import "github.com/navikt/zspatial/internal/models"

// roster is an ordered participant collection with O(1) lookup by id.
// Order determines circular layout and front-of-queue priority.
type roster struct {
	order []*models.ParticipantView
	index map[string]int
}

func newRoster() *roster {
	return &roster{index: make(map[string]int)}
}

func (r *roster) len() int { return len(r.order) }

func (r *roster) get(id string) (*models.ParticipantView, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.order[i], true
}

// add appends a participant. An existing id keeps its slot and gets the new name.
func (r *roster) add(p models.ParticipantView) {
	if existing, ok := r.get(p.ID); ok {
		existing.Name = p.Name
		return
	}
	r.index[p.ID] = len(r.order)
	r.order = append(r.order, &p)
}

func (r *roster) remove(id string) bool {
	i, ok := r.index[id]
	if !ok {
		return false
	}
	copy(r.order[i:], r.order[i+1:])
	r.order[len(r.order)-1] = nil
	r.order = r.order[:len(r.order)-1]
	delete(r.index, id)
	r.reindex(i)
	return true
}

// moveToFront shifts the participant to index 0, preserving the relative
// order of everybody else
func (r *roster) moveToFront(id string) bool {
	i, ok := r.index[id]
	if !ok {
		return false
	}
	if i == 0 {
		return true
	}
	p := r.order[i]
	copy(r.order[1:i+1], r.order[:i])
	r.order[0] = p
	r.reindex(0)
	return true
}

func (r *roster) reindex(from int) {
	for i := from; i < len(r.order); i++ {
		r.index[r.order[i].ID] = i
	}
}

// place assigns positions in order; positions must have one entry per participant
func (r *roster) place(positions []models.Position) {
	for i, p := range r.order {
		p.Position = positions[i]
	}
}

// views returns a serializable copy of the roster in order
func (r *roster) views() []models.ParticipantView {
	views := make([]models.ParticipantView, len(r.order))
	for i, p := range r.order {
		views[i] = *p
	}
	return views
}
