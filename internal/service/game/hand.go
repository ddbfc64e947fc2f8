package game

import (
	"fmt"

	appErr "tractor-service/pkg/errors"
)

// Hand keeps cards in arrival order. Players rely on the deal order for the
// streaming draw animation, so the hand is never re-sorted.
type Hand struct {
	cards []Card
}

func (h *Hand) Receive(cards []Card) {
	h.cards = append(h.cards, cards...)
}

// Cards returns the hand in arrival order. Callers must not mutate it.
func (h *Hand) Cards() []Card {
	return h.cards
}

func (h *Hand) Len() int {
	return len(h.cards)
}

// ContainsAll is the pre-mutation ownership check: a failed validation must
// never leave a hand partially changed. Ids are matched as a multiset, so a
// request naming the same instance id twice fails (each id occurs once).
func (h *Hand) ContainsAll(ids []string) bool {
	owned := make(map[string]int, len(h.cards))
	for _, c := range h.cards {
		owned[c.ID]++
	}
	for _, id := range ids {
		if owned[id] == 0 {
			return false
		}
		owned[id]--
	}
	return true
}

// Pick returns the cards matching ids, in hand order, without removing them.
func (h *Hand) Pick(ids []string) []Card {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	picked := make([]Card, 0, len(ids))
	for _, c := range h.cards {
		if _, ok := want[c.ID]; ok {
			picked = append(picked, c)
		}
	}
	return picked
}

// Remove partitions the hand into kept and removed cards. All-or-nothing:
// if any id is absent the hand is unchanged.
func (h *Hand) Remove(ids []string) ([]Card, error) {
	if !h.ContainsAll(ids) {
		return nil, fmt.Errorf("%w: %d requested", appErr.ErrMissingCards, len(ids))
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	removed := make([]Card, 0, len(ids))
	kept := make([]Card, 0, len(h.cards)-len(ids))
	for _, c := range h.cards {
		if _, ok := want[c.ID]; ok {
			removed = append(removed, c)
		} else {
			kept = append(kept, c)
		}
	}
	h.cards = kept
	return removed, nil
}
