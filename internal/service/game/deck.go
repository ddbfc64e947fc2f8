package game

import (
	"fmt"
	mrand "math/rand"
	"time"

	appErr "tractor-service/pkg/errors"

	"github.com/google/uuid"
)

// DeckSize is four standard decks plus four copies of each joker.
const DeckSize = 216

// Deck is a drawable sequence of cards. The randomness source is injectable
// so tests can force deterministic deals.
type Deck struct {
	cards []Card
	rng   *mrand.Rand
}

// NewDeck builds the canonical 216-card set, unshuffled. A nil rng falls
// back to a time-seeded source.
func NewDeck(rng *mrand.Rand) *Deck {
	if rng == nil {
		rng = mrand.New(mrand.NewSource(time.Now().UnixNano()))
	}
	cards := make([]Card, 0, DeckSize)
	for copyNo := 0; copyNo < 4; copyNo++ {
		for _, suit := range PlainSuits {
			for rank := RankTwo; rank <= RankAce; rank++ {
				cards = append(cards, Card{Suit: suit, Rank: rank, ID: uuid.NewString()})
			}
		}
		cards = append(cards,
			Card{Suit: SuitJoker, Rank: RankSmallJoker, ID: uuid.NewString()},
			Card{Suit: SuitJoker, Rank: RankBigJoker, ID: uuid.NewString()},
		)
	}
	return &Deck{cards: cards, rng: rng}
}

func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Draw removes and returns the first n cards.
func (d *Deck) Draw(n int) ([]Card, error) {
	if n > len(d.cards) {
		return nil, fmt.Errorf("%w: want %d, have %d", appErr.ErrInsufficientCards, n, len(d.cards))
	}
	drawn := d.cards[:n]
	d.cards = d.cards[n:]
	return drawn, nil
}

// Peek returns up to n cards from the top without drawing them.
func (d *Deck) Peek(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	return d.cards[:n]
}

func (d *Deck) Remaining() int {
	return len(d.cards)
}
