package game

import "fmt"

// Suit of a physical card. SuitNone is used for the main suit when a round
// is played with no trump (all-joker bottom flip).
type Suit string

const (
	SuitSpades   Suit = "♠"
	SuitHearts   Suit = "♥"
	SuitClubs    Suit = "♣"
	SuitDiamonds Suit = "♦"
	SuitJoker    Suit = "JOKER"
	SuitNone     Suit = ""
)

// PlainSuits are the four callable suits, in canonical order.
var PlainSuits = []Suit{SuitSpades, SuitHearts, SuitClubs, SuitDiamonds}

func (s Suit) Valid() bool {
	switch s {
	case SuitSpades, SuitHearts, SuitClubs, SuitDiamonds, SuitJoker:
		return true
	}
	return false
}

// Rank 2..14 for plain cards, 15/16 for the jokers.
type Rank int

const (
	RankTwo   Rank = 2
	RankThree Rank = 3
	RankFour  Rank = 4
	RankFive  Rank = 5
	RankSix   Rank = 6
	RankSeven Rank = 7
	RankEight Rank = 8
	RankNine  Rank = 9
	RankTen   Rank = 10
	RankJack  Rank = 11
	RankQueen Rank = 12
	RankKing  Rank = 13
	RankAce   Rank = 14

	RankSmallJoker Rank = 15
	RankBigJoker   Rank = 16
)

// CardType is the effective strength class of a card given the current main
// suit and level. Ordering matters: anything above TypeSubCard counts as
// main-bucket (trump) for suit-following purposes, including off-suit twos
// and off-suit level cards.
type CardType int

const (
	TypeSubCard CardType = iota
	TypeMainSuit
	TypeSubTwo
	TypeMainTwo
	TypeSubLevel
	TypeMainLevel
	TypeSmallJoker
	TypeBigJoker
)

// Card is one physical card instance. ID distinguishes the four copies of an
// identical card across the combined decks; gameplay equality is suit+rank.
type Card struct {
	Suit Suit   `json:"suit"`
	Rank Rank   `json:"rank"`
	ID   string `json:"id"`
}

// Matches reports gameplay equality, ignoring the instance id.
func (c Card) Matches(o Card) bool {
	return c.Suit == o.Suit && c.Rank == o.Rank
}

// Points returns the capture value: fives are 5, tens and kings are 10.
func (c Card) Points() int {
	switch c.Rank {
	case RankFive:
		return 5
	case RankTen, RankKing:
		return 10
	}
	return 0
}

// EffectiveType classifies the card against the round context.
// First match wins: jokers, then level cards, then twos, then main suit.
func (c Card) EffectiveType(mainSuit Suit, level Rank) CardType {
	if c.Rank == RankBigJoker {
		return TypeBigJoker
	}
	if c.Rank == RankSmallJoker {
		return TypeSmallJoker
	}
	if c.Rank == level {
		if c.Suit == mainSuit {
			return TypeMainLevel
		}
		return TypeSubLevel
	}
	if c.Rank == RankTwo {
		if c.Suit == mainSuit {
			return TypeMainTwo
		}
		return TypeSubTwo
	}
	if c.Suit == mainSuit {
		return TypeMainSuit
	}
	return TypeSubCard
}

// IsMain reports whether the card belongs to the trump bucket. Note off-suit
// twos and off-suit level cards are main even though their suit is not.
func (c Card) IsMain(mainSuit Suit, level Rank) bool {
	return c.EffectiveType(mainSuit, level) > TypeSubCard
}

func (c Card) String() string {
	switch c.Rank {
	case RankBigJoker:
		return "BigJoker"
	case RankSmallJoker:
		return "SmallJoker"
	}
	return fmt.Sprintf("%s%d", c.Suit, c.Rank)
}
