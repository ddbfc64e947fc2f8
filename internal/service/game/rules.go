package game

import (
	"fmt"

	appErr "tractor-service/pkg/errors"
)

// MoveType is the structure of a play. Only same-card multiples are modeled;
// this variant has no consecutive-pair tractors.
type MoveType string

const (
	MoveSingle  MoveType = "SINGLE"
	MovePair    MoveType = "PAIR"
	MoveTriple  MoveType = "TRIPLE"
	MoveQuad    MoveType = "QUAD"
	MoveInvalid MoveType = "INVALID"
)

// Move is one seat's contribution to a trick.
type Move struct {
	Seat  int    `json:"seat"`
	Cards []Card `json:"cards"`
}

// LogicSuitMain is the bucket name shared by all trump cards.
const LogicSuitMain = "MAIN"

// ClassifyMove returns SINGLE/PAIR/TRIPLE/QUAD when all cards are identical
// in suit and rank, MoveInvalid for anything else.
func ClassifyMove(cards []Card) MoveType {
	if len(cards) == 0 || len(cards) > 4 {
		return MoveInvalid
	}
	first := cards[0]
	for _, c := range cards[1:] {
		if !c.Matches(first) {
			return MoveInvalid
		}
	}
	switch len(cards) {
	case 1:
		return MoveSingle
	case 2:
		return MovePair
	case 3:
		return MoveTriple
	default:
		return MoveQuad
	}
}

// LogicSuit is the suit the following obligation is computed against: the
// MAIN bucket for any trump card, the physical suit otherwise.
func LogicSuit(c Card, mainSuit Suit, level Rank) string {
	if c.IsMain(mainSuit, level) {
		return LogicSuitMain
	}
	return string(c.Suit)
}

// ValidateLead accepts any non-empty single/pair/triple/quad.
func ValidateLead(cards []Card) error {
	if ClassifyMove(cards) == MoveInvalid {
		return appErr.ErrInvalidMoveStructure
	}
	return nil
}

// deadStickOrder maps a lead structure to the cascade of set sizes the
// follower must surface, largest first.
func deadStickOrder(leadType MoveType) []int {
	switch leadType {
	case MoveQuad:
		return []int{4, 3, 2}
	case MoveTriple:
		return []int{3, 2}
	case MovePair:
		return []int{2}
	}
	return nil
}

// groupSizes counts identical (suit, rank) groups.
func groupSizes(cards []Card) map[Card]int {
	counts := make(map[Card]int, len(cards))
	for _, c := range cards {
		counts[Card{Suit: c.Suit, Rank: c.Rank}]++
	}
	return counts
}

func maxGroupSize(cards []Card) int {
	best := 0
	for _, n := range groupSizes(cards) {
		if n > best {
			best = n
		}
	}
	return best
}

// ValidateFollow checks a follower's attempted play against the lead, using
// the follower's full hand. Obligations, in order: card count must match the
// lead; the led logic suit must be followed with the full count if held, or
// exhausted otherwise; and a full in-suit play must surface the best set in
// the dead-stick cascade of the lead's structure.
func ValidateFollow(lead, played, hand []Card, mainSuit Suit, level Rank) error {
	if len(played) != len(lead) {
		return fmt.Errorf("%w: lead has %d", appErr.ErrWrongCardCount, len(lead))
	}

	leadType := ClassifyMove(lead)
	if leadType == MoveInvalid {
		return appErr.ErrInvalidMoveStructure
	}

	target := LogicSuit(lead[0], mainSuit, level)

	var inSuitHand, inSuitPlayed []Card
	for _, c := range hand {
		if LogicSuit(c, mainSuit, level) == target {
			inSuitHand = append(inSuitHand, c)
		}
	}
	for _, c := range played {
		if LogicSuit(c, mainSuit, level) == target {
			inSuitPlayed = append(inSuitPlayed, c)
		}
	}

	required := len(lead)
	if len(inSuitHand) >= required {
		if len(inSuitPlayed) < required {
			return fmt.Errorf("%w: %s", appErr.ErrMustFollowSuit, target)
		}
	} else if len(inSuitPlayed) < len(inSuitHand) {
		return fmt.Errorf("%w: %s", appErr.ErrMustExhaustSuit, target)
	}

	// Dead stick applies only to a full in-suit play: the follower may not
	// break a higher set into a lower one while still following suit.
	if len(inSuitPlayed) == required {
		order := deadStickOrder(leadType)
		if len(order) == 0 {
			return nil
		}
		bestAvailable := 1
		handGroups := groupSizes(inSuitHand)
		for _, size := range order {
			found := false
			for _, n := range handGroups {
				if n >= size {
					found = true
					break
				}
			}
			if found {
				bestAvailable = size
				break
			}
		}
		if maxGroupSize(played) < bestAvailable {
			return fmt.Errorf("%w: required set size %d", appErr.ErrDeadStick, bestAvailable)
		}
	}

	return nil
}

// PowerScore orders cards within a trick. Score tiers:
//
//	900 BigJoker
//	800 SmallJoker
//	700 main-suit level card
//	600 off-suit level card
//	500 main-suit two
//	400 off-suit two
//	200 + rank  plain main-suit card
//	      rank  plain side-suit card
func PowerScore(c Card, mainSuit Suit, level Rank) int {
	switch c.EffectiveType(mainSuit, level) {
	case TypeBigJoker:
		return 900
	case TypeSmallJoker:
		return 800
	case TypeMainLevel:
		return 700
	case TypeSubLevel:
		return 600
	case TypeMainTwo:
		return 500
	case TypeSubTwo:
		return 400
	case TypeMainSuit:
		return 200 + int(c.Rank)
	default:
		return int(c.Rank)
	}
}

// ResolveTrick returns the index into moves of the winning play. moves[0] is
// the lead. A later move contends only when it follows the led bucket or
// trumps a non-trump lead, and only with the lead's exact structure; ties
// keep the earlier play.
func ResolveTrick(moves []Move, mainSuit Suit, level Rank) int {
	if len(moves) == 0 {
		return -1
	}

	lead := moves[0]
	leadType := ClassifyMove(lead.Cards)
	leadBucket := LogicSuit(lead.Cards[0], mainSuit, level)

	winner := 0
	// All cards in a valid structure share suit and rank, so the first card
	// carries the move's power.
	bestScore := PowerScore(lead.Cards[0], mainSuit, level)

	for i := 1; i < len(moves); i++ {
		m := moves[i]
		bucket := LogicSuit(m.Cards[0], mainSuit, level)

		isKill := leadBucket != LogicSuitMain && bucket == LogicSuitMain
		isFollow := bucket == leadBucket
		if !isKill && !isFollow {
			continue // off-suit discard, cannot win
		}
		if ClassifyMove(m.Cards) != leadType {
			continue // structure must match to contest
		}

		// Trump tiers sit strictly above every side-suit score, so a single
		// strict comparison covers both kills and in-suit overtakes. Ties
		// keep the earlier play.
		if score := PowerScore(m.Cards[0], mainSuit, level); score > bestScore {
			winner, bestScore = i, score
		}
	}
	return winner
}

// DeclarationStrength scores a trump declaration. Level cards score count*10;
// three or four identical jokers score 50/60 plus 20 per extra card, big over
// small. Anything else is 0 and must be rejected by the caller.
func DeclarationStrength(cards []Card, level Rank) int {
	if len(cards) == 0 || len(cards) > 4 {
		return 0
	}
	first := cards[0]
	for _, c := range cards[1:] {
		if !c.Matches(first) {
			return 0
		}
	}
	count := len(cards)
	if first.Rank == level {
		return count * 10
	}
	if first.Rank == RankSmallJoker && count >= 3 {
		return 50 + (count-3)*20
	}
	if first.Rank == RankBigJoker && count >= 3 {
		return 60 + (count-3)*20
	}
	return 0
}
