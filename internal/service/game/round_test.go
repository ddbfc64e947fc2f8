package game

import (
	"errors"
	"fmt"
	mrand "math/rand"
	"testing"

	appErr "tractor-service/pkg/errors"
)

func testRound(t *testing.T, seed int64) *Round {
	t.Helper()

	r := NewRound(mrand.New(mrand.NewSource(seed)))
	for i := 0; i < numSeats; i++ {
		teamID, err := r.AddPlayer(int64(i+1), fmt.Sprintf("p%d", i))
		if err != nil {
			t.Fatalf("add player %d: %v", i, err)
		}
		if teamID != i%numTeams {
			t.Fatalf("seat %d: got team %d, want %d", i, teamID, i%numTeams)
		}
	}
	return r
}

func drainDeal(t *testing.T, r *Round) {
	t.Helper()
	for {
		seat, card := r.DrawNextCard()
		if card == nil {
			return
		}
		if seat < 0 || seat >= numSeats {
			t.Fatalf("draw produced bad seat %d", seat)
		}
	}
}

func cardIDs(cards []Card) []string {
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestStartGameRequiresSixPlayers(t *testing.T) {
	r := NewRound(mrand.New(mrand.NewSource(1)))
	if _, err := r.AddPlayer(1, "solo"); err != nil {
		t.Fatalf("add player: %v", err)
	}
	if err := r.StartGame(); !errors.Is(err, appErr.ErrWrongPlayerCount) {
		t.Fatalf("expected ErrWrongPlayerCount, got %v", err)
	}
}

func TestAddPlayerRejectsSeventh(t *testing.T) {
	r := testRound(t, 1)
	if _, err := r.AddPlayer(7, "extra"); !errors.Is(err, appErr.ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
}

func TestDealConservation(t *testing.T) {
	r := testRound(t, 42)
	if err := r.StartGame(); err != nil {
		t.Fatalf("start game: %v", err)
	}
	if r.Phase() != PhaseDrawing {
		t.Fatalf("expected DRAWING, got %s", r.Phase())
	}

	seat, _ := r.DrawNextCard()
	if seat != r.DealerSeat() {
		t.Fatalf("first card went to seat %d, dealer is %d", seat, r.DealerSeat())
	}
	drainDeal(t, r)

	total := len(r.Bottom())
	if total != bottomSize {
		t.Fatalf("bottom has %d cards, want %d", total, bottomSize)
	}
	for i := 0; i < numSeats; i++ {
		n := r.Player(i).Hand.Len()
		if n != (DeckSize-bottomSize)/numSeats {
			t.Fatalf("seat %d has %d cards", i, n)
		}
		total += n
	}
	if total != DeckSize || r.DeckRemaining() != 0 {
		t.Fatalf("conservation broken: total %d, deck %d", total, r.DeckRemaining())
	}
}

func TestDeclareMainSuitFlow(t *testing.T) {
	r := testRound(t, 3)
	if err := r.StartGame(); err != nil {
		t.Fatalf("start game: %v", err)
	}

	levelCard := tc(SuitHearts, RankThree)
	r.Player(2).Hand.Receive([]Card{levelCard})
	if err := r.DeclareMainSuit(2, []string{levelCard.ID}, SuitNone); err != nil {
		t.Fatalf("first declaration: %v", err)
	}
	if r.MainSuit() != SuitHearts || r.DealerSeat() != 2 {
		t.Fatalf("declaration not applied: suit %s dealer %d", r.MainSuit(), r.DealerSeat())
	}

	// A pair overbids the single but the dealer stays with the first declarer.
	pair := tcs(SuitDiamonds, RankThree, 2)
	r.Player(4).Hand.Receive(pair)
	if err := r.DeclareMainSuit(4, cardIDs(pair), SuitNone); err != nil {
		t.Fatalf("overbid: %v", err)
	}
	if r.MainSuit() != SuitDiamonds || r.DealerSeat() != 2 {
		t.Fatalf("overbid mishandled: suit %s dealer %d", r.MainSuit(), r.DealerSeat())
	}

	weak := tc(SuitClubs, RankThree)
	r.Player(5).Hand.Receive([]Card{weak})
	if err := r.DeclareMainSuit(5, []string{weak.ID}, SuitNone); !errors.Is(err, appErr.ErrWeakDeclaration) {
		t.Fatalf("expected ErrWeakDeclaration, got %v", err)
	}
	if r.MainSuit() != SuitDiamonds {
		t.Fatalf("rejected bid changed the suit to %s", r.MainSuit())
	}
}

func TestDeclareJokersNeedPlainSuit(t *testing.T) {
	r := testRound(t, 3)
	if err := r.StartGame(); err != nil {
		t.Fatalf("start game: %v", err)
	}

	jokers := tcs(SuitJoker, RankSmallJoker, 3)
	r.Player(1).Hand.Receive(jokers)
	err := r.DeclareMainSuit(1, cardIDs(jokers), SuitNone)
	if !errors.Is(err, appErr.ErrInvalidSuitSelection) {
		t.Fatalf("expected ErrInvalidSuitSelection, got %v", err)
	}
	if err := r.DeclareMainSuit(1, cardIDs(jokers), SuitClubs); err != nil {
		t.Fatalf("joker declaration with suit: %v", err)
	}
	if r.MainSuit() != SuitClubs || r.DealerSeat() != 1 {
		t.Fatalf("joker declaration not applied: suit %s dealer %d", r.MainSuit(), r.DealerSeat())
	}
}

func TestDeclareRejectsNonBidCards(t *testing.T) {
	r := testRound(t, 3)
	if err := r.StartGame(); err != nil {
		t.Fatalf("start game: %v", err)
	}

	plain := tc(SuitHearts, RankKing)
	r.Player(0).Hand.Receive([]Card{plain})
	if err := r.DeclareMainSuit(0, []string{plain.ID}, SuitNone); !errors.Is(err, appErr.ErrInvalidMoveStructure) {
		t.Fatalf("expected ErrInvalidMoveStructure, got %v", err)
	}
	if err := r.DeclareMainSuit(0, []string{"no-such-card"}, SuitNone); !errors.Is(err, appErr.ErrCardsNotOwned) {
		t.Fatalf("expected ErrCardsNotOwned, got %v", err)
	}
}

func TestFinalizeFlipsBottomWhenNobodyDeclares(t *testing.T) {
	r := testRound(t, 11)
	if err := r.StartGame(); err != nil {
		t.Fatalf("start game: %v", err)
	}

	bottom := r.Bottom()
	wantSuit := SuitNone
	bestRank := Rank(0)
	for _, c := range bottom {
		if c.Suit == SuitJoker {
			continue
		}
		if c.Rank > bestRank {
			bestRank = c.Rank
			wantSuit = c.Suit
		}
	}

	res, err := r.FinalizeDrawingPhase()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.MainSuit != wantSuit {
		t.Fatalf("flip chose %s, want %s", res.MainSuit, wantSuit)
	}
	if res.DealerSeat != 0 || r.Phase() != PhaseExchanging {
		t.Fatalf("finalize state wrong: dealer %d phase %s", res.DealerSeat, r.Phase())
	}
	if r.Player(0).Hand.Len() != bottomSize {
		t.Fatalf("dealer did not receive the bottom")
	}
}

func TestFinalizeAllJokerBottomMeansNoTrump(t *testing.T) {
	r := testRound(t, 11)
	if err := r.StartGame(); err != nil {
		t.Fatalf("start game: %v", err)
	}

	r.bottom = append(tcs(SuitJoker, RankBigJoker, 3), tcs(SuitJoker, RankSmallJoker, 3)...)
	res, err := r.FinalizeDrawingPhase()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.MainSuit != SuitNone {
		t.Fatalf("expected no trump, got %s", res.MainSuit)
	}
}

func TestExchangeCards(t *testing.T) {
	r := testRound(t, 5)
	if err := r.StartGame(); err != nil {
		t.Fatalf("start game: %v", err)
	}
	drainDeal(t, r)
	if _, err := r.FinalizeDrawingPhase(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	dealer := r.DealerSeat()
	hand := r.Player(dealer).Hand.Cards()
	bury := cardIDs(hand[:bottomSize])

	other := (dealer + 1) % numSeats
	if err := r.ExchangeCards(other, bury); !errors.Is(err, appErr.ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if err := r.ExchangeCards(dealer, bury[:3]); !errors.Is(err, appErr.ErrWrongExchangeCount) {
		t.Fatalf("expected ErrWrongExchangeCount, got %v", err)
	}

	before := r.Player(dealer).Hand.Len()
	if err := r.ExchangeCards(dealer, bury); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if r.Player(dealer).Hand.Len() != before-bottomSize {
		t.Fatalf("dealer hand not reduced")
	}
	if len(r.Bottom()) != bottomSize || r.Phase() != PhasePlaying || r.TurnSeat() != dealer {
		t.Fatalf("exchange state wrong: bottom %d phase %s turn %d", len(r.Bottom()), r.Phase(), r.TurnSeat())
	}
}

func TestExchangeRejectsDuplicateIDs(t *testing.T) {
	r := testRound(t, 5)
	if err := r.StartGame(); err != nil {
		t.Fatalf("start game: %v", err)
	}
	drainDeal(t, r)
	if _, err := r.FinalizeDrawingPhase(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	dealer := r.DealerSeat()
	hand := r.Player(dealer).Hand.Cards()
	// Six ids but only five distinct cards: the bury must be rejected whole,
	// or the bottom ends up short and hand sizes desynchronize.
	bury := cardIDs(hand[:bottomSize])
	bury[1] = bury[0]

	before := r.Player(dealer).Hand.Len()
	if err := r.ExchangeCards(dealer, bury); !errors.Is(err, appErr.ErrCardsNotOwned) {
		t.Fatalf("expected ErrCardsNotOwned, got %v", err)
	}
	if r.Player(dealer).Hand.Len() != before || r.Phase() != PhaseExchanging {
		t.Fatalf("rejected exchange mutated state: hand %d phase %s",
			r.Player(dealer).Hand.Len(), r.Phase())
	}
}

// playingRound builds a mid-round position directly: trump spades, level 3,
// dealer seat 0 on lead, one card per seat so the trick ends the round.
func playingRound(t *testing.T, hands [numSeats][]Card, bottom []Card) *Round {
	t.Helper()

	r := testRound(t, 9)
	r.phase = PhasePlaying
	r.mainSuit = SuitSpades
	r.level = RankThree
	r.dealerSeat = 0
	r.turnSeat = 0
	r.bottom = bottom
	for i, cards := range hands {
		r.players[i].Hand = Hand{}
		r.players[i].Hand.Receive(cards)
	}
	return r
}

func TestPlayRejectionLeavesStateUntouched(t *testing.T) {
	heartK := tc(SuitHearts, RankKing)
	heart5 := tc(SuitHearts, RankFive)
	diamond9 := tc(SuitDiamonds, RankNine)
	hands := [numSeats][]Card{
		{heartK},
		{heart5, diamond9},
		{tc(SuitClubs, RankFour)},
		{tc(SuitClubs, RankSix)},
		{tc(SuitClubs, RankSeven)},
		{tc(SuitClubs, RankEight)},
	}
	r := playingRound(t, hands, nil)

	if _, err := r.PlayCards(1, []string{heartK.ID}); !errors.Is(err, appErr.ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if _, err := r.PlayCards(0, []string{heartK.ID}); err != nil {
		t.Fatalf("lead: %v", err)
	}

	// Seat 1 holds a heart; discarding the diamond must be rejected without
	// touching the hand, the trick, or the turn.
	if _, err := r.PlayCards(1, []string{diamond9.ID}); !errors.Is(err, appErr.ErrMustFollowSuit) {
		t.Fatalf("expected ErrMustFollowSuit, got %v", err)
	}
	if r.Player(1).Hand.Len() != 2 || len(r.Trick()) != 1 || r.TurnSeat() != 1 {
		t.Fatalf("rejected play mutated state: hand %d trick %d turn %d",
			r.Player(1).Hand.Len(), len(r.Trick()), r.TurnSeat())
	}
}

func TestPlayRejectsDuplicateIDs(t *testing.T) {
	k1, k2 := tc(SuitHearts, RankKing), tc(SuitHearts, RankKing)
	hands := [numSeats][]Card{
		{k1, k2},
		{tc(SuitClubs, RankFour)},
		{tc(SuitClubs, RankFive)},
		{tc(SuitClubs, RankSix)},
		{tc(SuitClubs, RankSeven)},
		{tc(SuitClubs, RankEight)},
	}
	r := playingRound(t, hands, nil)

	// Two copies of one id would sneak a single through as a pair.
	if _, err := r.PlayCards(0, []string{k1.ID, k1.ID}); !errors.Is(err, appErr.ErrCardsNotOwned) {
		t.Fatalf("expected ErrCardsNotOwned, got %v", err)
	}
	if r.Player(0).Hand.Len() != 2 || len(r.Trick()) != 0 {
		t.Fatalf("rejected play mutated state: hand %d trick %d",
			r.Player(0).Hand.Len(), len(r.Trick()))
	}
	if _, err := r.PlayCards(0, []string{k1.ID, k2.ID}); err != nil {
		t.Fatalf("real pair rejected: %v", err)
	}
}

func TestSnapshotAccessorsCopy(t *testing.T) {
	lead := tc(SuitHearts, RankKing)
	hands := [numSeats][]Card{
		{lead},
		{tc(SuitClubs, RankFour)},
		{tc(SuitClubs, RankFive)},
		{tc(SuitClubs, RankSix)},
		{tc(SuitClubs, RankSeven)},
		{tc(SuitClubs, RankEight)},
	}
	bottom := []Card{tc(SuitHearts, RankFive)}
	r := playingRound(t, hands, bottom)

	if _, err := r.PlayCards(0, []string{lead.ID}); err != nil {
		t.Fatalf("lead: %v", err)
	}

	trick := r.Trick()
	trick[0].Seat = 99
	if r.Trick()[0].Seat != 0 {
		t.Fatal("Trick() exposed the live trick slice")
	}

	bot := r.Bottom()
	bot[0] = tc(SuitClubs, RankTwo)
	if r.Bottom()[0].ID != bottom[0].ID {
		t.Fatal("Bottom() exposed the live bottom slice")
	}
}

func TestTrickResolutionKittyAndFinish(t *testing.T) {
	plays := [numSeats]Card{
		tc(SuitHearts, RankKing),    // 10 points, lead
		tc(SuitHearts, RankAce),     // follow
		tc(SuitSpades, RankFour),    // trump kill, wins
		tc(SuitDiamonds, RankTen),   // 10 points, discard
		tc(SuitDiamonds, RankSix),   // discard
		tc(SuitClubs, RankNine),     // discard
	}
	var hands [numSeats][]Card
	for i, c := range plays {
		hands[i] = []Card{c}
	}
	bottom := []Card{tc(SuitHearts, RankFive), tc(SuitHearts, RankTen)} // 15 points
	r := playingRound(t, hands, bottom)

	var result *TrickResult
	for seat := 0; seat < numSeats; seat++ {
		res, err := r.PlayCards(seat, []string{plays[seat].ID})
		if err != nil {
			t.Fatalf("seat %d play: %v", seat, err)
		}
		result = res
	}
	if result == nil {
		t.Fatal("completed trick returned no result")
	}
	if result.WinnerSeat != 2 {
		t.Fatalf("expected seat 2 to win, got %d", result.WinnerSeat)
	}
	// 20 trick points plus the dug kitty at double value.
	if result.KittyBonus != 30 || result.Points != 50 {
		t.Fatalf("scoring wrong: points %d kitty %d", result.Points, result.KittyBonus)
	}
	if !result.GameOver || r.Phase() != PhaseFinished {
		t.Fatalf("round should be finished: gameOver %v phase %s", result.GameOver, r.Phase())
	}
	if got := r.Scores()[2]; got != 50 {
		t.Fatalf("team 2 score %d, want 50", got)
	}
}

func TestTrickDealerTeamWinGetsNoKitty(t *testing.T) {
	plays := [numSeats]Card{
		tc(SuitHearts, RankKing),
		tc(SuitHearts, RankQueen),
		tc(SuitHearts, RankJack),
		tc(SuitHearts, RankAce), // seat 3, dealer's team, wins
		tc(SuitHearts, RankSix),
		tc(SuitHearts, RankNine),
	}
	var hands [numSeats][]Card
	for i, c := range plays {
		hands[i] = []Card{c}
	}
	bottom := []Card{tc(SuitHearts, RankFive)}
	r := playingRound(t, hands, bottom)

	var result *TrickResult
	for seat := 0; seat < numSeats; seat++ {
		res, err := r.PlayCards(seat, []string{plays[seat].ID})
		if err != nil {
			t.Fatalf("seat %d play: %v", seat, err)
		}
		result = res
	}
	if result.WinnerSeat != 3 || result.KittyBonus != 0 {
		t.Fatalf("dealer-team winner must not dig the kitty: seat %d bonus %d",
			result.WinnerSeat, result.KittyBonus)
	}
}

func TestNextRoundDealerTeamHolds(t *testing.T) {
	r := testRound(t, 21)
	r.phase = PhaseFinished
	r.dealerSeat = 1
	r.scores = map[int]int{0: 60, 1: 0, 2: 100}

	res, err := r.NextRound()
	if err != nil {
		t.Fatalf("next round: %v", err)
	}
	if !res.DealerHeld || res.WinningTeam != 1 {
		t.Fatalf("defenders under threshold must not take the deal: %+v", res)
	}
	if res.DealerSeat != 4 {
		t.Fatalf("deal should walk to the partner at seat 4, got %d", res.DealerSeat)
	}
	if res.Level != RankFour || res.TeamLevels[1] != RankFour {
		t.Fatalf("dealer team level should rise to 4: level %d teams %v", res.Level, res.TeamLevels)
	}
	if r.Phase() != PhaseDrawing || r.RoundNo() != 1 {
		t.Fatalf("next round should deal immediately: phase %s round %d", r.Phase(), r.RoundNo())
	}
}

func TestNextRoundDefendersTakeOver(t *testing.T) {
	r := testRound(t, 22)
	r.phase = PhaseFinished
	r.dealerSeat = 0
	r.scores = map[int]int{0: 0, 1: 150, 2: 150}

	res, err := r.NextRound()
	if err != nil {
		t.Fatalf("next round: %v", err)
	}
	// Tie on points goes to the lower team id.
	if res.DealerHeld || res.WinningTeam != 1 {
		t.Fatalf("expected team 1 to take over: %+v", res)
	}
	if res.DealerSeat != 1 {
		t.Fatalf("new dealer should be seat 1, got %d", res.DealerSeat)
	}
	if res.Level != RankThree || res.TeamLevels[0] != RankThree {
		t.Fatalf("levels must not move on a takeover: %+v", res)
	}
	if got := r.Scores(); got[1] != 0 || got[2] != 0 {
		t.Fatalf("scores should reset for the new round: %v", got)
	}
}

func TestNextRoundRequiresFinished(t *testing.T) {
	r := testRound(t, 23)
	if _, err := r.NextRound(); !errors.Is(err, appErr.ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase, got %v", err)
	}
}
