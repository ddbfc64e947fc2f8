package game

import (
	"fmt"
	mrand "math/rand"

	appErr "tractor-service/pkg/errors"
)

type Phase string

const (
	PhaseWaiting    Phase = "WAITING"
	PhaseDrawing    Phase = "DRAWING"
	PhaseExchanging Phase = "EXCHANGING"
	PhasePlaying    Phase = "PLAYING"
	PhaseFinished   Phase = "FINISHED"
)

const (
	numSeats        = 6
	numTeams        = 3
	bottomSize      = 6
	defaultLevel    = RankThree
	defaultWinScore = 130
)

// PlayerSeat is one of the six seats. Teams are seat index mod 3, so
// partners sit two seats apart.
type PlayerSeat struct {
	UserID int64
	Name   string
	TeamID int
	Hand   Hand
}

// Declaration is the active trump bid.
type Declaration struct {
	Seat     int      `json:"seat"`
	CardIDs  []string `json:"cardIds"`
	Suit     Suit     `json:"suit"`
	Strength int      `json:"strength"`
}

// FinalizeResult reports the outcome of the drawing phase.
type FinalizeResult struct {
	MainSuit   Suit
	DealerSeat int
	Bottom     []Card
}

// TrickResult reports a completed trick.
type TrickResult struct {
	WinnerSeat int    `json:"winnerSeat"`
	Points     int    `json:"points"`
	KittyBonus int    `json:"kittyBonus,omitempty"`
	Tricks     []Move `json:"tricks"`
	GameOver   bool   `json:"gameOver"`
}

// SuccessionResult reports the dealer/level hand-off between rounds.
type SuccessionResult struct {
	DealerSeat  int           `json:"dealerSeat"`
	Level       Rank          `json:"level"`
	TeamLevels  [numTeams]Rank `json:"teamLevels"`
	DealerHeld  bool          `json:"dealerHeld"`
	WinningTeam int           `json:"winningTeam"`
}

// Round is the state machine for one table. It is not safe for concurrent
// use: the caller serializes every mutating call. Validation always runs
// before mutation, so a rejected action leaves the round untouched.
type Round struct {
	players []*PlayerSeat
	phase   Phase
	deck    *Deck
	rng     *mrand.Rand

	level      Rank
	teamLevels [numTeams]Rank
	winScore   int

	mainSuit    Suit
	dealerSeat  int
	turnSeat    int
	nextDraw    int
	bottom      []Card
	declaration *Declaration

	trick   []Move
	roundNo int
	scores  map[int]int
}

func NewRound(rng *mrand.Rand) *Round {
	r := &Round{
		phase:      PhaseWaiting,
		rng:        rng,
		level:      defaultLevel,
		winScore:   defaultWinScore,
		dealerSeat: -1,
		turnSeat:   -1,
		scores:     map[int]int{0: 0, 1: 0, 2: 0},
	}
	for t := range r.teamLevels {
		r.teamLevels[t] = defaultLevel
	}
	return r
}

// SetStartLevel overrides the opening level before the first deal.
func (r *Round) SetStartLevel(level Rank) {
	if r.phase != PhaseWaiting || r.roundNo > 0 {
		return
	}
	r.level = level
	for t := range r.teamLevels {
		r.teamLevels[t] = level
	}
}

// SetWinScore overrides the defender threshold (default 130).
func (r *Round) SetWinScore(score int) {
	if score > 0 {
		r.winScore = score
	}
}

// AddPlayer seats a player and returns the team id.
func (r *Round) AddPlayer(userID int64, name string) (int, error) {
	if len(r.players) >= numSeats {
		return 0, appErr.ErrRoomFull
	}
	teamID := len(r.players) % numTeams
	r.players = append(r.players, &PlayerSeat{UserID: userID, Name: name, TeamID: teamID})
	return teamID, nil
}

// StartGame rebuilds and shuffles the deck, reserves the bottom, clears
// hands and the declaration, and enters DRAWING. Dealer, level, and team
// levels carry over from the previous round.
func (r *Round) StartGame() error {
	if len(r.players) != numSeats {
		return fmt.Errorf("%w: have %d", appErr.ErrWrongPlayerCount, len(r.players))
	}

	r.deck = NewDeck(r.rng)
	r.deck.Shuffle()

	bottom, err := r.deck.Draw(bottomSize)
	if err != nil {
		return err
	}
	r.bottom = bottom

	for _, p := range r.players {
		p.Hand = Hand{}
	}
	r.declaration = nil
	r.mainSuit = SuitNone
	r.trick = nil
	r.scores = map[int]int{0: 0, 1: 0, 2: 0}
	r.roundNo++

	if r.dealerSeat < 0 {
		r.dealerSeat = 0
	}
	r.nextDraw = r.dealerSeat
	r.turnSeat = -1
	r.phase = PhaseDrawing
	return nil
}

// DrawNextCard deals one card to the next seat in rotation. It returns
// (-1, nil) once the deck is exhausted; the driver then finalizes drawing.
func (r *Round) DrawNextCard() (int, *Card) {
	if r.phase != PhaseDrawing || r.deck.Remaining() == 0 {
		return -1, nil
	}
	drawn, err := r.deck.Draw(1)
	if err != nil {
		return -1, nil
	}
	seat := r.nextDraw
	r.players[seat].Hand.Receive(drawn)
	r.nextDraw = (r.nextDraw + 1) % numSeats
	card := drawn[0]
	return seat, &card
}

// DeclareMainSuit bids trump with level cards or jokers from the hand.
// Joker bids need an explicit plain suit; card bids derive the suit and
// reject a mismatched argument. The first declarer becomes dealer for the
// round and stays dealer even if outbid.
func (r *Round) DeclareMainSuit(seat int, cardIDs []string, declared Suit) error {
	if r.phase != PhaseDrawing {
		return fmt.Errorf("%w: declarations only during drawing", appErr.ErrWrongPhase)
	}
	if seat < 0 || seat >= len(r.players) {
		return appErr.ErrNotYourTurn
	}
	p := r.players[seat]
	if !p.Hand.ContainsAll(cardIDs) {
		return appErr.ErrCardsNotOwned
	}
	cards := p.Hand.Pick(cardIDs)

	strength := DeclarationStrength(cards, r.level)
	if strength == 0 {
		return fmt.Errorf("%w: declaration must be identical level cards or 3+ jokers", appErr.ErrInvalidMoveStructure)
	}

	var suit Suit
	if cards[0].Suit == SuitJoker {
		switch declared {
		case SuitSpades, SuitHearts, SuitClubs, SuitDiamonds:
			suit = declared
		default:
			return fmt.Errorf("%w: joker declarations must name a plain suit", appErr.ErrInvalidSuitSelection)
		}
	} else {
		suit = cards[0].Suit
		if declared != SuitNone && declared != suit {
			return fmt.Errorf("%w: suit must match declared cards", appErr.ErrInvalidSuitSelection)
		}
	}

	if r.declaration == nil {
		r.declaration = &Declaration{Seat: seat, CardIDs: cardIDs, Suit: suit, Strength: strength}
		r.mainSuit = suit
		r.dealerSeat = seat
		r.turnSeat = seat
		return nil
	}

	if strength <= r.declaration.Strength {
		return fmt.Errorf("%w: current strength %d", appErr.ErrWeakDeclaration, r.declaration.Strength)
	}
	// Dealer stays with the first declarer; an overbid only moves the suit.
	r.declaration = &Declaration{Seat: seat, CardIDs: cardIDs, Suit: suit, Strength: strength}
	r.mainSuit = suit
	return nil
}

// FinalizeDrawingPhase closes drawing: with no declaration the bottom is
// flipped and the highest non-joker rank calls trump (first on ties, no
// trump when the bottom is all jokers). The bottom then goes to the dealer
// and the round enters EXCHANGING.
func (r *Round) FinalizeDrawingPhase() (FinalizeResult, error) {
	if r.phase != PhaseDrawing {
		return FinalizeResult{}, appErr.ErrWrongPhase
	}

	if r.declaration == nil {
		best := -1
		for i, c := range r.bottom {
			if c.Suit == SuitJoker {
				continue
			}
			if best < 0 || c.Rank > r.bottom[best].Rank {
				best = i
			}
		}
		if best >= 0 {
			r.mainSuit = r.bottom[best].Suit
		} else {
			r.mainSuit = SuitNone
		}
		if r.dealerSeat < 0 {
			r.dealerSeat = 0
		}
	}

	handed := r.bottom
	r.players[r.dealerSeat].Hand.Receive(handed)
	r.bottom = nil
	r.phase = PhaseExchanging
	r.turnSeat = r.dealerSeat

	return FinalizeResult{MainSuit: r.mainSuit, DealerSeat: r.dealerSeat, Bottom: handed}, nil
}

// ExchangeCards buries exactly six cards from the dealer's hand as the new
// hidden bottom and starts play with the dealer on lead.
func (r *Round) ExchangeCards(seat int, cardIDs []string) error {
	if r.phase != PhaseExchanging {
		return appErr.ErrWrongPhase
	}
	if seat != r.dealerSeat {
		return fmt.Errorf("%w: only the dealer exchanges", appErr.ErrNotYourTurn)
	}
	if len(cardIDs) != bottomSize {
		return fmt.Errorf("%w: got %d", appErr.ErrWrongExchangeCount, len(cardIDs))
	}
	p := r.players[seat]
	if !p.Hand.ContainsAll(cardIDs) {
		return appErr.ErrCardsNotOwned
	}

	buried, err := p.Hand.Remove(cardIDs)
	if err != nil {
		return err
	}
	r.bottom = buried
	r.phase = PhasePlaying
	r.turnSeat = r.dealerSeat
	return nil
}

// PlayCards plays for the current turn. Leads are validated structurally,
// follows against the trick leader and the full hand. A completed trick is
// resolved immediately and returned; otherwise the result is nil.
func (r *Round) PlayCards(seat int, cardIDs []string) (*TrickResult, error) {
	if r.phase != PhasePlaying {
		return nil, appErr.ErrWrongPhase
	}
	if seat != r.turnSeat {
		return nil, appErr.ErrNotYourTurn
	}
	p := r.players[seat]
	if !p.Hand.ContainsAll(cardIDs) {
		return nil, appErr.ErrCardsNotOwned
	}
	cards := p.Hand.Pick(cardIDs)

	if len(r.trick) == 0 {
		if err := ValidateLead(cards); err != nil {
			return nil, err
		}
	} else {
		lead := r.trick[0].Cards
		if err := ValidateFollow(lead, cards, p.Hand.Cards(), r.mainSuit, r.level); err != nil {
			return nil, err
		}
	}

	if _, err := p.Hand.Remove(cardIDs); err != nil {
		return nil, err
	}
	r.trick = append(r.trick, Move{Seat: seat, Cards: cards})
	r.turnSeat = (r.turnSeat + 1) % numSeats

	if len(r.trick) < numSeats {
		return nil, nil
	}
	return r.resolveTrick(), nil
}

func (r *Round) resolveTrick() *TrickResult {
	moves := r.trick
	winnerOffset := ResolveTrick(moves, r.mainSuit, r.level)
	winnerSeat := moves[winnerOffset].Seat
	winner := r.players[winnerSeat]

	points := 0
	for _, m := range moves {
		for _, c := range m.Cards {
			points += c.Points()
		}
	}

	lastTrick := winner.Hand.Len() == 0

	kitty := 0
	if lastTrick && len(r.bottom) > 0 {
		bottomPoints := 0
		for _, c := range r.bottom {
			bottomPoints += c.Points()
		}
		// Kou Di: a non-dealer team taking the last trick digs the kitty at
		// double value.
		if bottomPoints > 0 && winner.TeamID != r.players[r.dealerSeat].TeamID {
			kitty = bottomPoints * 2
			points += kitty
		}
	}

	r.scores[winner.TeamID] += points

	result := &TrickResult{
		WinnerSeat: winnerSeat,
		Points:     points,
		KittyBonus: kitty,
		Tricks:     moves,
		GameOver:   lastTrick,
	}

	r.turnSeat = winnerSeat
	r.trick = nil
	if lastTrick {
		r.phase = PhaseFinished
	}
	return result
}

// NextRound applies dealer/level succession after FINISHED and deals again.
// If no defending team reaches the threshold the dealer's team keeps the
// deal: the teammate two seats clockwise deals next and the team's level
// rises by one. Otherwise the best-scoring defender (tie on points goes to
// the lower team id) takes over, its member nearest clockwise from the old
// dealer deals, and play resumes at that team's level.
func (r *Round) NextRound() (SuccessionResult, error) {
	if r.phase != PhaseFinished {
		return SuccessionResult{}, appErr.ErrWrongPhase
	}

	dealerTeam := r.players[r.dealerSeat].TeamID

	bestTeam, bestScore := -1, 0
	for team := 0; team < numTeams; team++ {
		if team == dealerTeam {
			continue
		}
		if score := r.scores[team]; score > bestScore {
			bestTeam, bestScore = team, score
		}
	}

	res := SuccessionResult{}
	if bestScore < r.winScore {
		// Defenders held: the deal walks to the dealer's partner.
		r.dealerSeat = r.nextSeatOfTeam(r.dealerSeat, dealerTeam)
		r.teamLevels[dealerTeam]++
		r.level = r.teamLevels[dealerTeam]
		res.DealerHeld = true
		res.WinningTeam = dealerTeam
	} else {
		r.dealerSeat = r.nextSeatOfTeam(r.dealerSeat, bestTeam)
		r.level = r.teamLevels[bestTeam]
		res.WinningTeam = bestTeam
	}

	r.phase = PhaseWaiting
	if err := r.StartGame(); err != nil {
		return SuccessionResult{}, err
	}

	res.DealerSeat = r.dealerSeat
	res.Level = r.level
	res.TeamLevels = r.teamLevels
	return res, nil
}

// nextSeatOfTeam walks clockwise from seat and returns the first seat on
// the given team.
func (r *Round) nextSeatOfTeam(seat, team int) int {
	for i := 1; i <= numSeats; i++ {
		idx := (seat + i) % numSeats
		if r.players[idx].TeamID == team {
			return idx
		}
	}
	return seat
}

// Snapshot accessors. Mutable state comes back as a copy so callers cannot
// corrupt an in-flight round.

func (r *Round) Phase() Phase     { return r.phase }
func (r *Round) MainSuit() Suit   { return r.mainSuit }
func (r *Round) Level() Rank      { return r.level }
func (r *Round) DealerSeat() int  { return r.dealerSeat }
func (r *Round) TurnSeat() int    { return r.turnSeat }
func (r *Round) RoundNo() int     { return r.roundNo }
func (r *Round) Trick() []Move    { return append([]Move(nil), r.trick...) }
func (r *Round) Bottom() []Card   { return append([]Card(nil), r.bottom...) }
func (r *Round) PlayerCount() int { return len(r.players) }

func (r *Round) DeckRemaining() int {
	if r.deck == nil {
		return 0
	}
	return r.deck.Remaining()
}

func (r *Round) TeamLevels() [numTeams]Rank { return r.teamLevels }

func (r *Round) Declaration() *Declaration {
	if r.declaration == nil {
		return nil
	}
	d := *r.declaration
	return &d
}

func (r *Round) Scores() map[int]int {
	out := make(map[int]int, len(r.scores))
	for k, v := range r.scores {
		out[k] = v
	}
	return out
}

func (r *Round) Player(seat int) *PlayerSeat {
	if seat < 0 || seat >= len(r.players) {
		return nil
	}
	return r.players[seat]
}
