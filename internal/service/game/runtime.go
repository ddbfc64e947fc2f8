package game

import (
	"encoding/json"
	"fmt"
	mrand "math/rand"
	"strconv"
	"sync"
	"time"

	"tractor-service/internal/model"
	appErr "tractor-service/pkg/errors"
	"tractor-service/pkg/logger"

	"go.uber.org/zap"
)

const (
	defaultDealInterval = 800 * time.Millisecond
	defaultTurnSeconds  = 30
)

type SeatView struct {
	SeatIndex int    `json:"seatIndex"`
	UserID    int64  `json:"userId,string"`
	Name      string `json:"name"`
	TeamID    int    `json:"teamId"`
	HandCount int    `json:"handCount"`
}

// RoomState is the per-viewer snapshot pushed over the websocket. Other
// players' hands are reduced to counts; the bottom is shown to the dealer
// during the exchange and to everyone once the round is over.
type RoomState struct {
	RoomID      int64        `json:"roomId,string"`
	Phase       Phase        `json:"phase"`
	RoundNo     int          `json:"roundNo"`
	Level       Rank         `json:"level"`
	TeamLevels  []Rank       `json:"teamLevels"`
	MainSuit    Suit         `json:"mainSuit"`
	DealerSeat  int          `json:"dealerSeat"`
	TurnSeat    int          `json:"turnSeat"`
	Scores      map[int]int  `json:"scores"`
	Seats       []SeatView   `json:"seats"`
	MySeat      int          `json:"mySeat"`
	MyHand      []Card       `json:"myHand"`
	Declaration *Declaration `json:"declaration,omitempty"`
	Trick       []Move       `json:"trick"`
	Bottom      []Card       `json:"bottom,omitempty"`
	Countdown   int          `json:"countdown"`
	Allowed     []string     `json:"allowedActions"`
}

type OutgoingMessage struct {
	Type string      `json:"type"`
	Seq  int64       `json:"seq"`
	Data interface{} `json:"data"`
}

// RuntimeConfig carries the knobs a runtime needs from service config.
// Rand is injectable so tests can force deterministic deals.
type RuntimeConfig struct {
	Rand         *mrand.Rand
	StartLevel   Rank
	WinScore     int
	DealInterval time.Duration
	TurnSeconds  int
}

// RoomRuntime owns one table: the round state machine, the subscriber set,
// and the pacing timers. Every mutation of the round goes through mu, which
// is the serialization the engine itself does not provide.
type RoomRuntime struct {
	roomID int64
	round  *Round

	seatByUser map[int64]int
	userBySeat map[int]int64

	subscribers map[int64]chan OutgoingMessage
	seq         int64

	dealInterval time.Duration
	turnSeconds  int
	turnDeadline time.Time
	turnTimer    *time.Timer

	mu sync.Mutex

	onGameStarted   func(*RoomRuntime)
	onRoundFinished func(*RoomRuntime)
}

func newRoomRuntime(room model.Room, cfg RuntimeConfig, onFinished func(*RoomRuntime)) (*RoomRuntime, error) {
	rng := cfg.Rand
	if rng == nil {
		rng = mrand.New(mrand.NewSource(time.Now().UnixNano()))
	}
	round := NewRound(rng)
	if cfg.StartLevel > 0 {
		round.SetStartLevel(cfg.StartLevel)
	}
	round.SetWinScore(cfg.WinScore)

	rt := &RoomRuntime{
		roomID:       room.ID,
		round:        round,
		seatByUser:   make(map[int64]int),
		userBySeat:   make(map[int]int64),
		subscribers:  make(map[int64]chan OutgoingMessage),
		dealInterval: cfg.DealInterval,
		turnSeconds:  cfg.TurnSeconds,

		onRoundFinished: onFinished,
	}
	if rt.dealInterval <= 0 {
		rt.dealInterval = defaultDealInterval
	}
	if rt.turnSeconds <= 0 {
		rt.turnSeconds = defaultTurnSeconds
	}

	seats, err := parseSeatsJSON(room.SeatsJSON)
	if err != nil {
		return nil, err
	}
	for seat, occupant := range seats {
		if occupant == nil {
			continue
		}
		if _, err := round.AddPlayer(occupant.UserID, occupant.Name); err != nil {
			return nil, err
		}
		rt.seatByUser[occupant.UserID] = seat
		rt.userBySeat[seat] = occupant.UserID
	}
	return rt, nil
}

type seatOccupant struct {
	UserID int64
	Name   string
}

// parseSeatsJSON reads the room's seat map ("0".."5" -> {userId, name}).
// Seats must fill contiguously from 0 since the round assigns teams by
// seat order.
func parseSeatsJSON(raw []byte) ([numSeats]*seatOccupant, error) {
	var seats [numSeats]*seatOccupant
	if len(raw) == 0 {
		return seats, nil
	}
	var payload map[string]struct {
		UserID int64  `json:"userId,string"`
		Name   string `json:"name"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return seats, err
	}
	for seatStr, data := range payload {
		idx, err := strconv.Atoi(seatStr)
		if err != nil || idx < 0 || idx >= numSeats || data.UserID == 0 {
			continue
		}
		name := data.Name
		if name == "" {
			name = fmt.Sprintf("player_%d", idx)
		}
		seats[idx] = &seatOccupant{UserID: data.UserID, Name: name}
	}
	for i, s := range seats {
		if s != nil {
			continue
		}
		for _, later := range seats[i+1:] {
			if later != nil {
				return seats, fmt.Errorf("seat %d is empty but later seats are taken", i)
			}
		}
		break
	}
	return seats, nil
}

func (rt *RoomRuntime) Subscribe(userID int64) chan OutgoingMessage {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	ch := make(chan OutgoingMessage, 8)
	rt.subscribers[userID] = ch
	rt.pushStateLocked(userID)
	return ch
}

func (rt *RoomRuntime) Unsubscribe(userID int64) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if ch, ok := rt.subscribers[userID]; ok {
		delete(rt.subscribers, userID)
		close(ch)
	}
}

type cardIDsPayload struct {
	CardIDs []string `json:"cardIds"`
	Suit    string   `json:"suit"`
}

func (rt *RoomRuntime) HandleAction(userID int64, action string, data json.RawMessage) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	seat, ok := rt.seatByUser[userID]
	if !ok {
		return appErr.ErrRoomAccessDenied
	}

	var p cardIDsPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}

	switch action {
	case "start_game":
		return rt.startGameLocked()
	case "declare_main":
		return rt.declareLocked(seat, p.CardIDs, Suit(p.Suit))
	case "exchange_cards":
		return rt.exchangeLocked(seat, p.CardIDs)
	case "play_cards":
		return rt.playLocked(seat, p.CardIDs)
	case "next_round":
		return rt.nextRoundLocked()
	case "rejoin":
		rt.pushStateLocked(userID)
		return nil
	case "ping":
		rt.pushMessageLocked(userID, OutgoingMessage{Type: "pong", Seq: rt.nextSeqLocked()})
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

func (rt *RoomRuntime) startGameLocked() error {
	if rt.round.Phase() != PhaseWaiting {
		return appErr.ErrWrongPhase
	}
	if err := rt.round.StartGame(); err != nil {
		return err
	}
	rt.broadcastLocked("game_started", map[string]interface{}{
		"dealerSeat": rt.round.DealerSeat(),
		"level":      rt.round.Level(),
		"teamLevels": rt.round.TeamLevels(),
	})
	if rt.onGameStarted != nil {
		go rt.onGameStarted(rt)
	}
	go rt.runDealLoop(rt.round.RoundNo())
	return nil
}

// runDealLoop paces one card per tick to the seats in rotation, then
// finalizes the drawing phase. Declarations arrive concurrently through
// HandleAction while this runs.
func (rt *RoomRuntime) runDealLoop(roundNo int) {
	ticker := time.NewTicker(rt.dealInterval)
	defer ticker.Stop()

	for range ticker.C {
		rt.mu.Lock()
		if rt.round.Phase() != PhaseDrawing || rt.round.RoundNo() != roundNo {
			rt.mu.Unlock()
			return
		}

		seat, card := rt.round.DrawNextCard()
		if card == nil {
			rt.finalizeDrawingLocked()
			rt.mu.Unlock()
			return
		}

		if uid, ok := rt.userBySeat[seat]; ok {
			rt.pushMessageLocked(uid, OutgoingMessage{
				Type: "new_card",
				Seq:  rt.nextSeqLocked(),
				Data: map[string]interface{}{"card": card},
			})
		}
		rt.mu.Unlock()
	}
}

func (rt *RoomRuntime) finalizeDrawingLocked() {
	res, err := rt.round.FinalizeDrawingPhase()
	if err != nil {
		logger.Log.Error("finalize drawing failed", zap.Int64("roomID", rt.roomID), zap.Error(err))
		return
	}

	rt.broadcastLocked("drawing_complete", map[string]interface{}{
		"mainSuit":   res.MainSuit,
		"dealerSeat": res.DealerSeat,
	})

	if uid, ok := rt.userBySeat[res.DealerSeat]; ok {
		rt.pushMessageLocked(uid, OutgoingMessage{
			Type: "exchange_start",
			Seq:  rt.nextSeqLocked(),
			Data: map[string]interface{}{"bottom": res.Bottom},
		})
	}
	rt.broadcastStateLocked()
}

func (rt *RoomRuntime) declareLocked(seat int, cardIDs []string, suit Suit) error {
	if err := rt.round.DeclareMainSuit(seat, cardIDs, suit); err != nil {
		return err
	}
	decl := rt.round.Declaration()
	rt.broadcastLocked("main_declared", map[string]interface{}{
		"seat":      decl.Seat,
		"suit":      decl.Suit,
		"strength":  decl.Strength,
		"cardCount": len(decl.CardIDs),
	})
	return nil
}

func (rt *RoomRuntime) exchangeLocked(seat int, cardIDs []string) error {
	if err := rt.round.ExchangeCards(seat, cardIDs); err != nil {
		return err
	}
	rt.broadcastLocked("play_started", map[string]interface{}{
		"turnSeat": rt.round.TurnSeat(),
	})
	rt.resetTurnTimerLocked()
	rt.broadcastStateLocked()
	return nil
}

func (rt *RoomRuntime) playLocked(seat int, cardIDs []string) error {
	played := rt.round.Player(seat).Hand.Pick(cardIDs)
	result, err := rt.round.PlayCards(seat, cardIDs)
	if err != nil {
		return err
	}

	rt.broadcastLocked("player_played", map[string]interface{}{
		"seat":     seat,
		"cards":    played,
		"nextTurn": rt.round.TurnSeat(),
	})

	if result != nil {
		rt.broadcastLocked("trick_finished", map[string]interface{}{
			"winnerSeat": result.WinnerSeat,
			"points":     result.Points,
			"kittyBonus": result.KittyBonus,
			"scores":     rt.round.Scores(),
			"nextTurn":   rt.round.TurnSeat(),
		})
		if result.GameOver {
			rt.cancelTurnTimerLocked()
			rt.broadcastLocked("game_over", map[string]interface{}{
				"scores": rt.round.Scores(),
				"bottom": rt.round.Bottom(),
			})
			if rt.onRoundFinished != nil {
				go rt.onRoundFinished(rt)
			}
			return nil
		}
	}
	rt.resetTurnTimerLocked()
	return nil
}

func (rt *RoomRuntime) nextRoundLocked() error {
	res, err := rt.round.NextRound()
	if err != nil {
		return err
	}
	rt.broadcastLocked("round_started", map[string]interface{}{
		"dealerSeat":  res.DealerSeat,
		"level":       res.Level,
		"teamLevels":  res.TeamLevels,
		"dealerHeld":  res.DealerHeld,
		"winningTeam": res.WinningTeam,
	})
	go rt.runDealLoop(rt.round.RoundNo())
	return nil
}

// Turn timer. Expiry only warns: the engine has no timeout policy and a
// stalled player leaves the round in PLAYING until they act.
func (rt *RoomRuntime) resetTurnTimerLocked() {
	rt.cancelTurnTimerLocked()
	if rt.round.Phase() != PhasePlaying {
		return
	}
	d := time.Duration(rt.turnSeconds) * time.Second
	rt.turnDeadline = time.Now().Add(d)
	rt.turnTimer = time.AfterFunc(d, rt.onTurnTimeout)
}

func (rt *RoomRuntime) onTurnTimeout() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.round.Phase() != PhasePlaying {
		return
	}
	logger.Log.Warn("turn timer expired",
		zap.Int64("roomID", rt.roomID),
		zap.Int("seat", rt.round.TurnSeat()),
	)
	rt.broadcastLocked("turn_timeout", map[string]interface{}{
		"seat": rt.round.TurnSeat(),
	})
}

func (rt *RoomRuntime) cancelTurnTimerLocked() {
	if rt.turnTimer != nil {
		rt.turnTimer.Stop()
		rt.turnTimer = nil
	}
	rt.turnDeadline = time.Time{}
}

func (rt *RoomRuntime) countdownSecondsLocked() int {
	if rt.turnDeadline.IsZero() {
		return 0
	}
	diff := time.Until(rt.turnDeadline)
	if diff <= 0 {
		return 0
	}
	return int(diff / time.Second)
}

func (rt *RoomRuntime) nextSeqLocked() int64 {
	rt.seq++
	return rt.seq
}

func (rt *RoomRuntime) broadcastLocked(msgType string, data interface{}) {
	seq := rt.nextSeqLocked()
	for uid, ch := range rt.subscribers {
		select {
		case ch <- OutgoingMessage{Type: msgType, Seq: seq, Data: data}:
		default:
			logger.Log.Warn("ws subscriber channel full", zap.Int64("userID", uid), zap.Int64("roomID", rt.roomID))
		}
	}
}

func (rt *RoomRuntime) broadcastStateLocked() {
	seq := rt.nextSeqLocked()
	for uid, ch := range rt.subscribers {
		select {
		case ch <- OutgoingMessage{Type: "state", Seq: seq, Data: rt.exportStateLocked(uid)}:
		default:
			logger.Log.Warn("ws subscriber channel full", zap.Int64("userID", uid), zap.Int64("roomID", rt.roomID))
		}
	}
}

func (rt *RoomRuntime) pushStateLocked(userID int64) {
	rt.pushMessageLocked(userID, OutgoingMessage{
		Type: "state",
		Seq:  rt.nextSeqLocked(),
		Data: rt.exportStateLocked(userID),
	})
}

func (rt *RoomRuntime) pushMessageLocked(userID int64, msg OutgoingMessage) {
	if ch, ok := rt.subscribers[userID]; ok {
		select {
		case ch <- msg:
		default:
			logger.Log.Warn("ws subscriber channel full", zap.Int64("userID", userID), zap.Int64("roomID", rt.roomID))
		}
	}
}

func (rt *RoomRuntime) exportStateLocked(userID int64) RoomState {
	mySeat, seated := rt.seatByUser[userID]
	if !seated {
		mySeat = -1
	}

	levels := rt.round.TeamLevels()
	state := RoomState{
		RoomID:      rt.roomID,
		Phase:       rt.round.Phase(),
		RoundNo:     rt.round.RoundNo(),
		Level:       rt.round.Level(),
		TeamLevels:  levels[:],
		MainSuit:    rt.round.MainSuit(),
		DealerSeat:  rt.round.DealerSeat(),
		TurnSeat:    rt.round.TurnSeat(),
		Scores:      rt.round.Scores(),
		MySeat:      mySeat,
		Declaration: rt.round.Declaration(),
		Trick:       rt.round.Trick(),
		Countdown:   rt.countdownSecondsLocked(),
		Allowed:     rt.allowedActionsLocked(mySeat),
	}

	for seat := 0; seat < rt.round.PlayerCount(); seat++ {
		p := rt.round.Player(seat)
		state.Seats = append(state.Seats, SeatView{
			SeatIndex: seat,
			UserID:    p.UserID,
			Name:      p.Name,
			TeamID:    p.TeamID,
			HandCount: p.Hand.Len(),
		})
	}

	if seated {
		state.MyHand = rt.round.Player(mySeat).Hand.Cards()
	}

	switch rt.round.Phase() {
	case PhaseExchanging:
		if seated && mySeat == rt.round.DealerSeat() {
			state.Bottom = rt.round.Bottom()
		}
	case PhaseFinished:
		state.Bottom = rt.round.Bottom()
	}
	return state
}

func (rt *RoomRuntime) allowedActionsLocked(seat int) []string {
	if seat < 0 {
		return nil
	}
	switch rt.round.Phase() {
	case PhaseWaiting:
		if rt.round.PlayerCount() == numSeats {
			return []string{"start_game"}
		}
		return nil
	case PhaseDrawing:
		return []string{"declare_main"}
	case PhaseExchanging:
		if seat == rt.round.DealerSeat() {
			return []string{"exchange_cards"}
		}
		return nil
	case PhasePlaying:
		if seat == rt.round.TurnSeat() {
			return []string{"play_cards"}
		}
		return nil
	case PhaseFinished:
		return []string{"next_round"}
	default:
		return nil
	}
}

// Summary snapshots the fields the service persists when a round ends.
func (rt *RoomRuntime) Summary() (roomID int64, roundNo int, level Rank, mainSuit Suit, dealerSeat int, scores map[int]int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.roomID, rt.round.RoundNo(), rt.round.Level(), rt.round.MainSuit(), rt.round.DealerSeat(), rt.round.Scores()
}
