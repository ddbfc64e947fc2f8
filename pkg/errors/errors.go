package errors

import "errors"

// Rule-level errors. Every one of these is recoverable: the engine rejects
// the action, leaves state untouched, and the caller re-prompts the player.
var (
	ErrWrongPhase           = errors.New("action not allowed in current phase")
	ErrNotYourTurn          = errors.New("not your turn")
	ErrCardsNotOwned        = errors.New("cards not in hand")
	ErrInvalidMoveStructure = errors.New("invalid move structure")
	ErrWrongCardCount       = errors.New("must play same number of cards as the lead")
	ErrMustFollowSuit       = errors.New("must follow the led suit")
	ErrMustExhaustSuit      = errors.New("must play all cards of the led suit you hold")
	ErrDeadStick            = errors.New("must play your best matching structure")
	ErrWeakDeclaration      = errors.New("declaration not strong enough")
	ErrInvalidSuitSelection = errors.New("invalid suit selection")
	ErrInsufficientCards    = errors.New("not enough cards in deck")
	ErrMissingCards         = errors.New("requested cards missing from hand")
	ErrWrongExchangeCount   = errors.New("must exchange exactly 6 cards")
	ErrRoomFull             = errors.New("room is full")
	ErrWrongPlayerCount     = errors.New("need exactly 6 seated players")
	ErrSeatTaken            = errors.New("seat already taken")
)

// Service-level errors.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUserExists         = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomAccessDenied   = errors.New("room access denied")
	ErrRoomNotWaiting     = errors.New("room is not accepting players")
)
