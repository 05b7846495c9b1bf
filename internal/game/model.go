package game

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonashappcreative/hotelgame/internal/engine"
)

const (
	RoomCodeLength     = 6
	DefaultRoomPlayers = engine.MinPlayers
	maxDisplayNameLen  = 24
	roomCodeAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type RoomStatus string

const (
	RoomWaiting   RoomStatus = "waiting"
	RoomPlaying   RoomStatus = "playing"
	RoomFinished  RoomStatus = "finished"
	RoomAbandoned RoomStatus = "abandoned"
)

var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomFull             = errors.New("room is full")
	ErrRoomStarted          = errors.New("game already started")
	ErrRoomNotPlaying       = errors.New("room has no game in progress")
	ErrRoomClosed           = errors.New("room is closed")
	ErrNotSeated            = errors.New("not seated in this room")
	ErrBadPasscode          = errors.New("wrong room passcode")
	ErrInvalidRoomCode      = errors.New("room code must be 6 characters")
	ErrInvalidName          = errors.New("display name must be 1-24 characters")
	ErrInvalidRoomSize      = errors.New("room size must be between 4 and 6")
	ErrUnknownAction        = errors.New("unknown action")
	ErrInvalidPayload       = errors.New("invalid action payload")
	ErrDuplicateRoomCode    = errors.New("duplicate room code")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrTxConflict           = errors.New("transaction conflict, retry")
)

var roomCodeRE = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{6}$`)

func NormalizeRoomCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !roomCodeRE.MatchString(code) {
		return "", ErrInvalidRoomCode
	}
	return code, nil
}

func ValidateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLen {
		return "", ErrInvalidName
	}
	return name, nil
}

type Seat struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Ready    bool      `json:"ready"`
	JoinedAt time.Time `json:"joined_at"`
}

// Room is the persisted unit: lobby metadata plus the current engine snapshot.
type Room struct {
	ID           string
	Code         string
	Status       RoomStatus
	HostID       string
	MaxPlayers   int
	Seats        []Seat
	PasscodeHash string
	State        *engine.State
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActionAt time.Time
	RemindedAt   *time.Time
}

func (r Room) SeatIndex(userID string) int {
	for i, s := range r.Seats {
		if s.UserID == userID {
			return i
		}
	}
	return -1
}

func (r Room) allReady() bool {
	if len(r.Seats) < engine.MinPlayers {
		return false
	}
	for _, s := range r.Seats {
		if !s.Ready {
			return false
		}
	}
	return true
}
