// Package numbergame is a tiny two-player reference game used to exercise
// channelmanager against a real rules.Plugin without depending on any
// particular production game. State is the ASCII text "N T": N is the
// running number, T is the turn count. Turn follows N's parity, so a move
// of 1 or 3 hands the turn to the other player while a move of 2 keeps it.
//
// When N lands on 6-9 mod 10, the plugin proposes an auto-move of +2 for
// whoever is on turn, walking the number up to the next multiple of ten
// (one past it for odd N) without requiring an explicit move. Reaching 100
// or beyond ends the game (WhoseTurn returns rules.NoTurn); landing exactly
// on 100 asks to be settled on-chain.
package numbergame

import (
	"fmt"
	"strings"

	"github.com/xaya/channeld/rules"
)

// Plugin implements rules.Plugin for the number game.
type Plugin struct{}

// New returns a ready-to-use number game plugin.
func New() *Plugin { return &Plugin{} }

func parse(state []byte) (n int, t int, err error) {
	fields := strings.Fields(string(state))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("numbergame: expected \"N T\", got %q", state)
	}
	if _, err := fmt.Sscanf(fields[0], "%d", &n); err != nil {
		return 0, 0, fmt.Errorf("numbergame: bad N in %q: %w", state, err)
	}
	if _, err := fmt.Sscanf(fields[1], "%d", &t); err != nil {
		return 0, 0, fmt.Errorf("numbergame: bad T in %q: %w", state, err)
	}
	return n, t, nil
}

func format(n, t int) []byte {
	return []byte(fmt.Sprintf("%d %d", n, t))
}

// ParseState validates state and returns it in canonical form.
func (Plugin) ParseState(state []byte) ([]byte, error) {
	n, t, err := parse(state)
	if err != nil {
		return nil, err
	}
	return format(n, t), nil
}

// EqualStates compares two states by value rather than byte-for-byte, so
// "10 5" and "10  5" are treated the same.
func (p Plugin) EqualStates(a, b []byte) bool {
	an, at, aerr := parse(a)
	bn, bt, berr := parse(b)
	if aerr != nil || berr != nil {
		return string(a) == string(b)
	}
	return an == bn && at == bt
}

// WhoseTurn returns the index of the player whose turn it is, or
// rules.NoTurn once N reaches 100 and the game is over.
func (Plugin) WhoseTurn(state []byte) int {
	n, _, err := parse(state)
	if err != nil || n >= 100 {
		return rules.NoTurn
	}
	return n % 2
}

// TurnCount returns T.
func (Plugin) TurnCount(state []byte) uint32 {
	_, t, err := parse(state)
	if err != nil {
		return 0
	}
	return uint32(t)
}

// ApplyMove parses move as a decimal delta in [1,3], requires it to be
// player's turn, and advances the state by it.
func (p Plugin) ApplyMove(state []byte, player int, move []byte) ([]byte, error) {
	n, t, err := parse(state)
	if err != nil {
		return nil, err
	}
	if n >= 100 {
		return nil, fmt.Errorf("numbergame: game is already over at %d", n)
	}
	if n%2 != player {
		return nil, fmt.Errorf("numbergame: it is not player %d's turn", player)
	}

	var delta int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(move)), "%d", &delta); err != nil {
		return nil, fmt.Errorf("numbergame: invalid move %q: %w", move, err)
	}
	if delta < 1 || delta > 3 {
		log.Debugf("numbergame: rejecting move %d out of range [1,3] from %q", delta, state)
		return nil, fmt.Errorf("numbergame: move %d out of range [1,3]", delta)
	}

	return format(n+delta, t+1), nil
}

// MaybeAutoMove proposes a +2 move whenever N is within reach of the next
// multiple of ten (N%10 in [6,9]) and it is localPlayer's turn.
func (p Plugin) MaybeAutoMove(state []byte, localPlayer int) ([]byte, bool) {
	n, _, err := parse(state)
	if err != nil || n >= 100 {
		return nil, false
	}
	if n%2 != localPlayer {
		return nil, false
	}
	if mod := n % 10; mod < 6 {
		return nil, false
	}
	return []byte("2"), true
}

// MaybeOnChainMove asks for a settlement move exactly when the game has
// just reached its terminal number. A state already past 100 reflects a
// channel settled elsewhere and calls for no further move.
func (p Plugin) MaybeOnChainMove(state []byte) ([]byte, bool) {
	n, _, err := parse(state)
	if err != nil || n != 100 {
		return nil, false
	}
	return []byte(fmt.Sprintf(`{"finalNumber":%d}`, n)), true
}

// StateToJSON renders state for channelmanager.ToJson's current.state field.
func (p Plugin) StateToJSON(state []byte) (interface{}, error) {
	n, t, err := parse(state)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"number":    n,
		"turnCount": t,
	}, nil
}

var _ rules.Plugin = Plugin{}
