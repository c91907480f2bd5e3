// Package rules defines the capability set a game plugs into the channel
// manager. Everything in this package is an interface: the manager is
// generic over whatever game a concrete implementation (such as
// rules/numbergame) describes.
package rules

// NoTurn is the value WhoseTurn returns for a state that has no mover,
// either because the game has ended or because the rules consider the
// position terminal.
const NoTurn = -1

// Plugin is the set of game-specific operations the channel manager needs
// in order to drive a channel without knowing anything about the game
// itself. Implementations must be safe to call repeatedly from under the
// channel manager's lock; they are never called concurrently by the
// manager, but must not re-enter the manager.
type Plugin interface {
	// ParseState validates that data is a well-formed board state for this
	// game, returning it unchanged (or a canonicalised form) on success.
	ParseState(data []byte) ([]byte, error)

	// EqualStates reports whether a and b describe the same position.
	EqualStates(a, b []byte) bool

	// WhoseTurn returns the participant index to move in state, or NoTurn
	// if the state has no mover (game over, or a terminal position).
	WhoseTurn(state []byte) int

	// TurnCount returns the monotone move counter associated with state.
	TurnCount(state []byte) uint32

	// ApplyMove computes the successor of state after the given player
	// applies move, or an error if the move is not legal from state for
	// that player.
	ApplyMove(state []byte, player int, move []byte) ([]byte, error)

	// MaybeAutoMove returns a move the given participant can apply to
	// state without player input, or (nil, false) if none applies. The
	// channel manager calls this in a loop after every state change, so
	// implementations MUST eventually return false for any reachable
	// state (no infinite automatic chains).
	MaybeAutoMove(state []byte, localPlayer int) (move []byte, ok bool)

	// MaybeOnChainMove returns a JSON payload the manager should submit
	// as a game-specific on-chain move for state, or (nil, false) if the
	// state does not call for one.
	MaybeOnChainMove(state []byte) (payload []byte, ok bool)

	// StateToJSON renders state for external introspection (the
	// current.state field of channelmanager.Manager.ToJson).
	StateToJSON(state []byte) (interface{}, error)
}
