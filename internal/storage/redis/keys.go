package redis

import (
	"fmt"

	"github.com/mcoot/lobbynet/internal/model"
)

// Key prefix for all directory data
const keyPrefix = "lobbynet"

// identityKey returns the Redis key for an Identity
func identityKey(id model.IdentityID) string {
	return fmt.Sprintf("%s:identity:%s", keyPrefix, id)
}

// registeredIdentityKey returns the Redis key for a RegisteredIdentity
func registeredIdentityKey(id model.IdentityID) string {
	return fmt.Sprintf("%s:registered_identity:%s", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> identity index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// sessionKey returns the Redis key for a LobbySession
func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// codeIndexKey returns the Redis key for the join code -> session id index
func codeIndexKey(code model.JoinCode) string {
	return fmt.Sprintf("%s:idx:code:%s", keyPrefix, code)
}

// sessionsIndexKey returns the Redis key for the SET of known session ids
func sessionsIndexKey() string {
	return fmt.Sprintf("%s:idx:sessions", keyPrefix)
}
