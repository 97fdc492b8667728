package model

// ClientID identifies a transport connection for as long as it stays connected
type ClientID uint64

// LocalClientID is the authority's own participant, which never crosses the network
const LocalClientID ClientID = 0

// NoSlot is returned by slot lookups when a client has no record
const NoSlot = -1

// Color is an RGBA cosmetic color with components in [0, 1]
type Color struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

// White is the color every new record starts with
var White = Color{R: 1, G: 1, B: 1, A: 1}

// Valid returns true if every component is within [0, 1]
func (c Color) Valid() bool {
	for _, v := range []float32{c.R, c.G, c.B, c.A} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// PlayerRecord is the replicated per-client state
type PlayerRecord struct {
	ClientID      ClientID   `json:"client_id"`
	Identity      IdentityID `json:"identity"`
	DisplayName   string     `json:"display_name"`
	CosmeticIndex int        `json:"cosmetic_index"`
	Color         Color      `json:"color"`
	IsReady       bool       `json:"is_ready"`

	// Slot is assigned once at insert and does not move when other records leave
	Slot int `json:"slot"`
}

// Handshaking returns true while the record is waiting for its name and identity
func (r PlayerRecord) Handshaking() bool {
	return r.DisplayName == "" || r.Identity == ""
}
