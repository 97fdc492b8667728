package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/lobbynet/internal/api/response"
	"github.com/mcoot/lobbynet/internal/model"
)

func TestPrintSessionText(t *testing.T) {
	var buf bytes.Buffer
	out := newOutputTo(&buf, "text")

	out.Print(response.Session{
		ID:           "s-1",
		JoinCode:     "ABC234",
		Name:         "Friday",
		HostIdentity: "host",
		Capacity:     4,
		HostAddr:     "127.0.0.1:7777",
		Members:      []response.Member{{Identity: "host"}, {Identity: "alice"}},
	})

	assert.Contains(t, buf.String(), "Session: Friday (s-1)")
	assert.Contains(t, buf.String(), "Join Code: ABC234")
	assert.Contains(t, buf.String(), "Members (2/4):")
	assert.Contains(t, buf.String(), "host [host]")
}

func TestPrintEmptySessionList(t *testing.T) {
	var buf bytes.Buffer
	newOutputTo(&buf, "text").Print(response.SessionList{})
	assert.Equal(t, "No sessions available\n", buf.String())
}

func TestPrintEventText(t *testing.T) {
	var buf bytes.Buffer
	out := newOutputTo(&buf, "text")

	out.Print(model.Event{
		Type:      model.EventRosterChanged,
		Timestamp: time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC),
		Payload: model.RosterChangedPayload{Records: []model.PlayerRecord{
			{ClientID: 0, Identity: "host", DisplayName: "Host"},
			{ClientID: 1},
		}},
	})

	assert.Equal(t, "[12:30:00] roster_changed: 2 players [Host]\n", buf.String())
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	newOutputTo(&buf, "json").Print(response.Health{Status: "ok"})

	var decoded response.Health
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ok", decoded.Status)
}
