package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mcoot/lobbynet/internal/api/response"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/session"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to stdout
func NewOutput(format string) *Output {
	return newOutputTo(os.Stdout, format)
}

func newOutputTo(w io.Writer, format string) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]any{
			"error": map[string]string{"message": err.Error()},
		})
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Identity:
		o.printIdentity(v)
	case response.AuthResponse:
		o.printIdentity(v.Identity)
		fmt.Fprintf(o.w, "Token: %s\n", v.SessionToken)
	case response.Session:
		o.printSession(v)
	case response.SessionList:
		o.printSessionList(v)
	case response.Health:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case []model.PlayerRecord:
		o.printRoster(v)
	case session.Status:
		o.printStatus(v)
	case model.Event:
		o.printEvent(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printIdentity(i response.Identity) {
	kind := "registered"
	if i.IsAnonymous {
		kind = "anonymous"
	}
	fmt.Fprintf(o.w, "Identity: %s (%s)\n", i.DisplayName, i.ID)
	fmt.Fprintf(o.w, "Kind: %s\n", kind)
}

func (o *Output) printSession(s response.Session) {
	visibility := "public"
	if s.IsPrivate {
		visibility = "private"
	}
	fmt.Fprintf(o.w, "Session: %s (%s)\n", s.Name, s.ID)
	fmt.Fprintf(o.w, "Join Code: %s\n", s.JoinCode)
	fmt.Fprintf(o.w, "Visibility: %s\n", visibility)
	fmt.Fprintf(o.w, "Host Address: %s\n", s.HostAddr)
	fmt.Fprintf(o.w, "Members (%d/%d):\n", len(s.Members), s.Capacity)
	for _, m := range s.Members {
		hostStr := ""
		if m.Identity == s.HostIdentity {
			hostStr = " [host]"
		}
		fmt.Fprintf(o.w, "  - %s%s\n", m.Identity, hostStr)
	}
}

func (o *Output) printSessionList(l response.SessionList) {
	if len(l.Sessions) == 0 {
		fmt.Fprintln(o.w, "No sessions available")
		return
	}
	for _, s := range l.Sessions {
		fmt.Fprintf(o.w, "%-36s  %-20s  %s  %d/%d\n", s.ID, s.Name, s.JoinCode, len(s.Members), s.Capacity)
	}
}

func (o *Output) printRoster(records []model.PlayerRecord) {
	if len(records) == 0 {
		fmt.Fprintln(o.w, "Roster is empty")
		return
	}
	for _, r := range records {
		ready := " "
		if r.IsReady {
			ready = "x"
		}
		name := r.DisplayName
		if r.Handshaking() {
			name = "(joining)"
		}
		fmt.Fprintf(o.w, "  [%s] slot %d  client %d  %s\n", ready, r.Slot, r.ClientID, name)
	}
}

func (o *Output) printStatus(s session.Status) {
	fmt.Fprintf(o.w, "State: %s\n", s.State)
	if s.Session != nil {
		fmt.Fprintf(o.w, "Session: %s (%s)\n", s.Session.Name, s.Session.JoinCode)
	}
	fmt.Fprintf(o.w, "Client: %d\n", s.ClientID)
	fmt.Fprintf(o.w, "All Ready: %t\n", s.AllReady)
	if s.Phase != "" {
		fmt.Fprintf(o.w, "Phase: %s\n", s.Phase)
	}
}

func (o *Output) printEvent(e model.Event) {
	timestamp := e.Timestamp.Format(time.TimeOnly)
	fmt.Fprintf(o.w, "[%s] %s%s\n", timestamp, e.Type, describePayload(e.Payload))
}

func describePayload(payload any) string {
	switch p := payload.(type) {
	case model.RosterChangedPayload:
		names := make([]string, 0, len(p.Records))
		for _, r := range p.Records {
			if r.Handshaking() {
				continue
			}
			names = append(names, r.DisplayName)
		}
		return fmt.Sprintf(": %d players [%s]", len(p.Records), strings.Join(names, ", "))
	case model.PhaseTransitionPayload:
		return ": " + p.Phase
	case model.LocalReadyPayload:
		return fmt.Sprintf(": %t", p.Ready)
	case model.LobbyListPayload:
		return fmt.Sprintf(": %d sessions", len(p.Sessions))
	case model.SessionPayload:
		return fmt.Sprintf(": %s (%s)", p.Session.Name, p.Session.JoinCode)
	case model.FailurePayload:
		return ": " + p.Reason
	case model.KickedPayload:
		return fmt.Sprintf(": client %d", p.ClientID)
	default:
		return ""
	}
}
