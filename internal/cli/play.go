package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/lobbynet/internal/api/response"
	"github.com/mcoot/lobbynet/internal/dependencies/clock"
	"github.com/mcoot/lobbynet/internal/lobby"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/session"
)

// errQuit ends an interactive session without reporting an error
var errQuit = errors.New("quit")

const playHelp = `Commands:
  ready | unready          set your ready flag
  name <display name>      change your display name
  cosmetic <index>         pick a cosmetic
  color <r> <g> <b> [a]    pick a color, components 0-1
  kick <client id>         remove a client (host only)
  roster                   show the roster
  status                   show session status
  leave | quit             leave the session and exit`

// controller is the part of a session node the interactive loop drives
type controller interface {
	SetName(ctx context.Context, name string) error
	SetCosmetic(ctx context.Context, i int) error
	SetColor(ctx context.Context, c model.Color) error
	SetReady(ctx context.Context, ready bool) error
	Kick(ctx context.Context, id model.ClientID) error
	Roster(ctx context.Context) ([]model.PlayerRecord, error)
	Status(ctx context.Context) (session.Status, error)
	Leave(ctx context.Context) error
}

var _ controller = (*session.Node)(nil)

type startFunc func(ctx context.Context, node *session.Node) (*model.LobbySession, error)

func newHostCmd() *cobra.Command {
	var name string
	var private bool

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Publish a session and host it",
		Long: `Publish a session in the directory and accept peers on --listen.

Peers dial the advertised address, so set --advertise when the listen address
is not reachable as-is. Type "help" once hosting for the list of commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			listener, err := net.Listen("tcp", cfg.ListenAddr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
			}
			if cfg.AdvertiseAddr == "" {
				cfg.AdvertiseAddr = listener.Addr().String()
			}

			return play(cmd, listener, func(ctx context.Context, node *session.Node) (*model.LobbySession, error) {
				return node.CreateSession(ctx, name, private)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Session name")
	cmd.Flags().BoolVar(&private, "private", false, "Hide from discovery; joinable by code only")
	cmd.Flags().IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "Maximum players including the host (env: LOBBYNET_CAPACITY)")
	cmd.Flags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Address to accept peers on (env: LOBBYNET_LISTEN_ADDR)")
	cmd.Flags().StringVar(&cfg.AdvertiseAddr, "advertise", cfg.AdvertiseAddr, "Address published to joiners (env: LOBBYNET_ADVERTISE_ADDR)")
	cmd.Flags().StringVar(&cfg.DisplayName, "display-name", cfg.DisplayName, "Sign in anonymously with this name if needed (env: LOBBYNET_DISPLAY_NAME)")

	return cmd
}

func newJoinCmd() *cobra.Command {
	var code, id string

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a session by code, by id, or any open one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if code != "" && id != "" {
				return fmt.Errorf("--code and --id are mutually exclusive")
			}

			return play(cmd, nil, func(ctx context.Context, node *session.Node) (*model.LobbySession, error) {
				switch {
				case code != "":
					return node.JoinByCode(ctx, model.JoinCode(code))
				case id != "":
					return node.JoinByID(ctx, model.SessionID(id))
				default:
					return node.QuickJoin(ctx)
				}
			})
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Join code")
	cmd.Flags().StringVar(&id, "id", "", "Session id")
	cmd.Flags().StringVar(&cfg.DisplayName, "display-name", cfg.DisplayName, "Sign in anonymously with this name if needed (env: LOBBYNET_DISPLAY_NAME)")

	return cmd
}

// ensureIdentity returns the signed-in identity, signing in anonymously if a display name is configured
func ensureIdentity(ctx context.Context) (model.Identity, error) {
	if cfg.Token != "" {
		me, err := client.Me(ctx)
		if err == nil {
			return me, nil
		}
		if cfg.DisplayName == "" {
			return model.Identity{}, fmt.Errorf("saved token rejected: %w", err)
		}
	}
	if cfg.DisplayName == "" {
		return model.Identity{}, fmt.Errorf("%w: run `lobbynet identity anonymous --name <name>` or pass --display-name", model.ErrNotAuthenticated)
	}

	result, err := client.SignInAnonymously(ctx, cfg.DisplayName)
	if err != nil {
		return model.Identity{}, err
	}
	if err := cfg.SaveToken(result.SessionToken); err != nil {
		logger.Warn("could not save token", slog.String("error", err.Error()))
	}
	return result.Identity.ToModel(), nil
}

func play(cmd *cobra.Command, listener net.Listener, start startFunc) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := NewOutput(cfg.Output)

	identity, err := ensureIdentity(ctx)
	if err != nil {
		if listener != nil {
			_ = listener.Close()
		}
		return err
	}

	node := session.NewNode(session.Config{
		Self:         session.Participant{Identity: identity.ID, Name: identity.DisplayName},
		Phase:        cfg.Phase,
		ListenAddr:   cfg.ListenAddr,
		Listener:     listener,
		TickInterval: cfg.TickInterval,
		Lobby: lobby.Config{
			Capacity:          cfg.Capacity,
			HeartbeatInterval: cfg.HeartbeatInterval,
			PollInterval:      cfg.PollInterval,
			CallTimeout:       cfg.CallTimeout,
			HostAddr:          cfg.Advertise(),
		},
	}, client, clock.New(), logger)

	sub := node.Events().Subscribe("cli", 0)
	lines := readLines(os.Stdin)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return node.Run(gctx)
	})
	g.Go(func() error {
		for e := range sub.C() {
			if e.Type == model.EventLobbyListChanged {
				continue
			}
			out.Print(e)
			if e.Type == model.EventDisconnected {
				// The host is gone; there is nothing left to drive
				return errQuit
			}
		}
		return nil
	})
	g.Go(func() error {
		joined, err := start(gctx, node)
		if err != nil {
			return err
		}
		out.Print(response.SessionFromModel(joined))
		out.PrintMessage(`Type "help" for commands`)
		return interact(gctx, node, out, lines)
	})

	err = g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readLines feeds stdin lines to a channel that closes at EOF
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// interact runs commands until quit or ctx is done
// Stdin reaching EOF leaves the node running until it is signalled.
func interact(ctx context.Context, c controller, out *Output, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := runCommand(ctx, c, out, line); err != nil {
				if errors.Is(err, errQuit) {
					return err
				}
				out.PrintError(err)
			}
		}
	}
}

// runCommand executes one interactive command line
func runCommand(ctx context.Context, c controller, out *Output, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "help", "?":
		out.PrintMessage(playHelp)
		return nil

	case "ready":
		return c.SetReady(ctx, true)

	case "unready":
		return c.SetReady(ctx, false)

	case "name":
		if len(args) == 0 {
			return errors.New("usage: name <display name>")
		}
		return c.SetName(ctx, strings.Join(args, " "))

	case "cosmetic":
		if len(args) != 1 {
			return errors.New("usage: cosmetic <index>")
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid cosmetic index %q", args[0])
		}
		return c.SetCosmetic(ctx, i)

	case "color", "colour":
		color, err := parseColor(args)
		if err != nil {
			return err
		}
		return c.SetColor(ctx, color)

	case "kick":
		if len(args) != 1 {
			return errors.New("usage: kick <client id>")
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid client id %q", args[0])
		}
		return c.Kick(ctx, model.ClientID(id))

	case "roster":
		records, err := c.Roster(ctx)
		if err != nil {
			return err
		}
		out.Print(records)
		return nil

	case "status":
		status, err := c.Status(ctx)
		if err != nil {
			return err
		}
		out.Print(status)
		return nil

	case "leave", "quit", "exit":
		if err := c.Leave(ctx); err != nil {
			return err
		}
		return errQuit

	default:
		return fmt.Errorf("unknown command %q (try \"help\")", fields[0])
	}
}

func parseColor(args []string) (model.Color, error) {
	if len(args) != 3 && len(args) != 4 {
		return model.Color{}, errors.New("usage: color <r> <g> <b> [a]")
	}
	values := []float32{1, 1, 1, 1}
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 32)
		if err != nil {
			return model.Color{}, fmt.Errorf("invalid color component %q", arg)
		}
		values[i] = float32(v)
	}
	color := model.Color{R: values[0], G: values[1], B: values[2], A: values[3]}
	if !color.Valid() {
		return model.Color{}, errors.New("color components must be between 0 and 1")
	}
	return color, nil
}
