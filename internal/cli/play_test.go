package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbynet/internal/lobby"
	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/session"
)

type fakeController struct {
	name     string
	cosmetic int
	color    model.Color
	ready    *bool
	kicked   []model.ClientID
	left     bool
	records  []model.PlayerRecord
	err      error
}

func (f *fakeController) SetName(_ context.Context, name string) error {
	f.name = name
	return f.err
}

func (f *fakeController) SetCosmetic(_ context.Context, i int) error {
	f.cosmetic = i
	return f.err
}

func (f *fakeController) SetColor(_ context.Context, c model.Color) error {
	f.color = c
	return f.err
}

func (f *fakeController) SetReady(_ context.Context, ready bool) error {
	f.ready = &ready
	return f.err
}

func (f *fakeController) Kick(_ context.Context, id model.ClientID) error {
	f.kicked = append(f.kicked, id)
	return f.err
}

func (f *fakeController) Roster(context.Context) ([]model.PlayerRecord, error) {
	return f.records, f.err
}

func (f *fakeController) Status(context.Context) (session.Status, error) {
	return session.Status{State: lobby.Hosting, AllReady: true, Phase: "game"}, f.err
}

func (f *fakeController) Leave(context.Context) error {
	f.left = true
	return f.err
}

type PlaySuite struct {
	suite.Suite
	ctrl *fakeController
	buf  *bytes.Buffer
	out  *Output
	ctx  context.Context
}

func TestPlaySuite(t *testing.T) {
	suite.Run(t, new(PlaySuite))
}

func (s *PlaySuite) SetupTest() {
	s.ctrl = &fakeController{}
	s.buf = &bytes.Buffer{}
	s.out = newOutputTo(s.buf, "text")
	s.ctx = context.Background()
}

func (s *PlaySuite) run(line string) error {
	return runCommand(s.ctx, s.ctrl, s.out, line)
}

func (s *PlaySuite) TestReadyAndUnready() {
	s.Require().NoError(s.run("ready"))
	s.Require().NotNil(s.ctrl.ready)
	s.True(*s.ctrl.ready)

	s.Require().NoError(s.run("  UNREADY "))
	s.False(*s.ctrl.ready)
}

func (s *PlaySuite) TestNameKeepsSpaces() {
	s.Require().NoError(s.run("name Big   Bob"))
	s.Equal("Big Bob", s.ctrl.name)

	s.Error(s.run("name"))
}

func (s *PlaySuite) TestCosmetic() {
	s.Require().NoError(s.run("cosmetic 3"))
	s.Equal(3, s.ctrl.cosmetic)

	s.Error(s.run("cosmetic three"))
}

func (s *PlaySuite) TestColor() {
	s.Require().NoError(s.run("color 0.5 0 1"))
	s.Equal(model.Color{R: 0.5, G: 0, B: 1, A: 1}, s.ctrl.color)

	s.Require().NoError(s.run("colour 0 0 0 0.25"))
	s.Equal(model.Color{A: 0.25}, s.ctrl.color)

	s.Error(s.run("color 2 0 0"))
	s.Error(s.run("color 1 1"))
	s.Error(s.run("color red green blue"))
}

func (s *PlaySuite) TestKick() {
	s.Require().NoError(s.run("kick 7"))
	s.Equal([]model.ClientID{7}, s.ctrl.kicked)

	s.Error(s.run("kick -1"))
	s.Error(s.run("kick"))
}

func (s *PlaySuite) TestRosterPrintsRecords() {
	s.ctrl.records = []model.PlayerRecord{
		{ClientID: 0, Identity: "host", DisplayName: "Host", IsReady: true, Slot: 0},
		{ClientID: 1, Slot: 1},
	}

	s.Require().NoError(s.run("roster"))
	s.Contains(s.buf.String(), "[x] slot 0  client 0  Host")
	s.Contains(s.buf.String(), "(joining)")
}

func (s *PlaySuite) TestStatus() {
	s.Require().NoError(s.run("status"))
	s.Contains(s.buf.String(), "State: hosting")
	s.Contains(s.buf.String(), "All Ready: true")
}

func (s *PlaySuite) TestLeaveQuits() {
	err := s.run("leave")
	s.ErrorIs(err, errQuit)
	s.True(s.ctrl.left)
}

func (s *PlaySuite) TestLeaveFailureDoesNotQuit() {
	s.ctrl.err = model.ErrSessionNotFound
	err := s.run("quit")
	s.ErrorIs(err, model.ErrSessionNotFound)
	s.False(errors.Is(err, errQuit))
}

func (s *PlaySuite) TestUnknownAndBlank() {
	s.NoError(s.run("   "))
	s.ErrorContains(s.run("dance"), "unknown command")
}

func (s *PlaySuite) TestHelp() {
	s.Require().NoError(s.run("help"))
	s.Contains(s.buf.String(), "ready | unready")
}

func (s *PlaySuite) TestInteractStopsOnQuit() {
	lines := make(chan string, 3)
	lines <- "ready"
	lines <- "bogus"
	lines <- "leave"

	err := interact(s.ctx, s.ctrl, s.out, lines)
	s.ErrorIs(err, errQuit)
	s.True(*s.ctrl.ready)
	s.True(s.ctrl.left)
}

func (s *PlaySuite) TestInteractSurvivesEOF() {
	lines := make(chan string)
	close(lines)

	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()

	s.NoError(interact(ctx, s.ctrl, s.out, lines))
	s.False(s.ctrl.left)
}

func (s *PlaySuite) TestReadLines() {
	lines := readLines(bytes.NewBufferString("one\ntwo\n"))

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	s.Equal([]string{"one", "two"}, got)
}
