package factory

import (
	"time"

	"github.com/mcoot/lobbynet/internal/dependencies/mocks"
	"github.com/mcoot/lobbynet/internal/services/auth"
	"github.com/mcoot/lobbynet/internal/services/directory"
	"github.com/mcoot/lobbynet/internal/storage/memory"
	"github.com/mcoot/lobbynet/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	store := memory.New(mockClock)

	app := newWithDependencies(store, mockClock, mockRandom, auth.DefaultConfig(), directory.DefaultConfig(), testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
