package lobby

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskWaitHonoursContext(t *testing.T) {
	task := newTask[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := task.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, task.IsDone())

	task.resolve(7, nil)
	task.resolve(8, errors.New("ignored"))

	v, err := task.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestFailedAndResolved(t *testing.T) {
	boom := errors.New("boom")

	_, err := Failed[string](boom).Result()
	assert.ErrorIs(t, err, boom)

	v, err := Resolved("ok").Result()
	assert.NoError(t, err)
	assert.Equal(t, "ok", v)
}
