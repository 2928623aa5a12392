package clock_test

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/sossim-go/clock"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
)

func TestClockAdvance(t *testing.T) {
	c := clock.New(config.ControlStep{Total: 3, Interval: 1800})
	assert.Equal(t, int32(0), c.Tick())
	assert.Equal(t, "00:00:00", c.String())
	c.Advance()
	c.Advance()
	assert.Equal(t, int32(2), c.Tick())
	assert.Equal(t, 3600., c.T())
	assert.Equal(t, "01:00:00", c.String())
	assert.False(t, c.Finished())
	c.Advance()
	assert.True(t, c.Finished())

	res, err := c.Now(context.Background(), connect.NewRequest(&clock.NowRequest{}))
	require.NoError(t, err)
	assert.Equal(t, int32(3), res.Msg.Step)
	assert.Equal(t, 5400., res.Msg.T)

	c.Init()
	assert.Equal(t, int32(0), c.Tick())
}
