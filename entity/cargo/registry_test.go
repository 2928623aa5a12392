package cargo_test

import (
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/sossim-go/clock"
	"github.com/tsinghua-fib-lab/sossim-go/entity/cargo"
	"github.com/tsinghua-fib-lab/sossim-go/entity/roadnet"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
	"github.com/tsinghua-fib-lab/sossim-go/utils/randengine"
)

// 4x1的直线路网，节点ID 0..3
func setup(t *testing.T) (*roadnet.Network, *clock.Clock, *cargo.Registry) {
	n := roadnet.New(4, 1, 1)
	for x := int32(0); x < 4; x++ {
		lo.Must(n.AddNode(x, 0))
	}
	for x := int32(0); x < 3; x++ {
		lo.Must(n.AddEdge(x, x+1, roadnet.Coarse, 1))
		lo.Must(n.AddEdge(x+1, x, roadnet.Coarse, 1))
	}
	require.True(t, n.WeaklyConnected())
	clk := clock.New(config.ControlStep{Total: 100, Interval: 1})
	return n, clk, cargo.NewRegistry(n, clk)
}

func TestRegisterValidates(t *testing.T) {
	_, _, r := setup(t)
	_, err := r.Register(0, 0)
	assert.Error(t, err)
	_, err = r.Register(0, 9)
	assert.Error(t, err)
	id, err := r.Register(0, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(0), id)
	assert.Equal(t, 1, r.Len())
}

func TestLifecycle(t *testing.T) {
	_, clk, r := setup(t)
	id := lo.Must(r.Register(1, 3))
	// 新货物在Prepare之后才可匹配
	_, ok := r.Match(5, 0)
	assert.False(t, ok)
	r.Prepare()
	assert.Len(t, r.SnapshotWaitingAt(1), 1)
	info, ok := r.Match(5, 0)
	require.True(t, ok)
	assert.Equal(t, id, info.ID)

	require.NoError(t, r.Assign(id, 5))
	assert.ErrorIs(t, r.Assign(id, 6), cargo.ErrInvalidTransition)
	assert.ErrorIs(t, r.PickUp(id, 6), cargo.ErrWrongAgent)
	assert.ErrorIs(t, r.MarkDelivered(id, 5), cargo.ErrInvalidTransition)
	clk.Advance()
	require.NoError(t, r.PickUp(id, 5))
	// 取货后不能放弃
	assert.ErrorIs(t, r.Release(id, 5), cargo.ErrInvalidTransition)
	clk.Advance()
	require.NoError(t, r.MarkDelivered(id, 5))
	err := r.MarkDelivered(id, 5)
	assert.True(t, errors.Is(err, cargo.ErrAlreadyDelivered))

	v := r.Get(id).View()
	assert.Equal(t, []cargo.Status{cargo.Waiting, cargo.Assigned, cargo.InTransit, cargo.Delivered}, v.History)
	assert.Equal(t, int32(0), v.AssignedTick)
	assert.Equal(t, int32(1), v.PickedUpTick)
	assert.Equal(t, int32(2), v.DeliveredTick)
	assert.Equal(t, cargo.Counts{Delivered: 1}, r.Counts())

	r.Prepare()
	assert.Empty(t, r.SnapshotWaitingAt(1))
}

func TestMatchNearestThenLowestID(t *testing.T) {
	_, _, r := setup(t)
	far := lo.Must(r.Register(3, 0))
	a := lo.Must(r.Register(2, 0))
	b := lo.Must(r.Register(0, 3))
	r.Prepare()

	// 节点1到节点0、2等距，取ID小的a
	info, ok := r.Match(7, 1)
	require.True(t, ok)
	assert.Equal(t, a, info.ID)
	info, _ = r.Match(7, 3)
	assert.Equal(t, far, info.ID)

	// 已分配的货物不再匹配（即使尚未Prepare）
	require.NoError(t, r.Assign(a, 7))
	info, _ = r.Match(8, 1)
	assert.Equal(t, b, info.ID)
}

func TestReleaseSkipsSameAgent(t *testing.T) {
	_, _, r := setup(t)
	id := lo.Must(r.Register(2, 0))
	r.Prepare()
	require.NoError(t, r.Assign(id, 1))
	assert.ErrorIs(t, r.Release(id, 2), cargo.ErrWrongAgent)
	require.NoError(t, r.Release(id, 1))
	r.Prepare()

	_, ok := r.Match(1, 2)
	assert.False(t, ok)
	info, ok := r.Match(2, 2)
	require.True(t, ok)
	assert.Equal(t, id, info.ID)
	assert.Equal(t, cargo.Waiting, r.Get(id).Status())
	assert.Equal(t, int32(-1), r.Get(id).Agent())
}

func TestMatchKnown(t *testing.T) {
	_, _, r := setup(t)
	near := lo.Must(r.Register(1, 0))
	far := lo.Must(r.Register(3, 0))
	r.Prepare()
	assert.Equal(t, int32(2), r.Waiting())

	// 只在给出的ID中选择，不存在的ID忽略
	info, ok := r.MatchKnown(0, []int32{far, 99})
	require.True(t, ok)
	assert.Equal(t, far, info.ID)
	info, ok = r.MatchKnown(0, []int32{far, near})
	require.True(t, ok)
	assert.Equal(t, near, info.ID)
	_, ok = r.MatchKnown(0, nil)
	assert.False(t, ok)

	// 放弃过的货物Match不再给出，重新看到后仍可匹配
	require.NoError(t, r.Assign(near, 4))
	assert.Equal(t, int32(1), r.Waiting())
	info, _ = r.MatchKnown(0, []int32{near, far})
	assert.Equal(t, far, info.ID)
	require.NoError(t, r.Release(near, 4))
	require.NoError(t, r.Assign(far, 5))
	r.Prepare()
	_, ok = r.Match(4, 0)
	assert.False(t, ok)
	info, ok = r.MatchKnown(0, []int32{near})
	require.True(t, ok)
	assert.Equal(t, near, info.ID)
	assert.Equal(t, int32(1), r.Waiting())
}

func TestInitAndSpawn(t *testing.T) {
	_, _, r := setup(t)
	cfg := config.Cargo{
		Count:         3,
		SpawnInterval: 5,
		SpawnCount:    2,
		Initial:       []config.CargoSpec{{Origin: config.Coordinate{0, 0}, Destination: config.Coordinate{3, 0}}},
	}
	require.NoError(t, r.Init(cfg, randengine.New(1)))
	assert.Equal(t, 4, r.Len())
	first := r.Get(0).View()
	assert.Equal(t, int32(0), first.Origin)
	assert.Equal(t, int32(3), first.Destination)
	for _, v := range r.Views() {
		assert.NotEqual(t, v.Origin, v.Destination)
	}

	r.Spawn(0)
	r.Spawn(3)
	assert.Equal(t, 4, r.Len())
	r.Spawn(5)
	assert.Equal(t, 6, r.Len())
}

func TestInitRejectsOffNetworkCargo(t *testing.T) {
	_, _, r := setup(t)
	cfg := config.Cargo{Initial: []config.CargoSpec{{Origin: config.Coordinate{0, 0}, Destination: config.Coordinate{0, 3}}}}
	var ce *config.ConfigurationError
	assert.ErrorAs(t, r.Init(cfg, randengine.New(1)), &ce)
}

func TestCanTransit(t *testing.T) {
	assert.True(t, cargo.CanTransit(cargo.Waiting, cargo.Assigned))
	assert.False(t, cargo.CanTransit(cargo.Waiting, cargo.InTransit))
	assert.False(t, cargo.CanTransit(cargo.Delivered, cargo.Waiting))
	assert.False(t, cargo.CanTransit(cargo.InTransit, cargo.Waiting))
}
