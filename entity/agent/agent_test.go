package agent_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/sossim-go/clock"
	"github.com/tsinghua-fib-lab/sossim-go/entity"
	"github.com/tsinghua-fib-lab/sossim-go/entity/agent"
	"github.com/tsinghua-fib-lab/sossim-go/entity/cargo"
	"github.com/tsinghua-fib-lab/sossim-go/entity/charger"
	"github.com/tsinghua-fib-lab/sossim-go/entity/roadnet"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
	"github.com/tsinghua-fib-lab/sossim-go/utils/randengine"
)

// env 4x1直线路网上的最小仿真环境，节点ID 0..3
type env struct {
	clk      *clock.Clock
	rc       *config.RuntimeConfig
	net      *roadnet.Network
	idx      *roadnet.SpatialIndex
	traffic  *roadnet.Traffic
	cargo    *cargo.Registry
	chargers *charger.Manager
	agents   *agent.Manager
}

func (e *env) Clock() *clock.Clock { return e.clk }
func (e *env) RuntimeConfig() *config.RuntimeConfig { return e.rc }
func (e *env) Network() *roadnet.Network { return e.net }
func (e *env) SpatialIndex() *roadnet.SpatialIndex { return e.idx }
func (e *env) Traffic() *roadnet.Traffic { return e.traffic }
func (e *env) CargoRegistry() entity.ICargoRegistry { return e.cargo }
func (e *env) ChargerManager() entity.IChargerManager { return e.chargers }

func baseConfig() config.Config {
	cfg := config.Default()
	cfg.Agent.Count = 1
	cfg.Agent.Start = []config.Coordinate{{0, 0}}
	cfg.Agent.InitialChargeMin = 1
	cfg.Agent.InitialChargeMax = 1
	cfg.WorldModel.Prior = config.PriorFull
	cfg.Cargo.Count = 0
	cfg.Charger.Count = 0
	return cfg
}

func newEnv(t *testing.T, cfg config.Config, capacity int32) *env {
	rc, err := config.NewRuntimeConfig(cfg)
	require.NoError(t, err)
	n := roadnet.New(4, 1, 1)
	for x := int32(0); x < 4; x++ {
		lo.Must(n.AddNode(x, 0))
	}
	for x := int32(0); x < 3; x++ {
		lo.Must(n.AddEdge(x, x+1, roadnet.Coarse, capacity))
		lo.Must(n.AddEdge(x+1, x, roadnet.Coarse, capacity))
	}
	e := &env{
		clk:     clock.New(cfg.Control.Step),
		rc:      rc,
		net:     n,
		idx:     roadnet.NewSpatialIndex(n),
		traffic: roadnet.NewTraffic(n),
	}
	rng := randengine.New(cfg.Control.Seed)
	e.cargo = cargo.NewRegistry(n, e.clk)
	require.NoError(t, e.cargo.Init(cfg.Cargo, rng.Fork(1)))
	e.chargers = charger.NewManager(e.clk)
	require.NoError(t, e.chargers.Init(cfg.Charger, n, rng.Fork(2)))
	e.agents = agent.NewManager(e)
	require.NoError(t, e.agents.Init(rng.Fork(3), e.chargers.SnapshotAll()))
	return e
}

func (e *env) step(t *testing.T) {
	e.traffic.Prepare()
	e.chargers.Prepare()
	e.cargo.Prepare()
	e.agents.Prepare()
	e.agents.Decide(1)
	require.NoError(t, e.agents.Commit())
	require.NoError(t, e.chargers.CheckInvariants())
	for _, edge := range e.net.Edges() {
		require.LessOrEqual(t, e.traffic.Count(edge.ID), edge.Capacity)
	}
	e.clk.Advance()
}

func withCargo(cfg config.Config, specs ...[2]int32) config.Config {
	for _, s := range specs {
		cfg.Cargo.Initial = append(cfg.Cargo.Initial, config.CargoSpec{
			Origin:      config.Coordinate{s[0], 0},
			Destination: config.Coordinate{s[1], 0},
		})
	}
	return cfg
}

func TestPickupAndDeliver(t *testing.T) {
	e := newEnv(t, withCargo(baseConfig(), [2]int32{1, 3}), 2)
	a := e.agents.Get(0)
	assert.Equal(t, agent.Idle, a.Status())
	assert.Equal(t, float64(100), a.Charge())

	e.step(t)
	assert.Equal(t, agent.Assigned, a.Status())
	assert.Equal(t, int32(0), a.Cargo())
	e.step(t)
	assert.Equal(t, agent.EnRoute, a.Status())
	assert.Equal(t, agent.Follow, a.Intent().Kind)
	e.step(t)
	// 到达起点取货
	assert.Equal(t, agent.Assigned, a.Status())
	assert.Equal(t, cargo.InTransit, e.cargo.Get(0).Status())

	for i := 0; i < 10; i++ {
		e.step(t)
	}
	assert.Equal(t, agent.Idle, a.Status())
	assert.Equal(t, int32(-1), a.Cargo())
	assert.Equal(t, cargo.Delivered, e.cargo.Get(0).Status())
	assert.InDelta(t, 97, a.Charge(), 1e-9)
	assert.InDelta(t, 3, a.View().Distance, 1e-9)
	assert.Equal(t, int32(3), a.Node())
	assert.Equal(t, int32(1), e.agents.Metrics().Delivered)
}

func TestStrandedOnEdge(t *testing.T) {
	cfg := withCargo(baseConfig(), [2]int32{1, 3})
	cfg.Agent.MaxCharge = 2.5
	cfg.Agent.LowCharge = 0
	e := newEnv(t, cfg, 2)
	a := e.agents.Get(0)

	for i := 0; i < 20; i++ {
		e.step(t)
		assert.GreaterOrEqual(t, a.Charge(), 0.)
	}
	assert.Equal(t, agent.Stranded, a.Status())
	assert.Equal(t, 0., a.Charge())
	assert.Equal(t, cargo.InTransit, e.cargo.Get(0).Status())

	v := a.View()
	edge := e.net.EdgeBetween(2, 3)
	assert.Equal(t, edge.ID, v.Edge)
	assert.InDelta(t, 0.5, v.Progress, 1e-9)
	assert.InDelta(t, 2.5, v.Position.X(), 1e-9)
	onEdge, ok := e.traffic.EdgeOf(0)
	assert.True(t, ok)
	assert.Equal(t, edge.ID, onEdge)
	assert.Equal(t, int32(1), e.agents.Metrics().Stranded)
	assert.Equal(t, agent.Nothing, a.Intent().Kind)
}

func TestEdgeCapacityContention(t *testing.T) {
	cfg := withCargo(baseConfig(), [2]int32{2, 3}, [2]int32{2, 3})
	cfg.Agent.Count = 2
	cfg.Agent.Start = []config.Coordinate{{0, 0}, {0, 0}}
	cfg.Agent.Speed = 0.5
	e := newEnv(t, cfg, 1)

	e.step(t)
	// 距离相同，ID小的货物分给ID小的车辆
	assert.Equal(t, int32(0), e.agents.Get(0).Cargo())
	assert.Equal(t, int32(1), e.agents.Get(1).Cargo())

	for i := 0; i < 40; i++ {
		e.step(t)
	}
	assert.Equal(t, cargo.Counts{Delivered: 2}, e.cargo.Counts())
	assert.Positive(t, e.agents.Get(1).View().WaitTicks)
	assert.Positive(t, e.agents.Metrics().ContentionWaits)
	assert.Equal(t, int32(2), e.agents.StatusCounts()[agent.Idle])
}

func TestBlockedWithoutDetourKeepsWaiting(t *testing.T) {
	cfg := withCargo(baseConfig(), [2]int32{3, 2}, [2]int32{3, 2})
	cfg.Agent.Count = 2
	cfg.Agent.Start = []config.Coordinate{{0, 0}, {0, 0}}
	cfg.Agent.MaxCharge = 0.5
	cfg.Agent.LowCharge = 0
	cfg.Agent.RouteRetryLimit = 2
	e := newEnv(t, cfg, 1)
	blocker, a := e.agents.Get(0), e.agents.Get(1)

	e.step(t)
	e.step(t)
	e.step(t)
	// 车辆0在0->1上耗尽电量，车辆1被堵在节点0
	assert.Equal(t, agent.Stranded, blocker.Status())
	assert.Equal(t, int32(1), a.View().Blocked)
	e.step(t)
	assert.Equal(t, int32(2), a.View().Blocked)

	// 直线上没有绕行路径，寻路失败后继续等待
	e.step(t)
	assert.Equal(t, agent.RouteFailed, a.Intent().Kind)
	assert.Equal(t, agent.EnRoute, a.Status())
	assert.Equal(t, int32(0), a.View().Blocked)
	for i := 0; i < 3; i++ {
		e.step(t)
	}
	v := a.View()
	assert.Equal(t, agent.RouteFailed, a.Intent().Kind)
	assert.Equal(t, int32(0), v.Node)
	assert.Equal(t, int32(-1), v.Edge)
	assert.Equal(t, int32(6), v.WaitTicks)
	assert.Equal(t, 0.5, v.Charge)
	m := e.agents.Metrics()
	assert.Equal(t, int32(2), m.NoPath)
	assert.Equal(t, int32(0), m.Reroutes)
}

func TestChargeUntilResume(t *testing.T) {
	cfg := baseConfig()
	cfg.Agent.MaxCharge = 10
	cfg.Agent.InitialChargeMin = 0.1
	cfg.Agent.InitialChargeMax = 0.1
	cfg.Agent.ChargeRate = 4
	cfg.Charger.Positions = []config.Coordinate{{0, 0}}
	e := newEnv(t, cfg, 2)
	a := e.agents.Get(0)

	e.step(t)
	assert.Equal(t, agent.Charging, a.Status())
	assert.True(t, e.chargers.IsOccupant(0, 0))
	e.step(t)
	assert.InDelta(t, 5, a.Charge(), 1e-9)
	e.step(t)
	assert.InDelta(t, 9, a.Charge(), 1e-9)
	assert.Equal(t, agent.Idle, a.Status())
	assert.False(t, e.chargers.IsOccupant(0, 0))
}

func TestSeekCharger(t *testing.T) {
	cfg := baseConfig()
	cfg.Agent.MaxCharge = 10
	cfg.Agent.InitialChargeMin = 0.25
	cfg.Agent.InitialChargeMax = 0.25
	cfg.Agent.Consumption = 0.5
	cfg.Charger.Positions = []config.Coordinate{{3, 0}}
	e := newEnv(t, cfg, 2)
	a := e.agents.Get(0)

	e.step(t)
	assert.Equal(t, agent.SeekCharge, a.Intent().Kind)
	assert.Equal(t, []int32{0, 1, 2, 3}, a.View().Route)
	assert.Equal(t, agent.Recharge, a.View().Goal)

	last := a.Charge()
	charged := false
	for i := 0; i < 10; i++ {
		e.step(t)
		if a.Status() == agent.Charging {
			charged = true
			assert.Equal(t, int32(3), a.Node())
			assert.GreaterOrEqual(t, a.Charge(), last)
		}
		last = a.Charge()
	}
	assert.True(t, charged)
	assert.Equal(t, agent.Idle, a.Status())
	assert.GreaterOrEqual(t, a.Charge(), 9.)
}

func TestReleaseAfterRouteRetries(t *testing.T) {
	cfg := withCargo(baseConfig(), [2]int32{3, 2})
	cfg.WorldModel.Prior = config.PriorNone
	cfg.Agent.PerceptionRadius = 0
	cfg.Agent.RouteRetryLimit = 2
	e := newEnv(t, cfg, 2)
	a := e.agents.Get(0)

	e.step(t)
	assert.Equal(t, agent.Assigned, a.Status())
	e.step(t)
	assert.Equal(t, agent.RouteFailed, a.Intent().Kind)
	assert.Equal(t, int32(1), a.View().Retries)
	e.step(t)
	assert.Equal(t, agent.Release, a.Intent().Kind)
	assert.Equal(t, agent.Idle, a.Status())
	assert.Equal(t, cargo.Waiting, e.cargo.Get(0).Status())

	wm, err := e.agents.WorldModelView(0)
	require.NoError(t, err)
	assert.Equal(t, 2, wm.Counts.Nodes)
	_, err = e.agents.WorldModelView(5)
	assert.Error(t, err)

	// 放弃后不再分配同一件货物，车辆漫游寻找货物
	e.step(t)
	assert.Equal(t, agent.RequestCargo, a.Intent().Kind)
	assert.Equal(t, agent.EnRoute, a.Status())
	assert.Equal(t, agent.Explore, a.View().Goal)
	assert.Equal(t, []int32{0, 1}, a.View().Route)
	assert.Equal(t, cargo.Waiting, e.cargo.Get(0).Status())
	e.step(t)
	assert.Equal(t, agent.Idle, a.Status())
	assert.Equal(t, int32(1), a.Node())

	// 直线上不走回头路：1->2->3，在3看到货物后重新匹配、取货、送到2
	for i := 0; i < 9; i++ {
		e.step(t)
	}
	assert.Equal(t, cargo.Delivered, e.cargo.Get(0).Status())
	assert.Equal(t, agent.Idle, a.Status())
	assert.Equal(t, int32(2), a.Node())
	assert.InDelta(t, 4., a.View().Distance, 1e-9)
	m := e.agents.Metrics()
	assert.Equal(t, int32(1), m.Delivered)
	assert.Equal(t, int32(1), m.Released)
	assert.Equal(t, int32(1), m.NoPath)
	assert.Equal(t, int32(3), m.Explorations)
}

func TestIdleWithoutWaitingCargoStays(t *testing.T) {
	cfg := baseConfig()
	cfg.WorldModel.Prior = config.PriorNone
	e := newEnv(t, cfg, 2)
	a := e.agents.Get(0)
	for i := 0; i < 5; i++ {
		e.step(t)
	}
	assert.Equal(t, agent.Idle, a.Status())
	assert.Equal(t, int32(0), a.Node())
	assert.Equal(t, int32(0), e.agents.Metrics().Explorations)
}

func TestInitRejectsOffNetworkStart(t *testing.T) {
	cfg := baseConfig()
	cfg.Agent.Start = []config.Coordinate{{0, 5}}
	rc, err := config.NewRuntimeConfig(cfg)
	require.NoError(t, err)
	e := newEnv(t, baseConfig(), 2)
	e.rc = rc
	m := agent.NewManager(e)
	var ce *config.ConfigurationError
	assert.ErrorAs(t, m.Init(randengine.New(1), nil), &ce)
}
