package task

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tsinghua-fib-lab/sossim-go/clock"
	"github.com/tsinghua-fib-lab/sossim-go/entity"
	"github.com/tsinghua-fib-lab/sossim-go/entity/agent"
	"github.com/tsinghua-fib-lab/sossim-go/entity/agent/worldmodel"
	"github.com/tsinghua-fib-lab/sossim-go/entity/cargo"
	"github.com/tsinghua-fib-lab/sossim-go/entity/charger"
	"github.com/tsinghua-fib-lab/sossim-go/entity/roadnet"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
	"github.com/tsinghua-fib-lab/sossim-go/utils/randengine"
)

var (
	// ErrInvalidTickCount Run的步数不是正数
	ErrInvalidTickCount = errors.New("tick count must be positive")
	// ErrStopped 仿真已停止
	ErrStopped = errors.New("simulation stopped")
	// ErrTickLimitReached 已到达步数上限
	ErrTickLimitReached = errors.New("tick limit reached")
	// ErrUnknownAgent 车辆不存在
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrUnknownCargo 货物不存在
	ErrUnknownCargo = errors.New("unknown cargo")
)

// 派生随机数子引擎的偏移量
const (
	saltNetwork uint64 = iota + 1
	saltCharger
	saltCargo
	saltAgent
)

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态，同时作为调度器驱动两阶段步进
// 说明：
// 1. 所有组件在NewContext中一次性创建，配置错误时不产生任何部分状态
// 2. Step/Run由stepMu串行化；已发布的快照由stateMu保护，可被任意协程读取
type Context struct {
	// 时钟
	clock *clock.Clock
	// 运行时配置
	runtimeConfig *config.RuntimeConfig

	// 路网
	network *roadnet.Network
	// 空间索引
	spatialIndex *roadnet.SpatialIndex
	// 路段占用
	traffic *roadnet.Traffic

	// 货物登记表
	cargoRegistry *cargo.Registry
	// 充电桩管理器
	chargerManager *charger.Manager
	// 车辆管理器
	agentManager *agent.Manager

	// 停止指令
	stopped atomic.Bool
	stepMu  sync.Mutex

	stateMu sync.RWMutex
	state   *Snapshot
	// 快照中不随时间变化的路网部分
	staticNetwork NetworkState

	observerMu sync.Mutex
	observers  []Observer
}

// NewContext 创建新的仿真任务上下文
// 功能：校验配置，按种子生成路网并放置充电桩、货物与车辆，发布第0步快照
// 参数：c-配置
// 返回：初始化完成的Context实例；配置不合法或路网无法生成时返回*config.ConfigurationError
// 算法说明：
// 1. 校验全部配置项
// 2. 由种子派生路网、充电桩、货物、车辆各自的随机数引擎
// 3. 依次创建路网（含连通性检查）、空间索引、路段占用、充电桩、货物、车辆
// 4. 发布第0步快照
func NewContext(c config.Config) (*Context, error) {
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		return nil, err
	}
	c = rc.C
	rng := randengine.New(c.Control.Seed)
	netRng, chargerRng, cargoRng, agentRng := rng.Fork(saltNetwork), rng.Fork(saltCharger), rng.Fork(saltCargo), rng.Fork(saltAgent)

	ctx := &Context{runtimeConfig: rc}
	ctx.clock = clock.New(c.Control.Step)
	if ctx.network, err = roadnet.Generate(c.Network, netRng); err != nil {
		return nil, err
	}
	ctx.spatialIndex = roadnet.NewSpatialIndex(ctx.network)
	ctx.traffic = roadnet.NewTraffic(ctx.network)

	ctx.chargerManager = charger.NewManager(ctx.clock)
	if err := ctx.chargerManager.Init(c.Charger, ctx.network, chargerRng); err != nil {
		return nil, err
	}
	ctx.cargoRegistry = cargo.NewRegistry(ctx.network, ctx.clock)
	if err := ctx.cargoRegistry.Init(c.Cargo, cargoRng); err != nil {
		return nil, err
	}
	ctx.agentManager = agent.NewManager(ctx)
	if err := ctx.agentManager.Init(agentRng, ctx.chargerManager.SnapshotAll()); err != nil {
		return nil, err
	}

	ctx.staticNetwork = newNetworkState(ctx.network)
	ctx.publish(ctx.buildSnapshot())
	log.Infof("Node: %v", len(ctx.network.Nodes()))
	log.Infof("Edge: %v", len(ctx.network.Edges()))
	log.Infof("Charger: %v", len(ctx.chargerManager.Chargers()))
	log.Infof("Cargo: %v", ctx.cargoRegistry.Len())
	log.Infof("Agent: %v", len(ctx.agentManager.Agents()))
	return ctx, nil
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) Network() *roadnet.Network {
	return ctx.network
}

func (ctx *Context) SpatialIndex() *roadnet.SpatialIndex {
	return ctx.spatialIndex
}

func (ctx *Context) Traffic() *roadnet.Traffic {
	return ctx.traffic
}

func (ctx *Context) CargoRegistry() entity.ICargoRegistry {
	return ctx.cargoRegistry
}

func (ctx *Context) ChargerManager() entity.IChargerManager {
	return ctx.chargerManager
}

// Config 配置副本
func (ctx *Context) Config() config.Config {
	c := ctx.runtimeConfig.C
	c.Agent.Start = append([]config.Coordinate(nil), c.Agent.Start...)
	c.Cargo.Initial = append([]config.CargoSpec(nil), c.Cargo.Initial...)
	c.Charger.Positions = append([]config.Coordinate(nil), c.Charger.Positions...)
	return c
}

// AgentView 车辆的只读副本
func (ctx *Context) AgentView(id int32) (agent.View, error) {
	ctx.stepMu.Lock()
	defer ctx.stepMu.Unlock()
	a, err := ctx.agentManager.GetOrError(id)
	if err != nil {
		return agent.View{}, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return a.View(), nil
}

// WorldModelView 车辆世界模型的只读副本
func (ctx *Context) WorldModelView(id int32) (worldmodel.View, error) {
	ctx.stepMu.Lock()
	defer ctx.stepMu.Unlock()
	v, err := ctx.agentManager.WorldModelView(id)
	if err != nil {
		return worldmodel.View{}, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return v, nil
}

// CargoView 货物的只读副本
func (ctx *Context) CargoView(id int32) (cargo.View, error) {
	ctx.stepMu.Lock()
	defer ctx.stepMu.Unlock()
	c, err := ctx.cargoRegistry.GetOrError(id)
	if err != nil {
		return cargo.View{}, fmt.Errorf("%w: %d", ErrUnknownCargo, id)
	}
	return c.View(), nil
}
