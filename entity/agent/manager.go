package agent

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/sossim-go/entity"
	"github.com/tsinghua-fib-lab/sossim-go/entity/agent/worldmodel"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
	"github.com/tsinghua-fib-lab/sossim-go/utils/randengine"
	"golang.org/x/sync/errgroup"
)

// GlobalRuntime 全局运行时数据结构
// 功能：累计所有车辆的送达、耗尽、放弃、寻路失败、冲突等待次数与总行驶距离
type GlobalRuntime struct {
	Delivered       int32   `json:"delivered"`        // 送达的货物
	Stranded        int32   `json:"stranded"`         // 电量耗尽的车辆
	Released        int32   `json:"released"`         // 放弃的货物
	NoPath          int32   `json:"no_path"`          // 寻路失败次数
	ContentionWaits int32   `json:"contention_waits"` // 路段或充电位冲突等待次数
	Reroutes        int32   `json:"reroutes"`         // 绕开拥堵路段重新规划的次数
	Explorations    int32   `json:"explorations"`     // 为寻找货物随机漫游的次数
	Distance        float64 `json:"distance"`         // 总行驶距离
}

// Manager 车辆管理器
// 功能：创建车辆，驱动决策阶段（可并发）与提交阶段（按ID串行）
type Manager struct {
	ctx entity.ITaskContext

	agents []*Agent // 下标即ID

	snapshot, runtime GlobalRuntime
}

// NewManager 创建车辆管理器
func NewManager(ctx entity.ITaskContext) *Manager {
	return &Manager{ctx: ctx}
}

// Init 初始化所有车辆
// 功能：按agent.start放置车辆，其余车辆随机放在路网节点上，初始电量在配置区间内均匀抽取，
// 每辆车派生一个独立的漫游随机数引擎
// 参数：rng-随机数引擎，chargers-充电桩信息（用于世界模型先验）
// 返回：指定位置不是路网节点时返回*config.ConfigurationError
func (m *Manager) Init(rng *randengine.Engine, chargers []entity.ChargerInfo) error {
	cfg := &m.ctx.RuntimeConfig().C
	net := m.ctx.Network()
	nodes := net.Nodes()
	m.agents = make([]*Agent, 0, cfg.Agent.Count)
	for i := int32(0); i < cfg.Agent.Count; i++ {
		var node int32
		if int(i) < len(cfg.Agent.Start) {
			p := cfg.Agent.Start[i]
			n := net.NodeAt(p.X(), p.Y())
			if n == nil {
				return config.NewConfigurationError(fmt.Sprintf("agent.start[%d]", i), p, "must be a road cell")
			}
			node = n.ID
		} else {
			node = nodes[rng.Intn(len(nodes))].ID
		}
		charge := rng.Uniform(cfg.Agent.InitialChargeMin, cfg.Agent.InitialChargeMax) * cfg.Agent.MaxCharge
		wm := worldmodel.New(net, cfg.WorldModel.Staleness, cfg.WorldModel.Prior, chargers)
		m.agents = append(m.agents, newAgent(m.ctx, m, i, node, charge, wm))
	}
	// 放置完成后再派生，不改变上面的抽样结果
	for _, a := range m.agents {
		a.rng = rng.Fork(uint64(a.id))
	}
	log.Infof("agent manager initialized with %d agents", len(m.agents))
	return nil
}

// Get 输入车辆ID，查找车辆，如果不存在则panic
func (m *Manager) Get(id int32) *Agent {
	a, err := m.GetOrError(id)
	if err != nil {
		log.Panicf("%v", err)
	}
	return a
}

// GetOrError 输入车辆ID，查找车辆，如果不存在则返回error
func (m *Manager) GetOrError(id int32) (*Agent, error) {
	if id < 0 || int(id) >= len(m.agents) {
		return nil, fmt.Errorf("no id %d in agent data", id)
	}
	return m.agents[id], nil
}

// Agents 所有车辆（按ID排序）
func (m *Manager) Agents() []*Agent {
	return m.agents
}

// Prepare 准备阶段：发布车辆状态与全局统计快照
func (m *Manager) Prepare() {
	for _, a := range m.agents {
		a.prepare()
	}
	m.snapshot = m.runtime
}

// Decide 决策阶段
// 功能：所有车辆并发感知与决策
// 参数：workers-并发数，1为串行
// 说明：决策只读快照、只写车辆私有数据，结果与并发数无关
func (m *Manager) Decide(workers int) {
	if workers <= 1 {
		for _, a := range m.agents {
			a.decide()
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, a := range m.agents {
		g.Go(func() error {
			a.decide()
			return nil
		})
	}
	_ = g.Wait()
}

// Commit 提交阶段
// 功能：按车辆ID升序执行意图，先提交者先占用路段与充电位
// 返回：共享资源拒绝操作时返回错误，表示仿真状态已不一致
func (m *Manager) Commit() error {
	for _, a := range m.agents {
		if err := a.commit(); err != nil {
			return fmt.Errorf("commit agent %d intent %v: %w", a.id, a.intent, err)
		}
	}
	return nil
}

// Metrics 当前全局统计
func (m *Manager) Metrics() GlobalRuntime {
	return m.runtime
}

// StatusCounts 各状态车辆数
func (m *Manager) StatusCounts() map[Status]int32 {
	return lo.MapValues(lo.GroupBy(m.agents, func(a *Agent) Status { return a.runtime.Status }),
		func(as []*Agent, _ Status) int32 { return int32(len(as)) })
}

// Views 所有车辆的只读副本
func (m *Manager) Views() []View {
	return lo.Map(m.agents, func(a *Agent, _ int) View { return a.View() })
}

// WorldModelView 车辆世界模型的只读副本
func (m *Manager) WorldModelView(id int32) (worldmodel.View, error) {
	a, err := m.GetOrError(id)
	if err != nil {
		return worldmodel.View{}, err
	}
	return a.wm.View(), nil
}
