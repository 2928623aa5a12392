package cargo

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tsinghua-fib-lab/sossim-go/clock"
	"github.com/tsinghua-fib-lab/sossim-go/entity"
	"github.com/tsinghua-fib-lab/sossim-go/entity/roadnet"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
	"github.com/tsinghua-fib-lab/sossim-go/utils/container"
	"github.com/tsinghua-fib-lab/sossim-go/utils/randengine"
)

var (
	// ErrInvalidTransition 非法的货物状态转移
	ErrInvalidTransition = errors.New("invalid cargo transition")
	// ErrAlreadyDelivered 重复送达
	ErrAlreadyDelivered = errors.New("cargo already delivered")
	// ErrWrongAgent 操作货物的车辆不是负责车辆
	ErrWrongAgent = errors.New("cargo held by another agent")
)

// Counts 各状态的货物数量
type Counts struct {
	Waiting   int32 `json:"waiting"`
	Assigned  int32 `json:"assigned"`
	InTransit int32 `json:"in_transit"`
	Delivered int32 `json:"delivered"`
}

// Registry 货物与目的地登记表
// 功能：货物生命周期的唯一写入者，为空闲车辆匹配货物
// 说明：
// 1. 修改方法只由调度器在提交阶段串行调用，避免重复分配
// 2. 等待中的货物放在增量数组中，新生成或被放弃的货物从下一步开始可被匹配
// 3. 已送达的货物保留，用于统计
type Registry struct {
	net   *roadnet.Network
	clock *clock.Clock
	cfg   config.Cargo
	rng   *randengine.Engine

	cargo   []*Cargo                             // 下标即ID
	pending *container.IncrementalArray[*Cargo] // 等待中的货物

	snapshot map[int32][]entity.CargoInfo // 节点ID -> 等待中的货物
}

// NewRegistry 创建货物登记表
func NewRegistry(net *roadnet.Network, clk *clock.Clock) *Registry {
	return &Registry{
		net:      net,
		clock:    clk,
		pending:  container.NewIncrementalArray[*Cargo](),
		snapshot: make(map[int32][]entity.CargoInfo),
	}
}

// Init 生成初始货物
// 功能：先登记配置中指定的货物，再在目的地节点之间随机生成cargo.count件
// 参数：cfg-货物配置，rng-随机数引擎（之后的周期生成也使用它）
// 返回：指定的起终点不在路网上时返回*config.ConfigurationError
func (r *Registry) Init(cfg config.Cargo, rng *randengine.Engine) error {
	r.cfg = cfg
	r.rng = rng
	for i, spec := range cfg.Initial {
		o := r.net.NodeAt(spec.Origin.X(), spec.Origin.Y())
		d := r.net.NodeAt(spec.Destination.X(), spec.Destination.Y())
		if o == nil || d == nil {
			return config.NewConfigurationError(fmt.Sprintf("cargo.initial[%d]", i), spec, "origin and destination must be road cells")
		}
		if _, err := r.Register(o.ID, d.ID); err != nil {
			return err
		}
	}
	r.spawn(cfg.Count)
	log.Infof("cargo registry initialized with %d cargo", len(r.cargo))
	return nil
}

// endpoints 随机货物起终点的候选节点
func (r *Registry) endpoints() []int32 {
	if dest := r.net.Destinations(); len(dest) >= 2 {
		return dest
	}
	ids := make([]int32, 0, len(r.net.Nodes()))
	for _, n := range r.net.Nodes() {
		ids = append(ids, n.ID)
	}
	return ids
}

func (r *Registry) spawn(count int32) {
	candidates := r.endpoints()
	for i := int32(0); i < count; i++ {
		o := r.rng.Intn(len(candidates))
		d := r.rng.Intn(len(candidates) - 1)
		if d >= o {
			d++
		}
		if _, err := r.Register(candidates[o], candidates[d]); err != nil {
			log.Panicf("register random cargo: %v", err)
		}
	}
}

// Spawn 周期生成货物
// 说明：每spawn_interval步生成spawn_count件，在提交阶段调用
func (r *Registry) Spawn(tick int32) {
	if tick <= 0 || r.cfg.SpawnInterval <= 0 || r.cfg.SpawnCount <= 0 || tick%r.cfg.SpawnInterval != 0 {
		return
	}
	r.spawn(r.cfg.SpawnCount)
}

// Register 登记货物
// 参数：origin,destination-起终点节点ID
// 返回：货物ID，起终点不存在或相同时返回错误
func (r *Registry) Register(origin, destination int32) (int32, error) {
	if r.net.Node(origin) == nil {
		return -1, fmt.Errorf("no node %d for cargo origin", origin)
	}
	if r.net.Node(destination) == nil {
		return -1, fmt.Errorf("no node %d for cargo destination", destination)
	}
	if origin == destination {
		return -1, fmt.Errorf("cargo origin and destination are both %d", origin)
	}
	c := newCargo(int32(len(r.cargo)), origin, destination, r.clock.Tick())
	r.cargo = append(r.cargo, c)
	r.pending.Add(c)
	log.Debugf("register %v", c)
	return c.id, nil
}

// Get 输入货物ID，查找货物，如果不存在则panic
func (r *Registry) Get(id int32) *Cargo {
	c, err := r.GetOrError(id)
	if err != nil {
		log.Panicf("%v", err)
	}
	return c
}

// GetOrError 输入货物ID，查找货物，如果不存在则返回error
func (r *Registry) GetOrError(id int32) (*Cargo, error) {
	if id < 0 || int(id) >= len(r.cargo) {
		return nil, fmt.Errorf("no id %d in cargo data", id)
	}
	return r.cargo[id], nil
}

// Info 货物信息
func (r *Registry) Info(id int32) (entity.CargoInfo, bool) {
	c, err := r.GetOrError(id)
	if err != nil {
		return entity.CargoInfo{}, false
	}
	return c.Info(), true
}

// Match 匹配货物
// 功能：为位于node的空闲车辆找到最近的等待货物
// 返回：货物信息，没有可匹配货物时返回false
// 算法说明：
// 1. 候选为当前可见的等待中货物，跳过该车辆放弃过的货物
// 2. 按起点到node的欧氏距离最小选取，距离相同取ID最小
func (r *Registry) Match(agent, node int32) (entity.CargoInfo, bool) {
	return r.nearest(node, r.pending.Data(), func(c *Cargo) bool {
		_, ok := c.released[agent]
		return !ok
	})
}

// MatchKnown 在车辆亲眼看到的货物中匹配
// 功能：从ids中选出仍在等待、起点离node最近的货物（距离相同取ID最小）
// 说明：车辆放弃过的货物重新被看到后可以再次匹配
func (r *Registry) MatchKnown(node int32, ids []int32) (entity.CargoInfo, bool) {
	candidates := make([]*Cargo, 0, len(ids))
	for _, id := range ids {
		if c, err := r.GetOrError(id); err == nil {
			candidates = append(candidates, c)
		}
	}
	return r.nearest(node, candidates, func(*Cargo) bool { return true })
}

func (r *Registry) nearest(node int32, candidates []*Cargo, accept func(*Cargo) bool) (entity.CargoInfo, bool) {
	var best *Cargo
	bestDist := 0.
	for _, c := range candidates {
		if c.status != Waiting || !accept(c) {
			continue
		}
		d := r.net.Distance(node, c.origin)
		if best == nil || d < bestDist || (d == bestDist && c.id < best.id) {
			best, bestDist = c, d
		}
	}
	if best == nil {
		return entity.CargoInfo{}, false
	}
	return best.Info(), true
}

// Waiting 当前等待中的货物数
func (r *Registry) Waiting() int32 {
	return r.Counts().Waiting
}

// Assign 将货物分配给车辆
func (r *Registry) Assign(id, agent int32) error {
	c, err := r.GetOrError(id)
	if err != nil {
		return err
	}
	if err := c.transit(Assigned, r.clock.Tick()); err != nil {
		return err
	}
	c.agent = agent
	r.pending.Remove(c)
	log.Debugf("assign cargo %d to agent %d", id, agent)
	return nil
}

// Release 车辆放弃尚未取走的货物，货物重新等待分配
func (r *Registry) Release(id, agent int32) error {
	c, err := r.GetOrError(id)
	if err != nil {
		return err
	}
	if c.status == Assigned && c.agent != agent {
		return fmt.Errorf("cargo %d: %w %d", id, ErrWrongAgent, c.agent)
	}
	if err := c.transit(Waiting, r.clock.Tick()); err != nil {
		return err
	}
	c.agent = -1
	c.released[agent] = struct{}{}
	r.pending.Add(c)
	log.Infof("agent %d released cargo %d", agent, id)
	return nil
}

// PickUp 车辆取货
func (r *Registry) PickUp(id, agent int32) error {
	c, err := r.GetOrError(id)
	if err != nil {
		return err
	}
	if c.agent != agent {
		return fmt.Errorf("cargo %d: %w %d", id, ErrWrongAgent, c.agent)
	}
	return c.transit(InTransit, r.clock.Tick())
}

// MarkDelivered 货物送达，每件货物至多一次
func (r *Registry) MarkDelivered(id, agent int32) error {
	c, err := r.GetOrError(id)
	if err != nil {
		return err
	}
	if c.status == Delivered {
		return fmt.Errorf("cargo %d: %w", id, ErrAlreadyDelivered)
	}
	if c.agent != agent {
		return fmt.Errorf("cargo %d: %w %d", id, ErrWrongAgent, c.agent)
	}
	if err := c.transit(Delivered, r.clock.Tick()); err != nil {
		return err
	}
	log.Debugf("cargo %d delivered by agent %d", id, agent)
	return nil
}

// Prepare 准备阶段
// 功能：使本步之前的增删生效，并发布等待中货物的快照
func (r *Registry) Prepare() {
	r.pending.Prepare()
	snapshot := make(map[int32][]entity.CargoInfo)
	for _, c := range r.pending.Data() {
		snapshot[c.origin] = append(snapshot[c.origin], c.Info())
	}
	for _, cs := range snapshot {
		sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
	}
	r.snapshot = snapshot
}

// SnapshotWaitingAt 快照中在节点等待的货物
func (r *Registry) SnapshotWaitingAt(node int32) []entity.CargoInfo {
	return r.snapshot[node]
}

// Counts 当前各状态货物数量
func (r *Registry) Counts() Counts {
	var c Counts
	for _, x := range r.cargo {
		switch x.status {
		case Waiting:
			c.Waiting++
		case Assigned:
			c.Assigned++
		case InTransit:
			c.InTransit++
		case Delivered:
			c.Delivered++
		}
	}
	return c
}

// Len 货物总数（含已送达）
func (r *Registry) Len() int {
	return len(r.cargo)
}

// Views 所有货物的只读副本，按ID排序
func (r *Registry) Views() []View {
	res := make([]View, len(r.cargo))
	for i, c := range r.cargo {
		res[i] = c.View()
	}
	return res
}
