package charger

import (
	"fmt"
	"sort"

	"github.com/tsinghua-fib-lab/sossim-go/clock"
	"github.com/tsinghua-fib-lab/sossim-go/entity"
	"github.com/tsinghua-fib-lab/sossim-go/entity/roadnet"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
	"github.com/tsinghua-fib-lab/sossim-go/utils/randengine"
)

// Manager 充电桩管理器
type Manager struct {
	clock    *clock.Clock
	chargers []*Charger         // 下标即ID，按节点ID排序
	byNode   map[int32]*Charger // 节点ID -> 充电桩
}

// NewManager 创建充电桩管理器
func NewManager(clk *clock.Clock) *Manager {
	return &Manager{
		clock:  clk,
		byNode: make(map[int32]*Charger),
	}
}

// Init 放置充电桩
// 功能：优先使用charger.positions指定的位置，否则在目的地节点中随机选取charger.count个
// 返回：位置不在路网上或节点不足时返回*config.ConfigurationError
func (m *Manager) Init(cfg config.Charger, net *roadnet.Network, rng *randengine.Engine) error {
	var nodes []int32
	if len(cfg.Positions) > 0 {
		for i, p := range cfg.Positions {
			n := net.NodeAt(p.X(), p.Y())
			if n == nil {
				return config.NewConfigurationError(fmt.Sprintf("charger.positions[%d]", i), p, "must be a road cell")
			}
			nodes = append(nodes, n.ID)
		}
	} else if cfg.Count > 0 {
		candidates := net.Destinations()
		if int(cfg.Count) > len(candidates) {
			candidates = candidates[:0:0]
			for _, n := range net.Nodes() {
				candidates = append(candidates, n.ID)
			}
		}
		if int(cfg.Count) > len(candidates) {
			return config.NewConfigurationError("charger.count", cfg.Count,
				fmt.Sprintf("at most %d charging points fit the road network", len(candidates)))
		}
		for _, i := range rng.Perm(len(candidates))[:cfg.Count] {
			nodes = append(nodes, candidates[i])
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	for _, node := range nodes {
		c := newCharger(int32(len(m.chargers)), node, cfg.Capacity)
		m.chargers = append(m.chargers, c)
		m.byNode[node] = c
	}
	log.Infof("placed %d charging points", len(m.chargers))
	return nil
}

// Get 输入充电桩ID，查找充电桩，如果不存在则panic
func (m *Manager) Get(id int32) *Charger {
	c, err := m.GetOrError(id)
	if err != nil {
		log.Panicf("%v", err)
	}
	return c
}

// GetOrError 输入充电桩ID，查找充电桩，如果不存在则返回error
func (m *Manager) GetOrError(id int32) (*Charger, error) {
	if id < 0 || int(id) >= len(m.chargers) {
		return nil, fmt.Errorf("no id %d in charger data", id)
	}
	return m.chargers[id], nil
}

func (m *Manager) atNode(node int32) (*Charger, error) {
	c, ok := m.byNode[node]
	if !ok {
		return nil, fmt.Errorf("no charging point at node %d", node)
	}
	return c, nil
}

// Chargers 所有充电桩（按ID排序）
func (m *Manager) Chargers() []*Charger {
	return m.chargers
}

// Request 在节点上的充电桩申请充电位
func (m *Manager) Request(node, agent int32) (bool, error) {
	c, err := m.atNode(node)
	if err != nil {
		return false, err
	}
	granted := c.request(agent, m.clock.Tick())
	if !granted {
		log.Debugf("agent %d queued at %v", agent, c)
	}
	return granted, nil
}

// Release 释放充电位
func (m *Manager) Release(node, agent int32) (int32, bool, error) {
	c, err := m.atNode(node)
	if err != nil {
		return -1, false, err
	}
	promoted, ok, err := c.release(agent)
	if ok {
		log.Debugf("agent %d promoted at %v", promoted, c)
	}
	return promoted, ok, err
}

// IsOccupant 车辆是否占用节点上充电桩的充电位
func (m *Manager) IsOccupant(node, agent int32) bool {
	c, ok := m.byNode[node]
	return ok && c.isOccupant(agent)
}

// Prepare 准备阶段，发布占用快照
func (m *Manager) Prepare() {
	for _, c := range m.chargers {
		c.prepare()
	}
}

// SnapshotAt 快照中节点上的充电桩
func (m *Manager) SnapshotAt(node int32) (entity.ChargerInfo, bool) {
	c, ok := m.byNode[node]
	if !ok {
		return entity.ChargerInfo{}, false
	}
	return c.snapshot, true
}

// SnapshotAll 所有充电桩的快照
func (m *Manager) SnapshotAll() []entity.ChargerInfo {
	res := make([]entity.ChargerInfo, len(m.chargers))
	for i, c := range m.chargers {
		res[i] = c.snapshot
	}
	return res
}

// CheckInvariants 检查所有充电桩的占用不超过容量
func (m *Manager) CheckInvariants() error {
	for _, c := range m.chargers {
		if int32(len(c.occupants)) > c.capacity {
			return fmt.Errorf("%v exceeds capacity", c)
		}
	}
	return nil
}

// Views 所有充电桩的只读副本
func (m *Manager) Views() []View {
	res := make([]View, len(m.chargers))
	for i, c := range m.chargers {
		res[i] = c.View()
	}
	return res
}
