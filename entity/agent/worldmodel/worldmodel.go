// 车辆私有的世界模型：车辆对路网、充电桩、货物的有限且可能过时的认知
package worldmodel

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/tsinghua-fib-lab/sossim-go/entity"
	"github.com/tsinghua-fib-lab/sossim-go/entity/roadnet"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
)

// Freshness 认知元素的新鲜度
type Freshness struct {
	LastSeen int32 `json:"last_seen"` // 最近一次感知到的步数
	Stale    bool  `json:"stale"`     // 是否已过期
}

func (f *Freshness) see(tick int32) {
	f.LastSeen = tick
	f.Stale = false
}

func (f *Freshness) refresh(tick, staleness int32) {
	if tick-f.LastSeen > staleness {
		f.Stale = true
	}
}

// KnownNode 已知节点
type KnownNode struct {
	ID          int32     `json:"id"`
	Point       orb.Point `json:"point"`
	Destination bool      `json:"destination"`
	Freshness
}

// KnownEdge 已知路段，拓扑属性来自真实路网，占用为感知时的值
type KnownEdge struct {
	ID       int32             `json:"id"`
	From     int32             `json:"from"`
	To       int32             `json:"to"`
	Length   float64           `json:"length"`
	Class    roadnet.RoadClass `json:"class"`
	Capacity int32             `json:"capacity"`
	Observed int32             `json:"observed"` // 感知到的车辆数
	Freshness
}

// Occupancy 用于代价计算的车辆数，过期时视为未知（0）
func (e *KnownEdge) Occupancy() int32 {
	if e.Stale {
		return 0
	}
	return e.Observed
}

// KnownCharger 已知充电桩
type KnownCharger struct {
	entity.ChargerInfo
	Freshness
}

// KnownCargo 已知的等待中货物
type KnownCargo struct {
	entity.CargoInfo
	Freshness
}

// EdgeObservation 一次感知中看到的路段及其车辆数
type EdgeObservation struct {
	ID        int32
	Occupancy int32
}

// Perception 一次感知的结果
type Perception struct {
	Nodes    []int32
	Edges    []EdgeObservation
	Chargers []entity.ChargerInfo
	Cargo    []entity.CargoInfo
}

// WorldModel 世界模型
// 功能：记录车辆知道的节点、路段、充电桩、等待中货物与目的地，供路径规划使用
// 说明：
// 1. 只通过真实路网的ID加入元素，不会出现真实路网中不存在的拓扑
// 2. 元素只增不删，超过过期窗口未被感知的元素标记为过期
// 3. 只由所属车辆在自己的决策中修改，不需要加锁
type WorldModel struct {
	net       *roadnet.Network
	staleness int32

	nodes    map[int32]*KnownNode
	edges    map[int32]*KnownEdge
	out      map[int32][]*KnownEdge // 节点ID -> 已知出边（按终点ID、路段ID排序）
	chargers map[int32]*KnownCharger
	cargo    map[int32]*KnownCargo
}

// New 创建世界模型
// 功能：按先验知识初始化世界模型，先验元素的LastSeen为0
// 参数：net-真实路网，staleness-过期窗口（步），prior-先验知识none|coarse|full，
// chargers-充电桩位置（先验知识包含位于已知节点上的充电桩）
func New(net *roadnet.Network, staleness int32, prior string, chargers []entity.ChargerInfo) *WorldModel {
	m := &WorldModel{
		net:       net,
		staleness: staleness,
		nodes:     make(map[int32]*KnownNode),
		edges:     make(map[int32]*KnownEdge),
		out:       make(map[int32][]*KnownEdge),
		chargers:  make(map[int32]*KnownCharger),
		cargo:     make(map[int32]*KnownCargo),
	}
	switch prior {
	case config.PriorFull:
		for _, e := range net.Edges() {
			m.addEdge(0, e.ID, 0)
		}
		for _, n := range net.Nodes() {
			m.addNode(0, n.ID)
		}
	case config.PriorCoarse:
		for _, e := range net.CoarseEdges() {
			m.addEdge(0, e.ID, 0)
		}
	}
	for _, c := range chargers {
		if _, ok := m.nodes[c.Node]; ok {
			m.seeCharger(0, c)
		}
	}
	return m
}

func (m *WorldModel) addNode(tick, id int32) {
	if n, ok := m.nodes[id]; ok {
		n.see(tick)
		return
	}
	src := m.net.Node(id)
	if src == nil {
		log.Warnf("perceived node %d is not part of the road network", id)
		return
	}
	m.nodes[id] = &KnownNode{
		ID:          id,
		Point:       src.Point,
		Destination: src.Destination,
		Freshness:   Freshness{LastSeen: tick},
	}
}

func (m *WorldModel) addEdge(tick, id, occupancy int32) {
	if e, ok := m.edges[id]; ok {
		e.see(tick)
		e.Observed = occupancy
		return
	}
	src := m.net.Edge(id)
	if src == nil {
		log.Warnf("perceived edge %d is not part of the road network", id)
		return
	}
	e := &KnownEdge{
		ID:        id,
		From:      src.From,
		To:        src.To,
		Length:    src.Length,
		Class:     src.Class,
		Capacity:  src.Capacity,
		Observed:  occupancy,
		Freshness: Freshness{LastSeen: tick},
	}
	m.edges[id] = e
	// 看到一条路段即知道它连接的两个节点
	m.addNodeIfAbsent(tick, src.From)
	m.addNodeIfAbsent(tick, src.To)
	hops := append(m.out[e.From], e)
	sort.Slice(hops, func(i, j int) bool {
		if hops[i].To != hops[j].To {
			return hops[i].To < hops[j].To
		}
		return hops[i].ID < hops[j].ID
	})
	m.out[e.From] = hops
}

func (m *WorldModel) addNodeIfAbsent(tick, id int32) {
	if _, ok := m.nodes[id]; !ok {
		m.addNode(tick, id)
	}
}

func (m *WorldModel) seeCharger(tick int32, c entity.ChargerInfo) {
	if k, ok := m.chargers[c.ID]; ok {
		k.ChargerInfo = c
		k.see(tick)
		return
	}
	m.chargers[c.ID] = &KnownCharger{ChargerInfo: c, Freshness: Freshness{LastSeen: tick}}
}

// Perceive 合并一次感知结果
// 算法说明：
// 1. 新感知到的节点、路段、充电桩、货物加入模型
// 2. 已知元素刷新LastSeen与动态属性，并清除过期标记
// 3. 起点在本次感知节点上、但本次未看到的已知货物已被取走，标记为过期
func (m *WorldModel) Perceive(tick int32, p Perception) {
	perceived := make(map[int32]struct{}, len(p.Nodes))
	for _, id := range p.Nodes {
		m.addNode(tick, id)
		perceived[id] = struct{}{}
	}
	for _, o := range p.Edges {
		m.addEdge(tick, o.ID, o.Occupancy)
	}
	for _, c := range p.Chargers {
		m.seeCharger(tick, c)
	}
	seen := make(map[int32]struct{}, len(p.Cargo))
	for _, c := range p.Cargo {
		seen[c.ID] = struct{}{}
		if k, ok := m.cargo[c.ID]; ok {
			k.see(tick)
			continue
		}
		m.cargo[c.ID] = &KnownCargo{CargoInfo: c, Freshness: Freshness{LastSeen: tick}}
	}
	for id, c := range m.cargo {
		if _, ok := seen[id]; ok {
			continue
		}
		if _, ok := perceived[c.Origin]; ok {
			c.Stale = true
		}
	}
}

// Refresh 标记超过过期窗口的元素
func (m *WorldModel) Refresh(tick int32) {
	for _, n := range m.nodes {
		n.refresh(tick, m.staleness)
	}
	for _, e := range m.edges {
		e.refresh(tick, m.staleness)
	}
	for _, c := range m.chargers {
		c.refresh(tick, m.staleness)
	}
	for _, c := range m.cargo {
		c.refresh(tick, m.staleness)
	}
}

// Knows 是否知道节点
func (m *WorldModel) Knows(node int32) bool {
	_, ok := m.nodes[node]
	return ok
}

// Node 已知节点，不知道时返回nil
func (m *WorldModel) Node(id int32) *KnownNode {
	return m.nodes[id]
}

// KnownEdge 已知路段，不知道时返回nil
func (m *WorldModel) KnownEdge(id int32) *KnownEdge {
	return m.edges[id]
}

// Neighbors 已知出边，按终点ID、路段ID排序
func (m *WorldModel) Neighbors(node int32) []*KnownEdge {
	return m.out[node]
}

// Chargers 已知充电桩（按ID排序）
func (m *WorldModel) Chargers() []*KnownCharger {
	return sortedValues(m.chargers)
}

// Cargo 已知且未过期的等待中货物（按ID排序）
func (m *WorldModel) Cargo() []*KnownCargo {
	res := make([]*KnownCargo, 0)
	for _, c := range sortedValues(m.cargo) {
		if !c.Stale {
			res = append(res, c)
		}
	}
	return res
}

// Destinations 已知目的地节点ID（升序）
func (m *WorldModel) Destinations() []int32 {
	res := make([]int32, 0)
	for _, n := range sortedValues(m.nodes) {
		if n.Destination {
			res = append(res, n.ID)
		}
	}
	return res
}

// Counts 各类已知元素的数量
type Counts struct {
	Nodes    int `json:"nodes"`
	Edges    int `json:"edges"`
	Chargers int `json:"chargers"`
	Cargo    int `json:"cargo"`
	Stale    int `json:"stale"` // 过期的节点与路段数
}

// Counts 统计已知元素数量
func (m *WorldModel) Counts() Counts {
	c := Counts{Nodes: len(m.nodes), Edges: len(m.edges), Chargers: len(m.chargers), Cargo: len(m.cargo)}
	for _, n := range m.nodes {
		if n.Stale {
			c.Stale++
		}
	}
	for _, e := range m.edges {
		if e.Stale {
			c.Stale++
		}
	}
	return c
}

// View 世界模型的只读副本
type View struct {
	Nodes    []KnownNode    `json:"nodes"`
	Edges    []KnownEdge    `json:"edges"`
	Chargers []KnownCharger `json:"chargers"`
	Cargo    []KnownCargo   `json:"cargo"`
	Counts   Counts         `json:"counts"`

	Destinations []int32 `json:"destinations"` // 已知目的地节点
}

// View 生成只读副本，按ID排序
func (m *WorldModel) View() View {
	return View{
		Nodes:    deref(sortedValues(m.nodes)),
		Edges:    deref(sortedValues(m.edges)),
		Chargers: deref(sortedValues(m.chargers)),
		Cargo:    deref(sortedValues(m.cargo)),
		Counts:   m.Counts(),

		Destinations: m.Destinations(),
	}
}
