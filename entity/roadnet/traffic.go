package roadnet

import (
	"fmt"
	"strconv"

	"github.com/tsinghua-fib-lab/sossim-go/utils/container"
)

// 链表节点：Value为车辆ID，Extra为路段ID
type trafficNode = container.ListNode[int32, int32]
type trafficList = container.List[int32, int32]

// Traffic 路段占用情况
// 功能：记录每条路段上的车辆（按行驶距离排序），提供容量判断所需的计数
// 说明：提交阶段串行修改；Prepare时整理顺序并发布快照计数，决策阶段只读快照
type Traffic struct {
	net      *Network
	lists    map[int32]*trafficList // 路段ID -> 车辆链表
	nodes    map[int32]*trafficNode // 车辆ID -> 链表节点
	snapshot map[int32]int32        // 路段ID -> 上一次Prepare时的车辆数
}

// NewTraffic 创建路段占用记录
func NewTraffic(n *Network) *Traffic {
	t := &Traffic{
		net:      n,
		lists:    make(map[int32]*trafficList, len(n.Edges())),
		nodes:    make(map[int32]*trafficNode),
		snapshot: make(map[int32]int32),
	}
	for _, e := range n.Edges() {
		t.lists[e.ID] = &trafficList{ID: strconv.Itoa(int(e.ID))}
	}
	return t
}

func (t *Traffic) list(edge int32) *trafficList {
	l, ok := t.lists[edge]
	if !ok {
		log.Panicf("no id %d in edge data", edge)
	}
	return l
}

// Enter 车辆驶入路段
// 参数：agent-车辆ID，edge-路段ID，progress-在路段上已行驶的距离
// 返回：车辆已在某条路段上时返回错误
func (t *Traffic) Enter(agent, edge int32, progress float64) error {
	if n, ok := t.nodes[agent]; ok {
		return fmt.Errorf("agent %d already on edge %d", agent, n.Extra)
	}
	n := &trafficNode{S: progress, Value: agent, Extra: edge}
	t.list(edge).Merge([]*trafficNode{n})
	t.nodes[agent] = n
	return nil
}

// Leave 车辆离开所在路段，不在路段上时不做任何事
func (t *Traffic) Leave(agent int32) {
	n, ok := t.nodes[agent]
	if !ok {
		return
	}
	n.Parent().Remove(n)
	delete(t.nodes, agent)
}

// Move 更新车辆在路段上的行驶距离，链表顺序在下次Prepare时恢复
func (t *Traffic) Move(agent int32, progress float64) {
	if n, ok := t.nodes[agent]; ok {
		n.S = progress
	}
}

// EdgeOf 车辆所在路段
func (t *Traffic) EdgeOf(agent int32) (int32, bool) {
	n, ok := t.nodes[agent]
	if !ok {
		return -1, false
	}
	return n.Extra, true
}

// Count 路段上当前的车辆数（含本步已提交的变化）
func (t *Traffic) Count(edge int32) int32 {
	return int32(t.list(edge).Len())
}

// SnapshotCount 上一次Prepare时路段上的车辆数
func (t *Traffic) SnapshotCount(edge int32) int32 {
	return t.snapshot[edge]
}

// Agents 路段上的车辆，按行驶距离升序
func (t *Traffic) Agents(edge int32) []int32 {
	return t.list(edge).Values()
}

// Prepare 整理链表顺序并发布快照计数
func (t *Traffic) Prepare() {
	for id, l := range t.lists {
		if unsorted := l.PopUnsorted(); len(unsorted) > 0 {
			l.Merge(unsorted)
		}
		if l.Len() > 0 {
			t.snapshot[id] = int32(l.Len())
		} else {
			delete(t.snapshot, id)
		}
	}
}

// Occupancy 快照计数的副本（只含非空路段）
func (t *Traffic) Occupancy() map[int32]int32 {
	res := make(map[int32]int32, len(t.snapshot))
	for k, v := range t.snapshot {
		res[k] = v
	}
	return res
}
