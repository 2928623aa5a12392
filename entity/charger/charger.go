package charger

import (
	"fmt"
	"sort"

	"github.com/tsinghua-fib-lab/sossim-go/entity"
	"github.com/tsinghua-fib-lab/sossim-go/utils/container"
)

type queueNode = container.ListNode[int32, struct{}]

// Charger 充电桩
// 功能：管理有限的充电位与先到先得的排队
// 说明：占用数始终不超过容量，由Request/Release保证
type Charger struct {
	id       int32
	node     int32
	capacity int32

	occupants map[int32]struct{}               // 正在充电的车辆
	queue     *container.List[int32, struct{}] // 排队车辆（FIFO，键为入队步数）
	queued    map[int32]*queueNode             // 车辆ID -> 排队节点

	snapshot entity.ChargerInfo
}

func newCharger(id, node, capacity int32) *Charger {
	c := &Charger{
		id:        id,
		node:      node,
		capacity:  capacity,
		occupants: make(map[int32]struct{}),
		queue:     &container.List[int32, struct{}]{ID: fmt.Sprintf("charger-%d", id)},
		queued:    make(map[int32]*queueNode),
	}
	c.prepare()
	return c
}

func (c *Charger) String() string {
	return fmt.Sprintf("Charger{ID=%d, Node=%d, %d/%d, queue=%d}", c.id, c.node, len(c.occupants), c.capacity, c.queue.Len())
}

func (c *Charger) ID() int32 {
	return c.id
}

func (c *Charger) Node() int32 {
	return c.node
}

// request 申请充电位
// 返回：是否获得充电位；未获得时车辆排入队尾（重复申请不重复排队）
// 算法说明：有空位且队列为空，或者该车辆正是队首时直接获得
func (c *Charger) request(agent int32, tick int32) bool {
	if _, ok := c.occupants[agent]; ok {
		return true
	}
	if int32(len(c.occupants)) < c.capacity {
		if c.queue.Len() == 0 {
			c.occupants[agent] = struct{}{}
			return true
		}
		if head := c.queue.First(); head.Value == agent {
			c.queue.Remove(head)
			delete(c.queued, agent)
			c.occupants[agent] = struct{}{}
			return true
		}
	}
	if _, ok := c.queued[agent]; !ok {
		n := &queueNode{S: float64(tick), Value: agent}
		c.queue.PushBack(n)
		c.queued[agent] = n
	}
	return false
}

// release 释放充电位，并把队首车辆提升为占用者
func (c *Charger) release(agent int32) (promoted int32, ok bool, err error) {
	if _, in := c.occupants[agent]; !in {
		if n, q := c.queued[agent]; q {
			// 排队中的车辆离开
			c.queue.Remove(n)
			delete(c.queued, agent)
			return -1, false, nil
		}
		return -1, false, fmt.Errorf("agent %d does not occupy charger %d", agent, c.id)
	}
	delete(c.occupants, agent)
	if head := c.queue.First(); head != nil && int32(len(c.occupants)) < c.capacity {
		c.queue.Remove(head)
		delete(c.queued, head.Value)
		c.occupants[head.Value] = struct{}{}
		return head.Value, true, nil
	}
	return -1, false, nil
}

func (c *Charger) isOccupant(agent int32) bool {
	_, ok := c.occupants[agent]
	return ok
}

func (c *Charger) prepare() {
	c.snapshot = entity.ChargerInfo{
		ID:        c.id,
		Node:      c.node,
		Capacity:  c.capacity,
		Occupants: int32(len(c.occupants)),
		Queue:     int32(c.queue.Len()),
	}
}

// View 充电桩的只读副本
type View struct {
	ID        int32   `json:"id"`
	Node      int32   `json:"node"`
	Capacity  int32   `json:"capacity"`
	Occupants []int32 `json:"occupants"` // 正在充电的车辆ID（升序）
	Queue     []int32 `json:"queue"`     // 排队车辆ID（先到在前）
}

// View 生成只读副本
func (c *Charger) View() View {
	occ := make([]int32, 0, len(c.occupants))
	for a := range c.occupants {
		occ = append(occ, a)
	}
	sort.Slice(occ, func(i, j int) bool { return occ[i] < occ[j] })
	return View{
		ID:        c.id,
		Node:      c.node,
		Capacity:  c.capacity,
		Occupants: occ,
		Queue:     c.queue.Values(),
	}
}
