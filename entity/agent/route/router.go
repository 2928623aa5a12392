// 基于车辆世界模型的路径规划
package route

import (
	"errors"
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/sossim-go/entity/agent/worldmodel"
	"github.com/tsinghua-fib-lab/sossim-go/utils/container"
)

// ErrNoPathFound 在已知子图中无法到达目标
var ErrNoPathFound = errors.New("no path found")

// Path 路径
type Path struct {
	Nodes  []int32 `json:"nodes"`  // 途经节点（含起终点）
	Edges  []int32 `json:"edges"`  // 途经路段，len(Edges) == len(Nodes)-1
	Cost   float64 `json:"cost"`   // 总代价
	Length float64 `json:"length"` // 总长度
}

func (p Path) String() string {
	return fmt.Sprintf("Path{Nodes=%v, Cost=%.2f, Length=%.2f}", p.Nodes, p.Cost, p.Length)
}

// Empty 路径不含任何路段
func (p Path) Empty() bool {
	return len(p.Edges) == 0
}

// Target 终点，空路径返回-1
func (p Path) Target() int32 {
	if len(p.Nodes) == 0 {
		return -1
	}
	return p.Nodes[len(p.Nodes)-1]
}

type label struct {
	cost      float64
	travelled float64
	via       *worldmodel.KnownEdge // 到达该节点的路段，起点为nil
	done      bool
}

// search Dijkstra搜索
// 功能：从from出发在世界模型上搜索，直到stop返回true的节点出队
// 返回：出队的终点，以及各节点的标号
// 算法说明：
// 1. 优先队列按(代价, 节点ID)排序，代价相同时先扩展ID小的节点
// 2. 松弛时代价相同的前驱取ID较小者，保证路径唯一
// 3. 代价为+Inf的路段视为不可通行
func search(from int32, cost CostFunc, wm *worldmodel.WorldModel, stop func(int32) bool) (int32, map[int32]*label) {
	labels := map[int32]*label{from: {}}
	if !wm.Knows(from) {
		return -1, labels
	}
	pq := container.NewPriorityQueue[int32]()
	pq.HeapPushOrdered(from, 0, int64(from))
	for pq.Len() > 0 {
		node, c := pq.HeapPop()
		l := labels[node]
		if l.done || c > l.cost {
			continue
		}
		l.done = true
		if stop(node) {
			return node, labels
		}
		for _, e := range wm.Neighbors(node) {
			w := cost.Cost(e, l.travelled)
			if math.IsInf(w, 1) || math.IsNaN(w) {
				continue
			}
			nc := c + w
			old, ok := labels[e.To]
			switch {
			case !ok:
				labels[e.To] = &label{cost: nc, travelled: l.travelled + e.Length, via: e}
				pq.HeapPushOrdered(e.To, nc, int64(e.To))
			case old.done:
			case nc < old.cost:
				old.cost, old.travelled, old.via = nc, l.travelled+e.Length, e
				pq.HeapPushOrdered(e.To, nc, int64(e.To))
			case nc == old.cost && old.via != nil && node < old.via.From:
				old.travelled, old.via = l.travelled+e.Length, e
			}
		}
	}
	return -1, labels
}

func build(to int32, labels map[int32]*label) Path {
	p := Path{Cost: labels[to].cost}
	for node := to; ; {
		p.Nodes = append(p.Nodes, node)
		via := labels[node].via
		if via == nil {
			break
		}
		p.Edges = append(p.Edges, via.ID)
		p.Length += via.Length
		node = via.From
	}
	reverse(p.Nodes)
	reverse(p.Edges)
	return p
}

func reverse(s []int32) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// Route 路径规划
// 功能：在车辆世界模型的已知子图上计算from到to的最小代价路径
// 参数：from,to-起终点节点ID，cost-代价函数，wm-世界模型
// 返回：路径，不可达时返回ErrNoPathFound
func Route(from, to int32, cost CostFunc, wm *worldmodel.WorldModel) (Path, error) {
	if !wm.Knows(to) {
		return Path{}, ErrNoPathFound
	}
	end, labels := search(from, cost, wm, func(n int32) bool { return n == to })
	if end != to {
		return Path{}, ErrNoPathFound
	}
	return build(to, labels), nil
}

// RouteToNearest 到多个候选目标中代价最小者的路径
// 说明：代价相同时选ID最小的目标
func RouteToNearest(from int32, targets []int32, cost CostFunc, wm *worldmodel.WorldModel) (Path, error) {
	set := make(map[int32]struct{}, len(targets))
	for _, t := range targets {
		if wm.Knows(t) {
			set[t] = struct{}{}
		}
	}
	if len(set) == 0 {
		return Path{}, ErrNoPathFound
	}
	end, labels := search(from, cost, wm, func(n int32) bool {
		_, ok := set[n]
		return ok
	})
	if end < 0 {
		return Path{}, ErrNoPathFound
	}
	return build(end, labels), nil
}
