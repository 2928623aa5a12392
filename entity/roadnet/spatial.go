package roadnet

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// 浮点比较容差，恰好在半径上的节点算在范围内
const eps = 1e-9

// Cells 一次空间查询的结果
type Cells struct {
	Nodes []int32 // 节点ID（升序）
	Edges []int32 // 至少一个端点在Nodes中的路段ID（升序）
}

// SpatialIndex 基于网格的空间索引
// 说明：节点本身就在网格上，索引只需按格子定位，不需要额外的树结构
type SpatialIndex struct {
	net *Network
}

// NewSpatialIndex 为路网创建空间索引
func NewSpatialIndex(n *Network) *SpatialIndex {
	return &SpatialIndex{net: n}
}

// CellsWithin 查询半径内的节点与路段
// 功能：感知范围查询，供车辆更新世界模型
// 参数：p-中心点，radius-半径（与坐标同一单位）
// 返回：距离p不超过radius的节点，以及与这些节点相连的路段
// 算法说明：
// 1. 以p为中心、radius为半边长的包围盒确定候选格子范围
// 2. 候选格子上的节点按欧氏距离过滤
// 3. 收集这些节点的出边与入边并去重
func (s *SpatialIndex) CellsWithin(p orb.Point, radius float64) Cells {
	n := s.net
	bound := orb.Bound{Min: p, Max: p}.Pad(radius + eps)
	x0 := max(int32(math.Ceil(bound.Min.X()/n.CellLength)), 0)
	y0 := max(int32(math.Ceil(bound.Min.Y()/n.CellLength)), 0)
	x1 := min(int32(math.Floor(bound.Max.X()/n.CellLength)), n.Width-1)
	y1 := min(int32(math.Floor(bound.Max.Y()/n.CellLength)), n.Height-1)

	res := Cells{Nodes: []int32{}, Edges: []int32{}}
	edges := map[int32]struct{}{}
	// 按y、x递增遍历，得到的节点ID即为升序
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			node := n.NodeAt(x, y)
			if node == nil || planar.Distance(p, node.Point) > radius+eps {
				continue
			}
			res.Nodes = append(res.Nodes, node.ID)
			for _, h := range n.Neighbors(node.ID) {
				edges[h.Edge.ID] = struct{}{}
			}
			for _, e := range n.InEdges(node.ID) {
				edges[e.ID] = struct{}{}
			}
		}
	}
	for id := range edges {
		res.Edges = append(res.Edges, id)
	}
	sort.Slice(res.Edges, func(i, j int) bool { return res.Edges[i] < res.Edges[j] })
	return res
}
