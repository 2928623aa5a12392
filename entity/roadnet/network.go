package roadnet

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/samber/lo"
)

// RoadClass 道路等级
type RoadClass int32

const (
	Coarse RoadClass = iota // 主干道
	Fine                    // 支路
)

func (c RoadClass) String() string {
	switch c {
	case Coarse:
		return "coarse"
	case Fine:
		return "fine"
	default:
		return fmt.Sprintf("RoadClass(%d)", int32(c))
	}
}

func (c RoadClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *RoadClass) UnmarshalText(text []byte) error {
	switch string(text) {
	case "coarse":
		*c = Coarse
	case "fine":
		*c = Fine
	default:
		return fmt.Errorf("unknown road class %q", text)
	}
	return nil
}

// Node 路网节点（路口），位于一个网格上
type Node struct {
	ID          int32     // 节点ID，等于 y*width+x
	X, Y        int32     // 网格坐标
	Point       orb.Point // 平面坐标
	Destination bool      // 是否为目的地（可放置货物、充电桩）
}

// Edge 有向路段
type Edge struct {
	ID       int32          // 路段ID
	From, To int32          // 起止节点ID
	Length   float64        // 长度
	Class    RoadClass      // 道路等级
	Capacity int32          // 同时可容纳的车辆数
	Geometry orb.LineString // 几何形状
}

// Hop 从某节点出发的一跳：经过的路段与到达的节点
type Hop struct {
	Edge *Edge
	Node *Node
}

// Network 网格上的有向路网
// 功能：以邻接表保存节点与有向路段，提供邻居、长度等查询
// 说明：生成完成后只读，动态的占用信息由Traffic维护
type Network struct {
	Width, Height int32   // 网格尺寸
	CellLength    float64 // 网格边长

	nodes    map[int32]*Node
	nodeList []*Node // 按ID排序
	edges    []*Edge // 下标即ID
	out      map[int32][]Hop
	in       map[int32][]*Edge
}

// New 创建空路网
func New(width, height int32, cellLength float64) *Network {
	return &Network{
		Width:      width,
		Height:     height,
		CellLength: cellLength,
		nodes:      make(map[int32]*Node),
		out:        make(map[int32][]Hop),
		in:         make(map[int32][]*Edge),
	}
}

// NodeID 网格坐标对应的节点ID
func (n *Network) NodeID(x, y int32) int32 {
	return y*n.Width + x
}

// InGrid 判断网格坐标是否在边界内
func (n *Network) InGrid(x, y int32) bool {
	return x >= 0 && y >= 0 && x < n.Width && y < n.Height
}

// AddNode 在网格(x, y)上添加节点
// 功能：构造路网时使用，重复添加返回已有节点
func (n *Network) AddNode(x, y int32) (*Node, error) {
	if !n.InGrid(x, y) {
		return nil, fmt.Errorf("cell (%d, %d) outside %dx%d grid", x, y, n.Width, n.Height)
	}
	id := n.NodeID(x, y)
	if node, ok := n.nodes[id]; ok {
		return node, nil
	}
	node := &Node{
		ID:    id,
		X:     x,
		Y:     y,
		Point: orb.Point{float64(x) * n.CellLength, float64(y) * n.CellLength},
	}
	n.nodes[id] = node
	i := sort.Search(len(n.nodeList), func(i int) bool { return n.nodeList[i].ID >= id })
	n.nodeList = append(n.nodeList, nil)
	copy(n.nodeList[i+1:], n.nodeList[i:])
	n.nodeList[i] = node
	return node, nil
}

// AddEdge 添加有向路段
// 功能：构造路网时使用，长度取两端点的平面距离
// 参数：from,to-起止节点ID，class-道路等级，capacity-容量
// 返回：新路段，端点不存在或自环时返回错误
func (n *Network) AddEdge(from, to int32, class RoadClass, capacity int32) (*Edge, error) {
	a, ok := n.nodes[from]
	if !ok {
		return nil, fmt.Errorf("no node %d", from)
	}
	b, ok := n.nodes[to]
	if !ok {
		return nil, fmt.Errorf("no node %d", to)
	}
	if from == to {
		return nil, fmt.Errorf("self loop on node %d", from)
	}
	e := &Edge{
		ID:       int32(len(n.edges)),
		From:     from,
		To:       to,
		Length:   planar.Distance(a.Point, b.Point),
		Class:    class,
		Capacity: capacity,
		Geometry: orb.LineString{a.Point, b.Point},
	}
	n.edges = append(n.edges, e)
	hops := append(n.out[from], Hop{Edge: e, Node: b})
	sort.SliceStable(hops, func(i, j int) bool {
		if hops[i].Node.ID != hops[j].Node.ID {
			return hops[i].Node.ID < hops[j].Node.ID
		}
		return hops[i].Edge.ID < hops[j].Edge.ID
	})
	n.out[from] = hops
	n.in[to] = append(n.in[to], e)
	return e, nil
}

// Node 根据ID获取节点，不存在返回nil
func (n *Network) Node(id int32) *Node {
	return n.nodes[id]
}

// NodeAt 根据网格坐标获取节点，不存在返回nil
func (n *Network) NodeAt(x, y int32) *Node {
	if !n.InGrid(x, y) {
		return nil
	}
	return n.nodes[n.NodeID(x, y)]
}

// Edge 根据ID获取路段，不存在返回nil
func (n *Network) Edge(id int32) *Edge {
	if id < 0 || int(id) >= len(n.edges) {
		return nil
	}
	return n.edges[id]
}

// Nodes 所有节点（按ID排序）
func (n *Network) Nodes() []*Node {
	return n.nodeList
}

// Edges 所有路段（按ID排序）
func (n *Network) Edges() []*Edge {
	return n.edges
}

// Destinations 所有目的地节点ID（升序）
func (n *Network) Destinations() []int32 {
	ids := make([]int32, 0)
	for _, node := range n.nodeList {
		if node.Destination {
			ids = append(ids, node.ID)
		}
	}
	return ids
}

// Neighbors 节点的出边与邻居
// 返回：按邻居节点ID、路段ID排序的(路段, 节点)序列
func (n *Network) Neighbors(node int32) []Hop {
	return n.out[node]
}

// InEdges 进入节点的路段
func (n *Network) InEdges(node int32) []*Edge {
	return n.in[node]
}

// EdgeLength 路段长度
func (n *Network) EdgeLength(edge int32) float64 {
	e := n.Edge(edge)
	if e == nil {
		log.Panicf("no id %d in edge data", edge)
	}
	return e.Length
}

// EdgeBetween 返回from到to的路段（多条时取ID最小者），不存在返回nil
func (n *Network) EdgeBetween(from, to int32) *Edge {
	for _, h := range n.out[from] {
		if h.Node.ID == to {
			return h.Edge
		}
	}
	return nil
}

// Distance 两个节点的直线距离
func (n *Network) Distance(a, b int32) float64 {
	return planar.Distance(n.nodes[a].Point, n.nodes[b].Point)
}

// Center 网格中心的格子坐标
func (n *Network) Center() (int32, int32) {
	return n.Width / 2, n.Height / 2
}

// CoarseEdges 所有主干道路段
func (n *Network) CoarseEdges() []*Edge {
	return lo.Filter(n.edges, func(e *Edge, _ int) bool { return e.Class == Coarse })
}

// PointAt 路段上行驶了s距离处的坐标
func (e *Edge) PointAt(s float64) orb.Point {
	if e.Length <= 0 {
		return e.Geometry[0]
	}
	k := lo.Clamp(s/e.Length, 0, 1)
	a, b := e.Geometry[0], e.Geometry[len(e.Geometry)-1]
	return orb.Point{a.X() + k*(b.X()-a.X()), a.Y() + k*(b.Y()-a.Y())}
}
