package roadnet

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// WeaklyConnected 判断路网是否弱连通（忽略路段方向）
// 算法说明：
// 1. 构造节点相同的无向图，每条有向路段对应一条无向边
// 2. 计算连通分量，只有一个分量时为弱连通
func (n *Network) WeaklyConnected() bool {
	if len(n.nodeList) == 0 {
		return false
	}
	g := simple.NewUndirectedGraph()
	for _, node := range n.nodeList {
		g.AddNode(simple.Node(node.ID))
	}
	for _, e := range n.edges {
		g.SetEdge(g.NewEdge(simple.Node(e.From), simple.Node(e.To)))
	}
	return len(topo.ConnectedComponents(g)) == 1
}
