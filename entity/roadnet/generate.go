package roadnet

import (
	"math"

	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
	"github.com/tsinghua-fib-lab/sossim-go/utils/randengine"
)

// 主干道生长时依次尝试的网格方向：东、西、南、北
var growDirections = [4][2]int32{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// 主干道生长偏好的缩放系数
const growScale = 50.

type cell struct {
	x, y int32
}

type link struct {
	src, sink cell
}

// Generate 生成路网
// 功能：在网格上生成主干道与支路组成的有向路网，并标记目的地
// 参数：cfg-路网参数，rng-随机数引擎（同一种子结果相同）
// 返回：路网，参数非法或结果不连通时返回*config.ConfigurationError
// 算法说明：
// 1. 从网格中心开始生长一棵主干道树，每次从候选连接中按偏好加权随机选一条，
// 偏好离中心远、两端度数小的格子，直到覆盖 ceil(width*height*coverage) 个格子
// 2. 每条主干道连接生成两条相反方向的Coarse路段
// 3. 网络内未连接的相邻格子以fine_density的概率连接支路，支路以one_way_ratio的概率为单行道
// 4. 每个节点以destination_density的概率标记为目的地，没有任何目的地时标记离中心最远的节点
// 5. 用无向图检查弱连通性
func Generate(cfg config.Network, rng *randengine.Engine) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := New(cfg.Width, cfg.Height, cfg.CellLength)
	links := growCoarse(n, config.TargetNodes(cfg), rng)
	for _, l := range links {
		a, b := n.NodeID(l.src.x, l.src.y), n.NodeID(l.sink.x, l.sink.y)
		if _, err := n.AddEdge(a, b, Coarse, cfg.CoarseCapacity); err != nil {
			log.Panicf("add coarse edge: %v", err)
		}
		if _, err := n.AddEdge(b, a, Coarse, cfg.CoarseCapacity); err != nil {
			log.Panicf("add coarse edge: %v", err)
		}
	}
	addFine(n, cfg, rng)
	markDestinations(n, cfg.DestinationDensity, rng)

	if !n.WeaklyConnected() {
		return nil, config.NewConfigurationError("network", cfg, "parameters do not yield a connected road network")
	}
	log.Infof("road network generated: %dx%d grid, %d nodes, %d edges (%d coarse), %d destinations",
		n.Width, n.Height, len(n.Nodes()), len(n.Edges()), len(n.CoarseEdges()), len(n.Destinations()))
	return n, nil
}

// growCoarse 生长主干道树，返回按加入顺序排列的连接
func growCoarse(n *Network, target int, rng *randengine.Engine) []link {
	cx, cy := n.Center()
	maxDist := math.Max(
		math.Max(math.Hypot(float64(cx), float64(cy)), math.Hypot(float64(n.Width-1-cx), float64(cy))),
		math.Max(math.Hypot(float64(cx), float64(n.Height-1-cy)), math.Hypot(float64(n.Width-1-cx), float64(n.Height-1-cy))),
	)
	normDist := func(c cell) float64 {
		return math.Hypot(float64(c.x-cx), float64(c.y-cy)) / maxDist
	}

	degree := map[cell]int{}
	in := map[cell]bool{}
	var candidates []link
	expand := func(src cell) {
		for _, d := range growDirections {
			sink := cell{src.x + d[0], src.y + d[1]}
			if n.InGrid(sink.x, sink.y) && !in[sink] {
				candidates = append(candidates, link{src: src, sink: sink})
			}
		}
	}

	root := cell{cx, cy}
	in[root] = true
	if _, err := n.AddNode(root.x, root.y); err != nil {
		log.Panicf("add root node: %v", err)
	}
	expand(root)

	links := make([]link, 0, target)
	for len(in) < target && len(candidates) > 0 {
		weights := make([]float64, len(candidates))
		total := 0.
		for i, c := range candidates {
			ds, dk := float64(degree[c.src]), float64(degree[c.sink])
			weights[i] = growScale * normDist(c.sink) / (ds*ds + dk + 1e-5)
			total += weights[i]
		}
		if total <= 0 {
			for i := range weights {
				weights[i] = 1
			}
		}
		pick := candidates[rng.DiscreteDistribution(weights)]
		links = append(links, pick)
		in[pick.sink] = true
		degree[pick.src]++
		degree[pick.sink]++
		if _, err := n.AddNode(pick.sink.x, pick.sink.y); err != nil {
			log.Panicf("add coarse node: %v", err)
		}
		// 新格子已在网络中，指向它的候选全部失效
		kept := candidates[:0]
		for _, c := range candidates {
			if c.sink != pick.sink {
				kept = append(kept, c)
			}
		}
		candidates = kept
		expand(pick.sink)
	}
	return links
}

// addFine 在网络内相邻但未被主干道连接的格子之间添加支路
func addFine(n *Network, cfg config.Network, rng *randengine.Engine) {
	for _, a := range n.Nodes() {
		for _, d := range [2][2]int32{{1, 0}, {0, 1}} {
			b := n.NodeAt(a.X+d[0], a.Y+d[1])
			if b == nil || n.EdgeBetween(a.ID, b.ID) != nil || n.EdgeBetween(b.ID, a.ID) != nil {
				continue
			}
			if !rng.PTrue(cfg.FineDensity) {
				continue
			}
			from, to := a.ID, b.ID
			if rng.PTrue(cfg.OneWayRatio) {
				if rng.PTrue(0.5) {
					from, to = to, from
				}
				if _, err := n.AddEdge(from, to, Fine, cfg.FineCapacity); err != nil {
					log.Panicf("add fine edge: %v", err)
				}
				continue
			}
			if _, err := n.AddEdge(from, to, Fine, cfg.FineCapacity); err != nil {
				log.Panicf("add fine edge: %v", err)
			}
			if _, err := n.AddEdge(to, from, Fine, cfg.FineCapacity); err != nil {
				log.Panicf("add fine edge: %v", err)
			}
		}
	}
}

// markDestinations 标记目的地节点
func markDestinations(n *Network, density float64, rng *randengine.Engine) {
	flagged := false
	for _, node := range n.Nodes() {
		if rng.PTrue(density) {
			node.Destination = true
			flagged = true
		}
	}
	if flagged {
		return
	}
	cx, cy := n.Center()
	center := n.NodeAt(cx, cy).Point
	var far *Node
	best := -1.
	for _, node := range n.Nodes() {
		// 严格大于，距离相同时保留ID小的
		if d := math.Hypot(node.Point.X()-center.X(), node.Point.Y()-center.Y()); d > best {
			far, best = node, d
		}
	}
	far.Destination = true
}
