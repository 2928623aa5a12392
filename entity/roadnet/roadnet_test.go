package roadnet_test

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/sossim-go/entity/roadnet"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
	"github.com/tsinghua-fib-lab/sossim-go/utils/randengine"
)

func generate(t *testing.T, cfg config.Network, seed uint64) *roadnet.Network {
	t.Helper()
	n, err := roadnet.Generate(cfg, randengine.New(seed))
	require.NoError(t, err)
	return n
}

func TestGenerateConnectedAcrossSeeds(t *testing.T) {
	cfg := config.Default().Network
	for seed := uint64(0); seed < 30; seed++ {
		n := generate(t, cfg, seed)
		assert.True(t, n.WeaklyConnected(), "seed %d", seed)
		assert.Len(t, n.Nodes(), config.TargetNodes(cfg), "seed %d", seed)
		assert.NotEmpty(t, n.Destinations(), "seed %d", seed)
		for _, e := range n.Edges() {
			from, to := n.Node(e.From), n.Node(e.To)
			require.NotNil(t, from)
			require.NotNil(t, to)
			// 只连接相邻格子
			assert.Equal(t, int32(1), abs(from.X-to.X)+abs(from.Y-to.Y))
			assert.InDelta(t, cfg.CellLength, e.Length, 1e-9)
		}
	}
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := config.Default().Network
	a := generate(t, cfg, 42)
	b := generate(t, cfg, 42)
	require.Equal(t, len(a.Edges()), len(b.Edges()))
	for i := range a.Edges() {
		assert.Equal(t, *a.Edges()[i], *b.Edges()[i])
	}
	assert.Equal(t, a.Destinations(), b.Destinations())
}

func TestCoarseEdgesComeInPairs(t *testing.T) {
	n := generate(t, config.Default().Network, 7)
	coarse := n.CoarseEdges()
	require.NotEmpty(t, coarse)
	// 主干道是树：节点数-1条连接，每条两个方向
	assert.Len(t, coarse, 2*(len(n.Nodes())-1))
	for _, e := range coarse {
		back := n.EdgeBetween(e.To, e.From)
		require.NotNil(t, back)
		assert.Equal(t, roadnet.Coarse, back.Class)
	}
}

func TestGenerateFullGrid(t *testing.T) {
	cfg := config.Default().Network
	cfg.Width, cfg.Height = 5, 5
	cfg.Coverage = 1
	cfg.FineDensity = 1
	cfg.OneWayRatio = 0
	n := generate(t, cfg, 1)
	assert.Len(t, n.Nodes(), 25)
	// 每对相邻格子都双向连通
	for _, a := range n.Nodes() {
		for _, b := range n.Nodes() {
			if abs(a.X-b.X)+abs(a.Y-b.Y) == 1 {
				assert.NotNil(t, n.EdgeBetween(a.ID, b.ID), "%d->%d", a.ID, b.ID)
			}
		}
	}
}

func TestGenerateRejectsBadParameters(t *testing.T) {
	cases := map[string]func(c *config.Network){
		"width":    func(c *config.Network) { c.Width = 1 },
		"coverage": func(c *config.Network) { c.Coverage = 0 },
		"tiny":     func(c *config.Network) { c.Width, c.Height, c.Coverage = 2, 2, 0.1 },
		"density":  func(c *config.Network) { c.FineDensity = 1.5 },
		"capacity": func(c *config.Network) { c.CoarseCapacity = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default().Network
			mutate(&cfg)
			n, err := roadnet.Generate(cfg, randengine.New(1))
			assert.Nil(t, n)
			var ce *config.ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.NotEmpty(t, ce.Violations)
		})
	}
}

func TestDestinationFallback(t *testing.T) {
	cfg := config.Default().Network
	cfg.Width, cfg.Height, cfg.Coverage = 5, 5, 1
	cfg.DestinationDensity = 0
	n := generate(t, cfg, 3)
	// 离中心(2,2)最远的是四个角，ID最小的是(0,0)
	assert.Equal(t, []int32{0}, n.Destinations())
}

func line() *roadnet.Network {
	n := roadnet.New(4, 2, 1)
	for x := int32(0); x < 4; x++ {
		lo.Must(n.AddNode(x, 0))
	}
	lo.Must(n.AddNode(1, 1))
	return n
}

func TestNeighborsOrdered(t *testing.T) {
	n := line()
	e3 := lo.Must(n.AddEdge(1, 5, roadnet.Fine, 1))
	e2 := lo.Must(n.AddEdge(1, 2, roadnet.Coarse, 2))
	e1 := lo.Must(n.AddEdge(1, 0, roadnet.Coarse, 2))
	e4 := lo.Must(n.AddEdge(1, 2, roadnet.Fine, 1))
	hops := n.Neighbors(1)
	got := lo.Map(hops, func(h roadnet.Hop, _ int) int32 { return h.Edge.ID })
	assert.Equal(t, []int32{e1.ID, e2.ID, e4.ID, e3.ID}, got)
	assert.Equal(t, e2, n.EdgeBetween(1, 2))
	assert.Equal(t, 1., n.EdgeLength(e3.ID))
	assert.Nil(t, n.EdgeBetween(2, 1))

	_, err := n.AddEdge(1, 1, roadnet.Fine, 1)
	assert.Error(t, err)
	_, err = n.AddEdge(1, 7, roadnet.Fine, 1)
	assert.Error(t, err)
	_, err = n.AddNode(9, 0)
	assert.Error(t, err)
}

func TestWeaklyConnected(t *testing.T) {
	n := line()
	lo.Must(n.AddEdge(0, 1, roadnet.Fine, 1))
	lo.Must(n.AddEdge(2, 1, roadnet.Fine, 1))
	lo.Must(n.AddEdge(3, 2, roadnet.Fine, 1))
	assert.False(t, n.WeaklyConnected())
	lo.Must(n.AddEdge(5, 1, roadnet.Fine, 1))
	// 单行道方向不影响弱连通
	assert.True(t, n.WeaklyConnected())
}

func TestCellsWithin(t *testing.T) {
	n := line()
	a := lo.Must(n.AddEdge(0, 1, roadnet.Fine, 1))
	b := lo.Must(n.AddEdge(2, 1, roadnet.Fine, 1))
	c := lo.Must(n.AddEdge(3, 2, roadnet.Fine, 1))
	d := lo.Must(n.AddEdge(1, 5, roadnet.Fine, 1))
	idx := roadnet.NewSpatialIndex(n)

	cells := idx.CellsWithin(orb.Point{0, 0}, 1)
	assert.Equal(t, []int32{0, 1}, cells.Nodes)
	assert.Equal(t, []int32{a.ID, b.ID, d.ID}, cells.Edges)

	cells = idx.CellsWithin(orb.Point{3, 0}, 0)
	assert.Equal(t, []int32{3}, cells.Nodes)
	assert.Equal(t, []int32{c.ID}, cells.Edges)

	cells = idx.CellsWithin(orb.Point{1, 0}, 1)
	assert.Equal(t, []int32{0, 1, 2, 5}, cells.Nodes)
}

func TestTraffic(t *testing.T) {
	n := line()
	e := lo.Must(n.AddEdge(0, 1, roadnet.Fine, 2))
	f := lo.Must(n.AddEdge(1, 2, roadnet.Fine, 2))
	tr := roadnet.NewTraffic(n)

	require.NoError(t, tr.Enter(1, e.ID, 0.5))
	require.NoError(t, tr.Enter(2, e.ID, 0.1))
	assert.Error(t, tr.Enter(1, f.ID, 0))
	assert.Equal(t, int32(2), tr.Count(e.ID))
	assert.Equal(t, int32(0), tr.SnapshotCount(e.ID))
	assert.Equal(t, []int32{2, 1}, tr.Agents(e.ID))

	tr.Move(2, 0.9)
	tr.Prepare()
	assert.Equal(t, []int32{1, 2}, tr.Agents(e.ID))
	assert.Equal(t, int32(2), tr.SnapshotCount(e.ID))
	assert.Equal(t, map[int32]int32{e.ID: 2}, tr.Occupancy())

	edge, ok := tr.EdgeOf(2)
	assert.True(t, ok)
	assert.Equal(t, e.ID, edge)

	tr.Leave(2)
	tr.Leave(2)
	_, ok = tr.EdgeOf(2)
	assert.False(t, ok)
	assert.Equal(t, int32(1), tr.Count(e.ID))
	assert.Equal(t, int32(2), tr.SnapshotCount(e.ID))
	tr.Prepare()
	assert.Equal(t, int32(1), tr.SnapshotCount(e.ID))
}

func TestGeoJSON(t *testing.T) {
	n := line()
	e := lo.Must(n.AddEdge(0, 1, roadnet.Coarse, 2))
	fc := n.GeoJSON(map[int32]int32{e.ID: 1})
	require.Len(t, fc.Features, 6)
	last := fc.Features[5]
	assert.Equal(t, "edge", last.Properties["kind"])
	assert.Equal(t, "coarse", last.Properties["class"])
	assert.Equal(t, int32(1), last.Properties["occupancy"])
	assert.Equal(t, orb.LineString{{0, 0}, {1, 0}}, last.Geometry)
}
