package worldmodel_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/sossim-go/entity"
	"github.com/tsinghua-fib-lab/sossim-go/entity/agent/worldmodel"
	"github.com/tsinghua-fib-lab/sossim-go/entity/roadnet"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
	"github.com/tsinghua-fib-lab/sossim-go/utils/randengine"
)

// 3x1的路网：0 <-> 1 主干道，1 -> 2 支路
func smallNetwork(t *testing.T) *roadnet.Network {
	n := roadnet.New(3, 1, 1)
	for x := int32(0); x < 3; x++ {
		lo.Must(n.AddNode(x, 0))
	}
	lo.Must(n.AddEdge(0, 1, roadnet.Coarse, 2))
	lo.Must(n.AddEdge(1, 0, roadnet.Coarse, 2))
	lo.Must(n.AddEdge(1, 2, roadnet.Fine, 1))
	require.True(t, n.WeaklyConnected())
	return n
}

func TestPrior(t *testing.T) {
	n := smallNetwork(t)
	chargers := []entity.ChargerInfo{{ID: 0, Node: 2, Capacity: 1}, {ID: 1, Node: 0, Capacity: 1}}

	none := worldmodel.New(n, 10, config.PriorNone, chargers)
	assert.Equal(t, worldmodel.Counts{}, none.Counts())

	coarse := worldmodel.New(n, 10, config.PriorCoarse, chargers)
	assert.Equal(t, 2, coarse.Counts().Nodes)
	assert.Equal(t, 2, coarse.Counts().Edges)
	assert.False(t, coarse.Knows(2))
	// 只知道位于已知节点上的充电桩
	require.Len(t, coarse.Chargers(), 1)
	assert.Equal(t, int32(0), coarse.Chargers()[0].Node)

	full := worldmodel.New(n, 10, config.PriorFull, chargers)
	assert.Equal(t, 3, full.Counts().Nodes)
	assert.Equal(t, 3, full.Counts().Edges)
	assert.Len(t, full.Chargers(), 2)
	for _, e := range full.View().Edges {
		assert.Equal(t, int32(0), e.LastSeen)
	}
}

func TestPerceiveMergesAndMarksStale(t *testing.T) {
	n := smallNetwork(t)
	m := worldmodel.New(n, 2, config.PriorNone, nil)

	m.Perceive(1, worldmodel.Perception{
		Nodes: []int32{1},
		Edges: []worldmodel.EdgeObservation{{ID: 2, Occupancy: 1}},
		Cargo: []entity.CargoInfo{{ID: 7, Origin: 1, Destination: 2}},
	})
	// 路段的端点随路段一起加入
	assert.True(t, m.Knows(1))
	assert.True(t, m.Knows(2))
	assert.False(t, m.Knows(0))
	require.Len(t, m.Neighbors(1), 1)
	assert.Equal(t, int32(1), m.Neighbors(1)[0].Occupancy())
	require.Len(t, m.Cargo(), 1)

	m.Refresh(3)
	assert.False(t, m.KnownEdge(2).Stale)
	m.Refresh(4)
	assert.True(t, m.KnownEdge(2).Stale)
	assert.Equal(t, int32(0), m.KnownEdge(2).Occupancy())
	assert.Empty(t, m.Cargo())
	// 过期不删除
	assert.Equal(t, 2, m.Counts().Nodes)
	assert.Equal(t, 3, m.Counts().Stale)

	// 再次感知清除过期标记，未看到的货物标记过期
	m.Perceive(5, worldmodel.Perception{
		Nodes: []int32{1},
		Edges: []worldmodel.EdgeObservation{{ID: 2, Occupancy: 0}, {ID: 0}},
	})
	assert.False(t, m.KnownEdge(2).Stale)
	assert.Equal(t, int32(5), m.KnownEdge(2).LastSeen)
	assert.True(t, m.Knows(0))
	assert.Empty(t, m.Cargo())
	assert.Equal(t, 1, m.Counts().Cargo)
}

func TestPerceiveIgnoresUnknownIDs(t *testing.T) {
	n := smallNetwork(t)
	m := worldmodel.New(n, 2, config.PriorNone, nil)
	m.Perceive(1, worldmodel.Perception{
		Nodes: []int32{99},
		Edges: []worldmodel.EdgeObservation{{ID: 42}},
	})
	assert.Equal(t, worldmodel.Counts{}, m.Counts())
}

func TestNoHallucinatedTopology(t *testing.T) {
	cfg := config.Default().Network
	n, err := roadnet.Generate(cfg, randengine.New(5))
	require.NoError(t, err)
	idx := roadnet.NewSpatialIndex(n)
	m := worldmodel.New(n, 3, config.PriorCoarse, nil)
	for tick, node := range n.Nodes() {
		cells := idx.CellsWithin(node.Point, 2*cfg.CellLength)
		m.Perceive(int32(tick), worldmodel.Perception{
			Nodes: cells.Nodes,
			Edges: lo.Map(cells.Edges, func(id int32, _ int) worldmodel.EdgeObservation {
				return worldmodel.EdgeObservation{ID: id}
			}),
		})
		m.Refresh(int32(tick))
	}
	view := m.View()
	for _, e := range view.Edges {
		src := n.Edge(e.ID)
		require.NotNil(t, src)
		assert.Equal(t, src.From, e.From)
		assert.Equal(t, src.To, e.To)
		assert.Equal(t, src.Length, e.Length)
	}
	for _, node := range view.Nodes {
		assert.NotNil(t, n.Node(node.ID))
	}
	assert.Equal(t, n.Destinations(), m.Destinations())
	assert.Equal(t, m.Destinations(), view.Destinations)
}
