package container_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/sossim-go/utils/container"
)

type elem struct {
	container.IncrementalItemBase
	id int
}

func ids(a *container.IncrementalArray[*elem]) []int {
	return lo.Map(a.Data(), func(e *elem, _ int) int { return e.id })
}

func checkIndex(t *testing.T, a *container.IncrementalArray[*elem]) {
	for i, e := range a.Data() {
		assert.Equal(t, i, e.Index())
	}
}

func TestIncrementalArrayDefersChanges(t *testing.T) {
	a := container.NewIncrementalArray[*elem]()
	es := lo.Map([]int{0, 1, 2, 3, 4}, func(i int, _ int) *elem { return &elem{id: i} })
	for _, e := range es {
		a.Add(e)
	}
	assert.Equal(t, 0, a.Len())
	a.Prepare()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ids(a))
	checkIndex(t, a)

	// 删 > 增，包括末尾元素
	a.Remove(es[0])
	a.Remove(es[3])
	a.Remove(es[4])
	a.Add(&elem{id: 5})
	assert.Equal(t, 5, a.Len())
	a.Prepare()
	assert.ElementsMatch(t, []int{1, 2, 5}, ids(a))
	checkIndex(t, a)

	// 增 > 删
	a.Remove(a.Data()[0])
	a.Add(&elem{id: 6})
	a.Add(&elem{id: 7})
	a.Prepare()
	assert.Len(t, a.Data(), 4)
	assert.Contains(t, ids(a), 6)
	assert.Contains(t, ids(a), 7)
	checkIndex(t, a)
}
