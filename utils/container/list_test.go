package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/sossim-go/utils/container"
)

type node = container.ListNode[int32, struct{}]

func TestListInit(t *testing.T) {
	l := &container.List[int32, struct{}]{}
	assert.Nil(t, l.First())
	assert.Nil(t, l.Last())
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Values())
}

func TestListOperation(t *testing.T) {
	l := &container.List[int32, struct{}]{}

	// test: insert

	// ^, 1, ^
	n1 := &node{S: 1, Value: 1}
	l.PushBack(n1)
	// ^, 2, 1, ^
	n2 := &node{S: 2, Value: 2}
	l.PushFront(n2)
	// ^, 3, 2, 1, ^
	n3 := &node{S: 3, Value: 3}
	n2.InsertBefore(n3)
	// ^, 3, 2, 1, 4, ^
	n4 := &node{S: 4, Value: 4}
	n1.InsertAfter(n4)
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, []int32{3, 2, 1, 4}, l.Values())

	// test: first last next prev

	n := l.First()
	assert.Equal(t, n3, n)
	n = n.Next()
	assert.Equal(t, n2, n)
	n = n.Next()
	assert.Equal(t, n1, n)
	assert.Equal(t, n, n.Next().Prev())
	assert.Equal(t, n, n.Prev().Next())
	assert.Equal(t, l, n.Parent())
	assert.Equal(t, n4, l.Last())

	// test: pop merge

	// before: head, 0, 3, 2, 1, 4, tail
	n0 := &node{S: 0, Value: 0}
	l.PushFront(n0)
	unsorted := l.PopUnsorted()
	assert.ElementsMatch(t, []*node{n2, n1}, unsorted)
	assert.Equal(t, 5-2, l.Len())

	l.Merge(unsorted)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, l.Keys())
	assert.Equal(t, n4, l.Last())

	// test: remove

	l.Remove(n4)
	assert.Equal(t, n3, l.Last())
	assert.Equal(t, 5-1, l.Len())
	assert.Nil(t, n4.Parent())
	l.Remove(n0)
	assert.Equal(t, n1, l.First())
	assert.Nil(t, l.First().Prev())
}

func TestListMergeIsStable(t *testing.T) {
	l := &container.List[int32, struct{}]{}
	l.PushBack(&node{S: 1, Value: 10})
	l.Merge([]*node{{S: 1, Value: 11}, {S: 0, Value: 9}, {S: 1, Value: 12}})
	assert.Equal(t, []int32{9, 11, 12, 10}, l.Values())
}

func TestListPanicsOnDoubleInsert(t *testing.T) {
	l := &container.List[int32, struct{}]{}
	n := &node{S: 1}
	l.PushBack(n)
	assert.Panics(t, func() { l.PushBack(n) })
	other := &container.List[int32, struct{}]{}
	assert.Panics(t, func() { other.Remove(n) })
}
