package container

import (
	"sync"
)

// IIncrementalItem 支持增量更新的元素接口
// 功能：元素自己记录在数组中的下标，删除时O(1)定位
type IIncrementalItem interface {
	Index() int         // 获取元素的索引
	SetIndex(index int) // 设置元素的索引
}

// IncrementalItemBase 增量元素基类，可嵌入结构体直接实现IIncrementalItem
type IncrementalItemBase struct {
	index int
}

func (b *IncrementalItemBase) Index() int {
	return b.index
}

func (b *IncrementalItemBase) SetIndex(index int) {
	b.index = index
}

// IncrementalArray 增量数组
// 功能：Add/Remove先登记，在Prepare时统一生效
// 说明：一步之内Data()保持不变，新增或移除的元素从下一步开始可见
type IncrementalArray[T IIncrementalItem] struct {
	data        []T        // 主数据数组
	add         []T        // 待添加的元素列表
	remove      []T        // 待删除的元素列表
	addMutex    sync.Mutex // 添加操作的互斥锁
	removeMutex sync.Mutex // 删除操作的互斥锁
}

// NewIncrementalArray 创建增量数组
func NewIncrementalArray[T IIncrementalItem]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data:   make([]T, 0),
		add:    make([]T, 0),
		remove: make([]T, 0),
	}
}

// Len 获取当前数组长度（不含未生效的增删）
func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Data 获取当前数据，调用方不得修改
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

// Add 增加元素（等到Prepare时才会真正增加）
func (a *IncrementalArray[T]) Add(value T) {
	a.addMutex.Lock()
	defer a.addMutex.Unlock()
	a.add = append(a.add, value)
}

// Remove 删除元素（等到Prepare时才会真正删除）
// 说明：同一元素在一次Prepare前只能登记删除一次
func (a *IncrementalArray[T]) Remove(value T) {
	a.removeMutex.Lock()
	defer a.removeMutex.Unlock()
	a.remove = append(a.remove, value)
}

// Prepare 执行增量操作
// 功能：统一执行所有待处理的添加和删除操作
// 算法说明：
// 1. 增 >= 删：用新增元素填补被删除元素的位置，剩余新增元素追加到末尾
// 2. 删 > 增：先用新增元素填补，剩余空位从数组末尾搬移元素填充，再截断
// 3. 清空待处理列表
// 说明：元素顺序不保证稳定，使用方需要自行按ID排序
func (a *IncrementalArray[T]) Prepare() {
	if len(a.add) >= len(a.remove) {
		for i, x := range a.remove {
			ind := x.Index()
			a.data[ind] = a.add[i]
			a.data[ind].SetIndex(ind)
		}
		l1 := len(a.remove)
		l2 := len(a.add) - l1
		for i := 0; i < l2; i++ {
			a.add[l1+i].SetIndex(len(a.data) + i)
		}
		a.data = append(a.data, a.add[len(a.remove):]...)
	} else {
		for i, x := range a.add {
			ind := a.remove[i].Index()
			a.data[ind] = x
			a.data[ind].SetIndex(ind)
		}
		l1 := len(a.add)
		l2 := len(a.remove) - l1
		l3 := len(a.data) - l2
		for i := 0; i < l2; i++ {
			// 从后面拿一项填过来
			ind := a.remove[l1+i].Index()
			a.data[ind] = a.data[l3+i]
			a.data[ind].SetIndex(ind)
		}
		a.data = a.data[:l3]
	}

	a.add = []T{}
	a.remove = []T{}
}
