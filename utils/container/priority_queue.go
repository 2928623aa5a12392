package container

import "container/heap"

// item 优先队列中单个元素
// 功能：表示优先队列中的一个元素，包含值、优先级与同优先级时的次序
type item[T any] struct {
	Value    T       // 元素的值（任意类型）
	Priority float64 // 元素在队列中的优先级（越小越优先）
	Order    int64   // 优先级相同时的次序（越小越优先）
	index    int     // 项在堆中的索引，由 heap.Interface 方法维护
}

// priorityQueue 优先队列实现了 heap.Interface 并保存了元素
type priorityQueue[T any] []*item[T]

func (pq priorityQueue[T]) Len() int { return len(pq) }

// Less 比较两个元素的优先级
// 说明：先比较Priority，相同时比较Order，保证出队顺序确定
func (pq priorityQueue[T]) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority < pq[j].Priority
	}
	return pq[i].Order < pq[j].Order
}

func (pq priorityQueue[T]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue[T]) Push(x any) {
	n := len(*pq)
	item := x.(*item[T])
	item.index = n
	*pq = append(*pq, item)
}

func (pq *priorityQueue[T]) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // 避免内存泄漏
	item.index = -1 // 为了安全起见
	*pq = old[0 : n-1]
	return item
}

// PriorityQueue 优先队列（最小堆）
// 功能：提供优先队列的公共接口，封装内部堆实现
// 说明：同优先级元素按Order出队；HeapPush按入队先后自动编号
type PriorityQueue[T any] struct {
	queue priorityQueue[T] // 内部优先队列实现
	seq   int64            // HeapPush的自动次序
}

// NewPriorityQueue 创建优先队列
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{queue: make(priorityQueue[T], 0)}
}

// Len 获取当前队列长度
func (q *PriorityQueue[T]) Len() int {
	return len(q.queue)
}

// First 获取第一个元素（优先级数值最小的元素），不出队
func (q *PriorityQueue[T]) First() T {
	return q.queue[0].Value
}

// HeapPush 加入元素，同优先级时先入先出
func (q *PriorityQueue[T]) HeapPush(value T, priority float64) {
	q.HeapPushOrdered(value, priority, q.seq)
	q.seq++
}

// HeapPushOrdered 加入元素并指定同优先级时的次序
// 参数：value-元素值，priority-优先级，order-同优先级时的次序（越小越先出队）
func (q *PriorityQueue[T]) HeapPushOrdered(value T, priority float64, order int64) {
	heap.Push(&q.queue, &item[T]{
		Value:    value,
		Priority: priority,
		Order:    order,
	})
}

// HeapPop 弹出优先级最高的元素
// 返回：value-元素值，priority-元素优先级
func (q *PriorityQueue[T]) HeapPop() (value T, priority float64) {
	item := heap.Pop(&q.queue).(*item[T])
	return item.Value, item.Priority
}
