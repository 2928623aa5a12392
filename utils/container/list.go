package container

import (
	"fmt"
	"log"
	"sort"
)

// ListNode 双向链表中的节点
// 功能：表示双向链表中的一个节点，包含键值、值和额外信息
// 说明：S为排序键（路段上的行驶距离、排队的到达步等）
type ListNode[T any, E any] struct {
	parent     *List[T, E]     // 所属链表
	prev, next *ListNode[T, E] // 前驱和后继节点
	S          float64         // 键值
	Value      T               // 主要值
	Extra      E               // 额外信息
}

func (n *ListNode[T, E]) String() string {
	return fmt.Sprintf("Node{Key:%v, Value:%+v, Extra:%+v}", n.S, n.Value, n.Extra)
}

// Prev 获取节点的前一个节点，第一个节点返回nil
func (n *ListNode[T, E]) Prev() *ListNode[T, E] {
	return n.prev
}

// Next 获取节点的下一个节点，最后一个节点返回nil
func (n *ListNode[T, E]) Next() *ListNode[T, E] {
	return n.next
}

// Parent 获取节点所在的链表，不在链表中返回nil
func (n *ListNode[T, E]) Parent() *List[T, E] {
	return n.parent
}

// InsertBefore 在节点前插入新节点
// 功能：在当前节点之前插入一个新节点
// 参数：add-要插入的新节点（不能已在某个链表中）
func (n *ListNode[T, E]) InsertBefore(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("insert node who already in list")
	}
	add.parent = n.parent
	add.next = n
	add.prev = n.prev
	n.prev = add
	if add.prev != nil {
		add.prev.next = add
	} else {
		add.parent.head = add
	}
	n.parent.length++
}

// InsertAfter 在节点后插入新节点
// 功能：在当前节点之后插入一个新节点
// 参数：add-要插入的新节点（不能已在某个链表中）
func (n *ListNode[T, E]) InsertAfter(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("insert node who already in list")
	}
	add.parent = n.parent
	add.prev = n
	add.next = n.next
	n.next = add
	if add.next != nil {
		add.next.prev = add
	} else {
		add.parent.tail = add
	}
	n.parent.length++
}

// List 双向链表
// 功能：按键值S有序（或按插入顺序）保存元素
// 说明：路段上的车辆按行驶距离排序，充电桩排队按到达顺序
type List[T any, E any] struct {
	ID         string          // 链表标识符
	head, tail *ListNode[T, E] // 头尾节点指针
	length     int             // 链表长度
}

func (l *List[T, E]) String() string {
	return fmt.Sprintf("List{ID:%v}", l.ID)
}

// Keys 获取双向链表中所有节点的键值
func (l *List[T, E]) Keys() []float64 {
	keys := make([]float64, l.length)
	for i, node := 0, l.head; node != nil; i, node = i+1, node.next {
		keys[i] = node.S
	}
	return keys
}

// Values 获取双向链表中所有节点的值
func (l *List[T, E]) Values() []T {
	values := make([]T, l.length)
	for i, node := 0, l.head; node != nil; i, node = i+1, node.next {
		values[i] = node.Value
	}
	return values
}

// Len 获取双向链表长度
func (l *List[T, E]) Len() int {
	return l.length
}

// PushFront 向链表头部插入节点
func (l *List[T, E]) PushFront(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("push front node who already in list")
	}
	add.next = nil
	add.prev = nil
	if l.head == nil {
		add.parent = l
		l.head = add
		l.tail = add
		l.length++
	} else {
		// length++和add.parent在InsertBefore中处理
		l.head.InsertBefore(add)
	}
}

// PushBack 向链表尾部插入节点
func (l *List[T, E]) PushBack(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("push back node who already in list")
	}
	add.next = nil
	add.prev = nil
	if l.tail == nil {
		add.parent = l
		l.head = add
		l.tail = add
		l.length++
	} else {
		// length++和add.parent在InsertAfter中处理
		l.tail.InsertAfter(add)
	}
}

// Remove 从链表中移除节点
// 功能：从链表中删除指定的节点并清空其指针
// 参数：node-要删除的节点（必须属于当前链表）
func (l *List[T, E]) Remove(node *ListNode[T, E]) {
	if node.parent != l {
		log.Panic("remove node from wrong list")
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	node.parent = nil
	l.length--
}

// First 获取链表头部节点，空链表返回nil
func (l *List[T, E]) First() *ListNode[T, E] {
	return l.head
}

// Last 获取链表尾部节点，空链表返回nil
func (l *List[T, E]) Last() *ListNode[T, E] {
	return l.tail
}

// PopUnsorted 移除逆序节点
// 功能：移除链表中键值逆序的节点（前驱节点的键值大于当前节点）
// 返回：被移除的逆序节点数组
// 说明：节点键值被原地修改后，配合Merge恢复有序
func (l *List[T, E]) PopUnsorted() (unsorted []*ListNode[T, E]) {
	for node := l.head; node != nil; {
		next := node.next
		if node.prev != nil && node.prev.S > node.S {
			l.Remove(node)
			unsorted = append(unsorted, node)
		}
		node = next
	}
	return unsorted
}

// Merge 批量有序插入节点
// 功能：将一组节点按键值插入到有序链表中
// 算法说明：
// 1. 对待插入节点按键值稳定排序
// 2. 单次遍历链表，在第一个键值不小于待插入节点的位置前插入
func (l *List[T, E]) Merge(adds []*ListNode[T, E]) {
	sort.SliceStable(adds, func(i, j int) bool { return adds[i].S < adds[j].S })
	node := l.head
	for _, add := range adds {
		for node != nil && node.S < add.S {
			node = node.next
		}
		if node != nil {
			node.InsertBefore(add)
		} else {
			l.PushBack(add)
		}
	}
}
