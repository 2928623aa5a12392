// 随机数引擎，包装了golang.org/x/exp/rand，提供了仿真中常用的随机数生成方法
package randengine

import (
	"log"

	"golang.org/x/exp/rand"
)

// Engine 随机数引擎
// 功能：以固定种子生成可复现的随机序列
// 说明：非线程安全，共享引擎只在初始化与提交阶段（串行）使用，决策阶段每辆车只用自己派生的引擎
type Engine struct {
	*rand.Rand // 底层随机数生成器
}

// New 创建随机数引擎
// 功能：初始化一个新的随机数引擎实例
// 参数：seed-随机数种子
// 返回：随机数引擎指针
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed))}
}

// Fork 派生子引擎
// 功能：用当前引擎产生的种子创建一个独立的子引擎
// 参数：salt-区分不同用途的偏移量
// 说明：路网、货物、车辆各用一个子引擎，某一部分多消耗随机数不会改变其他部分的结果
func (e *Engine) Fork(salt uint64) *Engine {
	return New(e.Uint64() ^ salt)
}

// DiscreteDistribution 按给定权重生成随机下标
// 功能：根据权重数组生成离散分布的随机数
// 参数：weight-权重数组，每个元素表示对应索引的概率权重
// 返回：随机生成的索引值（0到len(weight)-1）
// 算法说明：
// 1. 计算总权重并在[0, 总权重)范围内生成随机数
// 2. 累积权重直到超过随机数，返回该下标
// 3. 权重全为0或数组为空时panic
func (e *Engine) DiscreteDistribution(weight []float64) int32 {
	random := .0
	for _, w := range weight {
		random += w
	}
	random *= e.Float64()
	sum := 0.
	for i, w := range weight {
		sum += w
		if sum > random {
			return int32(i)
		}
	}
	log.Panicf("randengine: DiscreteDistribution: sum: %f random: %f", sum, random)
	return -1
}

// PTrue 以指定概率返回true
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Uniform 在[lo, hi]区间均匀采样
func (e *Engine) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*e.Float64()
}
