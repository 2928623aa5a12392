package utils

import "sort"

// Find 按ID批量查找
// 参数：data-按ID升序排列的数据，id-取ID的函数，ids-待查找的ID
// 返回：找到的数据（按ids顺序），不存在的ID
// 说明：ids为空时返回全部数据
func Find[T any](data []T, id func(T) int32, ids []int32) (okData []T, failedIDs []int32) {
	if len(ids) == 0 {
		return data, nil
	}
	okData = make([]T, 0, len(ids))
	for _, want := range ids {
		i := sort.Search(len(data), func(i int) bool { return id(data[i]) >= want })
		if i < len(data) && id(data[i]) == want {
			okData = append(okData, data[i])
		} else {
			failedIDs = append(failedIDs, want)
		}
	}
	return
}
