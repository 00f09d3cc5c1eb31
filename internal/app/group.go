package app

import (
	"sort"

	"github.com/John-Robertt/Renshot/internal/domain"
)

// GroupByStamp 把截图文件按 (命名代, 解析时刻) 分组（Group 只存 file index）。
//
// - groups 稳定排序：按时刻升序，时刻相同现代代在前
// - group 内 FileIdx 稳定排序：无编号文件在前，其后按 Seq 升序
//
// 分组是一种划分：每个输入文件恰好落入一个组；单文件组与多文件组走
// 完全相同的处理路径（一组一次远端调用，省费用只是顺带的）。
func GroupByStamp(files []domain.ShotFile) []domain.Group {
	index := make(map[domain.GroupKey]int, 64)
	groups := make([]domain.Group, 0, 64)

	for i := range files {
		key := domain.GroupKey{
			Convention: files[i].Convention,
			StampUnix:  files[i].Stamp.Unix(),
		}
		if idx, ok := index[key]; ok {
			groups[idx].FileIdx = append(groups[idx].FileIdx, i)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, domain.Group{
			Key:     key,
			FileIdx: []int{i},
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].Key, groups[j].Key
		if a.StampUnix != b.StampUnix {
			return a.StampUnix < b.StampUnix
		}
		return a.Convention == domain.ConventionModern && b.Convention != domain.ConventionModern
	})
	for i := range groups {
		idx := groups[i].FileIdx
		sort.SliceStable(idx, func(a, b int) bool {
			return seqKey(files[idx[a]]) < seqKey(files[idx[b]])
		})
	}
	return groups
}

// seqKey 给组内排序用：无编号排最前。
func seqKey(f domain.ShotFile) int {
	if !f.HasSeq {
		return -1
	}
	return f.Seq
}
