package core

import "time"

// User 是用户实体，归实体存储所有，对推荐核心只读。
//
// 维度          作用
// 偏好权重      category → weight，内容/规则调权
// 喜好类目/标签  偏好加权规则
// 年龄/国家      年龄限制、地域限制过滤
type User struct {
	ID string

	// Preferences 是显式偏好：category → weight
	Preferences map[string]float64

	FavoriteCategories []string
	FavoriteTags       []string

	// Age 为空表示未知年龄，年龄过滤规则对其不生效
	Age     *int
	Country string

	CreatedAt time.Time
}

// LikesCategory 判断类目是否属于用户显式喜好。
func (u *User) LikesCategory(category string) bool {
	if u == nil || category == "" {
		return false
	}
	for _, c := range u.FavoriteCategories {
		if c == category {
			return true
		}
	}
	return false
}

// LikesAnyTag 判断标签集合是否与用户喜好标签有交集。
func (u *User) LikesAnyTag(tags []string) bool {
	if u == nil || len(u.FavoriteTags) == 0 {
		return false
	}
	for _, t := range tags {
		for _, f := range u.FavoriteTags {
			if t == f {
				return true
			}
		}
	}
	return false
}

// GetPreferenceWeight 获取类目偏好权重。
func (u *User) GetPreferenceWeight(category string) float64 {
	if u == nil || u.Preferences == nil {
		return 0
	}
	return u.Preferences[category]
}
