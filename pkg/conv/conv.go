// Package conv 提供规则配置（YAML/JSON 解析结果）取值用的类型转换工具。
//
// YAML 解码得到 int，JSON 解码得到 float64，两者在这里统一处理。
package conv

import "strconv"

// ToFloat64 把数值类型转为 float64，非数值（含 bool、字符串）返回 false。
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// ToInt 把整数值转为 int；带小数部分的浮点数返回 false。
func ToInt(v any) (int, bool) {
	f, ok := ToFloat64(v)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// Strings 把 []any 转为 []string：字符串原样保留，整数格式化为十进制，其余元素跳过。
func Strings(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		} else if n, ok := ToInt(e); ok {
			out = append(out, strconv.Itoa(n))
		}
	}
	return out
}

// Get 按 key 取 T 类型的值，缺失或类型不符时返回 def。
func Get[T any](m map[string]any, key string, def T) T {
	if t, ok := m[key].(T); ok {
		return t
	}
	return def
}

// Int 按 key 取整数，缺失或不是整数时返回 def。
func Int(m map[string]any, key string, def int) int {
	if n, ok := ToInt(m[key]); ok {
		return n
	}
	return def
}
