package cache

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Key 是推荐结果缓存的 key：(user, algorithm, top_n, 参数指纹)。
//
// RulesVersion 是计算时的规则集版本，参与指纹；规则变更后旧条目不再命中，等待 TTL 过期。
type Key struct {
	UserID       string
	Algorithm    string
	TopN         int
	Params       map[string]string
	RulesVersion uint64
}

// Fingerprint 对参数做 FNV-64a 哈希；与 map 遍历顺序无关，空参数得到固定值。
func Fingerprint(params map[string]string) string {
	return fingerprint(params, 0)
}

func fingerprint(params map[string]string, rulesVersion uint64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := fnv.New64a()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(params[k]))
		h.Write([]byte{0})
	}
	if rulesVersion != 0 {
		h.Write([]byte("rules"))
		h.Write([]byte{0})
		h.Write(strconv.AppendUint(nil, rulesVersion, 10))
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// userPrefix 返回 {prefix}user:{uid}:。
func userPrefix(prefix, userID string) string {
	return prefix + "user:" + userID + ":"
}

// format 返回 {prefix}user:{uid}:{algo}:{topN}:{hash}。
func (k Key) format(prefix string) string {
	var b strings.Builder
	b.WriteString(userPrefix(prefix, k.UserID))
	b.WriteString(k.Algorithm)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(k.TopN))
	b.WriteByte(':')
	b.WriteString(fingerprint(k.Params, k.RulesVersion))
	return b.String()
}

// String 返回默认前缀 "recs:" 下的 key。
func (k Key) String() string { return k.format(DefaultKeyPrefix) }
