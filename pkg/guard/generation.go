// Package guard 提供基于代数（generation）的写回保护。
//
// 计算开始前对相关 key 取快照，失效时递增代数；写回前后各校验一次，
// 若期间发生失效则放弃（或撤销）写回，保证失效之后不会留下旧值。
//
// 失效方必须先 Bump 再删除缓存；写回方必须先 Set 再 Valid 复核，复核失败时删除刚写入的值。
// 计算结束后必须 Release 快照。
//
// 只有被进行中的快照引用的 key 才有代数记录：没有快照引用时失效无需记录，
// 最后一个快照释放后记录即删除，表的大小不超过进行中的计算所涉及的 key 数。
package guard

import "sync"

type entry struct {
	refs int
	gen  uint64
}

// Generations 记录进行中的快照所引用 key 的失效代数，以及全局代数。
type Generations struct {
	mu     sync.Mutex
	global uint64
	keys   map[string]*entry
}

func NewGenerations() *Generations {
	return &Generations{keys: make(map[string]*entry)}
}

// Token 是一次计算开始时的代数快照。
type Token struct {
	global uint64
	keys   []string
	gens   []uint64
}

// Snapshot 对若干 key 取当前代数快照，并持有这些 key 直到 Release。
func (g *Generations) Snapshot(keys ...string) Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := Token{global: g.global, keys: keys, gens: make([]uint64, len(keys))}
	for i, k := range keys {
		e, ok := g.keys[k]
		if !ok {
			e = &entry{}
			g.keys[k] = e
		}
		e.refs++
		t.gens[i] = e.gen
	}
	return t
}

// Valid 判断快照之后是否发生过相关失效。
func (g *Generations) Valid(t Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.global != t.global {
		return false
	}
	for i, k := range t.keys {
		e, ok := g.keys[k]
		if !ok || e.gen != t.gens[i] {
			return false
		}
	}
	return true
}

// Release 释放快照持有的 key；同一快照只能释放一次。
func (g *Generations) Release(t Token) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range t.keys {
		e, ok := g.keys[k]
		if !ok {
			continue
		}
		if e.refs--; e.refs <= 0 {
			delete(g.keys, k)
		}
	}
}

// Bump 使某个 key 之前的快照全部失效。
func (g *Generations) Bump(key string) {
	g.mu.Lock()
	if e, ok := g.keys[key]; ok {
		e.gen++
	}
	g.mu.Unlock()
}

// BumpAll 使所有快照失效。
func (g *Generations) BumpAll() {
	g.mu.Lock()
	g.global++
	g.mu.Unlock()
}

// Len 返回当前有记录的 key 数。
func (g *Generations) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.keys)
}
