package recall

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/rushteam/recengine/core"
)

// CorpusConfig 是 TF-IDF 向量化配置。
type CorpusConfig struct {
	// MaxFeatures 是词表上限（按全语料词频保留），默认 500，< 0 表示不限制
	MaxFeatures int

	// NGramMax 是最大 n-gram 长度，默认 2（unigram + bigram）
	NGramMax int

	// StopWords 为空时使用内置英文停用词
	StopWords map[string]struct{}
}

func (c CorpusConfig) withDefaults() CorpusConfig {
	if c.MaxFeatures == 0 {
		c.MaxFeatures = 500
	}
	if c.NGramMax <= 0 {
		c.NGramMax = 2
	}
	if c.StopWords == nil {
		c.StopWords = englishStopWords
	}
	return c
}

// Corpus 是不可变的 TF-IDF 物品向量索引。
//
// 文本 = title + description + category + tags；
// 权重 = 原始词频 × idf，idf = ln((1+N)/(1+df)) + 1；向量做 L2 归一化。
// 没有任何有效词项的物品没有向量，不参与内容打分。
// 每次 BuildCorpus 都从头构建，没有增量状态。
type Corpus struct {
	vectors    map[string]map[string]float64
	categories map[string]string
	idf        map[string]float64
	ids        []string
	builtAt    time.Time
}

// BuildCorpus 从物品全集构建语料索引。
func BuildCorpus(items []*core.Item, cfg CorpusConfig, builtAt time.Time) *Corpus {
	cfg = cfg.withDefaults()
	c := &Corpus{
		vectors:    make(map[string]map[string]float64),
		categories: make(map[string]string, len(items)),
		idf:        make(map[string]float64),
		builtAt:    builtAt,
	}

	counts := make(map[string]map[string]int, len(items))
	df := make(map[string]int)
	total := make(map[string]int)
	for _, it := range items {
		if it == nil || it.ID == "" {
			continue
		}
		c.categories[it.ID] = it.Category
		terms := Analyze(itemText(it), cfg.StopWords, cfg.NGramMax)
		if len(terms) == 0 {
			continue
		}
		tf := make(map[string]int)
		for _, t := range terms {
			tf[t]++
			total[t]++
		}
		for t := range tf {
			df[t]++
		}
		counts[it.ID] = tf
	}

	vocab := make([]string, 0, len(total))
	for t := range total {
		vocab = append(vocab, t)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if total[vocab[i]] != total[vocab[j]] {
			return total[vocab[i]] > total[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})
	if cfg.MaxFeatures > 0 && len(vocab) > cfg.MaxFeatures {
		vocab = vocab[:cfg.MaxFeatures]
	}

	n := float64(len(items))
	for _, t := range vocab {
		c.idf[t] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	for id, tf := range counts {
		vec := make(map[string]float64, len(tf))
		var sq float64
		for t, cnt := range tf {
			idf, ok := c.idf[t]
			if !ok {
				continue
			}
			w := float64(cnt) * idf
			vec[t] = w
			sq += w * w
		}
		if sq == 0 {
			continue
		}
		l := math.Sqrt(sq)
		for t := range vec {
			vec[t] /= l
		}
		c.vectors[id] = vec
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)
	return c
}

func itemText(it *core.Item) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{it.Title, it.Description, it.Category, strings.Join(it.Tags, " ")} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Analyze 将文本切分为词项：小写化，按非字母数字切分，丢弃单字符词与停用词，
// 再由相邻词生成 2..ngramMax 的 n-gram。
func Analyze(text string, stop map[string]struct{}, ngramMax int) []string {
	raw := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	words := raw[:0]
	for _, w := range raw {
		if len([]rune(w)) < 2 {
			continue
		}
		if _, ok := stop[w]; ok {
			continue
		}
		words = append(words, w)
	}
	out := make([]string, 0, len(words)*ngramMax)
	out = append(out, words...)
	for n := 2; n <= ngramMax; n++ {
		for i := 0; i+n <= len(words); i++ {
			out = append(out, strings.Join(words[i:i+n], " "))
		}
	}
	return out
}

// Vector 返回物品的归一化向量（只读）。
func (c *Corpus) Vector(itemID string) (map[string]float64, bool) {
	v, ok := c.vectors[itemID]
	return v, ok
}

// Category 返回构建时记录的物品类目。
func (c *Corpus) Category(itemID string) string { return c.categories[itemID] }

// ItemIDs 返回有向量的物品 id（升序）。
func (c *Corpus) ItemIDs() []string { return c.ids }

// VocabularySize 返回词表大小。
func (c *Corpus) VocabularySize() int { return len(c.idf) }

func (c *Corpus) Size() int { return len(c.vectors) }

func (c *Corpus) BuiltAt() time.Time { return c.builtAt }

// SimilarItems 返回与 itemID 内容相似度为正的前 n 个物品，n <= 0 不截断。
func (c *Corpus) SimilarItems(itemID string, n int) []core.Candidate {
	src, ok := c.vectors[itemID]
	if !ok {
		return nil
	}
	out := make([]core.Candidate, 0)
	for _, id := range c.ids {
		if id == itemID {
			continue
		}
		if s := dot(src, c.vectors[id]); s > 0 {
			out = append(out, core.Candidate{ItemID: id, Score: s})
		}
	}
	core.SortCandidates(out)
	return core.TruncateCandidates(out, n)
}

func dot(a, b map[string]float64) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var s float64
	for _, k := range keys {
		if y, ok := b[k]; ok {
			s += a[k] * y
		}
	}
	return s
}
