package recall

import (
	"fmt"
	"math"

	"github.com/rushteam/recengine/core"
)

// SimilarityMetric 是相似度度量方式。
type SimilarityMetric string

const (
	Cosine  SimilarityMetric = "cosine"
	Pearson SimilarityMetric = "pearson"
)

// ParseSimilarityMetric 解析度量名称，空值为 cosine，未知名称返回配置错误。
func ParseSimilarityMetric(s string) (SimilarityMetric, error) {
	switch SimilarityMetric(s) {
	case "", Cosine:
		return Cosine, nil
	case Pearson:
		return Pearson, nil
	default:
		return "", core.NewConfigurationError(core.ModuleRecall, "recall: unknown similarity metric %q", s)
	}
}

// CosineSimilarity 计算两个稀疏向量的余弦相似度，任一为零向量时返回 0。
func CosineSimilarity(a, b map[string]float64) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	var dot float64
	for k, x := range a {
		if y, ok := b[k]; ok {
			dot += x * y
		}
	}
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (na * nb)
}

// PearsonSimilarity 计算两个稀疏向量在共同维度上的皮尔逊相关系数，共同维度少于 2 时返回 0。
func PearsonSimilarity(a, b map[string]float64) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	xs := make([]float64, 0, len(a))
	ys := make([]float64, 0, len(a))
	for k, x := range a {
		if y, ok := b[k]; ok {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= n
	my /= n
	var num, dx, dy float64
	for i := range xs {
		a, b := xs[i]-mx, ys[i]-my
		num += a * b
		dx += a * a
		dy += b * b
	}
	if dx == 0 || dy == 0 {
		return 0
	}
	return num / math.Sqrt(dx*dy)
}

// Similarity 按度量计算相似度。
func Similarity(metric SimilarityMetric, a, b map[string]float64) float64 {
	switch metric {
	case Pearson:
		return PearsonSimilarity(a, b)
	case Cosine, "":
		return CosineSimilarity(a, b)
	default:
		panic(fmt.Sprintf("recall: unknown similarity metric %q", metric))
	}
}

func norm(v map[string]float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}
