package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
)

// Sparse term-frequency vectors for the lexical path. Terms are hashed into
// a fixed index space and weighted with BM25-style saturation so a term
// repeated twenty times does not drown out the rest of the passage.

type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	passageTermSaturation = 1.2
	queryTermSaturation   = 1.2
	filenameTermWeight    = 1.5
	maxSparseTerms        = 256
)

func encodeSparsePassage(text, filename string) sparseVector {
	tf := termFrequencies(text, 1.0)
	// Filename terms carry extra weight; users often search by the
	// document they half-remember.
	for term, w := range termFrequencies(filename, filenameTermWeight) {
		tf[term] += w
	}
	return saturateTerms(tf, passageTermSaturation)
}

func encodeSparseQuery(query string) sparseVector {
	return saturateTerms(termFrequencies(query, 1.0), queryTermSaturation)
}

func termFrequencies(s string, weight float64) map[uint32]float64 {
	tokens := tokenizeAlphaNum(s)
	tf := make(map[uint32]float64, len(tokens))
	for _, token := range tokens {
		tf[hashTerm(token)] += weight
	}
	return tf
}

// saturateTerms converts raw frequencies into bounded weights: each term
// contributes f*(k+1)/(f+k), approaching k+1 as f grows.
func saturateTerms(tf map[uint32]float64, k float64) sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}

	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > maxSparseTerms {
		indices = indices[:maxSparseTerms]
	}

	values := make([]float32, len(indices))
	for i, idx := range indices {
		freq := tf[idx]
		weight := freq * (k + 1.0) / (freq + k)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values[i] = float32(weight)
	}
	return sparseVector{Indices: indices, Values: values}
}

func hashTerm(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	if sum := h.Sum32(); sum != 0 {
		return sum
	}
	return 1
}

// tokenizeAlphaNum splits on anything outside [a-z0-9] after lowercasing,
// so "Chennai-Retail_2022.pdf" and "chennai retail 2022 pdf" produce the
// same terms.
func tokenizeAlphaNum(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		isLower := r >= 'a' && r <= 'z'
		isDigit := r >= '0' && r <= '9'
		return !isLower && !isDigit
	})
}
