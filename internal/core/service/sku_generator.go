package service

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/rl1809/oms-inventory/internal/core/domain"
)

const (
	skuSegmentMax = 20
	skuModelMax   = 30
	skuTokenLen   = 5
	skuSegments   = 5
)

var skuTokenPattern = regexp.MustCompile(`^[A-Z0-9]{5}$`)

type SKUInput struct {
	Category string
	Model    string
	Color    string
	Brand    string
}

// SKUGenerator builds CATEGORY-MODEL-COLOR-BRAND-TOKEN identifiers. The token
// mixes the wall clock and a random draw, so identical input yields a
// different SKU on every call and no uniqueness lookup is needed.
type SKUGenerator struct {
	opts   options
	random func() uint64
}

func NewSKUGenerator(opts ...Option) *SKUGenerator {
	return &SKUGenerator{opts: newOptions(opts), random: rand.Uint64}
}

func (g *SKUGenerator) GenerateSKU(in SKUInput) (string, error) {
	category := sanitizeSKUSegment(in.Category, skuSegmentMax)
	model := sanitizeSKUSegment(in.Model, skuModelMax)
	if category == "" || model == "" {
		return "", domain.ErrInvalidSKUInput
	}
	color := sanitizeSKUSegment(in.Color, skuSegmentMax)
	brand := sanitizeSKUSegment(in.Brand, skuSegmentMax)

	token := g.token(category + model + color + brand)
	return strings.Join([]string{category, model, color, brand, token}, "-"), nil
}

func (g *SKUGenerator) token(seed string) string {
	h := xxhash.New()
	h.WriteString(seed)
	h.WriteString(strconv.FormatInt(g.opts.now().UnixNano(), 10))
	h.WriteString(strconv.FormatUint(g.random(), 10))

	encoded := strings.ToUpper(strconv.FormatUint(h.Sum64(), 36))
	if len(encoded) < skuTokenLen {
		encoded = strings.Repeat("0", skuTokenLen-len(encoded)) + encoded
	}
	return encoded[len(encoded)-skuTokenLen:]
}

// sanitizeSKUSegment keeps ASCII letters and digits plus Hangul, then caps the
// result at max runes.
func sanitizeSKUSegment(s string, max int) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == max {
			break
		}
		if isSKURune(r) {
			b.WriteRune(r)
			n++
		}
	}
	return b.String()
}

func isSKURune(r rune) bool {
	if r < unicode.MaxASCII {
		return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
	}
	return unicode.Is(unicode.Hangul, r)
}

func IsValidSKU(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != skuSegments {
		return false
	}
	return parts[0] != "" && parts[1] != "" && skuTokenPattern.MatchString(parts[4])
}

func ParseSKU(s string) (*domain.SKUParts, bool) {
	if !IsValidSKU(s) {
		return nil, false
	}
	parts := strings.Split(s, "-")
	return &domain.SKUParts{
		Category: parts[0],
		Model:    parts[1],
		Color:    parts[2],
		Brand:    parts[3],
		Hash:     parts[4],
	}, true
}
