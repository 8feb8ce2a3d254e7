package market

import (
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/marketlens/marketlens/internal/models"
)

// Resolver is an optional external lookup consulted only when every local
// detection rule is inconclusive.
type Resolver interface {
	ResolveMarket(raw string) (models.Market, bool)
}

// Detector classifies raw ticker strings into markets and produces
// canonical codes. Detection is a fixed rule cascade evaluated in order,
// first match wins; the final fallback is HongKongEquity with a logged
// warning, preserving the upstream system's documented default.
type Detector struct {
	logger   *logrus.Logger
	resolver Resolver
}

// NewDetector creates a detector. resolver may be nil.
func NewDetector(logger *logrus.Logger, resolver Resolver) *Detector {
	return &Detector{logger: logger, resolver: resolver}
}

var (
	hkTokens       = []string{".HK", "HK"}
	domesticTokens = []string{".SH", ".SZ", ".BJ", "SH", "SZ", "BJ"}
	usTokens       = []string{".US", ".NASDAQ", ".NYSE", "US"}
)

// domesticLeaders are the leading digits of six-digit mainland codes.
const domesticLeaders = "60398"

// Detect resolves the market for a raw ticker string. It is total and
// deterministic for well-formed input.
func (d *Detector) Detect(raw string) models.Market {
	upper := strings.ToUpper(strings.TrimSpace(raw))

	if containsAny(upper, hkTokens) {
		return models.HongKongEquity
	}
	if containsAny(upper, domesticTokens) {
		return models.DomesticEquity
	}

	digits := digitsOf(upper)
	if len(digits) == 5 {
		return models.HongKongEquity
	}
	if len(digits) == 6 && strings.ContainsRune(domesticLeaders, rune(digits[0])) {
		return models.DomesticEquity
	}

	if containsAny(upper, usTokens) {
		return models.USEquity
	}

	if d.resolver != nil {
		if m, ok := d.resolver.ResolveMarket(raw); ok && m.Valid() {
			return m
		}
	}

	d.logger.WithFields(logrus.Fields{
		"symbol": raw,
	}).Warn("Market detection inconclusive, defaulting to Hong Kong")
	return models.HongKongEquity
}

// Normalize produces the canonical code for a raw ticker in a known
// market: punctuation and whitespace are stripped, a redundant market
// suffix is removed, and numeric Hong Kong codes are left-padded to five
// digits. Pure and deterministic.
func Normalize(raw string, m models.Market) string {
	code := strings.ToUpper(raw)
	code = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, code)

	switch m {
	case models.HongKongEquity:
		code = strings.TrimSuffix(code, "HK")
		if isNumeric(code) && len(code) < 5 {
			code = strings.Repeat("0", 5-len(code)) + code
		}
	case models.DomesticEquity:
		for _, suffix := range []string{"SH", "SZ", "BJ"} {
			if strings.HasSuffix(code, suffix) && len(code) > len(suffix) {
				code = strings.TrimSuffix(code, suffix)
				break
			}
		}
	case models.USEquity:
		code = strings.TrimSuffix(code, "US")
	}

	return code
}

// Resolve detects the market and canonicalizes the code in one step.
func (d *Detector) Resolve(raw string) models.Symbol {
	m := d.Detect(raw)
	return models.Symbol{
		Raw:       raw,
		Canonical: Normalize(raw, m),
		Market:    m,
	}
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
