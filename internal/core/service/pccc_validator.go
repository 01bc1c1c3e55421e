package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rl1809/oms-inventory/internal/core/domain"
)

const (
	PCCCRequiredError    = "PCCC is required"
	PCCCFormatError      = "PCCC must be P or M followed by 12 digits"
	PCCCPlaceholderError = "PCCC is a known placeholder or test code"

	defaultPCCCShowLast = 4
	pcccDigits          = 12
)

var (
	pcccPattern    = regexp.MustCompile(`^[PM]\d{12}$`)
	pcccDigitsOnly = regexp.MustCompile(`^\d{12}$`)
	pcccSeparators = strings.NewReplacer(" ", "", "-", "", "_", "", ".", "")
)

// Codes that pass the format check but are never issued.
var placeholderPCCCs = map[string]struct{}{
	"P000000000000": {},
	"P111111111111": {},
	"P999999999999": {},
	"M000000000000": {},
	"M111111111111": {},
	"P012345678901": {},
	"P987654321098": {},
}

func IsValidPCCCFormat(code string) bool {
	return pcccPattern.MatchString(strings.ToUpper(strings.TrimSpace(code)))
}

// NormalizePCCC strips separators, uppercases, and adds the P prefix to a
// bare 12-digit code.
func NormalizePCCC(code string) (string, bool) {
	cleaned := strings.ToUpper(pcccSeparators.Replace(strings.TrimSpace(code)))
	if pcccDigitsOnly.MatchString(cleaned) {
		cleaned = "P" + cleaned
	}
	if !pcccPattern.MatchString(cleaned) {
		return "", false
	}
	return cleaned, true
}

func ValidatePCCC(code string) domain.PCCCValidation {
	if strings.TrimSpace(code) == "" {
		return domain.PCCCValidation{Errors: []string{PCCCRequiredError}}
	}

	normalized, ok := NormalizePCCC(code)
	if !ok {
		return domain.PCCCValidation{Errors: []string{PCCCFormatError}}
	}
	if _, blocked := placeholderPCCCs[normalized]; blocked {
		return domain.PCCCValidation{Normalized: normalized, Errors: []string{PCCCPlaceholderError}}
	}
	return domain.PCCCValidation{IsValid: true, Normalized: normalized}
}

func ValidatePCCCBatch(codes []string) map[string]domain.PCCCValidation {
	results := make(map[string]domain.PCCCValidation, len(codes))
	for _, code := range codes {
		results[code] = ValidatePCCC(code)
	}
	return results
}

// MaskPCCC hides all but the last showLast digits, e.g. P****-****-9012.
// showLast <= 0 means 4. Input that cannot be normalized is masked entirely.
func MaskPCCC(code string, showLast int) string {
	normalized, ok := NormalizePCCC(code)
	if !ok {
		return strings.Repeat("*", utf8.RuneCountInString(strings.TrimSpace(code)))
	}
	if showLast <= 0 {
		showLast = defaultPCCCShowLast
	}
	if showLast > pcccDigits {
		showLast = pcccDigits
	}

	hidden := pcccDigits - showLast
	masked := normalized[:1] + strings.Repeat("*", hidden) + normalized[1+hidden:]
	return hyphenatePCCC(masked)
}

// FormatPCCCForDisplay renders a code as P1234-5678-9012. Input that cannot be
// normalized is returned trimmed but otherwise untouched.
func FormatPCCCForDisplay(code string) string {
	normalized, ok := NormalizePCCC(code)
	if !ok {
		return strings.TrimSpace(code)
	}
	return hyphenatePCCC(normalized)
}

func hyphenatePCCC(s string) string {
	return s[:5] + "-" + s[5:9] + "-" + s[9:]
}
