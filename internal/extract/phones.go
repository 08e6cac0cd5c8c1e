package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// phoneCandidatePattern is deliberately loose; the phone-number grammar and
// FilterPhones do the real judging.
var phoneCandidatePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{5,20}\d`)

var (
	ipv4Pattern      = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)
	bareDigitRun6    = regexp.MustCompile(`^\d{6}$`)
	bareDigitRun8    = regexp.MustCompile(`^\d{8}$`)
	centuryPrefixRun = regexp.MustCompile(`^(19|20)\d{6}$`)
	nonDigit         = regexp.MustCompile(`\D`)
)

// Phones extracts phone numbers from text. Candidates are matched loosely,
// then judged by the phone-number grammar: only "possible" numbers are
// kept, formatted E.164 with an international-format fallback. Candidates
// the grammar cannot place in any region are reduced to digits and kept
// when at least 7 digits long.
func Phones(text, region string) []string {
	seen := make(map[string]struct{})
	for _, candidate := range phoneCandidatePattern.FindAllString(text, -1) {
		candidate = strings.TrimSpace(candidate)
		num, err := phonenumbers.Parse(candidate, region)
		if err != nil {
			digits := nonDigit.ReplaceAllString(candidate, "")
			if len(digits) >= 7 {
				seen[digits] = struct{}{}
			}
			continue
		}
		if !phonenumbers.IsPossibleNumber(num) {
			continue
		}
		formatted := phonenumbers.Format(num, phonenumbers.E164)
		if formatted == "" {
			formatted = phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
		}
		if formatted != "" {
			seen[formatted] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// FilterPhones rejects number-shaped noise: dates, IPv4 addresses,
// ascending digit sequences and plausible Unix timestamps. Survivors are
// kept only when their digit count (ignoring a leading +) is within [8,15].
func FilterPhones(numbers []string) []string {
	kept := make(map[string]struct{})
	for _, raw := range numbers {
		num := strings.TrimSpace(raw)
		num = strings.ReplaceAll(num, "++", "+")
		if num == "" {
			continue
		}
		if ipv4Pattern.MatchString(num) {
			continue
		}
		if looksLikeDate(num) {
			continue
		}
		digits := nonDigit.ReplaceAllString(num, "")
		if isAscendingSequence(digits) {
			continue
		}
		if !strings.HasPrefix(num, "+") && looksLikeUnixTimestamp(digits) {
			continue
		}
		if len(digits) < 8 || len(digits) > 15 {
			continue
		}
		kept[num] = struct{}{}
	}
	return sortedKeys(kept)
}

// looksLikeDate matches the common all-digit date renderings. Bare 6 and 8
// digit runs cover YYYYMMDD and DDMMYYYY without needing calendar checks;
// the century prefix form catches dates embedded in formatted strings.
func looksLikeDate(s string) bool {
	return bareDigitRun6.MatchString(s) ||
		bareDigitRun8.MatchString(s) ||
		centuryPrefixRun.MatchString(s)
}

func looksLikeUnixTimestamp(digits string) bool {
	if len(digits) != 10 {
		return false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return false
	}
	// Roughly 2001 through 2038.
	return v >= 1_000_000_000 && v <= 2_200_000_000
}

func isAscendingSequence(digits string) bool {
	if len(digits) < 6 {
		return false
	}
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[i-1]+1 {
			return false
		}
	}
	return true
}
