package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// H:MM:SS; eggs hatch within 1:59:59. The hour must not follow another
	// digit, so "12:34:56" is not read as "2:34:56".
	eggTimerPattern = regexp.MustCompile(`(?:^|[^0-9])(0?[0-1]:[0-5][0-9]:[0-5][0-9])`)
	// raids last at most 2:59:59
	expireTimerPattern = regexp.MustCompile(`(?:^|[^0-9])(0?[0-2]:[0-5][0-9]:[0-5][0-9])`)
	phoneClockPattern  = regexp.MustCompile(`1?[0-9]:[0-5][0-9]`)
	levelPattern       = regexp.MustCompile(`[1-4]?[0-9]`)
	// the name is followed by the buddy/ornament row, which reads as "&"
	trainerNamePattern = regexp.MustCompile(`\S{5,20}\n+&`)
	xpPattern          = regexp.MustCompile(`[0-9,\.]{3,9}/*\s*[0-9,\.]{3,12}`)
	bannerPattern      = regexp.MustCompile(
		`(?P<date>[A-Za-z]{3,10} [0-9]{1,2} [0-9]{1,2}:[0-9]{1,2}\s*[APM]{2}\s*[-—]*\s*[0-9]{1,2}:[0-9]{1,2}\s*[APM]{2})` +
			`\s+(?P<gym>[\S+ ]+)\s*` +
			`(?P<location>[A-Za-z ]+[,\.]+ [A-Za-z]+[,\.]+ [A-Za-z ]+)(?:\s|$)`)

	wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// MaxLevel is the level cap; capped trainers show no XP progress.
const MaxLevel = 40

// Tier glyphs; everything else on the tier row is noise.
const tierWhitelist = "@Q®©"

// gymNoise are short tokens Tesseract hallucinates from the gym badge and
// the photo frame.
var gymNoise = map[string]bool{
	"o": true, "os": true, "oS": true, "So": true, "S": true,
	"C": true, "CS": true, "O": true, " )": true, "Q": true,
}

// MatchEggTimer returns the first H:MM:SS hatch countdown in text.
func MatchEggTimer(text string) (string, bool) {
	return find(eggTimerPattern, text)
}

// MatchExpireTimer returns the first H:MM:SS raid countdown in text.
func MatchExpireTimer(text string) (string, bool) {
	return find(expireTimerPattern, text)
}

// MatchPhoneClock returns the first H:MM status bar time in text.
func MatchPhoneClock(text string) (string, bool) {
	return find(phoneClockPattern, text)
}

// MatchLevel returns the first 1-2 digit trainer level in text.
func MatchLevel(text string) (string, bool) {
	return find(levelPattern, text)
}

func find(re *regexp.Regexp, text string) (string, bool) {
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", false
	}
	// patterns with a boundary prefix capture the value in group 1
	if len(loc) >= 4 && loc[2] >= 0 {
		return text[loc[2]:loc[3]], true
	}
	return text[loc[0]:loc[1]], true
}

// ParseTrainerName returns the trainer name preceding the "&" marker line.
func ParseTrainerName(text string) (string, bool) {
	m, ok := find(trainerNamePattern, text)
	if !ok {
		return "", false
	}
	name := strings.TrimSpace(strings.SplitN(m, "&", 2)[0])
	return name, name != ""
}

// ParseXP returns the numerator of a "current / goal" XP reading with
// thousands separators removed.
func ParseXP(text string) (string, bool) {
	m, ok := find(xpPattern, text)
	if !ok {
		return "", false
	}
	var head string
	if i := strings.Index(m, "/"); i >= 0 {
		head = strings.TrimSpace(m[:i])
	} else if fields := strings.Fields(m); len(fields) > 0 {
		head = fields[0]
	}
	head = strings.NewReplacer(",", "", ".", "").Replace(head)
	return head, head != ""
}

// Banner is the decomposed text of an expiring raid pass banner.
type Banner struct {
	Date     string
	Gym      string
	Location string
}

// ParseBanner splits banner text into its date range, gym and location.
// All three groups must match.
func ParseBanner(text string) (Banner, bool) {
	m := bannerPattern.FindStringSubmatch(text)
	if m == nil {
		return Banner{}, false
	}
	b := Banner{
		Date:     strings.TrimSpace(m[bannerPattern.SubexpIndex("date")]),
		Gym:      strings.TrimSpace(m[bannerPattern.SubexpIndex("gym")]),
		Location: strings.TrimSpace(m[bannerPattern.SubexpIndex("location")]),
	}
	if b.Date == "" || b.Gym == "" || b.Location == "" {
		return Banner{}, false
	}
	return b, true
}

// CountTierGlyphs counts whitelisted tier glyphs once whitespace is removed.
// The tier is the count; zero glyphs means no tier was read.
func CountTierGlyphs(text string) (int, bool) {
	n := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		if strings.ContainsRune(tierWhitelist, r) {
			n++
		}
	}
	return n, n > 0
}

// RemoveTrailings drops known noise words from a line.
func RemoveTrailings(line string) string {
	return wordPattern.ReplaceAllStringFunc(line, func(w string) string {
		if gymNoise[w] {
			return ""
		}
		return w
	})
}

// LongestWord returns the rune length of the longest space separated word.
func LongestWord(line string) int {
	longest := 0
	for _, w := range strings.Split(line, " ") {
		if n := utf8.RuneCountInString(w); n > longest {
			longest = n
		}
	}
	return longest
}

// CleanGymName filters the lines of a gym banner reading and joins the
// survivors. Lines mentioning EX raids, short lines and lines without a
// word of at least four characters are dropped.
func CleanGymName(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if utf8.RuneCountInString(line) <= 3 {
			continue
		}
		if strings.Contains(line, "EXRAID") || strings.Contains(line, "EX RAID") {
			continue
		}
		if utf8.RuneCountInString(line) < 5 || LongestWord(line) < 4 {
			continue
		}
		kept = append(kept, RemoveTrailings(line))
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

// BossTokens splits a boss reading on whitespace and keeps tokens longer
// than three characters.
func BossTokens(text string) []string {
	tokens := []string{}
	for _, tok := range strings.Fields(text) {
		if utf8.RuneCountInString(tok) > 3 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
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
