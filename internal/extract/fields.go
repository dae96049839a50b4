/**
 * Field extractors - one per semantic field, each a fixed region plus a
 * pass plan and a validator
 */

package extract

import (
	"context"
	"strconv"

	"github.com/adverant/nexus/raidscan-worker/internal/catalog"
	"github.com/adverant/nexus/raidscan-worker/internal/fuzzy"
	"github.com/adverant/nexus/raidscan-worker/internal/imaging"
	"github.com/adverant/nexus/raidscan-worker/internal/ocr"
)

var (
	digitsMode = ocr.Mode{PSM: ocr.PSMSingleBlock, Whitelist: ":0123456789"}
	columnMode = ocr.Mode{PSM: ocr.PSMSingleColumn}
	tierMode   = ocr.Mode{PSM: ocr.PSMSingleLine, Whitelist: tierWhitelist + " "}
)

var (
	phoneClockPlan = Plan{
		Primary:  PassConfig{Thresholds: []float32{0, 10, 20}, Blur: true, Mode: digitsMode, Accept: Matching(phoneClockPattern)},
		Fallback: &PassConfig{Thresholds: []float32{40, 50, 60, 0, 10, 20}, Blur: true, Invert: true, Mode: digitsMode, Accept: Matching(phoneClockPattern)},
	}
	eggTimerPlan = Plan{
		Primary: PassConfig{Thresholds: []float32{0, 70, 10, 20, 80}, Invert: true, Mode: digitsMode, Accept: Matching(eggTimerPattern)},
	}
	expireTimerPlan = Plan{
		Primary: PassConfig{Thresholds: []float32{0, 70, 10}, Invert: true, Mode: digitsMode, Accept: Matching(expireTimerPattern)},
	}
	eggTierPasses  = PassConfig{Thresholds: []float32{251, 252}, Blur: true, Mode: tierMode}
	bossTierPasses = PassConfig{Thresholds: []float32{240, 251}, Blur: true, Mode: tierMode}
	gymNamePasses  = PassConfig{Thresholds: []float32{220, 210, 190}, Blur: true, Mode: columnMode}
	bossPlan       = Plan{
		Primary:  PassConfig{Thresholds: []float32{30, 40, 20, 50, 20, 60, 10, 70, 80}, Blur: true, Invert: true, Mode: columnMode},
		Fallback: &PassConfig{Thresholds: []float32{220, 252, 240, 230}, Blur: true, Mode: columnMode},
	}
	levelPlan = Plan{
		Primary: PassConfig{Thresholds: []float32{220, 230, 240}, Blur: true, Mode: columnMode, Accept: Matching(levelPattern)},
	}
	trainerNamePlan = Plan{
		Primary: PassConfig{Thresholds: []float32{180, 190}, Blur: true, Mode: columnMode, Accept: ParseTrainerName},
	}
	xpPlan = Plan{
		Primary: PassConfig{Thresholds: []float32{210, 220}, Blur: true, Mode: columnMode, Accept: ParseXP},
	}
	bannerPasses = PassConfig{Thresholds: []float32{180, 190, 200, 210}, Blur: true, Mode: columnMode}
)

// screen reads fields from one prepared screenshot. It implements the reader
// interfaces of every orchestrator.
type screen struct {
	img    *imaging.Image
	runner *Runner
	snap   *catalog.Snapshot
	region Region // boss name region; whole image for bare boss screenshots
}

func (s *screen) read(ctx context.Context, field Field, r Region, plan Plan) (FieldResult, error) {
	crop := Crop(s.img, r)
	defer crop.Close()

	out, err := s.runner.Run(ctx, field, crop, plan)
	if err != nil {
		return absent(field), err
	}
	return FieldResult{Field: field, Value: out.Value, Found: out.Found, Attempts: out.Attempts}, nil
}

// readAny tries each region in order and stops at the first one that yields.
func (s *screen) readAny(ctx context.Context, field Field, regions []Region, plan Plan) (FieldResult, error) {
	var attempts []string
	for _, r := range regions {
		res, err := s.read(ctx, field, r, plan)
		attempts = append(attempts, res.Attempts...)
		if err != nil {
			return absent(field), err
		}
		if res.Found {
			res.Attempts = attempts
			return res, nil
		}
	}
	res := absent(field)
	res.Attempts = attempts
	return res, nil
}

func (s *screen) PhoneClock(ctx context.Context) (FieldResult, error) {
	return s.read(ctx, FieldPhoneClock, regionPhoneClock, phoneClockPlan)
}

func (s *screen) EggTimer(ctx context.Context) (FieldResult, error) {
	return s.read(ctx, FieldEggTimer, regionEggTimer, eggTimerPlan)
}

func (s *screen) ExpireTimer(ctx context.Context) (FieldResult, error) {
	return s.read(ctx, FieldExpireTimer, regionExpireTimer, expireTimerPlan)
}

// GymNames collects the cleaned reading of every pass; the gym is found
// when at least one pass left a non-empty name.
func (s *screen) GymNames(ctx context.Context) (FieldResult, error) {
	crop := Crop(s.img, regionGymName)
	defer crop.Close()

	res := absent(FieldGymNames)
	err := s.runner.Each(ctx, FieldGymNames, crop, gymNamePasses, func(text string) bool {
		res.Attempts = append(res.Attempts, text)
		if name := CleanGymName(text); name != "" {
			res.Candidates = append(res.Candidates, name)
		}
		return false
	})
	if err != nil {
		return absent(FieldGymNames), err
	}
	if len(res.Candidates) > 0 {
		res.Value, res.Found = res.Candidates[0], true
	}
	return res, nil
}

// Tier counts tier glyphs. The glyph row sits lower on a hatched boss screen.
func (s *screen) Tier(ctx context.Context, boss bool) (FieldResult, error) {
	r, passes := regionEggTier, eggTierPasses
	if boss {
		r, passes = regionBossTier, bossTierPasses
	}
	crop := Crop(s.img, r)
	defer crop.Close()

	res := absent(FieldTier)
	err := s.runner.Each(ctx, FieldTier, crop, passes, func(text string) bool {
		res.Attempts = append(res.Attempts, text)
		if n, ok := CountTierGlyphs(text); ok {
			res.Value, res.Found = strconv.Itoa(n), true
			return true
		}
		return false
	})
	if err != nil {
		return absent(FieldTier), err
	}
	return res, nil
}

// Boss resolves the boss from its name or CP. Every pass contributes its
// token list to the returned scan trail.
func (s *screen) Boss(ctx context.Context) (FieldResult, [][]string, error) {
	crop := Crop(s.img, s.region)
	defer crop.Close()

	res := absent(FieldBoss)
	scans := [][]string{}
	visit := func(text string) bool {
		res.Attempts = append(res.Attempts, text)
		tokens := BossTokens(text)
		scans = append(scans, tokens)
		if m, ok := resolveBoss(tokens, s.snap); ok {
			res.Value, res.Score, res.Found = m.Value, m.Score, true
			return true
		}
		return false
	}

	if err := s.runner.Each(ctx, FieldBoss, crop, bossPlan.Primary, visit); err != nil {
		return absent(FieldBoss), scans, err
	}
	if !res.Found {
		if err := s.runner.Each(ctx, FieldBoss, crop, *bossPlan.Fallback, visit); err != nil {
			return absent(FieldBoss), scans, err
		}
	}
	if !res.Found {
		res.Candidates = bossNearMisses(scans, s.snap)
	}
	return res, scans, nil
}

// bossSuggestions caps the near-miss names kept on an unresolved boss.
const bossSuggestions = 3

// bossNearMisses picks the scanned word that most resembles a boss name and
// ranks the closest names for it with partial matching at the general
// cutoff. Alolan and other multi-word forms often read as one half of the
// name, which partial matching still catches. The result is diagnostic only
// and never becomes the field value.
func bossNearMisses(scans [][]string, snap *catalog.Snapshot) []string {
	if snap == nil {
		return nil
	}
	seen := map[string]bool{}
	var words []string
	for _, tokens := range scans {
		for _, tok := range tokens {
			if isNumeric(tok) || seen[tok] {
				continue
			}
			seen[tok] = true
			words = append(words, tok)
		}
	}

	opts := fuzzy.Options{Cutoff: fuzzy.DefaultCutoff, Partial: true, Limit: bossSuggestions}
	names := snap.Names()
	anchor, ok := fuzzy.BestOf(words, names, opts)
	if !ok {
		return nil
	}
	var out []string
	for _, m := range fuzzy.Top(anchor.Query, names, opts) {
		out = append(out, m.Value)
	}
	return out
}

// resolveBoss applies the token strategies in order: the second token as a
// name (the first is usually the "CP" label), the first token as a CP
// value, then every token as a name and as a CP value. Numeric tokens only
// ever match CP values.
func resolveBoss(tokens []string, snap *catalog.Snapshot) (fuzzy.Match, bool) {
	if snap == nil || len(tokens) == 0 {
		return fuzzy.Match{}, false
	}
	opts := fuzzy.Options{Cutoff: fuzzy.BossCutoff}
	names, cps := snap.Names(), snap.CPKeys()

	byName := func(tok string) (fuzzy.Match, bool) {
		if isNumeric(tok) {
			return fuzzy.Match{}, false
		}
		return fuzzy.Best(tok, names, opts)
	}
	byCP := func(tok string) (fuzzy.Match, bool) {
		m, ok := fuzzy.Best(tok, cps, opts)
		if !ok {
			return fuzzy.Match{}, false
		}
		name, ok := snap.Resolve(m.Value)
		if !ok {
			return fuzzy.Match{}, false
		}
		return fuzzy.Match{Value: name, Score: m.Score, Index: m.Index}, true
	}

	if len(tokens) > 1 {
		if m, ok := byName(tokens[1]); ok {
			return m, true
		}
	}
	if m, ok := byCP(tokens[0]); ok {
		return m, true
	}
	for _, tok := range tokens {
		if m, ok := byName(tok); ok {
			return m, true
		}
		if m, ok := byCP(tok); ok {
			return m, true
		}
	}
	return fuzzy.Match{}, false
}

// Team classifies the sample pixel colour of a profile screenshot.
func (s *screen) Team(ctx context.Context) (FieldResult, error) {
	if err := ctx.Err(); err != nil {
		return absent(FieldTeam), err
	}
	b, g, r, ok := s.img.PixelBGR(teamPixel.X, teamPixel.Y)
	if !ok {
		return absent(FieldTeam), nil
	}
	team, ok := classifyTeam(b, g, r)
	if !ok {
		return absent(FieldTeam), nil
	}
	return FieldResult{Field: FieldTeam, Value: team, Found: true}, nil
}

func classifyTeam(b, g, r uint8) (string, bool) {
	switch {
	case r >= 200 && g >= 200:
		return "instinct", true
	case b >= 200:
		return "mystic", true
	case r >= 200:
		return "valor", true
	}
	return "", false
}

func (s *screen) Level(ctx context.Context) (FieldResult, error) {
	return s.readAny(ctx, FieldLevel, regionsLevel, levelPlan)
}

func (s *screen) TrainerName(ctx context.Context) (FieldResult, error) {
	return s.readAny(ctx, FieldTrainerName, regionsTrainerName, trainerNamePlan)
}

// XP reads the progress counter from a grayscale copy of the profile.
func (s *screen) XP(ctx context.Context) (FieldResult, error) {
	gray := s.img.Gray()
	defer gray.Close()

	crop := Crop(gray, regionXP)
	defer crop.Close()

	out, err := s.runner.Run(ctx, FieldXP, crop, xpPlan)
	if err != nil {
		return absent(FieldXP), err
	}
	return FieldResult{Field: FieldXP, Value: out.Value, Found: out.Found, Attempts: out.Attempts}, nil
}

// Banner reads the date range, gym and location of an expiring pass. The
// three fields are found together or not at all.
func (s *screen) Banner(ctx context.Context) (Banner, []string, bool, error) {
	crop := Crop(s.img, regionBanner)
	defer crop.Close()

	var (
		banner   Banner
		found    bool
		attempts []string
	)
	err := s.runner.Each(ctx, FieldGym, crop, bannerPasses, func(text string) bool {
		attempts = append(attempts, text)
		banner, found = ParseBanner(text)
		return found
	})
	if err != nil {
		return Banner{}, attempts, false, err
	}
	return banner, attempts, found, nil
}
