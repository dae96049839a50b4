package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeGrammars(t *testing.T) {
	tests := []struct {
		name  string
		match func(string) (string, bool)
		input string
		want  string
		ok    bool
	}{
		{"egg timer", MatchEggTimer, "1:23:45", "1:23:45", true},
		{"egg timer zero hour", MatchEggTimer, "0:05:09", "0:05:09", true},
		{"egg timer without seconds", MatchEggTimer, "25:00", "", false},
		{"egg timer embedded", MatchEggTimer, "::\n1:02:03\n", "1:02:03", true},
		{"egg timer bad minutes", MatchEggTimer, "1:75:00", "", false},
		{"egg timer hour out of range", MatchEggTimer, "2:23:45", "", false},
		{"egg timer two digit hour", MatchEggTimer, "12:34:56", "", false},
		{"egg timer missing hour", MatchEggTimer, ":23:45", "", false},
		{"egg timer padded hour", MatchEggTimer, "01:23:45", "01:23:45", true},
		{"egg timer after noise", MatchEggTimer, "x1:02:03", "1:02:03", true},
		{"expire timer two digit hour", MatchExpireTimer, "12:34:56", "", false},
		{"expire timer missing hour", MatchExpireTimer, "  :44:12", "", false},
		{"expire timer two hours", MatchExpireTimer, "2:10:00", "2:10:00", true},
		{"expire timer", MatchExpireTimer, "0:44:12", "0:44:12", true},
		{"phone clock", MatchPhoneClock, "12:34", "12:34", true},
		{"phone clock single digit", MatchPhoneClock, "9:41", "9:41", true},
		{"phone clock noise", MatchPhoneClock, "::::", "", false},
		{"level", MatchLevel, "31\n", "31", true},
		{"level none", MatchLevel, "LVL", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.match(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBanner(t *testing.T) {
	text := "Mar 15 1:00 PM - 1:45 PM\nStarbucks Downtown\nSpringfield, Illinois, United States\n"

	b, ok := ParseBanner(text)
	require.True(t, ok)
	assert.Equal(t, "Mar 15 1:00 PM - 1:45 PM", b.Date)
	assert.Equal(t, "Starbucks Downtown", b.Gym)
	assert.Equal(t, "Springfield, Illinois, United States", b.Location)
}

func TestParseBannerRejectsPartialMatch(t *testing.T) {
	// date and gym but no location line
	_, ok := ParseBanner("Mar 15 1:00 PM - 1:45 PM\nStarbucks Downtown\n")
	assert.False(t, ok)

	_, ok = ParseBanner("Starbucks Downtown\nSpringfield, Illinois, United States\n")
	assert.False(t, ok)
}

func TestCleanGymName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single line", "Central Park Fountain", "Central Park Fountain"},
		{"drops EX raid banner", "EX RAID GYM\nCentral Park Fountain", "Central Park Fountain"},
		{"drops short lines", "ab\nxyz\nCentral Park", "Central Park"},
		{"drops lines of short words", "ab cd ef gh\nMural Wall", "Mural Wall"},
		{"joins lines", "Old Town\nWater Tower", "Old Town Water Tower"},
		{"strips noise words", "Mural Wall oS", "Mural Wall"},
		{"nothing left", "EXRAID\n\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanGymName(tt.input))
		})
	}
}

func TestRemoveTrailingsKeepsRealWords(t *testing.T) {
	assert.Equal(t, "Oscar  Statue", RemoveTrailings("Oscar C Statue"))
	assert.Equal(t, "Costa", RemoveTrailings("Costa"))
}

func TestLongestWord(t *testing.T) {
	assert.Equal(t, 8, LongestWord("the Fountain of"))
	assert.Equal(t, 0, LongestWord(""))
}

func TestParseXP(t *testing.T) {
	xp, ok := ParseXP("1,234,567 / 2,000,000")
	require.True(t, ok)
	assert.Equal(t, "1234567", xp)

	xp, ok = ParseXP("123.456 200.000")
	require.True(t, ok)
	assert.Equal(t, "123456", xp)

	_, ok = ParseXP("TOTAL XP")
	assert.False(t, ok)
}

func TestParseTrainerName(t *testing.T) {
	name, ok := ParseTrainerName("AshKetchum\n\n& Pikachu")
	require.True(t, ok)
	assert.Equal(t, "AshKetchum", name)

	_, ok = ParseTrainerName("Ash\n&")
	assert.False(t, ok, "names shorter than five runes are noise")
}

func TestCountTierGlyphs(t *testing.T) {
	n, ok := CountTierGlyphs("@ @ @\n")
	require.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = CountTierGlyphs("®©Q@@")
	require.True(t, ok)
	assert.Equal(t, 5, n)

	_, ok = CountTierGlyphs("  \n\f")
	assert.False(t, ok)
}

func TestBossTokens(t *testing.T) {
	assert.Equal(t, []string{"38490", "Dragonite"}, BossTokens("CP 38490\nDragonite Lv"))
	assert.Equal(t, []string{}, BossTokens("   "))
}

func TestClassifyTeam(t *testing.T) {
	tests := []struct {
		b, g, r uint8
		want    string
		ok      bool
	}{
		{b: 10, g: 220, r: 230, want: "instinct", ok: true},
		{b: 230, g: 120, r: 20, want: "mystic", ok: true},
		{b: 40, g: 30, r: 240, want: "valor", ok: true},
		{b: 120, g: 120, r: 120},
	}
	for _, tt := range tests {
		got, ok := classifyTeam(tt.b, tt.g, tt.r)
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, got)
	}
}
