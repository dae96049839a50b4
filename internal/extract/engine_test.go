package extract

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/raidscan-worker/internal/catalog"
	"github.com/adverant/nexus/raidscan-worker/internal/errors"
	"github.com/adverant/nexus/raidscan-worker/internal/ocr"
	"github.com/adverant/nexus/raidscan-worker/internal/ocr/ocrtest"
)

func TestExtractRaidEndToEnd(t *testing.T) {
	img := grayImage(1600, 900, 40)
	defer img.Close()

	rec := &ocrtest.Scripted{Outputs: []string{
		"EX RAID GYM\nCentral Park Fountain", "", "", // gym passes collect all
		"1:23:45", // egg timer
		"@@@@@",   // tier
		"12:34",   // phone clock
	}}
	engine := NewEngine(rec, nil)
	snap := catalog.Builtin()

	record, err := engine.Extract(context.Background(), img, ActiveRaid, snap)
	require.NoError(t, err)

	assert.Equal(t, []string{"Central Park Fountain"}, record.Field(FieldGymNames).Candidates)
	for field, want := range map[Field]string{
		FieldEggTimer:   "1:23:45",
		FieldTier:       "5",
		FieldPhoneClock: "12:34",
	} {
		got, ok := record.Value(field)
		assert.True(t, ok, field)
		assert.Equal(t, want, got, field)
	}
	_, ok := record.Value(FieldBoss)
	assert.False(t, ok)
	assert.Equal(t, snap.ID(), record.CatalogID)
	assert.Equal(t, 6, rec.Calls())

	out := record.Output()
	assert.Equal(t, "1:23:45", out["egg_time"])
	assert.Nil(t, out["boss"])
	assert.Equal(t, [][]string{}, out["boss_scans"])
}

func TestExtractBareBoss(t *testing.T) {
	img := grayImage(800, 450, 200)
	defer img.Close()

	rec := &ocrtest.Scripted{Outputs: []string{"Dragonite\nCP 38490"}}
	record, err := NewEngine(rec, nil).Extract(context.Background(), img, BareBoss, catalog.Builtin())
	require.NoError(t, err)

	res := record.Field(FieldBoss)
	assert.True(t, res.Found)
	assert.Equal(t, "Dragonite", res.Value)
	assert.Equal(t, [][]string{{"Dragonite", "38490"}}, record.BossScans)
}

func TestExtractKeepsBossTrailOnMiss(t *testing.T) {
	img := grayImage(800, 450, 200)
	defer img.Close()

	rec := &ocrtest.Scripted{Fallback: "zzzzzz"}
	record, err := NewEngine(rec, nil).Extract(context.Background(), img, BareBoss, catalog.Builtin())
	require.NoError(t, err)

	passes := len(bossPlan.Primary.Thresholds) + len(bossPlan.Fallback.Thresholds)
	assert.False(t, record.Field(FieldBoss).Found)
	assert.Len(t, record.BossScans, passes)
	assert.Len(t, record.Field(FieldBoss).Attempts, passes)
	assert.Empty(t, record.Field(FieldBoss).Candidates)
}

func TestExtractRequiresCatalogForBossTypes(t *testing.T) {
	img := grayImage(800, 450, 0)
	defer img.Close()

	engine := NewEngine(&ocrtest.Scripted{}, nil)
	for _, typ := range []ScreenshotType{ActiveRaid, BareBoss} {
		_, err := engine.Extract(context.Background(), img, typ, nil)
		assert.True(t, errors.IsCode(err, errors.ErrorCatalogUnavailable), typ)
	}

	_, err := engine.Extract(context.Background(), img, ExpiringBanner, nil)
	assert.NoError(t, err)
}

func TestExtractBytesRejectsMalformedInput(t *testing.T) {
	_, err := NewEngine(&ocrtest.Scripted{}, nil).ExtractBytes(context.Background(), []byte("not an image"), ActiveRaid, catalog.Builtin())
	assert.True(t, errors.IsCode(err, errors.ErrorMalformedInput))
}

func TestExtractRejectsUnknownType(t *testing.T) {
	img := grayImage(100, 100, 0)
	defer img.Close()

	rec := &ocrtest.Scripted{}
	_, err := NewEngine(rec, nil).Extract(context.Background(), img, ScreenshotType("pokedex"), catalog.Builtin())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrorInvalidConfig))
	assert.False(t, errors.IsCode(err, errors.ErrorMalformedInput))
	assert.Zero(t, rec.Calls())
}

func TestExtractProfile(t *testing.T) {
	// a mystic blue profile
	img := colorImage(1600, 900, 230, 120, 20)
	defer img.Close()

	rec := &ocrtest.Scripted{Outputs: []string{
		"31",                   // level, first geometry
		"AshKetchum\n\n& Pika", // trainer name
		"1,234,567 / 2,000,000",
	}}
	record, err := NewEngine(rec, nil).Extract(context.Background(), img, PlayerProfile, nil)
	require.NoError(t, err)

	out := record.Output()
	assert.Equal(t, "mystic", out["team"])
	assert.Equal(t, "31", out["level"])
	assert.Equal(t, "AshKetchum", out["trainer_name"])
	assert.Equal(t, "1234567", out["xp"])
}

func TestExtractProfileWithUnknownTeam(t *testing.T) {
	img := colorImage(1600, 900, 90, 90, 90)
	defer img.Close()

	rec := &ocrtest.Scripted{Fallback: "31"}
	record, err := NewEngine(rec, nil).Extract(context.Background(), img, PlayerProfile, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, record.FoundCount())
	assert.Equal(t, 0, rec.Calls())
}

func TestExtractIsIdempotent(t *testing.T) {
	img := grayImage(1600, 900, 40)
	defer img.Close()

	snap := catalog.Builtin()
	run := func() *Record {
		rec := &ocrtest.Scripted{Fallback: "Central Park\nCP 28769 Absol 0:45:00"}
		record, err := NewEngine(rec, nil).Extract(context.Background(), img, ActiveRaid, snap)
		require.NoError(t, err)
		record.Elapsed = 0
		return record
	}

	assert.Equal(t, run(), run())
}

func TestExtractHonoursDeadline(t *testing.T) {
	img := grayImage(1600, 900, 40)
	defer img.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := NewEngine(&ocrtest.Scripted{}, nil).Extract(ctx, img, ActiveRaid, catalog.Builtin())
	assert.True(t, errors.IsCode(err, errors.ErrorProcessingTimeout))
}

func TestPrepareUpscalesSmallScreenshots(t *testing.T) {
	small := colorImage(300, 150, 0, 0, 0)
	defer small.Close()

	prepared := prepare(small, ActiveRaid)
	defer prepared.Close()
	assert.Equal(t, 300, prepared.Width())
	assert.Equal(t, 600, prepared.Height())
	assert.Equal(t, 1, prepared.Channels())

	large := colorImage(1600, 900, 0, 0, 0)
	defer large.Close()

	kept := prepare(large, PlayerProfile)
	defer kept.Close()
	assert.Equal(t, 900, kept.Width())
	assert.Equal(t, 3, kept.Channels())
}

// TestTesseractReadsEggTimer needs libtesseract with English data.
func TestTesseractReadsEggTimer(t *testing.T) {
	if os.Getenv("RAIDSCAN_TESSERACT_TESTS") != "1" {
		t.Skip("set RAIDSCAN_TESSERACT_TESTS=1 to run against libtesseract")
	}

	tess, err := ocr.NewTesseract(nil)
	require.NoError(t, err)

	img := renderText(t, 1600, 900, "1:23:45", regionEggTimer)
	defer img.Close()

	snap := catalog.Builtin()
	record, err := NewEngine(tess, nil).Extract(context.Background(), img, ActiveRaid, snap)
	require.NoError(t, err)

	// no gym banner rendered: the raid gate stops before the timer
	assert.Equal(t, []string{"gym_check", "done"}, record.Trace)

	crop := Crop(img, regionEggTimer)
	defer crop.Close()
	out, err := NewRunner(tess).Run(context.Background(), FieldEggTimer, crop, eggTimerPlan)
	require.NoError(t, err)
	assert.True(t, out.Found, "attempts: %q", out.Attempts)
	assert.Equal(t, "1:23:45", out.Value)
}
