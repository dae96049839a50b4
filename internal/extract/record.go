package extract

import (
	"fmt"
	"strings"
	"time"
)

// ScreenshotType selects which orchestrator handles an image.
type ScreenshotType string

const (
	ActiveRaid     ScreenshotType = "raid"
	ExpiringBanner ScreenshotType = "expass"
	PlayerProfile  ScreenshotType = "profile"
	BareBoss       ScreenshotType = "boss"
)

// ParseScreenshotType maps a request scan type onto a ScreenshotType.
func ParseScreenshotType(s string) (ScreenshotType, error) {
	switch ScreenshotType(strings.ToLower(strings.TrimSpace(s))) {
	case ActiveRaid:
		return ActiveRaid, nil
	case ExpiringBanner:
		return ExpiringBanner, nil
	case PlayerProfile:
		return PlayerProfile, nil
	case BareBoss:
		return BareBoss, nil
	}
	return "", fmt.Errorf("unknown scan type %q", s)
}

func (t ScreenshotType) valid() bool {
	switch t {
	case ActiveRaid, ExpiringBanner, PlayerProfile, BareBoss:
		return true
	}
	return false
}

// Field names a semantic value read from a screenshot.
type Field string

const (
	FieldGymNames    Field = "names"
	FieldEggTimer    Field = "egg_time"
	FieldExpireTimer Field = "expire_time"
	FieldBoss        Field = "boss"
	FieldTier        Field = "s_tier"
	FieldPhoneClock  Field = "phone_time"

	FieldTeam        Field = "team"
	FieldLevel       Field = "level"
	FieldTrainerName Field = "trainer_name"
	FieldXP          Field = "xp"

	FieldDate     Field = "date"
	FieldGym      Field = "gym"
	FieldLocation Field = "location"
)

var recordFields = map[ScreenshotType][]Field{
	ActiveRaid:     {FieldGymNames, FieldEggTimer, FieldExpireTimer, FieldBoss, FieldTier, FieldPhoneClock},
	PlayerProfile:  {FieldTeam, FieldLevel, FieldTrainerName, FieldXP},
	ExpiringBanner: {FieldDate, FieldGym, FieldLocation},
	BareBoss:       {FieldBoss},
}

// FieldResult is the outcome of one field extractor. Found=false is the
// normal NotFound outcome; Attempts keeps every raw recognized text either way.
type FieldResult struct {
	Field      Field    `json:"field"`
	Value      string   `json:"value,omitempty"`
	Found      bool     `json:"found"`
	Attempted  bool     `json:"attempted"`
	Candidates []string `json:"candidates,omitempty"`
	Score      int      `json:"score,omitempty"`
	Attempts   []string `json:"attempts,omitempty"`
}

func absent(f Field) FieldResult {
	return FieldResult{Field: f}
}

// Record is the extraction result for one screenshot.
type Record struct {
	Type      ScreenshotType `json:"type"`
	Fields    []FieldResult  `json:"fields"`
	BossScans [][]string     `json:"boss_scans,omitempty"`
	CatalogID string         `json:"catalog_id,omitempty"`
	Trace     []string       `json:"trace"`
	Elapsed   time.Duration  `json:"elapsed"`
}

func newRecord(typ ScreenshotType) *Record {
	fields := recordFields[typ]
	rec := &Record{Type: typ, Fields: make([]FieldResult, len(fields))}
	for i, f := range fields {
		rec.Fields[i] = absent(f)
	}
	return rec
}

func (r *Record) set(res FieldResult) {
	res.Attempted = true
	for i := range r.Fields {
		if r.Fields[i].Field == res.Field {
			r.Fields[i] = res
			return
		}
	}
}

// clear drops every field value but keeps the attempt trails.
func (r *Record) clear() {
	for i := range r.Fields {
		r.Fields[i].Value = ""
		r.Fields[i].Found = false
		r.Fields[i].Candidates = nil
		r.Fields[i].Score = 0
	}
}

// Field returns the result for f (absent when the record has no such field).
func (r *Record) Field(f Field) FieldResult {
	for _, res := range r.Fields {
		if res.Field == f {
			return res
		}
	}
	return absent(f)
}

// Value returns the value of f and whether it was found.
func (r *Record) Value(f Field) (string, bool) {
	res := r.Field(f)
	return res.Value, res.Found
}

// FoundCount counts fields with a value.
func (r *Record) FoundCount() int {
	n := 0
	for _, res := range r.Fields {
		if res.Found {
			n++
		}
	}
	return n
}

// Output flattens the record into the response shape clients consume:
// one key per field (nil when absent), plus runtime and boss scan trail.
func (r *Record) Output() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Fields)+2)
	for _, res := range r.Fields {
		switch {
		case res.Field == FieldGymNames:
			out[string(res.Field)] = append([]string{}, res.Candidates...)
		case res.Found:
			out[string(res.Field)] = res.Value
		default:
			out[string(res.Field)] = nil
		}
	}
	out["runtime"] = r.Elapsed.Seconds()
	if r.Type == ActiveRaid {
		scans := r.BossScans
		if scans == nil {
			scans = [][]string{}
		}
		out["boss_scans"] = scans
	}
	return out
}
