/**
 * Active raid orchestrator - decides which fields to read based on what
 * has been found so far
 *
 * gym_check -> egg_path -> tier_check -> phone_check
 *           \-> boss_path -/
 * A screenshot without a readable gym name is not a raid screen and stops
 * after the first state.
 */

package extract

import "context"

// raidReader reads the fields of an active raid screenshot.
type raidReader interface {
	GymNames(ctx context.Context) (FieldResult, error)
	EggTimer(ctx context.Context) (FieldResult, error)
	Boss(ctx context.Context) (FieldResult, [][]string, error)
	ExpireTimer(ctx context.Context) (FieldResult, error)
	Tier(ctx context.Context, boss bool) (FieldResult, error)
	PhoneClock(ctx context.Context) (FieldResult, error)
}

const (
	raidGymCheck   stateID = "gym_check"
	raidEggPath    stateID = "egg_path"
	raidBossPath   stateID = "boss_path"
	raidTierCheck  stateID = "tier_check"
	raidPhoneCheck stateID = "phone_check"
)

type raidScan struct {
	reader raidReader
	rec    *Record
}

func (s *raidScan) found(f Field) bool {
	return s.rec.Field(f).Found
}

func (s *raidScan) store(res FieldResult, err error) error {
	if err != nil {
		return err
	}
	s.rec.set(res)
	return nil
}

// Guards over the fields read so far.
func gymFound(s *raidScan) bool    { return s.found(FieldGymNames) }
func eggFound(s *raidScan) bool    { return s.found(FieldEggTimer) }
func expireFound(s *raidScan) bool { return s.found(FieldExpireTimer) }

// hatched means the screen shows a boss rather than an egg, which moves
// the tier glyph row.
func hatched(s *raidScan) bool { return !eggFound(s) && expireFound(s) }

// wantsPhoneClock reports whether the screenshot is worth timestamping.
func wantsPhoneClock(s *raidScan) bool {
	return s.found(FieldEggTimer) || s.found(FieldBoss) || s.found(FieldTier)
}

var raidMachine = machine[*raidScan]{
	start: raidGymCheck,
	states: map[stateID]state[*raidScan]{
		raidGymCheck: {
			action: func(ctx context.Context, s *raidScan) error {
				return s.store(s.reader.GymNames(ctx))
			},
			edges: []edge[*raidScan]{
				{to: raidEggPath, guard: gymFound},
			},
		},
		raidEggPath: {
			action: func(ctx context.Context, s *raidScan) error {
				return s.store(s.reader.EggTimer(ctx))
			},
			edges: []edge[*raidScan]{
				{to: raidTierCheck, guard: eggFound},
				{to: raidBossPath, guard: always[*raidScan]},
			},
		},
		raidBossPath: {
			action: func(ctx context.Context, s *raidScan) error {
				boss, scans, err := s.reader.Boss(ctx)
				s.rec.BossScans = append(s.rec.BossScans, scans...)
				if err := s.store(boss, err); err != nil {
					return err
				}
				return s.store(s.reader.ExpireTimer(ctx))
			},
			edges: []edge[*raidScan]{
				{to: raidTierCheck, guard: expireFound},
				{to: raidPhoneCheck, guard: wantsPhoneClock},
			},
		},
		raidTierCheck: {
			action: func(ctx context.Context, s *raidScan) error {
				return s.store(s.reader.Tier(ctx, hatched(s)))
			},
			edges: []edge[*raidScan]{
				{to: raidPhoneCheck, guard: wantsPhoneClock},
			},
		},
		raidPhoneCheck: {
			action: func(ctx context.Context, s *raidScan) error {
				return s.store(s.reader.PhoneClock(ctx))
			},
		},
	},
}

func scanRaid(ctx context.Context, reader raidReader) (*Record, error) {
	s := &raidScan{reader: reader, rec: newRecord(ActiveRaid)}
	s.rec.BossScans = [][]string{}
	trace, err := raidMachine.run(ctx, s)
	s.rec.Trace = traceNames(trace)
	return s.rec, err
}

func traceNames(trace []stateID) []string {
	out := make([]string, len(trace))
	for i, st := range trace {
		out[i] = string(st)
	}
	return out
}
