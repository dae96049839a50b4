package extract

import (
	"context"
	"strconv"
)

// profileReader reads the fields of a trainer profile screenshot.
type profileReader interface {
	Team(ctx context.Context) (FieldResult, error)
	Level(ctx context.Context) (FieldResult, error)
	TrainerName(ctx context.Context) (FieldResult, error)
	XP(ctx context.Context) (FieldResult, error)
}

const (
	profileTeamCheck  stateID = "team_check"
	profileLevelCheck stateID = "level_check"
	profileNameCheck  stateID = "name_check"
	profileXPCheck    stateID = "xp_check"
)

type profileScan struct {
	reader profileReader
	rec    *Record
}

func (s *profileScan) store(res FieldResult, err error) error {
	if err != nil {
		return err
	}
	s.rec.set(res)
	return nil
}

func teamFound(s *profileScan) bool { return s.rec.Field(FieldTeam).Found }

// belowCap reports whether the read level still earns XP.
func belowCap(s *profileScan) bool {
	v, ok := s.rec.Value(FieldLevel)
	if !ok {
		return false
	}
	level, err := strconv.Atoi(v)
	return err == nil && level < MaxLevel
}

var profileMachine = machine[*profileScan]{
	start: profileTeamCheck,
	states: map[stateID]state[*profileScan]{
		profileTeamCheck: {
			action: func(ctx context.Context, s *profileScan) error {
				return s.store(s.reader.Team(ctx))
			},
			edges: []edge[*profileScan]{
				{to: profileLevelCheck, guard: teamFound},
			},
		},
		profileLevelCheck: {
			action: func(ctx context.Context, s *profileScan) error {
				return s.store(s.reader.Level(ctx))
			},
			edges: []edge[*profileScan]{
				{to: profileNameCheck, guard: always[*profileScan]},
			},
		},
		profileNameCheck: {
			action: func(ctx context.Context, s *profileScan) error {
				return s.store(s.reader.TrainerName(ctx))
			},
			edges: []edge[*profileScan]{
				{to: profileXPCheck, guard: belowCap},
			},
		},
		profileXPCheck: {
			action: func(ctx context.Context, s *profileScan) error {
				return s.store(s.reader.XP(ctx))
			},
		},
	},
}

// scanProfile reads a profile. An unrecognizable team colour means the
// image is not a profile screen and the whole record stays absent.
func scanProfile(ctx context.Context, reader profileReader) (*Record, error) {
	s := &profileScan{reader: reader, rec: newRecord(PlayerProfile)}
	trace, err := profileMachine.run(ctx, s)
	s.rec.Trace = traceNames(trace)
	if err == nil && !teamFound(s) {
		s.rec.clear()
	}
	return s.rec, err
}
