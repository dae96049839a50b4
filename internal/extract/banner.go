package extract

import "context"

type bannerReader interface {
	Banner(ctx context.Context) (Banner, []string, bool, error)
}

type bossReader interface {
	Boss(ctx context.Context) (FieldResult, [][]string, error)
}

const (
	bannerRead stateID = "banner_read"
	bossRead   stateID = "boss_read"
)

type bannerScan struct {
	reader bannerReader
	rec    *Record
}

var bannerMachine = machine[*bannerScan]{
	start: bannerRead,
	states: map[stateID]state[*bannerScan]{
		bannerRead: {
			action: func(ctx context.Context, s *bannerScan) error {
				b, attempts, found, err := s.reader.Banner(ctx)
				if err != nil {
					return err
				}
				for f, v := range map[Field]string{FieldDate: b.Date, FieldGym: b.Gym, FieldLocation: b.Location} {
					res := FieldResult{Field: f, Attempts: attempts}
					if found {
						res.Value, res.Found = v, true
					}
					s.rec.set(res)
				}
				return nil
			},
		},
	},
}

func scanBanner(ctx context.Context, reader bannerReader) (*Record, error) {
	s := &bannerScan{reader: reader, rec: newRecord(ExpiringBanner)}
	trace, err := bannerMachine.run(ctx, s)
	s.rec.Trace = traceNames(trace)
	return s.rec, err
}

type bossScan struct {
	reader bossReader
	rec    *Record
}

var bossMachine = machine[*bossScan]{
	start: bossRead,
	states: map[stateID]state[*bossScan]{
		bossRead: {
			action: func(ctx context.Context, s *bossScan) error {
				res, scans, err := s.reader.Boss(ctx)
				s.rec.BossScans = append(s.rec.BossScans, scans...)
				if err != nil {
					return err
				}
				s.rec.set(res)
				return nil
			},
		},
	},
}

// scanBoss identifies the boss of a screenshot that shows nothing else.
func scanBoss(ctx context.Context, reader bossReader) (*Record, error) {
	s := &bossScan{reader: reader, rec: newRecord(BareBoss)}
	trace, err := bossMachine.run(ctx, s)
	s.rec.Trace = traceNames(trace)
	return s.rec, err
}
