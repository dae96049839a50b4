package catalog

import (
	"fmt"
	"math"
)

// raidStamina is the fixed boss stamina per raid tier.
// Tier 6 was back-calculated from an observed Darkrai CP.
var raidStamina = map[int]float64{
	1: 600,
	2: 1800,
	3: 3600,
	4: 9000,
	5: 15000,
	6: 22500,
}

// RaidCP computes the CP a raid boss shows for the given base stats and tier.
func RaidCP(attack, defense, tier int) (int, error) {
	stamina, ok := raidStamina[tier]
	if !ok {
		return 0, fmt.Errorf("unknown raid tier %d", tier)
	}
	if attack < 0 || defense < 0 {
		return 0, fmt.Errorf("base stats must be non-negative (attack=%d, defense=%d)", attack, defense)
	}
	cp := float64(attack+15) * math.Sqrt(float64(defense+15)) * math.Sqrt(stamina) / 10
	return int(math.Floor(cp)), nil
}
