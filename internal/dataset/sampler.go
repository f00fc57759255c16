package dataset

import (
	"math/rand"
)

// shuffled returns a copy of records in an order drawn from rng. The records themselves are
// shared, not copied.
func shuffled(records []Record, rng *rand.Rand) []Record {
	out := append([]Record(nil), records...)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Subset returns limit records chosen at random by rng, or all records in their original order
// if limit <= 0 or limit >= len(records).
func Subset(records []Record, limit int, rng *rand.Rand) []Record {
	if limit <= 0 || limit >= len(records) {
		return records
	}
	return shuffled(records, rng)[:limit]
}

// Split holds out a random selection of holdout records as a test collection and returns the
// rest for training. holdout is clamped to [0, len(records)].
func Split(records []Record, holdout int, rng *rand.Rand) (train, test []Record) {
	if holdout <= 0 {
		return records, nil
	}
	if holdout > len(records) {
		holdout = len(records)
	}
	all := shuffled(records, rng)
	return all[holdout:], all[:holdout]
}
