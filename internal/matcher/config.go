package matcher

// Config centralizes every weight and threshold used by the scorer so tuning
// never means hunting for literals in the scoring path.
type Config struct {
	GeoWeight     float64 // origin similarity
	TimeWeight    float64 // departure time vs stated schedule
	SeatWeight    float64 // seat availability
	RecencyWeight float64 // how recently the trip was published
	RoleBonus     float64 // flat bonus for passengers searching for a ride

	SeatTarget        float64 // seat count at which the seat term saturates
	RecencyWindowDays float64 // age at which the recency term reaches zero

	GeoReasonFloor  float64 // similarity above which a reason is emitted
	TimeReasonFloor float64

	MatchThreshold   float64 // minimum total score to include a trip
	ReverseThreshold float64 // higher bar for passenger candidates
	HighQualityFloor float64 // "high quality" cutoff in statistics

	DefaultLimit int
}

// DefaultConfig returns the production weights.
func DefaultConfig() Config {
	return Config{
		GeoWeight:     0.4,
		TimeWeight:    0.3,
		SeatWeight:    0.1,
		RecencyWeight: 0.1,
		RoleBonus:     0.1,

		SeatTarget:        4,
		RecencyWindowDays: 30,

		GeoReasonFloor:  0.7,
		TimeReasonFloor: 0.7,

		MatchThreshold:   0.3,
		ReverseThreshold: 0.4,
		HighQualityFloor: 0.7,

		DefaultLimit: 10,
	}
}
