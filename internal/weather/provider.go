package weather

import (
	"context"
	"time"
)

// Geocoder resolves free text or "lat,lon" into a place.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (PlaceContext, error)
}

// ConditionsSource returns the quick observation block for a point.
type ConditionsSource interface {
	Current(ctx context.Context, at Coordinate, units Units) (CurrentConditions, error)
}

// ProfileSource returns the quick convective profile for a point.
type ProfileSource interface {
	Profile(ctx context.Context, at Coordinate) (Profile, error)
}

// PointAlertSource returns active alerts covering a point.
type PointAlertSource interface {
	PointAlerts(ctx context.Context, at Coordinate) ([]Alert, error)
}

// PointSampler returns a single regional sample for a point.
type PointSampler interface {
	Name() string
	Sample(ctx context.Context, at Coordinate, units Units) (Observation, error)
}

// BatchSampler is implemented by samplers that can read many points in one
// upstream call. Observations come back in the order of points.
type BatchSampler interface {
	SampleBatch(ctx context.Context, points []Coordinate, units Units) ([]Observation, error)
}

// RegionAlertSource returns active alerts for a whole region. Implementations
// apply the predicate themselves; a nil predicate keeps everything.
type RegionAlertSource interface {
	Name() string
	RegionAlerts(ctx context.Context, keep SeverePredicate) ([]Alert, error)
}

// Store keeps worldview snapshots keyed by variant.
type Store interface {
	SaveSnapshot(key string, wv Worldview)
	GetLatest(key string) (Worldview, error)
	GetRange(key string, from, to time.Time) ([]Worldview, error)
}
