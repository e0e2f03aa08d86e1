package main

import "math"

// ShotHit is the resolved target of a hit-scan shot
type ShotHit struct {
	TargetID   string
	Point      Vec3
	Distance   float64
	IsHeadshot bool
}

// raySphereIntersect returns the distance along dir to the near intersection
// with the sphere. dir must be unit length. Intersections behind the origin
// or past maxRange are rejected.
func raySphereIntersect(origin, dir, center Vec3, radius, maxRange float64) (float64, bool) {
	oc := origin.Sub(center)
	a := dir.Dot(dir)
	b := 2 * oc.Dot(dir)
	c := oc.Dot(oc) - radius*radius

	disc := b*b - 4*a*c
	if disc < 0 || a == 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / (2 * a)
	if t < 0 || t > maxRange {
		return 0, false
	}
	return t, true
}

// Raycast picks the closest living target hit by the ray, ignoring the
// shooter. Each target has a body sphere at its position and a head sphere
// above it. Ties go to the head, then to the earlier target in the slice.
func Raycast(origin, dir Vec3, shooterID string, targets []*PlayerState, maxRange float64) (ShotHit, bool) {
	dir, ok := dir.Normalize()
	if !ok || !origin.Finite() {
		return ShotHit{}, false
	}

	var best ShotHit
	found := false
	consider := func(id string, t float64, head bool) {
		if found && t >= best.Distance {
			return
		}
		best = ShotHit{
			TargetID:   id,
			Point:      origin.Add(dir.Scale(t)),
			Distance:   t,
			IsHeadshot: head,
		}
		found = true
	}

	for _, p := range targets {
		if p.ID == shooterID || !p.IsAlive {
			continue
		}
		if t, ok := raySphereIntersect(origin, dir, p.HeadCenter(), HeadRadius, maxRange); ok {
			consider(p.ID, t, true)
		}
		if t, ok := raySphereIntersect(origin, dir, p.Position, BodyRadius, maxRange); ok {
			consider(p.ID, t, false)
		}
	}
	return best, found
}
