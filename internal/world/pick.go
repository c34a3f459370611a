package world

// Vec3 is a point or direction in world space, Y up.
type Vec3 struct {
	X, Y, Z float64
}

// Ray is a half-line from Origin along Direction.
type Ray struct {
	Origin    Vec3
	Direction Vec3
}

// PickRay intersects ray with the ground plane y = groundY and returns the
// hex under the hit point. ok is false when the ray is parallel to the
// plane or points away from it.
func PickRay(ray Ray, groundY, hexRadius float64) (coord HexCoord, hit Point, ok bool) {
	if ray.Direction.Y == 0 {
		return HexCoord{}, Point{}, false
	}
	t := (groundY - ray.Origin.Y) / ray.Direction.Y
	if t < 0 {
		return HexCoord{}, Point{}, false
	}

	hit = Point{
		X: ray.Origin.X + ray.Direction.X*t,
		Z: ray.Origin.Z + ray.Direction.Z*t,
	}
	return PlaneToAxial(hit, hexRadius), hit, true
}
