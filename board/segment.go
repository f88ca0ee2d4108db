package board

import "github.com/wojtekolesinski/onchain-battleships/models"

type segment struct {
	a, b models.Position
}

// intersects solves a + t*(b-a) = c + u*(d-c) with Cramer's rule and checks
// that both t and u fall in [0, 1]. A zero determinant means the segments are
// parallel, collinear or single cells; for axis-aligned segments that case is
// an interval overlap on both axes.
func (s segment) intersects(o segment) bool {
	d1x, d1y := s.b.X-s.a.X, s.b.Y-s.a.Y
	d2x, d2y := o.b.X-o.a.X, o.b.Y-o.a.Y

	det := d1x*(-d2y) - d1y*(-d2x)
	if det == 0 {
		return s.overlaps(o)
	}

	rx, ry := o.a.X-s.a.X, o.a.Y-s.a.Y
	tNum := rx*(-d2y) - ry*(-d2x)
	uNum := d1x*ry - d1y*rx

	return within(tNum, det) && within(uNum, det)
}

func (s segment) overlaps(o segment) bool {
	sMinX, sMaxX := minMax(s.a.X, s.b.X)
	sMinY, sMaxY := minMax(s.a.Y, s.b.Y)
	oMinX, oMaxX := minMax(o.a.X, o.b.X)
	oMinY, oMaxY := minMax(o.a.Y, o.b.Y)
	return sMinX <= oMaxX && oMinX <= sMaxX && sMinY <= oMaxY && oMinY <= sMaxY
}

// within reports 0 <= num/den <= 1 without dividing.
func within(num, den int) bool {
	if den < 0 {
		num, den = -num, -den
	}
	return num >= 0 && num <= den
}

func minMax(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
