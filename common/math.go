package common

import (
	"math"
)

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
// The matrix is stored in column-major order.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// All matrices are stored in column-major order.
// Result: out = a * b
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			buf[i*4+j] = sum
		}
	}
	copy(out, buf[:])
}

// BuildModelMatrix constructs a 4x4 model matrix from position, Euler rotation, and scale.
// The rotation order is Y * X * Z (Z applied first, then X, then Y). All matrices are column-major.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - posX, posY, posZ: translation in world space
//   - rotX, rotY, rotZ: rotation angles in radians around each axis
//   - scaleX, scaleY, scaleZ: scale factors along each axis
func BuildModelMatrix(out []float32, posX, posY, posZ, rotX, rotY, rotZ, scaleX, scaleY, scaleZ float32) {
	cx := float32(math.Cos(float64(rotX)))
	sx := float32(math.Sin(float64(rotX)))
	cy := float32(math.Cos(float64(rotY)))
	sy := float32(math.Sin(float64(rotY)))
	cz := float32(math.Cos(float64(rotZ)))
	sz := float32(math.Sin(float64(rotZ)))

	// R = Ry * Rx * Rz, column-major
	out[0] = (cy*cz + sy*sx*sz) * scaleX
	out[1] = (cx * sz) * scaleX
	out[2] = (-sy*cz + cy*sx*sz) * scaleX
	out[3] = 0

	out[4] = (cy*-sz + sy*sx*cz) * scaleY
	out[5] = (cx * cz) * scaleY
	out[6] = (sy*sz + cy*sx*cz) * scaleY
	out[7] = 0

	out[8] = (sy * cx) * scaleZ
	out[9] = (-sx) * scaleZ
	out[10] = (cy * cx) * scaleZ
	out[11] = 0

	out[12] = posX
	out[13] = posY
	out[14] = posZ
	out[15] = 1
}

// NormalizeQuat returns the unit quaternion of q (x, y, z, w).
//
// Parameters:
//   - q: quaternion as (x, y, z, w)
//
// Returns:
//   - [4]float64: the normalized quaternion
//   - bool: false if q has zero length and cannot be normalized
func NormalizeQuat(q [4]float64) ([4]float64, bool) {
	length := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if length == 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return q, false
	}
	if length == 1 {
		return q, true
	}
	return [4]float64{q[0] / length, q[1] / length, q[2] / length, q[3] / length}, true
}

// QuatToEulerZXY decomposes a unit quaternion into Euler angles for the rotation order
// used by BuildModelMatrix (R = Ry * Rx * Rz). Near the X = ±90° singularity the Z angle
// is folded into Y.
//
// Parameters:
//   - q: unit quaternion as (x, y, z, w)
//
// Returns:
//   - [3]float64: rotation around X, Y and Z in radians
func QuatToEulerZXY(q [4]float64) [3]float64 {
	x, y, z, w := q[0], q[1], q[2], q[3]

	m00 := 1 - 2*(y*y+z*z)
	m02 := 2 * (x*z + y*w)
	m10 := 2 * (x*y + z*w)
	m11 := 1 - 2*(x*x+z*z)
	m12 := 2 * (y*z - x*w)
	m20 := 2 * (x*z - y*w)
	m22 := 1 - 2*(x*x+y*y)

	sx := math.Max(-1, math.Min(1, -m12))
	rx := math.Asin(sx)

	var ry, rz float64
	if math.Abs(sx) < 0.9999999 {
		ry = math.Atan2(m02, m22)
		rz = math.Atan2(m10, m11)
	} else {
		ry = math.Atan2(-m20, m00)
		rz = 0
	}
	return [3]float64{cleanZero(rx), cleanZero(ry), cleanZero(rz)}
}

// Degrees converts an angle from radians to degrees.
func Degrees(rad float64) float64 {
	return cleanZero(rad * 180 / math.Pi)
}

// Radians converts an angle from degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// cleanZero folds negative zero into positive zero.
func cleanZero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}
