package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestHeadingQuat_Axes(t *testing.T) {
	tests := []struct {
		name            string
		yaw, pitch      float64
		expectedForward mgl64.Vec3
	}{
		{"identity", 0, 0, mgl64.Vec3{0, 0, -1}},
		{"yaw_right", 90, 0, mgl64.Vec3{1, 0, 0}},
		{"yaw_left", -90, 0, mgl64.Vec3{-1, 0, 0}},
		{"nose_up", 0, 90, mgl64.Vec3{0, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := HeadingQuat(tt.yaw, tt.pitch)
			forward := Forward(q)
			if !forward.ApproxEqualThreshold(tt.expectedForward, 1e-9) {
				t.Errorf("Forward() = %v, expected %v", forward, tt.expectedForward)
			}
		})
	}
}

func TestPitchAndYawDegrees(t *testing.T) {
	q := HeadingQuat(30, 20)
	forward := Forward(q)
	if math.Abs(PitchDegrees(forward)-20) > 1e-9 {
		t.Errorf("PitchDegrees() = %v, expected 20", PitchDegrees(forward))
	}
	if math.Abs(YawDegrees(forward)-30) > 1e-9 {
		t.Errorf("YawDegrees() = %v, expected 30", YawDegrees(forward))
	}
	if YawDegrees(mgl64.Vec3{0, 1, 0}) != 0 {
		t.Error("YawDegrees should be 0 when pointing straight up")
	}
}

func TestVisualRoll(t *testing.T) {
	level := HeadingQuat(45, 10)
	if roll := VisualRoll(level); math.Abs(roll) > 1e-9 {
		t.Errorf("Expected wings-level roll 0, got %v", roll)
	}

	banked := mgl64.QuatRotate(mgl64.DegToRad(30), Forward(level)).Mul(level)
	if roll := VisualRoll(banked); math.Abs(roll-30) > 1e-6 {
		t.Errorf("Expected roll 30, got %v", roll)
	}
	// Right roll drops the right wing
	if Right(banked)[1] >= 0 {
		t.Errorf("Expected right wing below horizon, got %v", Right(banked))
	}
}

func TestSafeQuat(t *testing.T) {
	nan := mgl64.Quat{W: math.NaN(), V: mgl64.Vec3{0, 0, 0}}
	fallback := HeadingQuat(10, 0)

	if got := SafeQuat(nan, fallback); !got.ApproxEqual(fallback) {
		t.Errorf("Expected fallback, got %v", got)
	}
	if got := SafeQuat(nan, nan); got != mgl64.QuatIdent() {
		t.Errorf("Expected identity, got %v", got)
	}
	scaled := fallback.Scale(3)
	if got := SafeQuat(scaled, mgl64.QuatIdent()); math.Abs(got.Len()-1) > 1e-9 {
		t.Errorf("Expected normalized quaternion, got length %v", got.Len())
	}
}

func TestLookRotation(t *testing.T) {
	q := LookRotation(mgl64.QuatIdent(), mgl64.Vec3{1, 0, 0})
	if !Forward(q).ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-9) {
		t.Errorf("Forward() = %v, expected +X", Forward(q))
	}
}

func TestAdvancePosition(t *testing.T) {
	pos, ok := AdvancePosition(mgl64.Vec3{1, 2, 3}, mgl64.Vec3{10, 0, 0}, 0.5)
	if !ok || pos != (mgl64.Vec3{6, 2, 3}) {
		t.Errorf("AdvancePosition() = %v, %v", pos, ok)
	}

	pos, ok = AdvancePosition(mgl64.Vec3{1, 2, 3}, mgl64.Vec3{math.NaN(), 0, 0}, 0.5)
	if ok || pos != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("Expected position held on NaN velocity, got %v, %v", pos, ok)
	}
}
