package detector

import (
	"bufio"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
)

const epsilon = 1e-9

func TestHandLandmarks_Normalize(t *testing.T) {
	t.Run("wrist at origin and palm size one", func(t *testing.T) {
		hand := HandLandmarks{Handedness: "Left", Score: 0.8}
		hand.Points[Wrist] = Point3D{X: 10.0, Y: 20.0, Z: 5.0}
		hand.Points[MiddleMCP] = Point3D{X: 13.0, Y: 24.0, Z: 5.0} // distance = 5.0
		for i := 1; i < NumLandmarks; i++ {
			if i != MiddleMCP {
				hand.Points[i] = Point3D{X: 10.0 + float64(i), Y: 20.0 + float64(i), Z: 5.0}
			}
		}

		normalized := hand.Normalize()

		w := normalized.Points[Wrist]
		if math.Abs(w.X) > epsilon || math.Abs(w.Y) > epsilon || math.Abs(w.Z) > epsilon {
			t.Errorf("expected wrist at origin, got %+v", w)
		}
		if d := normalized.PalmSize(); math.Abs(d-1.0) > epsilon {
			t.Errorf("expected palm size 1.0, got %f", d)
		}
		if normalized.Handedness != "Left" || normalized.Score != 0.8 {
			t.Errorf("handedness and score should be preserved, got %s %f", normalized.Handedness, normalized.Score)
		}
	})

	t.Run("nil hand returns nil", func(t *testing.T) {
		var hand *HandLandmarks
		if hand.Normalize() != nil {
			t.Error("expected nil result for nil input")
		}
	})

	t.Run("zero scale returns translated only", func(t *testing.T) {
		hand := HandLandmarks{}
		hand.Points[Wrist] = Point3D{X: 10.0, Y: 20.0, Z: 5.0}
		hand.Points[MiddleMCP] = Point3D{X: 10.0, Y: 20.0, Z: 5.0}
		hand.Points[IndexTip] = Point3D{X: 12.0, Y: 20.0, Z: 5.0}

		normalized := hand.Normalize()

		if math.Abs(normalized.Points[IndexTip].X-2.0) > epsilon {
			t.Errorf("expected index tip X 2.0 after translation, got %f", normalized.Points[IndexTip].X)
		}
	})
}

func TestHandLandmarks_Extension(t *testing.T) {
	t.Run("open palm fingers are long", func(t *testing.T) {
		hand := OpenPalmLandmarks()
		for _, f := range Fingers {
			if r := hand.Extension(f); r < 2.0 {
				t.Errorf("finger %d extension %f, expected >= 2.0", f, r)
			}
		}
	})

	t.Run("fist fingers are short", func(t *testing.T) {
		hand := FistLandmarks()
		for _, f := range Fingers {
			if r := hand.Extension(f); r > 1.4 {
				t.Errorf("finger %d extension %f, expected <= 1.4", f, r)
			}
		}
	})

	t.Run("peace sign is mixed", func(t *testing.T) {
		hand := PeaceSignLandmarks()
		if hand.Extension(Index) < 2.0 || hand.Extension(Middle) < 2.0 {
			t.Error("index and middle should stay extended")
		}
		if hand.Extension(Ring) > 1.4 || hand.Extension(Pinky) > 1.4 {
			t.Error("ring and pinky should be curled")
		}
	})

	t.Run("degenerate knuckle", func(t *testing.T) {
		var hand HandLandmarks
		if r := hand.Extension(Index); r != 0 {
			t.Errorf("expected 0 for coincident knuckle, got %f", r)
		}
	})
}

func TestPinchLandmarks(t *testing.T) {
	hand := PinchLandmarks()

	ratio := hand.Distance(ThumbTip, IndexTip) / hand.PalmSize()
	if ratio > 0.25 {
		t.Errorf("thumb-index ratio %f, expected <= 0.25", ratio)
	}

	mid := hand.Midpoint(ThumbTip, IndexTip)
	if math.Abs(mid.X-0.60) > epsilon || math.Abs(mid.Y-0.505) > epsilon {
		t.Errorf("expected pinch midpoint (0.60, 0.505), got (%f, %f)", mid.X, mid.Y)
	}

	open := OpenPalmLandmarks()
	if r := open.Distance(ThumbTip, IndexTip) / open.PalmSize(); r <= 0.25 {
		t.Errorf("open palm should not read as a pinch, ratio %f", r)
	}
}

func TestPrimary(t *testing.T) {
	if Primary(nil) != nil {
		t.Error("expected nil for no hands")
	}

	low := OpenPalmLandmarks()
	low.Score = 0.6
	high := FistLandmarks()
	high.Score = 0.97

	got := Primary([]HandLandmarks{low, high})
	if got == nil || got.Score != 0.97 {
		t.Fatalf("expected highest scoring hand, got %+v", got)
	}
}

func TestConfig_Args(t *testing.T) {
	args := DefaultConfig().Args()
	want := []string{
		"--max-hands", "2",
		"--min-detection-confidence", "0.5",
		"--min-tracking-confidence", "0.5",
	}
	if !slices.Equal(args, want) {
		t.Errorf("Args() = %v, want %v", args, want)
	}
}

func TestWithMinScore(t *testing.T) {
	mock := NewMockDetector()

	weak := OpenPalmLandmarks()
	weak.Score = 0.3
	strong := FistLandmarks()
	strong.Score = 0.9
	mock.SetHands(weak, strong)

	t.Run("drops weak hands", func(t *testing.T) {
		hands, err := WithMinScore(mock, 0.5).Detect(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hands) != 1 || hands[0].Score != 0.9 {
			t.Errorf("expected only the strong hand, got %d hands", len(hands))
		}
	})

	t.Run("zero threshold is passthrough", func(t *testing.T) {
		if d := WithMinScore(mock, 0); d != Detector(mock) {
			t.Error("expected the original detector back")
		}
	})

	t.Run("propagates errors", func(t *testing.T) {
		failing := NewMockDetector()
		failing.SetError(errors.New("camera unplugged"))
		if _, err := WithMinScore(failing, 0.5).Detect(nil); err == nil {
			t.Error("expected error")
		}
	})
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands and counts calls", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands(FistLandmarks(), OpenPalmLandmarks())

		hands, _ := mock.Detect(nil)
		mock.Detect(nil)

		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
		if mock.Calls() != 2 {
			t.Errorf("expected 2 calls, got %d", mock.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipe)(nil)
	})
}

func TestReadHands(t *testing.T) {
	t.Run("skips short hands", func(t *testing.T) {
		r := bufioReader(`{"hands":[{"points":[{"x":0,"y":0,"z":0}],"handedness":"Right","score":0.9}]}` + "\n")
		hands, err := readHands(r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected short hand to be skipped, got %d", len(hands))
		}
	})

	t.Run("service error", func(t *testing.T) {
		r := bufioReader(`{"hands":[],"error":"model not loaded"}` + "\n")
		if _, err := readHands(r); err == nil {
			t.Error("expected error from service reply")
		}
	})
}

func bufioReader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}
