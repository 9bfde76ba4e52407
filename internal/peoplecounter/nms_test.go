package peoplecounter

import (
	"math"
	"reflect"
	"testing"
)

func TestIoU(t *testing.T) {
	cases := []struct {
		name string
		a, b Box
		want float64
	}{
		{"identical", Box{0, 0, 10, 10}, Box{0, 0, 10, 10}, 1},
		{"disjoint", Box{0, 0, 10, 10}, Box{20, 20, 5, 5}, 0},
		{"half overlap", Box{0, 0, 10, 10}, Box{5, 0, 10, 10}, 50.0 / 150.0},
		{"touching edges", Box{0, 0, 10, 10}, Box{10, 0, 10, 10}, 0},
		{"empty boxes", Box{0, 0, 0, 0}, Box{0, 0, 0, 0}, 0},
		{"negative size", Box{0, 0, -5, 10}, Box{0, 0, 10, 10}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IoU(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("IoU = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNMS(t *testing.T) {
	boxes := []Box{
		{0, 0, 100, 200},   // 0
		{5, 5, 100, 200},   // 1 overlaps 0 heavily
		{300, 0, 100, 200}, // 2 separate
		{60, 0, 100, 200},  // 3 IoU with 0 is 40/160 = 0.25
	}
	cases := []struct {
		name      string
		scores    []float64
		threshold float64
		want      []int
	}{
		{"highest wins", []float64{0.5, 0.9, 0.7, 0.1}, 0.35, []int{1, 2, 3}},
		{"ties keep input order", []float64{1, 1, 1, 1}, 0.35, []int{0, 2, 3}},
		{"strict threshold", []float64{1, 1, 1, 1}, 0.2, []int{0, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NMS(boxes, tc.scores, tc.threshold); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("NMS = %v, want %v", got, tc.want)
			}
		})
	}
	if got := NMS(nil, nil, 0.35); len(got) != 0 {
		t.Fatalf("empty input should keep nothing, got %v", got)
	}
}
