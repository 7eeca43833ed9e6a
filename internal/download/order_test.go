package download

import (
	"reflect"
	"testing"
)

func TestPlanOrderBoundaryCases(t *testing.T) {
	cases := []struct {
		n    int
		want []int
	}{
		{0, nil},
		{1, []int{0}},
		{2, []int{0, 1}},
		{3, []int{0, 2, 1}},
	}

	for _, c := range cases {
		got := planOrder(c.n)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("planOrder(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

func TestPlanOrderVisitsEveryIndexOnce(t *testing.T) {
	for n := 1; n <= 50; n++ {
		order := planOrder(n)
		if len(order) != n {
			t.Fatalf("planOrder(%d) produced %d indices, want %d", n, len(order), n)
		}

		seen := make(map[int]bool, n)
		for _, idx := range order {
			if idx < 0 || idx >= n {
				t.Fatalf("planOrder(%d) produced out-of-range index %d", n, idx)
			}
			if seen[idx] {
				t.Fatalf("planOrder(%d) visited index %d twice", n, idx)
			}
			seen[idx] = true
		}
	}
}

func TestPlanOrderStartsFirstAndLast(t *testing.T) {
	order := planOrder(10)
	if order[0] != 0 {
		t.Errorf("first visited index = %d, want 0", order[0])
	}
	if order[1] != 9 {
		t.Errorf("second visited index = %d, want 9", order[1])
	}
}
