package domain

import "testing"

func TestCompositeCriterion_ValidChildCount(t *testing.T) {
	cases := []struct {
		op         LogicOperator
		childCount int
		want       bool
	}{
		{LogicNOT, 1, true},
		{LogicNOT, 0, false},
		{LogicNOT, 2, false},
		{LogicAND, 2, true},
		{LogicAND, 3, true},
		{LogicAND, 1, false},
		{LogicOR, 2, true},
		{LogicOR, 0, false},
	}
	for _, tc := range cases {
		c := CompositeCriterion{LogicOperator: tc.op}
		if got := c.ValidChildCount(tc.childCount); got != tc.want {
			t.Errorf("%s.ValidChildCount(%d) = %v, want %v", tc.op, tc.childCount, got, tc.want)
		}
	}
}
