package route

import "testing"

func TestInstruction(t *testing.T) {
	cases := []struct {
		typ, mod, name string
		want           string
	}{
		{"depart", "", "", "Start walking"},
		{"depart", "left", "Elm St", "Start walking on Elm St"},
		{"arrive", "right", "Elm St", "Arrive at your destination"},
		{"turn", "left", "", "Turn left"},
		{"turn", "slight right", "Oak Ave", "Turn slight right onto Oak Ave"},
		{"turn", "uturn", "", "Make a U-turn"},
		{"end of road", "right", "", "At the end of the road, turn right"},
		{"end of road", "uturn", "", "At the end of the road, make a U-turn"},
		{"fork", "left", "", "Keep left at the fork"},
		{"continue", "straight", "Main St", "Continue straight onto Main St"},
		{"continue", "", "", "Continue straight"},
		{"new name", "straight", "Bay Rd", "Continue onto Bay Rd"},
		{"roundabout", "", "", "Continue"},
	}
	for _, tc := range cases {
		if got := Instruction(tc.typ, tc.mod, tc.name); got != tc.want {
			t.Errorf("Instruction(%q, %q, %q) = %q, want %q", tc.typ, tc.mod, tc.name, got, tc.want)
		}
	}
}

func TestBuildStepsNumbersContiguously(t *testing.T) {
	steps := BuildSteps([]Maneuver{
		{Type: "depart", DistanceMeters: 10},
		{Type: "turn", Modifier: "left", DistanceMeters: 20},
		{Type: "arrive"},
	})
	for i, s := range steps {
		if s.Number != i+1 {
			t.Fatalf("steps[%d].Number = %d, want %d", i, s.Number, i+1)
		}
	}
	if steps[1].ManeuverType != "turn" || steps[1].ManeuverModifier != "left" {
		t.Fatalf("maneuver not preserved: %+v", steps[1])
	}
}
