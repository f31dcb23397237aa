package otel

import "testing"

func TestTrimScheme(t *testing.T) {
	cases := map[string]string{
		"http://collector:4317":  "collector:4317",
		"https://collector:4317": "collector:4317",
		"collector:4317":         "collector:4317",
	}
	for in, want := range cases {
		if got := trimScheme(in); got != want {
			t.Errorf("trimScheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServiceAttributesCarryNamespace(t *testing.T) {
	attrs := GetServiceAttributes("safewalk-server", "1.0.0", "production")
	found := false
	for _, a := range attrs {
		if string(a.Key) == "service.namespace" && a.Value.AsString() == ServiceNamespace {
			found = true
		}
	}
	if !found {
		t.Fatalf("service.namespace missing from %v", attrs)
	}
}
