package linker

import (
	"reflect"
	"testing"
)

func TestBuildArgvMinimal(t *testing.T) {
	got := BuildArgv("out.o", Config{Output: "out", RuntimeArchive: "libkorlang_rt.a"})
	want := []string{"cc", "out.o", "libkorlang_rt.a", "-o", "out"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBuildArgvFullOrdering(t *testing.T) {
	got := BuildArgv("out.o", Config{
		Output:         "out",
		RuntimeArchive: "libkorlang_rt.a",
		LTO:            LTOThin,
		PGOGenerate:    true,
		PGOUsePath:     "profile.pgo",
		ExtraArgs:      []string{"-lm"},
	})
	want := []string{
		"cc", "out.o", "libkorlang_rt.a", "-o", "out",
		"-flto=thin", "-fprofile-generate", "-fprofile-use=profile.pgo", "-lm",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBuildArgvFullLTO(t *testing.T) {
	got := BuildArgv("a.o", Config{Output: "a", RuntimeArchive: "rt.a", LTO: LTOFull})
	want := []string{"cc", "a.o", "rt.a", "-o", "a", "-flto"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBuildArgvNeverExecutes(t *testing.T) {
	// BuildArgv has no side effects: calling it twice with the same
	// config produces an identical, independent slice.
	cfg := Config{Output: "out", RuntimeArchive: "rt.a"}
	a := BuildArgv("o.o", cfg)
	b := BuildArgv("o.o", cfg)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("BuildArgv should be pure: %v != %v", a, b)
	}
}
