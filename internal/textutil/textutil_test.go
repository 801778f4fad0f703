package textutil

import "testing"

func TestUpperTR_DottedDotless(t *testing.T) {
	cases := map[string]string{
		"ali":      "ALİ",
		"ılgaz":    "ILGAZ",
		"  veli  ": "VELİ",
		"İsmail":   "İSMAİL",
		"ışık":     "IŞIK",
	}
	for in, want := range cases {
		if got := UpperTR(in); got != want {
			t.Errorf("UpperTR(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestUpperTR_ASCIIIdempotent(t *testing.T) {
	in := "JOHN DOE"
	if got := UpperTR(in); got != in {
		t.Fatalf("UpperTR(%q) = %q; want unchanged", in, got)
	}
}

func TestCleanCommand(t *testing.T) {
	cases := map[string]string{
		"  /pdf  ":             "/pdf",
		"*`/pdf`*":             "/pdf",
		"/pdf\u200b":           "/pdf",
		"_/dekont_":            "/dekont",
		"/pdf 123 ALI":         "/pdf 123 ALI",
		"\u200d/pdf\ufeff":     "/pdf",
		"\u2060/pdf\u200c 1 2": "/pdf 1 2",
	}
	for in, want := range cases {
		if got := CleanCommand(in); got != want {
			t.Errorf("CleanCommand(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestLines(t *testing.T) {
	got := Lines("/pdf\r\n 123 \n\nALI\nVELI\n")
	want := []string{"/pdf", "123", "ALI", "VELI"}
	if len(got) != len(want) {
		t.Fatalf("Lines returned %d lines, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q; want %q", i, got[i], want[i])
		}
	}
}
