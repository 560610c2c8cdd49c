package safefile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseNewFormat(t *testing.T) {
	desc, ok := ParseDrawingFilename("2506_22_PROPOSED SECTIONS_C02.pdf")
	if !ok {
		t.Fatalf("expected new-format parse to succeed")
	}
	want := RevisionDescriptor{
		Job:            "2506",
		Drawing:        "22",
		Name:           "PROPOSED SECTIONS",
		Format:         FormatNew,
		Stage:          "C",
		RevisionNumber: 2,
	}
	if desc != want {
		t.Fatalf("parsed %+v, want %+v", desc, want)
	}
}

func TestParseNewFormatMultiTokenName(t *testing.T) {
	desc, ok := ParseDrawingFilename("2506_104_GROUND_FLOOR_PLAN_T11.pdf")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if desc.Name != "GROUND_FLOOR_PLAN" {
		t.Fatalf("name tokens must rejoin with underscores, got %q", desc.Name)
	}
	if desc.Stage != "T" || desc.RevisionNumber != 11 {
		t.Fatalf("unexpected stage/revision %s%02d", desc.Stage, desc.RevisionNumber)
	}
}

func TestParseNewFormatNormalizesStageCase(t *testing.T) {
	desc, ok := ParseDrawingFilename("2506_22_SECTIONS_c03.pdf")
	if !ok || desc.Stage != "C" {
		t.Fatalf("expected lowercase stage to normalize, got %+v ok=%v", desc, ok)
	}
}

func TestParseOldFormat(t *testing.T) {
	desc, ok := ParseDrawingFilename("2506 - 04A - PROPOSED PLANS AND ELEVATIONS.pdf")
	if !ok {
		t.Fatalf("expected old-format parse to succeed")
	}
	want := RevisionDescriptor{
		Job:            "2506",
		Drawing:        "04",
		Name:           "PROPOSED PLANS AND ELEVATIONS",
		Format:         FormatOld,
		RevisionLetter: "A",
	}
	if desc != want {
		t.Fatalf("parsed %+v, want %+v", desc, want)
	}
}

func TestParseOldFormatWithoutLetterAndExtraSegments(t *testing.T) {
	desc, ok := ParseDrawingFilename("2506 - 104 - SITE PLAN - AS EXISTING.pdf")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if desc.RevisionLetter != "" {
		t.Fatalf("missing letter means revision zero, got %q", desc.RevisionLetter)
	}
	if desc.Name != "SITE PLAN - AS EXISTING" {
		t.Fatalf("extra segments must rejoin into the name, got %q", desc.Name)
	}
}

func TestParseRejectsMalformedNames(t *testing.T) {
	cases := []string{
		"randomfile.pdf",
		"2506_22_C02.pdf",                   // too few underscore tokens
		"25X6_22_SECTIONS_C02.pdf",          // job not numeric
		"2506_22_SECTIONS_Z02.pdf",          // unknown stage code
		"2506_22_SECTIONS_C2.pdf",           // one-digit revision
		"2506 - 4 - PLAN.pdf",               // drawing too short
		"2506 - 0404 - PLAN.pdf",            // drawing too long
		"2506 - 04AB - PLAN.pdf",            // two revision letters
		"JOB - 04A - PLAN.pdf",              // job not numeric
		"2506 - 04A.pdf",                    // too few segments
	}
	for _, name := range cases {
		if desc, ok := ParseDrawingFilename(name); ok {
			t.Fatalf("expected %q to be unparsable, got %+v", name, desc)
		}
	}
}

func TestCompareSameNewFormat(t *testing.T) {
	c01 := mustParse(t, "2506_22_PLAN_C01.pdf")
	c02 := mustParse(t, "2506_22_PLAN_C02.pdf")
	if Compare(c01, c02) <= 0 {
		t.Fatalf("C02 must be newer than C01")
	}
	if Compare(c02, c01) >= 0 {
		t.Fatalf("comparison must be antisymmetric")
	}
	if Compare(c01, c01) != 0 {
		t.Fatalf("a descriptor must equal itself")
	}

	tender := mustParse(t, "2506_22_PLAN_T05.pdf")
	construction := mustParse(t, "2506_22_PLAN_C01.pdf")
	if Compare(tender, construction) <= 0 {
		t.Fatalf("construction stage must outrank tender regardless of revision number")
	}
}

func TestCompareSameOldFormat(t *testing.T) {
	unlettered := mustParse(t, "2506 - 04 - PLAN.pdf")
	revA := mustParse(t, "2506 - 04A - PLAN.pdf")
	revB := mustParse(t, "2506 - 04B - PLAN.pdf")
	if Compare(unlettered, revA) <= 0 {
		t.Fatalf("A must be newer than no letter")
	}
	if Compare(revA, revB) <= 0 {
		t.Fatalf("B must be newer than A")
	}
	if Compare(revB, revA) >= 0 {
		t.Fatalf("comparison must be antisymmetric")
	}
}

func TestCompareCrossFormatDominance(t *testing.T) {
	newFmt := mustParse(t, "2506_22_PLAN_SK01.pdf") // least advanced new-format stage
	oldFmt := mustParse(t, "2506 - 22Z - PLAN.pdf") // highest old-format letter
	if Compare(newFmt, oldFmt) >= 0 {
		t.Fatalf("new convention must always outrank old")
	}
	if Compare(oldFmt, newFmt) <= 0 {
		t.Fatalf("cross-format dominance must be antisymmetric")
	}
}

func TestFindMatchingUsesStringEquality(t *testing.T) {
	folder := t.TempDir()
	files := []string{
		"2506_22_PLAN_C01.pdf",
		"2506_22_PLAN_C02.pdf",
		"2506 - 22 - PLAN.pdf",   // old format, same drawing identity
		"2506_04_OTHER_C01.pdf",  // different drawing
		"9999_22_OTHER_C01.pdf",  // different job
		"2506_022_PLAN_C01.pdf",  // "022" != "22"
		"unrelated notes.txt",
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(folder, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed %s failed: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(folder, "2506_22_PLAN_C09.pdf"), 0o755); err != nil {
		t.Fatalf("seed dir failed: %v", err)
	}

	matches, err := FindMatching(folder, "2506", "22")
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d: %+v", len(matches), matches)
	}
	for _, match := range matches {
		if match.Descriptor.Job != "2506" || match.Descriptor.Drawing != "22" {
			t.Fatalf("wrong identity in match %+v", match)
		}
	}
}

func TestIsCurrentDrawingsFolder(t *testing.T) {
	cases := map[string]bool{
		"/p/Current Drawings":      true,
		"/p/CURRENT DRAWINGS":      true,
		"/p/current_drawing_set":   true,
		"/p/Drawings":              false,
		"/p/Current Issues":        false,
		"/p/Superseded":            false,
	}
	for folder, want := range cases {
		if got := IsCurrentDrawingsFolder(folder); got != want {
			t.Fatalf("IsCurrentDrawingsFolder(%q) = %v, want %v", folder, got, want)
		}
	}
}

func mustParse(t *testing.T, name string) RevisionDescriptor {
	t.Helper()
	desc, ok := ParseDrawingFilename(name)
	if !ok {
		t.Fatalf("expected %q to parse", name)
	}
	return desc
}
