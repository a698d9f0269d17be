package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/retailcheck_backend/models"
	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func numberStepDef(norm string) *models.TemplateStep {
	n := dec(norm)
	return &models.TemplateStep{
		Code: "cash_close",
		Type: models.StepTypeNumber,
		Norm: &n,
	}
}

func TestParseNumberValue_CommaAndSpaces(t *testing.T) {
	cases := map[string]string{
		"1 234,50": "1234.5",
		"1234.50":  "1234.5",
		"0,999":    "1", // rounded to 2 decimals
		" 42 ":     "42",
	}
	for raw, want := range cases {
		got, err := ParseNumberValue(raw)
		if err != nil {
			t.Fatalf("ParseNumberValue(%q): %v", raw, err)
		}
		if !got.Equal(dec(want)) {
			t.Fatalf("ParseNumberValue(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestParseNumberValue_Malformed(t *testing.T) {
	for _, raw := range []string{"", "abc", "12,34,56"} {
		if _, err := ParseNumberValue(raw); err == nil {
			t.Fatalf("ParseNumberValue(%q) should fail", raw)
		}
	}
}

func TestValidateStep_NormalizedDeltaBelowThreshold(t *testing.T) {
	// "1 234,50" against norm 1000.00: delta 234.50, under the default
	// threshold of 300, so no comment is needed.
	res, err := ValidateStep(numberStepDef("1000.00"), "1 234,50", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ValueNumber == nil || !res.ValueNumber.Equal(dec("1234.50")) {
		t.Fatalf("value = %v, want 1234.50", res.ValueNumber)
	}
	if !res.Delta.Equal(dec("234.50")) {
		t.Fatalf("delta = %s, want 234.50", res.Delta)
	}
}

func TestValidateStep_CommentThresholdBoundary(t *testing.T) {
	// Default threshold is 300: just under never needs a comment, at and
	// above always does.
	cases := []struct {
		raw         string
		needComment bool
	}{
		{"1299.99", false}, // delta 299.99
		{"1300.00", true},  // delta 300.00
		{"1300.01", true},  // delta 300.01
		{"700.01", false},  // delta -299.99
		{"700.00", true},   // delta -300.00
	}
	def := numberStepDef("1000.00")
	for _, tc := range cases {
		_, err := ValidateStep(def, tc.raw, "", 0)
		if tc.needComment {
			ve, ok := err.(*utils.ValidationError)
			if !ok {
				t.Fatalf("value %s: expected ValidationError, got %v", tc.raw, err)
			}
			if ve.Reason != ReasonMissingRequiredComment {
				t.Fatalf("value %s: reason = %s, want %s", tc.raw, ve.Reason, ReasonMissingRequiredComment)
			}
			// Supplying a comment always succeeds.
			if _, err := ValidateStep(def, tc.raw, "recount confirmed", 0); err != nil {
				t.Fatalf("value %s with comment: %v", tc.raw, err)
			}
		} else if err != nil {
			t.Fatalf("value %s: unexpected error %v", tc.raw, err)
		}
	}
}

func TestValidateStep_StepLevelThresholdOverride(t *testing.T) {
	def := numberStepDef("1000.00")
	override := dec("50")
	def.DeltaThreshold = &override

	if _, err := ValidateStep(def, "1060", "", 0); err == nil {
		t.Fatal("delta 60 over step threshold 50 should require a comment")
	}
	if _, err := ValidateStep(def, "1040", "", 0); err != nil {
		t.Fatalf("delta 40 under step threshold 50: %v", err)
	}
}

func TestValidateStep_Range(t *testing.T) {
	min := dec("0")
	max := dec("10000")
	def := &models.TemplateStep{Type: models.StepTypeNumber, MinValue: &min, MaxValue: &max}

	if _, err := ValidateStep(def, "-1", "", 0); err == nil {
		t.Fatal("below min should fail")
	}
	if _, err := ValidateStep(def, "10000,01", "", 0); err == nil {
		t.Fatal("above max should fail")
	}
	if _, err := ValidateStep(def, "10000", "", 0); err != nil {
		t.Fatalf("at max: %v", err)
	}
}

func TestValidateStep_Check(t *testing.T) {
	def := &models.TemplateStep{Type: models.StepTypeCheck}
	res, err := ValidateStep(def, "yes", "", 0)
	if err != nil || res.ValueCheck == nil || !*res.ValueCheck {
		t.Fatalf("yes: res=%v err=%v", res, err)
	}
	res, err = ValidateStep(def, "нет", "", 0)
	if err != nil || res.ValueCheck == nil || *res.ValueCheck {
		t.Fatalf("нет: res=%v err=%v", res, err)
	}
	if _, err := ValidateStep(def, "dunno", "", 0); err == nil {
		t.Fatal("unparseable bool should fail")
	}
}

func TestValidateStep_PhotoRequiresAttachment(t *testing.T) {
	def := &models.TemplateStep{Type: models.StepTypePhoto}
	if _, err := ValidateStep(def, "", "", 0); err == nil {
		t.Fatal("photo with zero attachments should fail")
	}
	if _, err := ValidateStep(def, "", "", 1); err != nil {
		t.Fatalf("photo with one attachment: %v", err)
	}
}

func TestValidateStep_TextRegex(t *testing.T) {
	pattern := `^\d{4}$`
	def := &models.TemplateStep{Type: models.StepTypeText, Regex: &pattern}
	if _, err := ValidateStep(def, "1234", "", 0); err != nil {
		t.Fatalf("matching text: %v", err)
	}
	if _, err := ValidateStep(def, "12x4", "", 0); err == nil {
		t.Fatal("non-matching text should fail")
	}
	if _, err := ValidateStep(def, "   ", "", 0); err == nil {
		t.Fatal("blank text should fail")
	}
}

func TestValidateStep_Deterministic(t *testing.T) {
	// Same input, same verdict: the validator has no hidden state.
	def := numberStepDef("1000.00")
	for i := 0; i < 50; i++ {
		res, err := ValidateStep(def, "1 234,50", "", 0)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if !res.Delta.Equal(dec("234.50")) {
			t.Fatalf("iteration %d: delta %s", i, res.Delta)
		}
	}
}
