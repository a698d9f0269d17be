package workflow

import (
	"regexp"
	"strings"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
	"bitbucket.org/mmdatafocus/retailcheck_backend/models"
	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
	"github.com/shopspring/decimal"
)

// Stable validation reasons; clients branch on these.
const (
	ReasonMalformedNumber        = "malformed-number"
	ReasonMalformedBool          = "malformed-bool"
	ReasonOutOfRange             = "out-of-range"
	ReasonRegexMismatch          = "regex-mismatch"
	ReasonMissingRequiredComment = "missing-required-comment"
	ReasonMissingAttachment      = "missing-attachment"
	ReasonEmptyValue             = "empty-value"
)

// StepResult is the normalized outcome of a valid submission.
type StepResult struct {
	ValueNumber *decimal.Decimal
	ValueText   *string
	ValueCheck  *bool
	Delta       decimal.Decimal
}

// ValidateStep is pure and deterministic: same input, same verdict. It
// dispatches on the step's declared type; adding a step type means adding one
// case here, not touching the state machine.
//
// attachmentCount covers attachments already on the step plus those carried
// by the submission itself.
func ValidateStep(def *models.TemplateStep, rawValue string, comment string, attachmentCount int) (*StepResult, error) {
	switch def.Type {
	case models.StepTypeNumber:
		return validateNumberStep(def, rawValue, comment)
	case models.StepTypeText:
		return validateTextStep(def, rawValue)
	case models.StepTypeCheck:
		return validateCheckStep(rawValue)
	case models.StepTypePhoto:
		return validatePhotoStep(rawValue, attachmentCount)
	default:
		return nil, utils.NewValidationError(ReasonEmptyValue, "unknown step type %q", def.Type)
	}
}

func validateNumberStep(def *models.TemplateStep, rawValue string, comment string) (*StepResult, error) {
	value, err := ParseNumberValue(rawValue)
	if err != nil {
		return nil, err
	}

	if def.MinValue != nil && value.LessThan(*def.MinValue) {
		return nil, utils.NewValidationError(ReasonOutOfRange, "value %s below minimum %s", value, def.MinValue)
	}
	if def.MaxValue != nil && value.GreaterThan(*def.MaxValue) {
		return nil, utils.NewValidationError(ReasonOutOfRange, "value %s above maximum %s", value, def.MaxValue)
	}

	delta := decimal.Zero
	if def.Norm != nil {
		delta = value.Sub(*def.Norm)
	}

	threshold := config.DeltaThreshold()
	if def.DeltaThreshold != nil {
		threshold = *def.DeltaThreshold
	}
	if delta.Abs().GreaterThanOrEqual(threshold) && strings.TrimSpace(comment) == "" {
		return nil, utils.NewValidationError(ReasonMissingRequiredComment,
			"delta %s reaches threshold %s, comment required", delta, threshold)
	}

	return &StepResult{ValueNumber: &value, Delta: delta}, nil
}

func validateTextStep(def *models.TemplateStep, rawValue string) (*StepResult, error) {
	text := strings.TrimSpace(rawValue)
	if text == "" {
		return nil, utils.NewValidationError(ReasonEmptyValue, "text value is required")
	}
	if def.Regex != nil && *def.Regex != "" {
		re, err := regexp.Compile(*def.Regex)
		if err != nil {
			// A broken pattern in the template must not block submissions.
			return &StepResult{ValueText: &text}, nil
		}
		if !re.MatchString(text) {
			return nil, utils.NewValidationError(ReasonRegexMismatch, "value does not match expected format")
		}
	}
	return &StepResult{ValueText: &text}, nil
}

func validateCheckStep(rawValue string) (*StepResult, error) {
	b, err := ParseBoolValue(rawValue)
	if err != nil {
		return nil, err
	}
	return &StepResult{ValueCheck: &b}, nil
}

func validatePhotoStep(rawValue string, attachmentCount int) (*StepResult, error) {
	if attachmentCount < 1 {
		return nil, utils.NewValidationError(ReasonMissingAttachment, "photo step requires at least one attachment")
	}
	res := &StepResult{}
	if text := strings.TrimSpace(rawValue); text != "" {
		res.ValueText = &text
	}
	return res, nil
}

// ParseNumberValue normalizes a human-entered amount: spaces (incl. NBSP)
// stripped, decimal comma accepted, rounded to 2 decimals.
// "1 234,50" -> 1234.50.
func ParseNumberValue(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero, utils.NewValidationError(ReasonEmptyValue, "number value is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, utils.NewValidationError(ReasonMalformedNumber, "cannot parse %q as a number", raw)
	}
	return d.Round(2), nil
}

// ParseBoolValue accepts the check-button vocabulary in either language.
func ParseBoolValue(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "ok", "да":
		return true, nil
	case "0", "false", "no", "n", "нет":
		return false, nil
	}
	return false, utils.NewValidationError(ReasonMalformedBool, "cannot parse %q as yes/no", raw)
}
