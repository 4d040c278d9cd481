// internal/common/validation/schema.go
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "loan-underwriting/internal/common/errors"
	"loan-underwriting/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Err returns nil for a valid result and a PAYLOAD_VALIDATION_FAILED error
// listing every violation otherwise.
func (r *ValidationResult) Err() error {
	if r == nil || r.Valid {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return apperrors.NewPayloadInvalidError(strings.Join(msgs, "; "))
}

var optionalNumber = map[string]interface{}{"type": []string{"number", "null"}}

// TransactionSchema describes an incoming loan transaction.
var TransactionSchema = map[string]interface{}{
	"$schema":  "http://json-schema.org/draft-07/schema#",
	"type":     "object",
	"required": []string{"id", "type", "amount", "termMonths"},
	"properties": map[string]interface{}{
		"id":           map[string]interface{}{"type": "string", "minLength": 1},
		"type":         map[string]interface{}{"type": "string", "enum": loanTypeNames()},
		"borrowerName": map[string]interface{}{"type": "string"},
		"amount":       map[string]interface{}{"type": "number", "exclusiveMinimum": 0},
		"termMonths":   map[string]interface{}{"type": "integer", "minimum": 1},
		"status":       map[string]interface{}{"type": "string"},
		"riskFactors": map[string]interface{}{
			"type":  []string{"array", "null"},
			"items": map[string]interface{}{"type": "string"},
		},
		"financialSummary": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"creditScore":        map[string]interface{}{"type": []string{"number", "null"}, "minimum": 300, "maximum": 850},
				"debtToIncomeRatio":  map[string]interface{}{"type": []string{"number", "null"}, "minimum": 0},
				"cashFlow":           optionalNumber,
				"dscr":               map[string]interface{}{"type": []string{"number", "null"}, "minimum": 0},
				"ltv":                map[string]interface{}{"type": []string{"number", "null"}, "minimum": 0},
				"riskScore":          map[string]interface{}{"type": []string{"number", "null"}, "minimum": 0, "maximum": 1},
				"netOperatingIncome": optionalNumber,
				"totalDebtService":   map[string]interface{}{"type": []string{"number", "null"}, "minimum": 0},
				"monthlyDebt":        map[string]interface{}{"type": []string{"number", "null"}, "minimum": 0},
				"monthlyIncome":      optionalNumber,
				"collateralValue":    optionalNumber,
				"employmentYears":    map[string]interface{}{"type": []string{"number", "null"}, "minimum": 0},
				"liquidAssets":       optionalNumber,
			},
		},
	},
}

func loanTypeNames() []string {
	out := make([]string, len(models.LoanTypes))
	for i, t := range models.LoanTypes {
		out[i] = string(t)
	}
	return out
}

var transactionSchemaLoader = gojsonschema.NewGoLoader(TransactionSchema)

// ValidateDocument validates a decoded JSON document against schema. An error
// is returned only when the schema itself cannot be loaded.
func ValidateDocument(schema gojsonschema.JSONLoader, document interface{}) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// ValidateTransaction checks a decoded transaction document.
func ValidateTransaction(document interface{}) (*ValidationResult, error) {
	return ValidateDocument(transactionSchemaLoader, document)
}

// DecodeTransaction validates raw JSON and decodes it into a profile.
func DecodeTransaction(raw []byte) (models.TransactionProfile, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.TransactionProfile{}, apperrors.NewPayloadInvalidError(fmt.Sprintf("malformed JSON: %v", err))
	}
	result, err := ValidateTransaction(doc)
	if err != nil {
		return models.TransactionProfile{}, err
	}
	if err := result.Err(); err != nil {
		return models.TransactionProfile{}, err
	}

	var tx models.TransactionProfile
	if err := json.Unmarshal(raw, &tx); err != nil {
		return models.TransactionProfile{}, apperrors.NewPayloadInvalidError(err.Error())
	}
	return tx, nil
}
