package scoring

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantLen int
		wantErr string
	}{
		{"eleven zeros", `{"data":{"features":[0,0,0,0,0,0,0,0,0,0,0]}}`, 11, ""},
		{"integers and floats", `{"data":{"features":[1,2.5,-3,4e2,0,0,0,0,0,0,0.1]}}`, 11, ""},
		{"too few", `{"data":{"features":[0.0,1.0]}}`, 0, "Model expects 11 features, got 2"},
		{"too many", `{"data":{"features":[0,0,0,0,0,0,0,0,0,0,0,0]}}`, 0, "Model expects 11 features, got 12"},
		{"empty object", `{}`, 0, "data.features is required"},
		{"missing features", `{"data":{}}`, 0, "data.features is required"},
		{"null body", `null`, 0, "data.features is required"},
		{"empty features", `{"data":{"features":[]}}`, 0, "data.features must contain at least 1 item"},
		{"null element", `{"data":{"features":[0,null,0,0,0,0,0,0,0,0,0]}}`, 0, "data.features[1] must be a number"},
		{"string element", `{"data":{"features":["a",0,0,0,0,0,0,0,0,0,0]}}`, 0, "must be"},
		{"features not array", `{"data":{"features":3}}`, 0, "data.features must be an array of numbers"},
		{"data not object", `{"data":[1,2]}`, 0, "data must be an object"},
		{"top-level array", `[1,2,3]`, 0, "request body must be a JSON object"},
		{"syntax error", `{"data":`, 0, "malformed JSON"},
		{"empty body", ``, 0, "request body is empty"},
		{"trailing document", `{"data":{"features":[0]}} {}`, 0, "single JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest(strings.NewReader(tt.body))
			var features []float64
			if err == nil {
				features, err = Validate(req, 11)
			}

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, features, tt.wantLen)
		})
	}
}

func TestValidationError_CarriesCounts(t *testing.T) {
	req, err := DecodeRequest(strings.NewReader(`{"data":{"features":[1,2,3]}}`))
	require.NoError(t, err)

	_, err = Validate(req, 11)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 11, ve.Expected)
	assert.Equal(t, 3, ve.Actual)
}

func TestValidate_PreservesOrder(t *testing.T) {
	req, err := DecodeRequest(strings.NewReader(`{"data":{"features":[10,9,8,7,6,5,4,3,2,1,0]}}`))
	require.NoError(t, err)

	features, err := Validate(req, 11)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0}, features)
}

func TestIsValidationError(t *testing.T) {
	assert.False(t, IsValidationError(errors.New("boom")))
	assert.False(t, IsValidationError(nil))
	assert.True(t, IsValidationError(&ValidationError{Reason: "x"}))
}
