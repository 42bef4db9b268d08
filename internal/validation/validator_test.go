package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type otpRequest struct {
	CountryCode string `json:"countryCode" validate:"required,country_code"`
	Phone       string `json:"phone" validate:"required,phone"`
	Code        string `json:"code" validate:"omitempty,otp"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(&otpRequest{CountryCode: "+91", Phone: "9876543210", Code: "123456"}))
	assert.NoError(t, Struct(&otpRequest{CountryCode: "+1", Phone: "5550100"}))
}

func TestStruct_UsesJSONNames(t *testing.T) {
	err := Struct(&otpRequest{CountryCode: "91", Phone: "12ab", Code: "12"})
	require.Error(t, err)

	var rerr *RequestError
	require.True(t, errors.As(err, &rerr))
	require.Len(t, rerr.Fields, 3)

	fields := map[string]string{}
	for _, f := range rerr.Fields {
		fields[f.Field] = f.Tag
	}
	assert.Equal(t, "country_code", fields["countryCode"])
	assert.Equal(t, "phone", fields["phone"])
	assert.Equal(t, "otp", fields["code"])
}

func TestStruct_Username(t *testing.T) {
	type req struct {
		Username string `json:"username" validate:"omitempty,username"`
	}
	assert.NoError(t, Struct(&req{Username: "jane.doe_1"}))
	assert.Error(t, Struct(&req{Username: "no spaces"}))
	assert.NoError(t, Struct(&req{}))
}
