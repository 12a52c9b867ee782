package validx_test

import (
	"strings"
	"testing"

	"github.com/aussiebroadwan/lockbox/pkg/validx"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Website  string `json:"website,omitempty" validate:"omitempty,http_url"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name   string
		in     signup
		fields map[string]string
	}{
		{"valid", signup{Email: "a@x.com", Password: "hunter2!!"}, nil},
		{"missing both", signup{}, map[string]string{
			"email":    "is required",
			"password": "is required",
		}},
		{"bad email and short password", signup{Email: "nope", Password: "x"}, map[string]string{
			"email":    "must be a valid email address",
			"password": "must be at least 8 characters long",
		}},
		{"bad url", signup{Email: "a@x.com", Password: "hunter2!!", Website: "ftp:/x"}, map[string]string{
			"website": "must be a valid URL",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validx.Struct(tt.in)
			if tt.fields == nil {
				require.NoError(t, err)
				return
			}

			var fe validx.FieldErrors
			require.ErrorAs(t, err, &fe)
			require.Equal(t, validx.FieldErrors(tt.fields), fe)
			require.True(t, strings.HasPrefix(err.Error(), "validation failed: "))
		})
	}
}
