package authsdk

import (
	"errors"

	"github.com/aussiebroadwan/lockbox/pkg/validx"
)

// Validate checks the request before it is sent.
// Returns a map of field names to error messages, or nil if all fields are valid.
func (b BootstrapRequest) Validate() map[string]string {
	err := validx.Struct(b)
	if err == nil {
		return nil
	}
	var fe validx.FieldErrors
	if errors.As(err, &fe) {
		return fe
	}
	return map[string]string{"request": err.Error()}
}
