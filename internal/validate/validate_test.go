package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/toptuitions/toptuitions/internal/apperror"
)

type phoneForm struct {
	Phone string `json:"phone" validate:"required,phone10"`
	Role  string `json:"role"  validate:"required,role"`
}

type passwordForm struct {
	Password string `json:"password" validate:"max=72,bcrypt"`
}

type otpForm struct {
	Code string `json:"code" validate:"otp6"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name      string
		in        any
		wantField string
	}{
		{"valid phone", phoneForm{Phone: "9876543210", Role: "student"}, ""},
		{"short phone", phoneForm{Phone: "98765", Role: "student"}, "phone"},
		{"letters in phone", phoneForm{Phone: "98765abcde", Role: "student"}, "phone"},
		{"bad role", phoneForm{Phone: "9876543210", Role: "admin"}, "role"},
		{"valid otp", otpForm{Code: "123456"}, ""},
		{"otp too long", otpForm{Code: "1234567"}, "code"},
		{"ascii password at 72 bytes", passwordForm{Password: strings.Repeat("a", 72)}, ""},
		{"multibyte password over 72 bytes", passwordForm{Password: strings.Repeat("é", 40)}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Struct() error = %v, want nil", err)
				}
				return
			}

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("Struct() error = %v, want *AppError", err)
			}
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Struct() error = %v, want ErrValidation", err)
			}
			if appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
			if appErr.Message == "" {
				t.Error("Message should be a translated, non-empty string")
			}
		})
	}
}
