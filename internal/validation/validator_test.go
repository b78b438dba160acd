package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go-freelance/internal/model"
	"go-freelance/pkg/apierror"
)

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "VALIDATION_ERROR", apiErr.Code)

	out := map[string]string{}
	for _, fe := range apiErr.Errors {
		out[fe.Field] = fe.Message
	}
	return out
}

func TestIsStrongPassword(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"Abcdef12":  true,
		"abcdef12":  false,
		"ABCDEF12":  false,
		"Abcdefgh":  false,
		"Abc12":     false,
		"Pässwört1": true,
	}

	for password, want := range cases {
		require.Equal(t, want, IsStrongPassword(password), password)
	}
}

func TestStructRegister(t *testing.T) {
	t.Parallel()

	t.Run("accepts a complete client registration", func(t *testing.T) {
		err := Struct(model.RegisterRequest{
			Email:       "a@b.com",
			Password:    "Abcdef12",
			FirstName:   "A",
			LastName:    "B",
			Role:        "CLIENT",
			CompanyName: "Acme",
		})
		require.NoError(t, err)
	})

	t.Run("requires company name for clients", func(t *testing.T) {
		fields := fieldsOf(t, Struct(model.RegisterRequest{
			Email:     "a@b.com",
			Password:  "Abcdef12",
			FirstName: "A",
			LastName:  "B",
			Role:      "CLIENT",
		}))
		require.Equal(t, "is required for clients", fields["companyName"])
	})

	t.Run("requires hourly rate and bio for freelancers", func(t *testing.T) {
		fields := fieldsOf(t, Struct(model.RegisterRequest{
			Email:     "f@b.com",
			Password:  "Abcdef12",
			FirstName: "F",
			LastName:  "L",
			Role:      "FREELANCER",
		}))
		require.Contains(t, fields, "hourlyRate")
		require.Contains(t, fields, "bio")
	})

	t.Run("rejects admin self registration", func(t *testing.T) {
		fields := fieldsOf(t, Struct(model.RegisterRequest{
			Email:     "x@b.com",
			Password:  "Abcdef12",
			FirstName: "X",
			LastName:  "Y",
			Role:      "ADMIN",
		}))
		require.Equal(t, "must be one of: FREELANCER, CLIENT", fields["role"])
	})

	t.Run("itemizes malformed email and weak password", func(t *testing.T) {
		fields := fieldsOf(t, Struct(model.RegisterRequest{
			Email:       "not-an-email",
			Password:    "short",
			FirstName:   "A",
			LastName:    "B",
			Role:        "CLIENT",
			CompanyName: "Acme",
		}))
		require.Equal(t, "must be a valid email address", fields["email"])
		require.Contains(t, fields["password"], "at least 8 characters")
	})

	t.Run("caps password at the bcrypt input limit", func(t *testing.T) {
		fields := fieldsOf(t, Struct(model.RegisterRequest{
			Email:       "c@b.com",
			Password:    "Abcdef12" + strings.Repeat("x", 70),
			FirstName:   "A",
			LastName:    "B",
			Role:        "CLIENT",
			CompanyName: "Acme",
		}))
		require.Equal(t, "must be at most 72 bytes", fields["password"])

		require.NoError(t, Struct(model.ResetPasswordRequest{
			Token:       "t",
			NewPassword: "Abcdef12" + strings.Repeat("x", 64),
		}))
	})

	t.Run("rejects non-positive hourly rate", func(t *testing.T) {
		rate := 0.0
		fields := fieldsOf(t, Struct(model.RegisterRequest{
			Email:      "f@b.com",
			Password:   "Abcdef12",
			FirstName:  "F",
			LastName:   "L",
			Role:       "FREELANCER",
			HourlyRate: &rate,
			Bio:        "Go developer",
		}))
		require.Equal(t, "must be greater than 0", fields["hourlyRate"])
	})
}

func TestStructResetPassword(t *testing.T) {
	t.Parallel()

	fields := fieldsOf(t, Struct(model.ResetPasswordRequest{NewPassword: "Abcdef12"}))
	require.Equal(t, "is required", fields["token"])

	require.NoError(t, Struct(model.ResetPasswordRequest{Token: "t", NewPassword: "Abcdef12"}))
}
