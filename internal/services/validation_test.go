package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerForm struct {
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=8"`
	FirstName string `validate:"required"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		err := vh.ValidateStruct(&registerForm{Email: "jana@example.cz", Password: "supertajne", FirstName: "Jana"})
		assert.NoError(t, err)
	})

	t.Run("missing and short fields", func(t *testing.T) {
		err := vh.ValidateStruct(&registerForm{Password: "short"})
		require.Error(t, err)

		var validationErrors validator.ValidationErrors
		require.True(t, errors.As(err, &validationErrors))
		assert.Len(t, validationErrors, 3)
	})

	t.Run("invalid email format", func(t *testing.T) {
		err := vh.ValidateStruct(&registerForm{Email: "nope", Password: "supertajne", FirstName: "Jana"})

		var validationErrors validator.ValidationErrors
		require.True(t, errors.As(err, &validationErrors))
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "Email", validationErrors[0].Field())
		assert.Equal(t, "email", validationErrors[0].Tag())
	})

	t.Run("profile update tags", func(t *testing.T) {
		sex := "x"
		err := vh.ValidateStruct(&ProfileUpdate{Sex: sex})
		assert.Error(t, err)
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("with validation errors", func(t *testing.T) {
		validationErr := NewValidationHelper().ValidateStruct(&registerForm{Email: "nope"})
		require.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "Email")
		assert.Contains(t, response.Details, "Password")
		assert.Contains(t, response.Details, "FirstName")
	})

	t.Run("wrapped validation errors", func(t *testing.T) {
		validationErr := NewValidationHelper().ValidateStruct(&registerForm{Email: "nope", Password: "supertajne", FirstName: "Jana"})
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, fmt.Errorf("profile: %w", validationErr))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Contains(t, response.Details, "Email")
	})

	t.Run("plain error is not treated as field errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, errors.New("boom"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Invalid request", response.Error)
		assert.Nil(t, response.Details)
	})
}

func TestSendCodedErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()

	SendCodedErrorResponse(w, "your phone number is not verified", "unverified_contact", http.StatusUnprocessableEntity)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "unverified_contact", response.Code)
	assert.Equal(t, "your phone number is not verified", response.Error)
}

func TestTutorRequestLimits(t *testing.T) {
	vh := NewValidationHelper()

	profile := func(mod func(*ProfileUpdate)) *ProfileUpdate {
		p := &ProfileUpdate{FirstName: "Jana", LastName: "Novakova"}
		mod(p)
		return p
	}

	t.Run("profile at column widths", func(t *testing.T) {
		err := vh.ValidateStruct(profile(func(p *ProfileUpdate) {
			p.TitlesBefore = strings.Repeat("t", 20)
			p.FirstName = strings.Repeat("J", 20)
			p.LastName = strings.Repeat("N", 20)
			p.TitlesAfter = strings.Repeat("t", 20)
			p.Intro = strings.Repeat("i", 200)
		}))
		assert.NoError(t, err)
	})

	tooLong := map[string]func(*ProfileUpdate){
		"TitlesBefore": func(p *ProfileUpdate) { p.TitlesBefore = strings.Repeat("t", 21) },
		"FirstName":    func(p *ProfileUpdate) { p.FirstName = strings.Repeat("J", 21) },
		"LastName":     func(p *ProfileUpdate) { p.LastName = strings.Repeat("N", 21) },
		"TitlesAfter":  func(p *ProfileUpdate) { p.TitlesAfter = strings.Repeat("t", 21) },
		"Intro":        func(p *ProfileUpdate) { p.Intro = strings.Repeat("i", 201) },
	}
	for field, mod := range tooLong {
		t.Run("profile "+field+" too long", func(t *testing.T) {
			err := vh.ValidateStruct(profile(mod))

			var validationErrors validator.ValidationErrors
			require.True(t, errors.As(err, &validationErrors))
			assert.Equal(t, field, validationErrors[0].Field())
			assert.Equal(t, "max", validationErrors[0].Tag())
		})
	}

	t.Run("registration names", func(t *testing.T) {
		ok := RegisterRequest{Email: "jana@example.cz", Password: "secret123", FirstName: strings.Repeat("J", 20), LastName: strings.Repeat("N", 20)}
		assert.NoError(t, vh.ValidateStruct(&ok))

		long := ok
		long.LastName = strings.Repeat("N", 21)
		assert.Error(t, vh.ValidateStruct(&long))
	})
}
