package profiles

import (
	"context"
	"testing"

	"staffing/internal/models"
	"staffing/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaults(t *testing.T) {
	t.Run("missing profile", func(t *testing.T) {
		p := WithDefaults(nil, "a@example.com")
		assert.Equal(t, "a@example.com", p.Email)
		assert.Equal(t, DefaultLocation, p.Location)
		assert.Equal(t, DefaultExperience, p.Experience)
		assert.NotNil(t, p.Skills)
		assert.Empty(t, p.Skills)
	})

	t.Run("partial profile", func(t *testing.T) {
		p := WithDefaults(&models.Profile{Email: "a@example.com", Location: "Berlin"}, "a@example.com")
		assert.Equal(t, "Berlin", p.Location)
		assert.Equal(t, DefaultExperience, p.Experience)
	})

	t.Run("complete profile untouched", func(t *testing.T) {
		in := &models.Profile{Location: "Lagos", Skills: []string{"go"}, Experience: "5 years"}
		p := WithDefaults(in, "x")
		assert.Equal(t, []string{"go"}, p.Skills)
		assert.Equal(t, "5 years", p.Experience)
	})
}

func TestUserType(t *testing.T) {
	st := memory.New()
	st.PutProfile(&models.Profile{Email: "Emp@Example.com", UserType: models.UserTypeEmployee})

	ut, err := UserType(context.Background(), st, "emp@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.UserTypeEmployee, ut)

	ut, err = UserType(context.Background(), st, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, ut)
}
