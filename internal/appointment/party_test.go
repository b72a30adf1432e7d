package appointment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentityNumber(t *testing.T) {
	assert.NoError(t, ValidateIdentityNumber("12345678901"))

	for _, raw := range []string{"", "1234567890", "123456789012", "1234567890a", "１２３４５６７８９０１"} {
		err := ValidateIdentityNumber(raw)
		assert.ErrorIs(t, err, ErrValidation, raw)
	}
}

func TestRegisterClient(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	svc := newTestService(t, repo)
	account := uuid.New()

	c, err := svc.RegisterClient(ctx, ClientInput{Name: " Elif Sahin ", IdentityNumber: "10000000146", AccountID: &account})
	require.NoError(t, err)
	assert.Equal(t, "Elif Sahin", c.Name)
	assert.True(t, c.Active)
	require.NotNil(t, c.AccountID)
	assert.Equal(t, account, *c.AccountID)

	_, err = svc.RegisterClient(ctx, ClientInput{Name: "Someone Else", IdentityNumber: "10000000146"})
	assert.ErrorIs(t, err, ErrDuplicateIdentityNumber)
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = svc.RegisterClient(ctx, ClientInput{Name: "", IdentityNumber: "10000000147"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.RegisterClient(ctx, ClientInput{Name: "Short Id", IdentityNumber: "123"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegisterPractitioner(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	svc := newTestService(t, repo)

	p, err := svc.RegisterPractitioner(ctx, PractitionerInput{Name: "Dr. Ozturk", Department: DepartmentNeurology})
	require.NoError(t, err)
	assert.Equal(t, DepartmentNeurology, p.Department)
	assert.True(t, p.Active)

	_, err = svc.RegisterPractitioner(ctx, PractitionerInput{Name: "Dr. Nobody", Department: Department(99)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.RegisterPractitioner(ctx, PractitionerInput{Name: "  ", Department: DepartmentENT})
	assert.ErrorIs(t, err, ErrValidation)
}
