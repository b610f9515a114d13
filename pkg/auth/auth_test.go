package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"julianmorley.ca/con-plar/storefront/pkg/models"
)

func TestPasswordRoundTrip(t *testing.T) {
	svc := NewService("secret", time.Hour, WithCost(bcrypt.MinCost))

	hashed, err := svc.HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hashed)
	assert.True(t, svc.ComparePassword(hashed, "hunter22"))
	assert.False(t, svc.ComparePassword(hashed, "hunter23"))
}

func TestIssueAndVerify(t *testing.T) {
	svc := NewService("secret", time.Hour)
	userID := bson.NewObjectID()

	token, err := svc.IssueToken(userID, models.RoleAdmin)
	require.NoError(t, err)

	identity, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, models.RoleAdmin, identity.Role)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	token, err := NewService("one", time.Hour).IssueToken(bson.NewObjectID(), models.RoleCustomer)
	require.NoError(t, err)

	_, err = NewService("two", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService("secret", time.Minute, WithClock(func() time.Time { return issued }))
	token, err := svc.IssueToken(bson.NewObjectID(), models.RoleCustomer)
	require.NoError(t, err)

	later := NewService("secret", time.Minute, WithClock(func() time.Time { return issued.Add(2 * time.Minute) }))
	_, err = later.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := NewService("secret", time.Hour).Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorize(t *testing.T) {
	assert.True(t, Authorize(models.RoleAdmin, models.RoleAdmin))
	assert.True(t, Authorize(models.RoleCustomer, models.RoleCustomer, models.RoleAdmin))
	assert.False(t, Authorize(models.RoleCustomer, models.RoleAdmin))
	assert.False(t, Authorize(models.RoleAdmin))
}
