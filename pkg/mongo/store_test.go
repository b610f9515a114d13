package mongo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"julianmorley.ca/con-plar/storefront/pkg/store"
)

func TestIsAborted(t *testing.T) {
	transient := mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
	unknown := mongo.CommandError{Code: 50, Labels: []string{"UnknownTransactionCommitResult"}}
	plain := mongo.CommandError{Code: 2, Name: "BadValue"}

	assert.True(t, isAborted(transient))
	assert.True(t, isAborted(fmt.Errorf("insert: %w", transient)))
	assert.True(t, isAborted(unknown))
	assert.True(t, isAborted(context.DeadlineExceeded))
	assert.False(t, isAborted(plain))
	assert.False(t, isAborted(errors.New("boom")))
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(mongo.ErrNoDocuments), store.ErrNotFound)
	boom := errors.New("boom")
	assert.Equal(t, boom, notFound(boom))
}

func TestRequiredIndexesCoverLookups(t *testing.T) {
	byCollection := map[string]int{}
	for _, idx := range requiredIndexes {
		byCollection[idx.CollectionName]++
	}
	for _, name := range []string{usersCollection, productsCollection, cartsCollection, ordersCollection, inventoryLogsCollection} {
		assert.Positive(t, byCollection[name], name)
	}
}
