package db

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestSQLState(t *testing.T) {
	assert.Equal(t, "23505", SQLState(&pq.Error{Code: "23505"}))
	assert.Equal(t, "", SQLState(stderrors.New("not a driver error")))
	assert.Equal(t, "", SQLState(nil))
}

func TestSQLStateUnwraps(t *testing.T) {
	err := fmt.Errorf("insert failed: %w", &pq.Error{Code: "23502"})
	assert.Equal(t, "23502", SQLState(err))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23514"}))
	assert.False(t, IsUniqueViolation(nil))
}

func TestIsConstraintViolation(t *testing.T) {
	for _, state := range []pq.ErrorCode{"23505", "23502", "23514"} {
		assert.True(t, IsConstraintViolation(&pq.Error{Code: state}), "state %s", state)
	}
	assert.False(t, IsConstraintViolation(&pq.Error{Code: "40001"}))
}

func TestIsRetryableState(t *testing.T) {
	assert.True(t, isRetryableState(&pq.Error{Code: "40001"}))
	assert.True(t, isRetryableState(&pq.Error{Code: "40P01"}))
	assert.False(t, isRetryableState(&pq.Error{Code: "23505"}))
	assert.False(t, isRetryableState(stderrors.New("timeout")))
}
