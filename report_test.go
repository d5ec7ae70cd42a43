package narcache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReport(t *testing.T) {
	t.Parallel()

	r := &Report{}
	assert.NoError(t, r.Err())
	assert.Equal(t, "0 succeeded, 0 skipped, 0 failed", r.String())

	r.success()
	r.success()
	r.skip()
	r.fail(hashA, errors.New("boom"))

	assert.Equal(t, 2, r.Succeeded)
	assert.Equal(t, 1, r.Skipped)
	assert.Len(t, r.Failed, 1)
	assert.Equal(t, "2 succeeded, 1 skipped, 1 failed", r.String())

	err := r.Err()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), hashA)
}

func TestItemErrorError(t *testing.T) {
	t.Parallel()

	e := ItemError{Name: hashA, Err: errors.New("boom")}
	assert.Equal(t, hashA+": boom", e.Error())
}
