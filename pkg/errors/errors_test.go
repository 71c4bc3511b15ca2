package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))

	err := Wrap(ErrNotFound, "get object")
	assert.EqualError(t, err, "get object: not found")
	assert.True(t, Is(err, ErrNotFound))
}

func TestCatalogError_Is(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		want error
	}{
		{"not found", KindNotFound, ErrNotFound},
		{"transient", KindTransient, ErrTransient},
		{"conflict", KindVersionConflict, ErrVersionConflict},
		{"already has image", KindAlreadyHasImage, ErrAlreadyHasImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("outer: %w", NewCatalogError("op", tt.kind, 0, nil))
			assert.True(t, Is(err, tt.want))
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestKindOf_Unknown(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(New("boom")))
	assert.False(t, IsTransient(NewCatalogError("op", KindNotFound, 404, nil)))
	assert.True(t, IsTransient(NewCatalogError("op", KindTransient, 503, nil)))
}

func TestCatalogError_Message(t *testing.T) {
	err := NewCatalogError("create image", KindTransient, 503, New("service unavailable"))
	assert.Equal(t, "create image (status 503): service unavailable", err.Error())

	err = NewCatalogError("associate image", KindVersionConflict, 0, nil)
	assert.Equal(t, "associate image: version_conflict", err.Error())
}

func TestKindOf_Precedence(t *testing.T) {
	nested := NewCatalogError("create image", KindTransient, 503, NewCatalogError("get object", KindNotFound, 404, nil))
	for i := 0; i < 20; i++ {
		assert.Equal(t, KindTransient, KindOf(nested))
	}

	both := fmt.Errorf("%w; %w", ErrTransient, ErrNotFound)
	for i := 0; i < 20; i++ {
		assert.Equal(t, KindNotFound, KindOf(both))
	}
}
