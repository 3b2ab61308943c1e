package namespace

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cause := errors.New("disk gone")

	tests := []struct {
		name string
		err  error
		want StoreStatus
	}{
		{"nil", nil, OK},
		{"not exist", newError(KeyNotExist, []byte("k"), nil), KeyNotExist},
		{"wrapped", fmt.Errorf("rename: %w", newError(KeyAlreadyExist, nil, nil)), KeyAlreadyExist},
		{"fatal", newError(StorageFatalError, nil, cause), StorageFatalError},
		{"foreign", cause, InternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestStoreErrorMatching(t *testing.T) {
	cause := errors.New("boom")
	err := newError(StorageFatalError, []byte("key"), cause)

	assert.ErrorIs(t, err, ErrStorageFatal)
	assert.NotErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, `StorageFatalError (key "key"): boom`, err.Error())
	assert.Equal(t, "KeyNotExist", ErrKeyNotExist.Error())
}

func TestStoreErrorDescribesKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{EncodeFileStoreKey(7, "vol"), `KeyNotExist (file 7/"vol")`},
		{EncodeSnapShotFileStoreKey(7, "vol", 3), `KeyNotExist (snapshot 7/"vol"@3)`},
		{EncodeSegmentStoreKey(9, 1<<30), `KeyNotExist (segment 9@1073741824)`},
		{"04inode", `KeyNotExist (key "04inode")`},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, newError(KeyNotExist, []byte(tt.key), nil).Error())
		})
	}
}
