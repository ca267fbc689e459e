package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "simple", path: "users/u1", want: "users/u1"},
		{name: "surrounding slashes", path: "/products/p1/", want: "products/p1"},
		{name: "single segment", path: "usernames", want: "usernames"},
		{name: "empty", path: "", wantErr: true},
		{name: "only slashes", path: "///", wantErr: true},
		{name: "double slash", path: "users//u1", wantErr: true},
		{name: "dot segment", path: "users/./u1", wantErr: true},
		{name: "parent segment", path: "users/../carts", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanPath(tt.path)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidPath))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplit(t *testing.T) {
	parent, name := split("users/u1")
	assert.Equal(t, "users", parent)
	assert.Equal(t, "u1", name)

	parent, name = split("users")
	assert.Equal(t, "", parent)
	assert.Equal(t, "users", name)
}

func TestMergeFields(t *testing.T) {
	merged, err := mergeFields([]byte(`{"a":1,"b":"x"}`), map[string]interface{}{"b": "y", "c": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":"y","c":true}`, string(merged))

	merged, err = mergeFields(nil, map[string]interface{}{"a": 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(merged))

	_, err = mergeFields([]byte(`"scalar"`), map[string]interface{}{"a": 2})
	assert.Error(t, err)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `users/a\_b\%c`, escapeLike("users/a_b%c"))
}
