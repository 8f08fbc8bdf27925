package accterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
)

func TestFocusOf(t *testing.T) {
	assert.Equal(t, "shadowExpire", FocusOf(&FieldFormatError{Key: "shadowExpire", Reason: "bad"}))
	assert.Equal(t, "userPassword", FocusOf(&CrossFieldError{Keys: []string{"userPassword", "userPasswordConfirm"}}))
	assert.Equal(t, "", FocusOf(errors.New("plain")))

	wrapped := fmt.Errorf("section edit: %w", &FieldFormatError{Key: "uid"})
	assert.Equal(t, "uid", FocusOf(wrapped))
}

func TestFocusOfMultierror(t *testing.T) {
	var result *multierror.Error
	result = multierror.Append(result, &CrossFieldError{Keys: []string{"sn"}, Reason: "missing"})
	result = multierror.Append(result, &FieldFormatError{Key: "uid"})
	assert.Equal(t, "sn", FocusOf(result))
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(&StorageCommitError{Err: errors.New("useradd failed")}))
	assert.True(t, Recoverable(&PluginCheckError{Plugin: "quota"}))
	assert.False(t, Recoverable(ErrNotFound))
}

func TestStorageCommitErrorVerbatim(t *testing.T) {
	inner := errors.New("useradd: user 'al' already exists")
	err := &StorageCommitError{Err: inner}
	assert.Equal(t, inner.Error(), err.Error())
	assert.ErrorIs(t, err, inner)
}
