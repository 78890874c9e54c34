package sms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSender(t *testing.T) {
	s := NewMockSender()
	assert.Nil(t, s.Last())

	err := s.Send(context.Background(), "0812345678", "SMS_BILL", map[string]string{"bill_number": "INV-1"})
	require.NoError(t, err)

	last := s.Last()
	require.NotNil(t, last)
	assert.Equal(t, "0812345678", last.Phone)
	assert.Equal(t, "INV-1", last.Params["bill_number"])

	s.Err = errors.New("quota exceeded")
	assert.Error(t, s.Send(context.Background(), "0812345678", "SMS_BILL", nil))
	assert.Len(t, s.Messages, 1)
}

func TestNewAliyunSender(t *testing.T) {
	s, err := NewAliyunSender(&Config{AccessKeyID: "id", AccessKeySecret: "secret", SignName: "GoGo"})
	require.NoError(t, err)
	assert.Equal(t, "GoGo", s.signName)

	var _ Sender = s
	var _ Sender = NewMockSender()
}
