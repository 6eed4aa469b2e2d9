package controller

import (
	"context"
	"errors"
	"testing"

	"positionledger/src/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	got []*model.Exception
	err error
}

func (r *recordingWriter) Create(_ context.Context, exc *model.Exception) error {
	r.got = append(r.got, exc)
	return r.err
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{" reliance ", "RELIANCE"},
		{"nifty50", "NIFTY50"},
		{"TCS", "TCS"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeSymbol(tt.input); got != tt.expected {
			t.Fatalf("expected %q -> %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestCapturePersistsException(t *testing.T) {
	w := &recordingWriter{}

	Capture(context.Background(), w, Failure{
		Service: "lifecycle",
		Module:  "margin",
		Method:  "Close",
		UserID:  7,
		Err:     errors.New("no multiplier"),
		Context: map[string]interface{}{"position_id": 3},
	})

	require.Len(t, w.got, 1)
	exc := w.got[0]
	assert.Equal(t, "warn", exc.Level)
	assert.Equal(t, "no multiplier", exc.Message)
	require.NotNil(t, exc.UserID)
	assert.Equal(t, uint(7), *exc.UserID)
	assert.JSONEq(t, `{"position_id":3}`, exc.Context)
}

func TestCaptureIgnoresNilErrorAndWriterFailure(t *testing.T) {
	w := &recordingWriter{err: assert.AnError}

	Capture(context.Background(), w, Failure{Service: "x"})
	assert.Empty(t, w.got)

	assert.NotPanics(t, func() {
		Capture(context.Background(), w, Failure{Service: "x", Err: errors.New("boom")})
		Capture(context.Background(), nil, Failure{Service: "x", Err: errors.New("boom")})
	})
}
