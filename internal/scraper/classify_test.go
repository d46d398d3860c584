package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{
			name: "missing url parameters is fatal",
			err:  fmt.Errorf("branch x: %w", ErrMissingParams),
			want: ClassFatal,
		},
		{
			name: "deadline exceeded is a session fault",
			err:  fmt.Errorf("navigate: %w", context.DeadlineExceeded),
			want: ClassSessionFault,
		},
		{
			name: "target closed is a session fault",
			err:  errors.New("chrome: target closed"),
			want: ClassSessionFault,
		},
		{
			name: "crash signature is a session fault",
			err:  errors.New("tab crashed during navigation"),
			want: ClassSessionFault,
		},
		{
			name: "timeout text is a session fault",
			err:  errors.New("navigation timeout after 45s"),
			want: ClassSessionFault,
		},
		{
			name: "signature match is case-insensitive",
			err:  errors.New("BROWSER CLOSED unexpectedly"),
			want: ClassSessionFault,
		},
		{
			name: "table count shortfall is retryable",
			err:  errors.New("page has 3 tables, minimum is 15"),
			want: ClassRetryable,
		},
		{
			name: "unrecognized error is retryable",
			err:  errors.New("some transient condition"),
			want: ClassRetryable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "retryable", ClassRetryable.String())
	assert.Equal(t, "session_fault", ClassSessionFault.String())
	assert.Equal(t, "fatal", ClassFatal.String())
}
