package util

import (
	"context"
	"errors"
	"io"
)

var ErrLimitExceeded = errors.New("read limit exceeded")

type readerCtx struct {
	ctx context.Context
	r   io.Reader
}

func (r *readerCtx) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// NewCancellableReader gets a context-aware io.Reader.
func NewCancellableReader(ctx context.Context, r io.Reader) io.Reader {
	return &readerCtx{
		ctx: ctx,
		r:   r,
	}
}

// ReadAllLimited reads r to the end, failing with ErrLimitExceeded once more
// than limit bytes arrive and with ctx's error once ctx is done.
func ReadAllLimited(ctx context.Context, r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(NewCancellableReader(ctx, io.LimitReader(r, limit+1)))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrLimitExceeded
	}
	return data, nil
}
