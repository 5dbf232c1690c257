package util

import (
	"context"
	"errors"
	"os"

	"go.uber.org/atomic"
)

// ErrChannelClosed is returned from Err() when a context returned from WithDone is closed after
// the provided channel is closed.
var ErrChannelClosed = errors.New("channel closed")

// ErrSignalReceived is returned from Err() when a context returned from WithSignal is cancelled
// because an OS signal was received.
var ErrSignalReceived = errors.New("os signal received")

// WithDone wraps a signal channel with a context, and cancels the context when the channel is closed.
// When the context is Done, the ctx.Err() will either be ErrChannelClosed if the channel closed first,
// or the error from the underlying context (Canceled, DeadlineExceeded, etc).
func WithDone(parent context.Context, done <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c := &causeCtx{Context: ctx, cause: atomic.NewError(nil)}
	go func() {
		select {
		case <-done:
			c.cause.Store(ErrChannelClosed)
			cancel()
		case <-ctx.Done():
		}
	}()
	return c, cancel
}

// WithSignal cancels the returned context once a value is received on the signal channel.
// In that case ctx.Err() returns ErrSignalReceived.
func WithSignal(parent context.Context, sig <-chan os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c := &causeCtx{Context: ctx, cause: atomic.NewError(nil)}
	go func() {
		select {
		case <-sig:
			c.cause.Store(ErrSignalReceived)
			cancel()
		case <-ctx.Done():
		}
	}()
	return c, cancel
}

type causeCtx struct {
	context.Context
	cause *atomic.Error
}

func (c *causeCtx) Err() error {
	err := c.Context.Err()
	if err == nil {
		return nil
	}
	if cause := c.cause.Load(); cause != nil {
		return cause
	}
	return err
}
