package transport

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"
	"github.com/vango-dev/vstore/pkg/store"
)

// setupError reports a request that could not be built.
func setupError(err error) *store.TransportError {
	return &store.TransportError{
		Kind:    store.KindRequestSetup,
		Message: err.Error(),
		Err:     err,
	}
}

// classifyRequestError classifies an error from sending a request or
// reading its response. Cancellation wins over every other kind.
func classifyRequestError(ctx context.Context, err error) *store.TransportError {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return &store.TransportError{Kind: store.KindCancelled, Err: err}
	}
	return &store.TransportError{
		Kind:    store.KindNoResponse,
		Message: err.Error(),
		Err:     err,
	}
}

// httpStatusError is implemented by smithy and AWS response errors.
type httpStatusError interface {
	HTTPStatusCode() int
}

// classifyS3Error maps an S3 client error into the transport taxonomy.
//
// A response error becomes KindHTTP with the API error code and message as
// body. Serialization failures are request setup errors. Everything else
// means no usable response arrived.
func classifyS3Error(ctx context.Context, err error) *store.TransportError {
	var canceled *smithy.CanceledError
	if errors.As(err, &canceled) || errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return &store.TransportError{Kind: store.KindCancelled, Err: err}
	}

	var serr *smithy.SerializationError
	if errors.As(err, &serr) {
		return setupError(err)
	}

	var resp httpStatusError
	if errors.As(err, &resp) && resp.HTTPStatusCode() > 0 {
		te := &store.TransportError{
			Kind:   store.KindHTTP,
			Status: resp.HTTPStatusCode(),
			Err:    err,
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			te.Body = map[string]any{
				"code":    apiErr.ErrorCode(),
				"message": apiErr.ErrorMessage(),
			}
		}
		return te
	}

	return &store.TransportError{
		Kind:    store.KindNoResponse,
		Message: err.Error(),
		Err:     err,
	}
}
