/*
Package tracing provides lightweight request tracing.

Each proxy or extraction request gets a trace id, propagated via the
X-Trace-ID and X-Span-ID headers and emitted through the structured
logger. A grid client embedding many videos at once can pass one trace
id across a slot's proxy and extraction calls to correlate them in the
server logs.

Usage:

	tracer := tracing.New("backend", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

Span collection is buffered and asynchronous; when the buffer fills,
spans are dropped instead of blocking request handling.
*/
package tracing
