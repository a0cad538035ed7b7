package db

import (
	"context"
	"strings"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/tracing"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementLength = 256

// QueryTracer opens a span around every query run on the pool.
type QueryTracer struct{}

var _ pgx.QueryTracer = QueryTracer{}

// TraceQueryStart implements pgx.QueryTracer.
func (QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx, span := tracing.StartSpan(ctx, "db.query")
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", compactStatement(data.SQL)),
	)
	return ctx
}

// TraceQueryEnd implements pgx.QueryTracer.
func (QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span := trace.SpanFromContext(ctx)
	tracing.Fail(span, data.Err)
	span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	span.End()
}

func compactStatement(sql string) string {
	compact := strings.Join(strings.Fields(sql), " ")
	if len(compact) > maxStatementLength {
		compact = compact[:maxStatementLength]
	}
	return compact
}
