package infra

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "identity-certifier/internal/infra"

type signingOracle interface {
	PublicKey(ctx context.Context, keyName string, derivationPath [][]byte) ([]byte, error)
	Sign(ctx context.Context, digest []byte, keyName string, derivationPath [][]byte) ([]byte, error)
}

// InstrumentedOracle は署名オラクル呼び出しにスパンとレイテンシ計測を付与する。
type InstrumentedOracle struct {
	next    signingOracle
	metrics *Metrics
}

// NewInstrumentedOracle は next をラップしたオラクルを返す。
func NewInstrumentedOracle(next signingOracle, metrics *Metrics) *InstrumentedOracle {
	return &InstrumentedOracle{next: next, metrics: metrics}
}

func (o *InstrumentedOracle) PublicKey(ctx context.Context, keyName string, derivationPath [][]byte) ([]byte, error) {
	ctx, finish := o.start(ctx, "oracle.PublicKey", keyName)
	pub, err := o.next.PublicKey(ctx, keyName, derivationPath)
	finish(err)
	return pub, err
}

func (o *InstrumentedOracle) Sign(ctx context.Context, digest []byte, keyName string, derivationPath [][]byte) ([]byte, error) {
	ctx, finish := o.start(ctx, "oracle.Sign", keyName)
	sig, err := o.next.Sign(ctx, digest, keyName, derivationPath)
	finish(err)
	return sig, err
}

func (o *InstrumentedOracle) start(ctx context.Context, operation, keyName string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, operation)
	span.SetAttributes(attribute.String("key.name", keyName))
	started := time.Now()

	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if o.metrics != nil {
			o.metrics.OracleDuration.WithLabelValues(operation, outcome).Observe(time.Since(started).Seconds())
		}
	}
}
