package handler

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	EntriesStreamed metric.Int64Counter
	FieldsStreamed  metric.Int64Counter
	StreamAborts    metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("journal-gateway")

	entriesStreamed, err := meter.Int64Counter(
		"journal_gateway.entries_streamed",
		metric.WithDescription("Total number of journal entries written to responses"))
	if err != nil {
		return nil, err
	}

	fieldsStreamed, err := meter.Int64Counter(
		"journal_gateway.fields_streamed",
		metric.WithDescription("Total number of unique field values written to responses"))
	if err != nil {
		return nil, err
	}

	streamAborts, err := meter.Int64Counter(
		"journal_gateway.stream_aborts",
		metric.WithDescription("Total number of response bodies cut short by errors"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		EntriesStreamed: entriesStreamed,
		FieldsStreamed:  fieldsStreamed,
		StreamAborts:    streamAborts,
	}, nil
}
