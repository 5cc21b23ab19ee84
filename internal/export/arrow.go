package export

import (
	"fmt"
	"io"
	"iter"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/brunel/internal/network"
)

// arrowBatchSize caps the rows of one record batch.
const arrowBatchSize = 1 << 16

// SpikeSchema is the schema of an Arrow spike stream.
var SpikeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "time_ms", Type: arrow.PrimitiveTypes.Float64},
	{Name: "neuron", Type: arrow.PrimitiveTypes.Uint32},
	{Name: "step", Type: arrow.PrimitiveTypes.Int64},
}, nil)

// WriteArrow writes spikes as an Arrow IPC stream in batches and returns
// the number of rows written.
func WriteArrow(w io.Writer, spikes iter.Seq[network.Spike], stepSize float64) (int, error) {
	mem := memory.NewGoAllocator()
	writer := ipc.NewWriter(w, ipc.WithSchema(SpikeSchema), ipc.WithAllocator(mem))

	builder := array.NewRecordBuilder(mem, SpikeSchema)
	defer builder.Release()
	times := builder.Field(0).(*array.Float64Builder)
	neurons := builder.Field(1).(*array.Uint32Builder)
	steps := builder.Field(2).(*array.Int64Builder)

	flush := func() error {
		rec := builder.NewRecord()
		defer rec.Release()
		if rec.NumRows() == 0 {
			return nil
		}
		if err := writer.Write(rec); err != nil {
			return fmt.Errorf("failed to write arrow batch: %w", err)
		}
		return nil
	}

	count, pending := 0, 0
	for s := range spikes {
		times.Append(float64(s.Step) * stepSize)
		neurons.Append(uint32(s.Neuron))
		steps.Append(int64(s.Step))
		count++
		pending++
		if pending == arrowBatchSize {
			if err := flush(); err != nil {
				writer.Close()
				return count, err
			}
			pending = 0
		}
	}
	if err := flush(); err != nil {
		writer.Close()
		return count, err
	}
	if err := writer.Close(); err != nil {
		return count, fmt.Errorf("failed to close arrow stream: %w", err)
	}
	return count, nil
}

// ReadArrow decodes an Arrow spike stream written by WriteArrow.
func ReadArrow(r io.Reader) ([]Record, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to open arrow stream: %w", err)
	}
	defer reader.Release()

	if !reader.Schema().Equal(SpikeSchema) {
		return nil, fmt.Errorf("%w: unexpected arrow schema %s", ErrMalformed, reader.Schema())
	}

	var records []Record
	for reader.Next() {
		rec := reader.Record()
		times := rec.Column(0).(*array.Float64)
		neurons := rec.Column(1).(*array.Uint32)
		steps := rec.Column(2).(*array.Int64)
		for i := range int(rec.NumRows()) {
			records = append(records, Record{
				TimeMS: times.Value(i),
				Neuron: int(neurons.Value(i)),
				Step:   int(steps.Value(i)),
			})
		}
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read arrow stream: %w", err)
	}
	return records, nil
}
