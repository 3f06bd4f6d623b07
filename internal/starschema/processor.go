package starschema

import (
	"context"
	"time"

	"retailetl/internal/logging"
	"retailetl/internal/metrics"
	"retailetl/internal/objectstore"
	"retailetl/internal/records"
	"retailetl/internal/warehouse"
)

// Summary aggregates one daily run across all sources.
type Summary struct {
	// FilesFound is the number of partition files discovered.
	FilesFound int

	// FilesProcessed is the number of files whose records were loaded,
	// including files where some records were rejected.
	FilesProcessed int

	// FilesFailed is the number of files that could not be read or parsed
	// at all.
	FilesFailed int

	// Inserted, Skipped and RecordErrors sum the per-partition load
	// results.
	Inserted     int
	Skipped      int
	RecordErrors int
}

// Processor runs the daily transformation: for each configured source it
// discovers the date's raw partitions, loads them into the star schema and
// archives the loaded records.
//
// Failure containment is layered. A failing record is confined to its record
// (see Loader); a failing file is confined to that file; a failing source is
// confined to that source. The run always visits everything and reports what
// it saw.
type Processor struct {
	repo    warehouse.Repository
	reader  *Reader
	writer  *Writer
	sources []string
}

func NewProcessor(repo warehouse.Repository, store objectstore.Store, rawBucket, processedBucket string, sources []string) *Processor {
	return &Processor{
		repo:    repo,
		reader:  NewReader(store, rawBucket),
		writer:  NewWriter(store, processedBucket),
		sources: sources,
	}
}

// ProcessDate transforms every source's partitions for one calendar date.
func (p *Processor) ProcessDate(ctx context.Context, date time.Time) (Summary, error) {
	start := time.Now()
	loader := NewLoader(p.repo)

	var sum Summary
	for _, source := range p.sources {
		p.processSource(ctx, loader, source, date, &sum)
	}

	metrics.ObserveHistogram(metrics.MetricRunDurationSeconds, time.Since(start).Seconds(), nil)
	metrics.IncCounter(metrics.MetricRecordsTotal, float64(sum.Inserted), metrics.Labels{"kind": "inserted"})
	metrics.IncCounter(metrics.MetricRecordsTotal, float64(sum.Skipped), metrics.Labels{"kind": "skipped"})
	metrics.IncCounter(metrics.MetricRecordsTotal, float64(sum.RecordErrors), metrics.Labels{"kind": "error"})

	logging.Info().
		Str("date", date.Format("2006-01-02")).
		Int("files_found", sum.FilesFound).
		Int("files_processed", sum.FilesProcessed).
		Int("files_failed", sum.FilesFailed).
		Int("inserted", sum.Inserted).
		Int("skipped", sum.Skipped).
		Int("record_errors", sum.RecordErrors).
		Dur("elapsed", time.Since(start)).
		Msg("run complete")

	return sum, nil
}

func (p *Processor) processSource(ctx context.Context, loader *Loader, source string, date time.Time, sum *Summary) {
	files, err := p.reader.ListPartitions(ctx, source, date)
	if err != nil {
		metrics.IncCounter(metrics.MetricPartitionsTotal, 1, metrics.Labels{"status": "error"})
		logging.Error().Str("source", source).Err(err).Msg("listing partitions failed")
		return
	}
	if len(files) == 0 {
		metrics.IncCounter(metrics.MetricPartitionsTotal, 1, metrics.Labels{"status": "empty"})
		logging.Info().Str("source", source).Str("date", date.Format("2006-01-02")).Msg("no partitions for date")
		return
	}

	sum.FilesFound += len(files)
	for _, key := range files {
		p.processFile(ctx, loader, source, key, sum)
	}
}

func (p *Processor) processFile(ctx context.Context, loader *Loader, source, key string, sum *Summary) {
	recs, err := p.reader.Read(ctx, key)
	if err != nil {
		sum.FilesFailed++
		metrics.IncCounter(metrics.MetricPartitionsTotal, 1, metrics.Labels{"status": "error"})
		logging.Error().Str("source", source).Str("key", key).Err(err).Msg("partition unreadable")
		return
	}

	res := loader.Load(ctx, recs)
	sum.FilesProcessed++
	sum.Inserted += res.Inserted
	sum.Skipped += res.Skipped
	sum.RecordErrors += len(res.Errors)
	metrics.IncCounter(metrics.MetricPartitionsTotal, 1, metrics.Labels{"status": "ok"})

	archived, err := p.writer.Write(ctx, key, cleanedRecords(recs))
	if err != nil {
		// The warehouse already holds the data; a failed archive copy
		// is re-creatable by rerunning, so it does not fail the file.
		logging.Error().Str("source", source).Str("key", key).Err(err).Msg("archiving processed copy failed")
	}

	logging.Info().
		Str("source", source).
		Str("key", key).
		Int("records", len(recs)).
		Int("inserted", res.Inserted).
		Int("skipped", res.Skipped).
		Int("errors", len(res.Errors)).
		Bool("archived", archived).
		Msg("partition loaded")
}

// cleanedRecords filters to the records passing required-field validation.
// The processed copy is the cleaned input, not the warehouse outcome, so a
// record rejected downstream (unknown retailer, insert failure) still appears
// in the audit trail.
func cleanedRecords(recs []records.Record) []records.Record {
	cleaned := make([]records.Record, 0, len(recs))
	for _, rec := range recs {
		if records.Validate(rec) == nil {
			cleaned = append(cleaned, rec)
		}
	}
	return cleaned
}
