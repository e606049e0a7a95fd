// Package dispatch submits staged field mutations to the CRM in fixed-size
// batches and records per-record failures.
package dispatch

import (
	"context"
	"fmt"

	"github.com/jdavila/drive-to-crm/internal/logging"
	"github.com/jdavila/drive-to-crm/internal/objects"
	"github.com/jdavila/drive-to-crm/internal/retry"
	"github.com/jdavila/drive-to-crm/internal/salesforce"
)

// Mutation is one staged field update, created by the reconciliation engine
// and consumed exactly once by the dispatcher.
type Mutation struct {
	RecordID string
	Field    string
	Value    string
}

// BulkUpdater is the CRM bulk-update surface the dispatcher needs.
type BulkUpdater interface {
	BulkUpdate(ctx context.Context, object string, records []salesforce.UpdateRecord) ([]salesforce.UpdateResult, error)
}

// Result summarizes one dispatch run.
type Result struct {
	Succeeded int
	Failed    int
	Batches   int
}

// Dispatcher pushes mutations for one record type.
type Dispatcher struct {
	updater  BulkUpdater
	spec     objects.Spec
	errorLog *ErrorLog
	logger   logging.Logger
}

// NewDispatcher creates a dispatcher. The error log is owned by the caller;
// the dispatcher only appends to it.
func NewDispatcher(updater BulkUpdater, spec objects.Spec, errorLog *ErrorLog, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		updater:  updater,
		spec:     spec,
		errorLog: errorLog,
		logger:   logger,
	}
}

// Dispatch submits the mutations in batches of the spec's batch size.
// Per-record failures and whole-batch transport failures are logged and
// counted; only authentication loss aborts the remaining batches.
func (d *Dispatcher) Dispatch(ctx context.Context, mutations []Mutation) (Result, error) {
	var result Result
	if len(mutations) == 0 {
		return result, nil
	}

	batchSize := d.spec.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	for start := 0; start < len(mutations); start += batchSize {
		end := start + batchSize
		if end > len(mutations) {
			end = len(mutations)
		}
		batch := mutations[start:end]
		result.Batches++

		records := make([]salesforce.UpdateRecord, 0, len(batch))
		for _, m := range batch {
			records = append(records, salesforce.UpdateRecord{
				ID:     m.RecordID,
				Fields: map[string]any{m.Field: m.Value},
			})
		}

		updates, err := d.updater.BulkUpdate(ctx, d.spec.APIName, records)
		if err != nil {
			if t := retry.Classify(err); t == retry.ErrorTypeAuth {
				return result, fmt.Errorf("bulk update lost authentication: %w", err)
			}
			// The whole batch failed in transport. Every record in it
			// is recorded as failed with the shared cause.
			d.logger.Error("Batch update of %d %s records failed: %v",
				len(batch), d.spec.APIName, err)
			for _, m := range batch {
				result.Failed++
				d.logFailure(m.RecordID, err.Error())
			}
			continue
		}

		for i, update := range updates {
			if update.Success {
				result.Succeeded++
				continue
			}
			result.Failed++
			recordID := update.ID
			if recordID == "" && i < len(batch) {
				recordID = batch[i].RecordID
			}
			cause := "update rejected"
			if len(update.Errors) > 0 {
				cause = update.Errors[0]
				for _, extra := range update.Errors[1:] {
					cause += "; " + extra
				}
			}
			d.logger.Warn("Update of %s record %s failed: %s",
				d.spec.APIName, recordID, cause)
			d.logFailure(recordID, cause)
		}
	}

	return result, nil
}

func (d *Dispatcher) logFailure(recordID, cause string) {
	if d.errorLog == nil {
		return
	}
	if err := d.errorLog.Append(recordID, cause); err != nil {
		d.logger.Error("Failed to append to error log: %v", err)
	}
}
