// Package index builds the in-memory record and attachment indexes that the
// reconciliation engine consults. Both are read-only after construction.
package index

import (
	"context"
	"fmt"

	"github.com/jdavila/drive-to-crm/internal/logging"
	"github.com/jdavila/drive-to-crm/internal/objects"
)

// Queryer is the CRM query surface the builder needs.
type Queryer interface {
	Query(ctx context.Context, soql string) ([]map[string]any, error)
}

// RecordEntry is one indexed CRM record.
type RecordEntry struct {
	RecordID  string
	Name      string
	PhotoHTML string
}

// RecordIndex maps migration keys to records. At most one entry exists per
// key; the first occurrence wins.
type RecordIndex struct {
	entries map[string]RecordEntry
}

// Lookup returns the record for a migration key.
func (idx *RecordIndex) Lookup(key string) (RecordEntry, bool) {
	entry, ok := idx.entries[key]
	return entry, ok
}

// Len returns the number of indexed records.
func (idx *RecordIndex) Len() int {
	return len(idx.entries)
}

// AttachmentIndex maps record IDs to the set of file names already attached
// to them. Membership here is the only signal used to decide that a file was
// already uploaded.
type AttachmentIndex struct {
	files map[string]map[string]struct{}
}

// Has reports whether fileName is already attached to the record.
func (idx *AttachmentIndex) Has(recordID, fileName string) bool {
	names, ok := idx.files[recordID]
	if !ok {
		return false
	}
	_, ok = names[fileName]
	return ok
}

// Len returns the number of records that have attachments.
func (idx *AttachmentIndex) Len() int {
	return len(idx.files)
}

// Build constructs both indexes from two bulk queries: one over all records
// of the type and one global query over attachment metadata. Either query
// failing returns the error with no partial index.
func Build(ctx context.Context, q Queryer, spec objects.Spec, logger logging.Logger) (*RecordIndex, *AttachmentIndex, error) {
	records, err := buildRecords(ctx, q, spec, logger)
	if err != nil {
		return nil, nil, err
	}

	attachments, err := buildAttachments(ctx, q)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Indexed %d %s records and attachments for %d records",
		records.Len(), spec.APIName, attachments.Len())
	return records, attachments, nil
}

func buildRecords(ctx context.Context, q Queryer, spec objects.Spec, logger logging.Logger) (*RecordIndex, error) {
	soql := fmt.Sprintf("SELECT Id, Name, %s, %s FROM %s",
		spec.MigrationField, spec.PhotoField, spec.APIName)

	rows, err := q.Query(ctx, soql)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", spec.APIName, err)
	}

	entries := make(map[string]RecordEntry, len(rows))
	for _, row := range rows {
		key := stringField(row, spec.MigrationField)
		if key == "" {
			// Records without a migration key are unreachable targets,
			// not errors.
			logger.Debug("Skipping %s %s with no migration key",
				spec.APIName, stringField(row, "Id"))
			continue
		}
		if _, exists := entries[key]; exists {
			logger.Warn("Duplicate migration key %s on %s %s, keeping first occurrence",
				key, spec.APIName, stringField(row, "Id"))
			continue
		}
		entries[key] = RecordEntry{
			RecordID:  stringField(row, "Id"),
			Name:      stringField(row, "Name"),
			PhotoHTML: stringField(row, spec.PhotoField),
		}
	}

	return &RecordIndex{entries: entries}, nil
}

func buildAttachments(ctx context.Context, q Queryer) (*AttachmentIndex, error) {
	// Attachments are shared infrastructure across record types, so the
	// query is global. Callers only consult their own record IDs.
	rows, err := q.Query(ctx, "SELECT PathOnClient, FirstPublishLocationId FROM ContentVersion")
	if err != nil {
		return nil, fmt.Errorf("failed to query attachment metadata: %w", err)
	}

	files := make(map[string]map[string]struct{})
	for _, row := range rows {
		recordID := stringField(row, "FirstPublishLocationId")
		fileName := stringField(row, "PathOnClient")
		if recordID == "" || fileName == "" {
			continue
		}
		if files[recordID] == nil {
			files[recordID] = make(map[string]struct{})
		}
		files[recordID][fileName] = struct{}{}
	}

	return &AttachmentIndex{files: files}, nil
}

func stringField(row map[string]any, name string) string {
	value, ok := row[name].(string)
	if !ok {
		return ""
	}
	return value
}
