// Package engine implements the per-file reconciliation decision procedure
// and the run loop that drives it over a folder listing.
package engine

import (
	"context"
	"fmt"

	"github.com/jdavila/drive-to-crm/internal/dispatch"
	"github.com/jdavila/drive-to-crm/internal/drive"
	"github.com/jdavila/drive-to-crm/internal/identifier"
	"github.com/jdavila/drive-to-crm/internal/imagetag"
	"github.com/jdavila/drive-to-crm/internal/index"
	"github.com/jdavila/drive-to-crm/internal/logging"
	"github.com/jdavila/drive-to-crm/internal/objects"
	"github.com/jdavila/drive-to-crm/internal/report"
	"github.com/jdavila/drive-to-crm/internal/salesforce"
)

// Downloader is the storage surface the reconciler needs.
type Downloader interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// CRM is the record-level CRM surface the reconciler needs.
type CRM interface {
	GetRecord(ctx context.Context, object, id string, fields []string) (map[string]any, error)
	FindContentVersion(ctx context.Context, recordID, fileName string) (salesforce.ContentVersion, bool, error)
	CreateContentVersion(ctx context.Context, recordID, fileName string, content []byte) (salesforce.ContentVersion, error)
}

// Reconciler decides, for one file at a time, whether to skip, relink, or
// upload-and-link. Indexes are read-only after construction.
type Reconciler struct {
	storage     Downloader
	crm         CRM
	records     *index.RecordIndex
	attachments *index.AttachmentIndex
	spec        objects.Spec
	fileDomain  string
	dryRun      bool
	logger      logging.Logger
}

// NewReconciler creates a reconciler for one record type.
func NewReconciler(storage Downloader, crm CRM, records *index.RecordIndex,
	attachments *index.AttachmentIndex, spec objects.Spec, fileDomain string,
	dryRun bool, logger logging.Logger) *Reconciler {
	return &Reconciler{
		storage:     storage,
		crm:         crm,
		records:     records,
		attachments: attachments,
		spec:        spec,
		fileDomain:  fileDomain,
		dryRun:      dryRun,
		logger:      logger,
	}
}

// ReconcileFile runs the decision procedure for one file. Failures past the
// index lookup are caught here and become an Error row with the message
// preserved verbatim; they never abort the run.
func (r *Reconciler) ReconcileFile(ctx context.Context, file drive.File) (*dispatch.Mutation, report.Row) {
	row := report.Row{FileName: file.Name}

	key, ok := identifier.Extract(file.Name, r.spec)
	if !ok {
		row.Result = report.InvalidFormat
		return nil, row
	}
	row.MigrationID = key

	entry, ok := r.records.Lookup(key)
	if !ok {
		// A storage file with no matching record is a data-completeness
		// gap, reported but not fatal.
		row.Result = report.NotFound
		return nil, row
	}
	row.RecordID = entry.RecordID
	row.RecordName = entry.Name

	var mutation *dispatch.Mutation
	var err error
	if r.attachments.Has(entry.RecordID, file.Name) {
		mutation, row.Result, err = r.reconcileExisting(ctx, file, entry)
	} else {
		mutation, row.Result, err = r.uploadAndLink(ctx, file, entry)
	}
	if err != nil {
		r.logger.Error("Failed to process %s: %v", file.Name, err)
		row.Result = report.Failed
		row.Detail = err.Error()
		return nil, row
	}
	return mutation, row
}

// reconcileExisting handles a file the attachment index says is already
// uploaded: fetch its stored identifiers, rebuild the canonical tag, and
// compare it to the record's current field value.
func (r *Reconciler) reconcileExisting(ctx context.Context, file drive.File, entry index.RecordEntry) (*dispatch.Mutation, report.Kind, error) {
	cv, found, err := r.crm.FindContentVersion(ctx, entry.RecordID, file.Name)
	if err != nil {
		return nil, report.Failed, err
	}
	if !found {
		// The attachment index and the targeted query disagree.
		// Re-uploading here would create a duplicate attachment, so
		// this is an error, not an upload.
		return nil, report.Failed, fmt.Errorf(
			"attachment index lists %s on record %s but no content version was found",
			file.Name, entry.RecordID)
	}

	tag := imagetag.Build(r.fileDomain, file.Name, cv.VersionID, cv.DocumentID)
	if imagetag.Equal(tag, entry.PhotoHTML) {
		return nil, report.Skipped, nil
	}

	if r.dryRun {
		return nil, report.Updated, nil
	}
	return &dispatch.Mutation{
		RecordID: entry.RecordID,
		Field:    r.spec.PhotoField,
		Value:    tag,
	}, report.Updated, nil
}

// uploadAndLink handles a file with no attachment on the record: download
// the bytes, upload them as a new attachment, and stage the field update.
func (r *Reconciler) uploadAndLink(ctx context.Context, file drive.File, entry index.RecordEntry) (*dispatch.Mutation, report.Kind, error) {
	if r.dryRun {
		return nil, report.LoadedLinked, nil
	}

	content, err := r.storage.Download(ctx, file.ID)
	if err != nil {
		return nil, report.Failed, err
	}

	// The index was built at run start; make sure the record still exists
	// before attaching bytes to it.
	if _, err := r.crm.GetRecord(ctx, r.spec.APIName, entry.RecordID, []string{"Id"}); err != nil {
		return nil, report.Failed, fmt.Errorf("record %s no longer exists: %w", entry.RecordID, err)
	}

	cv, err := r.crm.CreateContentVersion(ctx, entry.RecordID, file.Name, content)
	if err != nil {
		return nil, report.Failed, err
	}

	tag := imagetag.Build(r.fileDomain, file.Name, cv.VersionID, cv.DocumentID)
	return &dispatch.Mutation{
		RecordID: entry.RecordID,
		Field:    r.spec.PhotoField,
		Value:    tag,
	}, report.LoadedLinked, nil
}
