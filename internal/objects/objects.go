// Package objects defines the closed set of Salesforce record types the
// sync operates on and the per-type settings that drive it.
package objects

import (
	"fmt"
	"strings"
)

// Object identifies a supported Salesforce record type.
type Object int

const (
	Account Object = iota
	Contact
)

// String returns the Salesforce API name of the object.
func (o Object) String() string {
	switch o {
	case Account:
		return "Account"
	case Contact:
		return "Contact"
	default:
		return "unknown"
	}
}

// Parse converts a CLI/config value into an Object.
func Parse(name string) (Object, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "account", "accounts":
		return Account, nil
	case "contact", "contacts":
		return Contact, nil
	default:
		return 0, fmt.Errorf("unknown object type: %q (must be account or contact)", name)
	}
}

// Spec holds everything the pipeline needs to know about one record type.
// Specs are resolved once at startup; nothing downstream switches on the
// object name.
type Spec struct {
	Object         Object
	APIName        string // Salesforce sObject API name
	Subfolder      string // Drive subfolder holding this type's photos
	PhotoField     string // rich-text field receiving the image tag
	MigrationField string // field carrying the legacy migration key
	BatchSize      int    // bulk update chunk size (governor limits differ per type)
	CSVFile        string // audit export filename
	ErrorLogFile   string // dispatcher failure log filename
	keyFunc        func(digits string) string
}

// MigrationKey formats a filename digit run into this type's migration key.
// Accounts namespace the number; Contacts use it bare.
func (s Spec) MigrationKey(digits string) string {
	return s.keyFunc(digits)
}

// SpecConfig carries the configurable parts of a Spec.
type SpecConfig struct {
	PhotoField     string
	MigrationField string
	BatchSize      int
}

// Resolve builds the Spec for an object from its configuration. It returns
// an error when the photo field is unset, since writing to an empty field
// name would fail only once the first bulk update runs.
func Resolve(obj Object, cfg SpecConfig) (Spec, error) {
	if cfg.PhotoField == "" {
		return Spec{}, fmt.Errorf("photo field for %s is not configured", obj)
	}
	if cfg.MigrationField == "" {
		cfg.MigrationField = "Archdpdx_Migration_Id__c"
	}

	switch obj {
	case Account:
		if cfg.BatchSize <= 0 {
			cfg.BatchSize = 100
		}
		return Spec{
			Object:         Account,
			APIName:        "Account",
			Subfolder:      "Accounts",
			PhotoField:     cfg.PhotoField,
			MigrationField: cfg.MigrationField,
			BatchSize:      cfg.BatchSize,
			CSVFile:        "updated_accounts.csv",
			ErrorLogFile:   "account_update_errors.log",
			keyFunc: func(digits string) string {
				return "Parishes_" + digits
			},
		}, nil
	case Contact:
		if cfg.BatchSize <= 0 {
			cfg.BatchSize = 50
		}
		return Spec{
			Object:         Contact,
			APIName:        "Contact",
			Subfolder:      "Contacts",
			PhotoField:     cfg.PhotoField,
			MigrationField: cfg.MigrationField,
			BatchSize:      cfg.BatchSize,
			CSVFile:        "updated_contacts.csv",
			ErrorLogFile:   "contact_update_errors.log",
			keyFunc: func(digits string) string {
				return digits
			},
		}, nil
	default:
		return Spec{}, fmt.Errorf("unsupported object: %d", obj)
	}
}
