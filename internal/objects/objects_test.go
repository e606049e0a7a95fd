package objects

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Object
		wantErr bool
	}{
		{name: "account", input: "account", want: Account},
		{name: "account plural", input: "accounts", want: Account},
		{name: "contact", input: "contact", want: Contact},
		{name: "mixed case", input: "Contact", want: Contact},
		{name: "surrounding space", input: " account ", want: Account},
		{name: "unknown", input: "lead", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveDefaults(t *testing.T) {
	accountSpec, err := Resolve(Account, SpecConfig{PhotoField: "Photo__c"})
	if err != nil {
		t.Fatalf("Resolve(Account) unexpected error: %v", err)
	}
	if accountSpec.BatchSize != 100 {
		t.Errorf("account batch size = %d, want 100", accountSpec.BatchSize)
	}
	if accountSpec.MigrationField != "Archdpdx_Migration_Id__c" {
		t.Errorf("account migration field = %q", accountSpec.MigrationField)
	}
	if accountSpec.CSVFile != "updated_accounts.csv" {
		t.Errorf("account CSV file = %q", accountSpec.CSVFile)
	}
	if accountSpec.Subfolder != "Accounts" {
		t.Errorf("account subfolder = %q", accountSpec.Subfolder)
	}

	contactSpec, err := Resolve(Contact, SpecConfig{PhotoField: "Photo__c"})
	if err != nil {
		t.Fatalf("Resolve(Contact) unexpected error: %v", err)
	}
	if contactSpec.BatchSize != 50 {
		t.Errorf("contact batch size = %d, want 50", contactSpec.BatchSize)
	}
	if contactSpec.CSVFile != "updated_contacts.csv" {
		t.Errorf("contact CSV file = %q", contactSpec.CSVFile)
	}
}

func TestResolveOverrides(t *testing.T) {
	spec, err := Resolve(Contact, SpecConfig{
		PhotoField:     "Picture__c",
		MigrationField: "Legacy_Id__c",
		BatchSize:      25,
	})
	if err != nil {
		t.Fatalf("Resolve unexpected error: %v", err)
	}
	if spec.PhotoField != "Picture__c" || spec.MigrationField != "Legacy_Id__c" || spec.BatchSize != 25 {
		t.Errorf("overrides not applied: %+v", spec)
	}
}

func TestResolveRequiresPhotoField(t *testing.T) {
	if _, err := Resolve(Account, SpecConfig{}); err == nil {
		t.Fatal("Resolve with no photo field should fail")
	}
}

func TestMigrationKey(t *testing.T) {
	accountSpec, _ := Resolve(Account, SpecConfig{PhotoField: "Photo__c"})
	contactSpec, _ := Resolve(Contact, SpecConfig{PhotoField: "Photo__c"})

	if got := accountSpec.MigrationKey("42"); got != "Parishes_42" {
		t.Errorf("account key = %q, want Parishes_42", got)
	}
	if got := contactSpec.MigrationKey("42"); got != "42" {
		t.Errorf("contact key = %q, want 42", got)
	}
	if !strings.HasPrefix(accountSpec.MigrationKey(""), "Parishes_") {
		t.Error("account key should keep its namespace prefix even for an empty payload")
	}
}
