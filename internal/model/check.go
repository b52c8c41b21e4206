package model

// Field names produced by the extraction step.
const (
	FieldDate          = "date"
	FieldAmountNumeric = "amountNumeric"
	FieldAmountWritten = "amountWritten"
	FieldPayor         = "payor"
	FieldPayee         = "payee"
	FieldMemo          = "memo"
	FieldCheckNumber   = "checkNumber"
	FieldRoutingNumber = "routingNumber"
	FieldAccountNumber = "accountNumber"
)

// RawFieldNames lists every field the extraction step may return, in schema order.
var RawFieldNames = []string{
	FieldDate,
	FieldAmountNumeric,
	FieldAmountWritten,
	FieldPayor,
	FieldPayee,
	FieldMemo,
	FieldCheckNumber,
	FieldRoutingNumber,
	FieldAccountNumber,
}

// RawFields is the untrusted field map returned by the extraction step.
// A key is present only when its value is non-blank after whitespace normalization.
type RawFields map[string]string

// Get returns the value for key and whether it is present.
func (f RawFields) Get(key string) (string, bool) {
	v, ok := f[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Extraction is the parsed output of the extraction step.
type Extraction struct {
	Fields     RawFields `json:"fields"`
	PayorNames []string  `json:"payorNames,omitempty"`
}

// ReviewFields is the sanitized, renderable subset of RawFields.
// Absent values are omitted from JSON rather than rendered as empty strings.
type ReviewFields struct {
	Date        string `json:"date,omitempty" yaml:"date,omitempty"`
	CheckNumber string `json:"checkNumber,omitempty" yaml:"checkNumber,omitempty"`
	Payee       string `json:"payee,omitempty" yaml:"payee,omitempty"`
	Memo        string `json:"memo,omitempty" yaml:"memo,omitempty"`
	Amount      string `json:"amount,omitempty" yaml:"amount,omitempty"`
	DonorName   string `json:"donorName,omitempty" yaml:"donorName,omitempty"`
}

// DonorCandidate is a CRM record proposed as a possible match for the payor.
type DonorCandidate struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// SearchAttempt records the outcome of one query variant.
// ResultCount is set on success and Error on failure; never both.
type SearchAttempt struct {
	Candidate   string `json:"candidate" yaml:"candidate"`
	Label       string `json:"label,omitempty" yaml:"label,omitempty"`
	Query       string `json:"query" yaml:"query"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	ResultCount *int   `json:"resultCount,omitempty" yaml:"resultCount,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
	Note        string `json:"note,omitempty" yaml:"note,omitempty"`
}

// Failed reports whether the attempt ended in an error.
func (a SearchAttempt) Failed() bool {
	return a.Error != ""
}

// Payload is the complete result for one check.
type Payload struct {
	Fields     ReviewFields     `json:"fields" yaml:"fields"`
	Candidates []DonorCandidate `json:"candidates" yaml:"candidates"`
	SearchLog  []SearchAttempt  `json:"searchLog" yaml:"searchLog"`
}
