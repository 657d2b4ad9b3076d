package types

import (
	"github.com/shopspring/decimal"
)

// Invalid is the sentinel written in place of values that failed validation
const Invalid = "INVALIDO"

// RejectReason names why a row was left out of the canonical dataset
type RejectReason string

const (
	RejectNotExpense       RejectReason = "not_expense"
	RejectInvalidAmount    RejectReason = "invalid_amount"
	RejectInvalidDate      RejectReason = "invalid_date"
	RejectUnresolvedPeriod RejectReason = "unresolved_period"
	RejectInvalidTaxID     RejectReason = "invalid_tax_id"
	RejectUnmatched        RejectReason = "unmatched"
)

// CanonicalExpense is one normalized expense observation.
// Amount is always positive and Quarter is within 1..4.
type CanonicalExpense struct {
	EntityID   string
	EntityName string
	Year       int
	Quarter    int
	Amount     decimal.Decimal
	SourceFile string
}

// RejectedRow keeps the raw cells of a row discarded during normalization
type RejectedRow struct {
	SourceFile string
	Line       int
	Reason     RejectReason
	EntityID   string
	RawAmount  string
	RawDate    string
}

// ConsolidatedExpense is the sum of canonical amounts for one entity and quarter
type ConsolidatedExpense struct {
	EntityID   string
	EntityName string
	Year       int
	Quarter    int
	Amount     decimal.Decimal
}

// Operator is a row of the ANS operator registry (Relatorio_cadop)
type Operator struct {
	RegistryID       string `db:"registry_id" json:"registry_id"`
	TaxID            string `db:"tax_id" json:"cnpj"`
	LegalName        string `db:"legal_name" json:"razao_social"`
	TradeName        string `db:"trade_name" json:"nome_fantasia"`
	Modality         string `db:"modality" json:"modalidade"`
	Street           string `db:"street" json:"logradouro"`
	Number           string `db:"number" json:"numero"`
	Complement       string `db:"complement" json:"complemento"`
	District         string `db:"district" json:"bairro"`
	City             string `db:"city" json:"cidade"`
	Region           string `db:"region" json:"uf"`
	ZipCode          string `db:"zip_code" json:"cep"`
	Phone            string `db:"phone" json:"telefone"`
	Email            string `db:"email" json:"email"`
	RegistrationDate string `db:"registration_date" json:"data_registro_ans"`
}

// EnrichedExpense is a consolidated row left-joined with the registry.
// Operator fields are empty when Matched is false.
type EnrichedExpense struct {
	ConsolidatedExpense
	Operator Operator
	Matched  bool
}

// ValidatedExpense is an enriched row whose CNPJ passed the checksum.
// Missing text fields carry the Invalid sentinel.
type ValidatedExpense struct {
	EnrichedExpense
	FormattedTaxID string
	AmountValid    bool
}

// DisplayName is the registry legal name when present, the name seen in the extracts otherwise
func (v ValidatedExpense) DisplayName() string {
	if v.Operator.LegalName != "" && v.Operator.LegalName != Invalid {
		return v.Operator.LegalName
	}
	if v.EntityName != "" {
		return v.EntityName
	}
	return Invalid
}

// QuarantinedExpense holds a row that failed validation and awaits review
type QuarantinedExpense struct {
	EnrichedExpense
	Reason RejectReason
}

// AggregatedExpense summarizes the validated amounts of one (name, region) pair.
// StdDev is nil when fewer than two observations exist.
type AggregatedExpense struct {
	EntityName string
	Region     string
	Total      decimal.Decimal
	Mean       float64
	StdDev     *float64
	Count      int
}
