package ddl

// Table names.
const (
	PropertiesTable = "unclaimed_properties"
	ImportsTable    = "data_imports"
	DiscardsTable   = "discarded_records"
	AnalysisTable   = "import_analysis"
)

func text(name string) ColumnDef { return ColumnDef{Name: name, Kind: KindText, Nullable: true} }

// Properties is the destination table.
func Properties() TableDef {
	return TableDef{
		Name: PropertiesTable,
		Columns: []ColumnDef{
			{Name: "id", Kind: KindKey, PrimaryKey: true},
			{Name: "property_type", Kind: KindKey, Nullable: true},
			{Name: "cash_reported", Kind: KindDecimal, Default: "0"},
			{Name: "shares_reported", Kind: KindDecimal, Default: "0"},
			text("name_of_securities_reported"),
			{Name: "number_of_owners", Kind: KindKey, Default: "'1'"},
			{Name: "owner_name", Kind: KindName},
			text("owner_street_1"), text("owner_street_2"), text("owner_street_3"),
			{Name: "owner_city", Kind: KindName, Nullable: true},
			text("owner_state"), text("owner_zip"), text("owner_country_code"),
			{Name: "current_cash_balance", Kind: KindDecimal, Default: "0"},
			{Name: "number_of_pending_claims", Kind: KindInt, Default: "0"},
			{Name: "number_of_paid_claims", Kind: KindInt, Default: "0"},
			{Name: "holder_name", Kind: KindName},
			text("holder_street_1"), text("holder_street_2"), text("holder_street_3"),
			text("holder_city"), text("holder_state"), text("holder_zip"),
			text("cusip"),
			{Name: "created_at", Kind: KindTimestamp},
			{Name: "updated_at", Kind: KindTimestamp},
		},
		Indexes: []IndexDef{
			{Name: "idx_unclaimed_properties_owner_name", Columns: []string{"owner_name"}},
			{Name: "idx_unclaimed_properties_holder_name", Columns: []string{"holder_name"}},
			{Name: "idx_unclaimed_properties_current_cash_balance", Columns: []string{"current_cash_balance"}},
		},
	}
}

// Imports is the import ledger.
func Imports() TableDef {
	return TableDef{
		Name: ImportsTable,
		Columns: []ColumnDef{
			{Name: "id", Kind: KindKey, PrimaryKey: true},
			{Name: "source_url", Kind: KindText},
			{Name: "total_records", Kind: KindBigInt, Default: "0"},
			{Name: "successful_records", Kind: KindBigInt, Default: "0"},
			{Name: "failed_records", Kind: KindBigInt, Default: "0"},
			{Name: "import_status", Kind: KindKey, Default: "'pending'"},
			text("error_message"),
			{Name: "created_at", Kind: KindTimestamp},
			{Name: "updated_at", Kind: KindTimestamp},
		},
		Indexes: []IndexDef{
			{Name: "idx_data_imports_created_at", Columns: []string{"created_at"}},
		},
	}
}

// Discards is the discard audit table.
func Discards() TableDef {
	return TableDef{
		Name: DiscardsTable,
		Columns: []ColumnDef{
			{Name: "id", Kind: KindKey, PrimaryKey: true},
			{Name: "original_data", Kind: KindJSON},
			{Name: "discard_reason", Kind: KindKey},
			text("error_message"),
			{Name: "file_name", Kind: KindName, Nullable: true},
			{Name: "row_number", Kind: KindInt, Nullable: true},
			{Name: "import_id", Kind: KindKey},
			{Name: "created_at", Kind: KindTimestamp},
		},
		Indexes: []IndexDef{
			{Name: "idx_discarded_records_import_id", Columns: []string{"import_id"}},
			{Name: "idx_discarded_records_reason", Columns: []string{"import_id", "discard_reason"}},
		},
	}
}

// Analysis holds the optional pre-load analysis, one row per import.
func Analysis() TableDef {
	return TableDef{
		Name: AnalysisTable,
		Columns: []ColumnDef{
			{Name: "import_id", Kind: KindKey, PrimaryKey: true},
			{Name: "total_records", Kind: KindBigInt},
			{Name: "records_with_ids", Kind: KindBigInt},
			{Name: "records_without_ids", Kind: KindBigInt},
			{Name: "percentage_with_ids", Kind: KindDecimal},
			{Name: "percentage_without_ids", Kind: KindDecimal},
			{Name: "sample_records", Kind: KindJSON},
			{Name: "created_at", Kind: KindTimestamp},
		},
	}
}

// Schema returns every import table in creation order.
func Schema() []TableDef {
	return []TableDef{Imports(), Properties(), Discards(), Analysis()}
}
