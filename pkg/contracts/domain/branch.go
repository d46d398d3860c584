package domain

// BranchEntry describes one tracked broker branch from the registry file.
// Code fields are opaque strings: "0039" and "39" identify different
// branches, so nothing here may ever pass through a numeric type.
type BranchEntry struct {
	SystemKey   string `json:"system_key" csv:"branch_system_key" validate:"required"`
	BrokerCode  string `json:"broker_code" csv:"branch_broker_code" validate:"required"`
	BranchCode  string `json:"branch_code" csv:"branch_code" validate:"required"`
	DisplayName string `json:"display_name" csv:"branch_display_name"`
	URLParamA   string `json:"url_param_a" csv:"url_param_a"`
	URLParamB   string `json:"url_param_b" csv:"url_param_b"`
	IsActive    bool   `json:"is_active" csv:"is_active"`
	CreatedAt   string `json:"created_at" csv:"created_at"`
	UpdatedAt   string `json:"updated_at" csv:"updated_at"`
}

// RegistryColumns is the fixed column order of the registry CSV.
var RegistryColumns = []string{
	"branch_system_key",
	"branch_broker_code",
	"branch_code",
	"branch_display_name",
	"url_param_a",
	"url_param_b",
	"is_active",
	"created_at",
	"updated_at",
}
