package mappings

import (
	"fmt"
	"strings"
	"time"
)

// Code names a semantic transaction category configured per company.
type Code string

const (
	InventoryRawMaterials  Code = "INVENTORY_RAW_MATERIALS"
	InventoryWIP           Code = "INVENTORY_WIP"
	InventoryFinishedGoods Code = "INVENTORY_FINISHED_GOODS"
	CostOfGoodsSold        Code = "COST_OF_GOODS_SOLD"
	SalesRevenue           Code = "SALES_REVENUE"
	AccountsReceivable     Code = "ACCOUNTS_RECEIVABLE"
	GRNClearing            Code = "GRN_CLEARING"
	AdjustmentGain         Code = "INVENTORY_ADJUSTMENT_GAIN"
	AdjustmentLoss         Code = "INVENTORY_ADJUSTMENT_LOSS"
)

// Valid reports whether c is a known semantic code.
func (c Code) Valid() bool {
	switch c {
	case InventoryRawMaterials, InventoryWIP, InventoryFinishedGoods,
		CostOfGoodsSold, SalesRevenue, AccountsReceivable,
		GRNClearing, AdjustmentGain, AdjustmentLoss:
		return true
	}
	return false
}

// AccountMapping links a semantic code to a concrete ledger account for one
// company. Configured by company administrators, consumed read-only here.
type AccountMapping struct {
	CompanyID int64
	Code      Code
	AccountID int64
	UpdatedAt time.Time
}

// MissingMappingError lists every requested code the company has not
// configured. An unconfigured mapping blocks the posting; it is never
// silently defaulted.
type MissingMappingError struct {
	CompanyID int64
	Codes     []Code
}

func (e *MissingMappingError) Error() string {
	names := make([]string, len(e.Codes))
	for i, c := range e.Codes {
		names[i] = string(c)
	}
	return fmt.Sprintf("accounting: company %d missing account mappings: %s",
		e.CompanyID, strings.Join(names, ", "))
}
