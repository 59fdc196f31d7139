package tariffapi

import "tariffsync/internal/services/tariffs/domain"

// envelope mirrors {"response":{"data":{...}}}
type envelope struct {
	Response struct {
		Data payload `json:"data" validate:"required"`
	} `json:"response" validate:"required"`
}

type payload struct {
	DtTillMax     string                `json:"dtTillMax" validate:"required,tariff_date"`
	WarehouseList []domain.SnapshotItem `json:"warehouseList" validate:"dive"`
}
