package models

import "time"

// PriceLogEntry is one product line of a PRICE_SURVEY task.
type PriceLogEntry struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	TaskID      uint64    `gorm:"not null;index" json:"task_id"`
	ProductName string    `gorm:"type:varchar(255);not null" json:"product_name"`
	Price1      *float64  `json:"price_1"`
	Price2      *float64  `json:"price_2"`
	Price3      *float64  `json:"price_3"`
	Price4      *float64  `json:"price_4"`
	Price5      *float64  `json:"price_5"`
	Status      string    `gorm:"type:varchar(32)" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// SetPrices fills the competitor price columns in order. Callers validate the
// length first.
func (p *PriceLogEntry) SetPrices(prices []float64) {
	slots := []**float64{&p.Price1, &p.Price2, &p.Price3, &p.Price4, &p.Price5}
	for i := range slots {
		*slots[i] = nil
		if i < len(prices) {
			v := prices[i]
			*slots[i] = &v
		}
	}
}
