package models

// Irrigation is a watering record for a lot. Date is kept as entered.
type Irrigation struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Lot  string `gorm:"column:lote;not null" json:"lote"`
	Date string `gorm:"column:fecha;not null" json:"fecha"`
	Note string `gorm:"column:nota;default:''" json:"nota"`
}

func (Irrigation) TableName() string {
	return "riegos"
}

// IsValid checks the fields the API requires.
func (i *Irrigation) IsValid() bool {
	return i.Lot != "" && i.Date != ""
}
