package models

// DeliveryAddress is where and when a toy box is delivered
type DeliveryAddress struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Comment string `json:"comment,omitempty"`
}
