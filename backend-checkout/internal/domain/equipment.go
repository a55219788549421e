package domain

// EquipmentSelection holds the add-ons chosen for one booking attempt
type EquipmentSelection struct {
	NumPaddles int  `json:"numPaddles"`
	BuyBallSet bool `json:"buyBallSet"`
}

// IsEmpty reports whether nothing was selected
func (e EquipmentSelection) IsEmpty() bool {
	return e.NumPaddles == 0 && !e.BuyBallSet
}

// Validate checks the selection
func (e EquipmentSelection) Validate() error {
	if e.NumPaddles < 0 {
		return ErrInvalidEquipment
	}
	return nil
}
