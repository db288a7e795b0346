package order

// DefaultText is the sentinel used for design fields the customer has not
// filled in yet. Readers must treat it as a defined default, not as missing.
const DefaultText = "-"

// Order is the structured record of a customer's cake request.
// It is owned exclusively by one session; Price is derived and must be
// recomputed through the pricing engine after every mutation.
type Order struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Size        string `json:"size"`
	Filling     string `json:"filling"`
	Decoration  string `json:"decoration"`
	PickupDate  string `json:"pickupDate"`
	PickupTime  string `json:"pickupTime"`
	DesignDesc  string `json:"design_desc"`
	Lettering   string `json:"lettering"`
	HasColor    bool   `json:"has_color"`
	ObjectCount int    `json:"object_count"`
	HasImage    bool   `json:"has_image"`
	Price       int    `json:"price"`
}

// New builds an order with intake selections and default design fields.
func New(name, phone, size, filling, pickupDate, pickupTime string) Order {
	return Order{
		Name:       name,
		Phone:      phone,
		Size:       size,
		Filling:    filling,
		Decoration: "주문제작",
		PickupDate: pickupDate,
		PickupTime: pickupTime,
		DesignDesc: DefaultText,
		Lettering:  DefaultText,
	}
}

// Patch is a partial update to the AI-editable design fields. Pointer
// fields distinguish "absent" from a zero value so a merge only touches
// what the model actually returned.
type Patch struct {
	DesignDesc  *string `json:"design_desc"`
	Lettering   *string `json:"lettering"`
	HasColor    *bool   `json:"has_color"`
	ObjectCount *int    `json:"object_count"`
}

// Apply merges the patch onto a copy of the order. Present fields win,
// absent fields stay untouched, the receiver's argument is never mutated.
func (p Patch) Apply(current Order) Order {
	updated := current
	if p.DesignDesc != nil {
		updated.DesignDesc = *p.DesignDesc
	}
	if p.Lettering != nil {
		updated.Lettering = *p.Lettering
	}
	if p.HasColor != nil {
		updated.HasColor = *p.HasColor
	}
	if p.ObjectCount != nil {
		count := *p.ObjectCount
		if count < 0 {
			count = 0
		}
		updated.ObjectCount = count
	}
	return updated
}

// IsZero reports whether the patch carries no fields at all.
func (p Patch) IsZero() bool {
	return p.DesignDesc == nil && p.Lettering == nil && p.HasColor == nil && p.ObjectCount == nil
}
