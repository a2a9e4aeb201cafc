package booking

// ServiceDraft хранит незавершённый ввод формы новой услуги.
type ServiceDraft struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

// SlotDraft хранит незавершённый ввод формы нового слота.
type SlotDraft struct {
	DateTime  string `json:"date_time"`
	ServiceID string `json:"service_id"`
}

// Drafts объединяет черновики форм администратора.
type Drafts struct {
	Service ServiceDraft `json:"service"`
	Slot    SlotDraft    `json:"slot"`
}
