package webapp

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// flexString принимает и строку, и число: формы мини-приложения шлют значения полей как есть.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type createServiceRequest struct {
	Name  string     `json:"name"`
	Price flexString `json:"price"`
}

type createSlotRequest struct {
	DateTime  string     `json:"date_time"`
	ServiceID flexString `json:"service_id"`
}

type createBookingRequest struct {
	SlotID    flexString `json:"slot_id"`
	ServiceID flexString `json:"service_id"`
}

func (r createBookingRequest) ids() (slotID, serviceID int64, fields map[string]string) {
	fields = map[string]string{}
	slotID, err := strconv.ParseInt(string(r.SlotID), 10, 64)
	if err != nil {
		fields["slot_id"] = "идентификатор слота должен быть целым числом"
	}
	serviceID, err = strconv.ParseInt(string(r.ServiceID), 10, 64)
	if err != nil {
		fields["service_id"] = "идентификатор услуги должен быть целым числом"
	}
	return slotID, serviceID, fields
}
