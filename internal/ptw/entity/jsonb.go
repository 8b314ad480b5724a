package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB generic jsonb object column
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

// StringArray jsonb array of strings (hazards, precautions, PPE).
// Malformed column data degrades to an empty list instead of failing the
// whole row read; export renderers rely on this.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(a)
}

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		*a = StringArray{}
		return nil
	}
	if err := json.Unmarshal(bytes, a); err != nil {
		*a = StringArray{}
	}
	return nil
}

// PersonnelList jsonb array of {name, role} entries. Same safe-parse
// behavior as StringArray.
type PersonnelList []Person

// Person one worker listed on a permit
type Person struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (p PersonnelList) Value() (driver.Value, error) {
	if p == nil {
		return json.Marshal([]Person{})
	}
	return json.Marshal(p)
}

func (p *PersonnelList) Scan(value interface{}) error {
	if value == nil {
		*p = PersonnelList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		*p = PersonnelList{}
		return nil
	}
	if err := json.Unmarshal(bytes, p); err != nil {
		*p = PersonnelList{}
	}
	return nil
}
