package kimai

import (
	"bytes"
	"encoding/json"

	"kimai-deck/internal/domain"
)

// rawTimesheet mirrors the JSON of a Kimai timesheet, collapsed or fully expanded.
type rawTimesheet struct {
	ID          int64   `json:"id"`
	Begin       string  `json:"begin"`
	End         *string `json:"end"`
	Project     *rawRef `json:"project"`
	Activity    *rawRef `json:"activity"`
	Description string  `json:"description"`
}

func (r rawTimesheet) toDomain() domain.TimeEntry {
	e := domain.TimeEntry{
		ID:          r.ID,
		Begin:       r.Begin,
		Description: r.Description,
	}
	if r.End != nil {
		end := *r.End
		e.End = &end
	}
	if r.Project != nil {
		e.ProjectID = r.Project.ID
		e.Project = r.Project.Name
		if r.Project.Customer != nil {
			e.Customer = r.Project.Customer.Name
		}
	}
	if r.Activity != nil {
		e.ActivityID = r.Activity.ID
		e.Activity = r.Activity.Name
	}
	return e
}

// rawRef decodes a relation that Kimai sends either as a bare id or, with
// full=true, as a nested object.
type rawRef struct {
	ID       int64
	Name     string
	Customer *rawRef
}

func (r *rawRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] != '{' {
		return json.Unmarshal(b, &r.ID)
	}
	var obj struct {
		ID       int64   `json:"id"`
		Name     string  `json:"name"`
		Customer *rawRef `json:"customer"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	r.ID, r.Name, r.Customer = obj.ID, obj.Name, obj.Customer
	return nil
}

type rawCreate struct {
	Begin       string `json:"begin"`
	Project     int64  `json:"project"`
	Activity    int64  `json:"activity"`
	Description string `json:"description"`
}

type rawProject struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Customer    rawRef `json:"customer"`
	ParentTitle string `json:"parentTitle"`
	Visible     bool   `json:"visible"`
}

type rawActivity struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Project *rawRef `json:"project"`
	Visible bool    `json:"visible"`
}

type rawCustomer struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
}
