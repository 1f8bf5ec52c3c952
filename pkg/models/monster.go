package models

// Monster is a row of pre-existing monster reference data. Encounters
// point at monsters by Ref; monster definitions themselves are not
// editable through this API.
type Monster struct {
	Ref       string `json:"ref"`
	Name      string `json:"name"`
	Challenge string `json:"challenge"`
}
