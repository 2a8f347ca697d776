package board

// Section is a named column on a project board.
type Section struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"projectId"`
	Name      string  `json:"name"`
	Order     float64 `json:"order"`
	CreatedAt int64   `json:"createdAt"`
}

// Clone returns a copy of the section.
func (s *Section) Clone() *Section {
	c := *s
	return &c
}
