package schema

// Reply is the structured answer of a text agent
type Reply struct {
	Answer string `json:"answer" jsonschema:"title=Answer,description=The complete answer in markdown" validate:"required"`
}

func (r Reply) String() string {
	return r.Answer
}
