package model

type ChatAnswer struct {
	Answer  string           `json:"answer"`
	Sources []RetrievedChunk `json:"sources"`
}
