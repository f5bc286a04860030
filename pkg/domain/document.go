package domain

// Document represents a document in the database
type Document map[string]interface{}
